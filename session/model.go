package session

// Session defines a public type used by goIdentity APIs.
//
// Session instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Session struct {
	Token    string
	UserID   string
	UserType string

	CreatedAt int64
	ExpiresAt int64
}
