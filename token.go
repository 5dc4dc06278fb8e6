package goIdentity

import "github.com/MrEthical07/goIdentity/internal"

func newSessionToken() (string, error) {
	token, err := internal.NewSessionToken()
	if err != nil {
		return "", err
	}
	return token.String(), nil
}

// parseToken rejects malformed tokens before any Redis round-trip.
func parseToken(token string) (internal.SessionToken, error) {
	return internal.ParseSessionToken(token)
}

func newCeremonyID() (string, error) {
	id, err := internal.NewCeremonyID()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
