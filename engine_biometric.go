package goIdentity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/MrEthical07/goIdentity/internal/stores"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// ceremonyProvider abstracts the WebAuthn library surface the engine drives,
// so ceremony outcomes can be substituted in tests.
type ceremonyProvider interface {
	BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error)
	CreateCredential(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)
	BeginDiscoverableLogin(opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	ValidatePasskeyLogin(handler webauthn.DiscoverableUserHandler, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (webauthn.User, *webauthn.Credential, error)
}

type ceremonyParser interface {
	ParseCreation(data []byte) (*protocol.ParsedCredentialCreationData, error)
	ParseAssertion(data []byte) (*protocol.ParsedCredentialAssertionData, error)
}

type protocolParser struct{}

func (protocolParser) ParseCreation(data []byte) (*protocol.ParsedCredentialCreationData, error) {
	return protocol.ParseCredentialCreationResponseBytes(data)
}

func (protocolParser) ParseAssertion(data []byte) (*protocol.ParsedCredentialAssertionData, error) {
	return protocol.ParseCredentialRequestResponseBytes(data)
}

// webauthnUser adapts a provider user record plus its bound credentials to
// the interface the WebAuthn library expects.
type webauthnUser struct {
	id          []byte
	email       string
	credentials []webauthn.Credential
}

func (u *webauthnUser) WebAuthnID() []byte                         { return u.id }
func (u *webauthnUser) WebAuthnName() string                       { return u.email }
func (u *webauthnUser) WebAuthnDisplayName() string                { return u.email }
func (u *webauthnUser) WebAuthnIcon() string                       { return "" }
func (u *webauthnUser) WebAuthnCredentials() []webauthn.Credential { return u.credentials }

// BeginBiometricRegistration opens a credential-creation ceremony for a user.
//
// Authorization comes from one of two places: the single-use
// post-verification grant (consumed here), or a session token that validates
// to the same user. Without either, nothing may bind a credential to the
// account.
func (e *Engine) BeginBiometricRegistration(ctx context.Context, userID, sessionToken string) (BiometricOptions, error) {
	if e.webauthn == nil {
		return BiometricOptions{}, ErrBiometricDisabled
	}
	if userID == "" {
		return BiometricOptions{}, ErrInvalidInput
	}

	// Single use: a second Begin for the same user needs a session.
	_, err := e.grantStore.ConsumePending(ctx, userID)
	switch {
	case err == nil:
	case errors.Is(err, stores.ErrGrantNotFound):
		if sessionToken == "" {
			return BiometricOptions{}, ErrGrantNotFound
		}
		info, err := e.Validate(ctx, sessionToken)
		if err != nil {
			return BiometricOptions{}, err
		}
		if info.UserID != userID {
			return BiometricOptions{}, ErrSessionNotFound
		}
	default:
		return BiometricOptions{}, wrapStoreErr(err)
	}

	user, creds, err := e.loadWebauthnUser(ctx, userID)
	if err != nil {
		return BiometricOptions{}, err
	}

	options := []webauthn.RegistrationOption{
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
	}
	if len(creds) > 0 {
		options = append(options, webauthn.WithExclusions(webauthn.Credentials(creds).CredentialDescriptors()))
	}

	creation, sessionData, err := e.webauthn.BeginRegistration(user, options...)
	if err != nil {
		return BiometricOptions{}, ErrCeremonyFailed
	}

	return e.saveCeremony(ctx, stores.CeremonyRegistration, userID, creation, sessionData)
}

// FinishBiometricRegistration completes a creation ceremony and binds the new
// credential to the user. The ceremony record is consumed before verification;
// pass or fail, a ceremony ID works exactly once.
func (e *Engine) FinishBiometricRegistration(ctx context.Context, userID, ceremonyID string, responseJSON []byte) (string, error) {
	if e.webauthn == nil {
		return "", ErrBiometricDisabled
	}
	if userID == "" || ceremonyID == "" || len(responseJSON) == 0 {
		return "", ErrInvalidInput
	}

	record, err := e.consumeCeremony(ctx, ceremonyID, stores.CeremonyRegistration)
	if err != nil {
		return "", err
	}
	if record.UserID != userID {
		return "", ErrCeremonyNotFound
	}

	var sessionData webauthn.SessionData
	if err := json.Unmarshal(record.SessionJSON, &sessionData); err != nil {
		return "", ErrCeremonyNotFound
	}

	parsed, err := e.parser.ParseCreation(responseJSON)
	if err != nil {
		return "", ErrCeremonyFailed
	}

	user, _, err := e.loadWebauthnUser(ctx, userID)
	if err != nil {
		return "", err
	}

	credential, err := e.webauthn.CreateCredential(user, sessionData, parsed)
	if err != nil {
		return "", ErrCeremonyFailed
	}

	credentialJSON, err := json.Marshal(credential)
	if err != nil {
		return "", err
	}

	err = e.userProvider.BindCredential(ctx, BiometricCredential{
		UserID:         userID,
		CredentialID:   credential.ID,
		SignCount:      credential.Authenticator.SignCount,
		CredentialJSON: credentialJSON,
		CreatedAt:      time.Now().Unix(),
	})
	if err != nil {
		return "", wrapStoreErr(err)
	}

	encodedID := encodeCredentialID(credential.ID)

	e.metrics.Inc(MetricBiometricRegistered)
	e.emitAudit(ctx, AuditEvent{
		EventType: eventBiometricRegistered,
		UserID:    userID,
		Success:   true,
		Metadata:  map[string]string{"credential_id": encodedID},
	})

	return encodedID, nil
}

// BeginBiometricLogin opens a discoverable-credential assertion ceremony. No
// user is named up front; the authenticator's user handle identifies the
// account at finish time.
func (e *Engine) BeginBiometricLogin(ctx context.Context) (BiometricOptions, error) {
	if e.webauthn == nil {
		return BiometricOptions{}, ErrBiometricDisabled
	}

	assertion, sessionData, err := e.webauthn.BeginDiscoverableLogin()
	if err != nil {
		return BiometricOptions{}, ErrCeremonyFailed
	}

	return e.saveCeremony(ctx, stores.CeremonyLogin, "", assertion, sessionData)
}

// FinishBiometricLogin completes an assertion ceremony and mints a session.
// The authenticator's reported sign count must strictly exceed the stored
// one (zero/zero counts excepted, for authenticators that never increment);
// any rollback flags the credential and hard-fails the login.
func (e *Engine) FinishBiometricLogin(ctx context.Context, ceremonyID string, responseJSON []byte) (LoginResult, error) {
	if e.webauthn == nil {
		return LoginResult{}, ErrBiometricDisabled
	}
	if ceremonyID == "" || len(responseJSON) == 0 {
		return LoginResult{}, ErrInvalidInput
	}

	record, err := e.consumeCeremony(ctx, ceremonyID, stores.CeremonyLogin)
	if err != nil {
		return LoginResult{}, err
	}

	var sessionData webauthn.SessionData
	if err := json.Unmarshal(record.SessionJSON, &sessionData); err != nil {
		return LoginResult{}, ErrCeremonyNotFound
	}

	parsed, err := e.parser.ParseAssertion(responseJSON)
	if err != nil {
		return LoginResult{}, ErrCeremonyFailed
	}

	_, credential, err := e.webauthn.ValidatePasskeyLogin(e.discoverableHandler(ctx), sessionData, parsed)
	if err != nil {
		return LoginResult{}, e.biometricFailure(ctx, "", ErrCeremonyFailed)
	}

	stored, err := e.userProvider.GetCredential(ctx, credential.ID)
	if err != nil {
		if errors.Is(err, ErrUnknownCredential) {
			return LoginResult{}, e.biometricFailure(ctx, "", ErrUnknownCredential)
		}
		return LoginResult{}, wrapStoreErr(err)
	}

	encodedID := encodeCredentialID(credential.ID)

	if stored.CloneFlagged {
		return LoginResult{}, e.biometricFailure(ctx, stored.UserID, ErrCounterRollback)
	}

	reported := credential.Authenticator.SignCount
	countValid := reported > stored.SignCount || (reported == 0 && stored.SignCount == 0)
	if credential.Authenticator.CloneWarning || !countValid {
		_ = e.userProvider.FlagCredentialClone(ctx, credential.ID)
		e.metrics.Inc(MetricCounterRollback)
		e.emitAudit(ctx, AuditEvent{
			EventType: eventCounterRollback,
			UserID:    stored.UserID,
			Success:   false,
			Metadata:  map[string]string{"credential_id": encodedID},
		})
		return LoginResult{}, e.biometricFailure(ctx, stored.UserID, ErrCounterRollback)
	}

	if err := e.userProvider.UpdateCredentialSignCount(ctx, credential.ID, reported); err != nil {
		return LoginResult{}, wrapStoreErr(err)
	}

	user, err := e.userProvider.GetUserByID(ctx, stored.UserID)
	if err != nil {
		return LoginResult{}, wrapStoreErr(err)
	}

	info, err := e.issueSession(ctx, user.ID, user.UserType)
	if err != nil {
		return LoginResult{}, err
	}

	e.metrics.Inc(MetricBiometricLoginSuccess)
	e.emitAudit(ctx, AuditEvent{
		EventType: eventBiometricLoginSuccess,
		UserID:    user.ID,
		Success:   true,
		Metadata:  map[string]string{"credential_id": encodedID},
	})

	return LoginResult{
		Session:       info,
		UserID:        user.ID,
		UserType:      user.UserType,
		UsedBiometric: true,
		CredentialID:  encodedID,
	}, nil
}

func (e *Engine) saveCeremony(ctx context.Context, kind stores.CeremonyKind, userID string, options any, sessionData *webauthn.SessionData) (BiometricOptions, error) {
	ceremonyID, err := newCeremonyID()
	if err != nil {
		return BiometricOptions{}, err
	}

	optionsJSON, err := json.Marshal(options)
	if err != nil {
		return BiometricOptions{}, err
	}
	sessionJSON, err := json.Marshal(sessionData)
	if err != nil {
		return BiometricOptions{}, err
	}

	ttl := e.config.Biometric.CeremonyTTL
	expiresAt := time.Now().Add(ttl)

	err = e.ceremonyStore.Save(ctx, ceremonyID, &stores.CeremonyRecord{
		Kind:        kind,
		UserID:      userID,
		SessionJSON: sessionJSON,
		ExpiresAt:   expiresAt.Unix(),
	}, ttl)
	if err != nil {
		return BiometricOptions{}, wrapStoreErr(err)
	}

	return BiometricOptions{
		CeremonyID:  ceremonyID,
		OptionsJSON: optionsJSON,
		ExpiresAt:   expiresAt,
	}, nil
}

func (e *Engine) consumeCeremony(ctx context.Context, ceremonyID string, kind stores.CeremonyKind) (*stores.CeremonyRecord, error) {
	record, err := e.ceremonyStore.Consume(ctx, ceremonyID, kind)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrCeremonyExpired):
			return nil, ErrCeremonyExpired
		case errors.Is(err, stores.ErrCeremonyNotFound),
			errors.Is(err, stores.ErrCeremonyKindMismatch):
			return nil, ErrCeremonyNotFound
		default:
			return nil, wrapStoreErr(err)
		}
	}
	return record, nil
}

// discoverableHandler resolves the authenticator-supplied user handle to the
// account and its credential set during assertion validation.
func (e *Engine) discoverableHandler(ctx context.Context) webauthn.DiscoverableUserHandler {
	return func(rawID, userHandle []byte) (webauthn.User, error) {
		user, _, err := e.loadWebauthnUser(ctx, string(userHandle))
		if err != nil {
			return nil, ErrUnknownCredential
		}
		return user, nil
	}
}

func (e *Engine) loadWebauthnUser(ctx context.Context, userID string) (*webauthnUser, []webauthn.Credential, error) {
	user, err := e.userProvider.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, wrapStoreErr(err)
	}

	bound, err := e.userProvider.CredentialsFor(ctx, userID)
	if err != nil {
		return nil, nil, wrapStoreErr(err)
	}

	creds := make([]webauthn.Credential, 0, len(bound))
	for _, b := range bound {
		var cred webauthn.Credential
		if err := json.Unmarshal(b.CredentialJSON, &cred); err != nil {
			continue
		}
		creds = append(creds, cred)
	}

	return &webauthnUser{
		id:          []byte(user.ID),
		email:       user.Email,
		credentials: creds,
	}, creds, nil
}

func encodeCredentialID(id []byte) string {
	return base64.RawURLEncoding.EncodeToString(id)
}

func (e *Engine) biometricFailure(ctx context.Context, userID string, cause error) error {
	e.metrics.Inc(MetricBiometricLoginFailure)
	e.emitAudit(ctx, AuditEvent{
		EventType: eventBiometricLoginFailure,
		UserID:    userID,
		Success:   false,
		Error:     errString(cause),
	})
	return cause
}
