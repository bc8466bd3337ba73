package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/authcore/store"
	"github.com/MrEthical07/authcore/store/memory"
)

var (
	errNotReady            = errors.New("engine not ready")
	errInvalidInput        = errors.New("invalid input")
	errPolicy              = errors.New("password policy")
	errRateLimited         = errors.New("rate limited")
	errInvalidCredentials  = errors.New("invalid credentials")
	errInactive            = errors.New("inactive user")
	errInvalidToken        = errors.New("invalid token")
	errUserNotFound        = errors.New("user not found")
	errUsernameUnavailable = errors.New("username unavailable")
)

type existsError struct{ field string }

func (e *existsError) Error() string { return "User with this " + e.field + " already exists" }

type oauthError struct{ message string }

func (e *oauthError) Error() string { return e.message }

func alreadyExists(field string) error { return &existsError{field: field} }

func oauth(message string) error { return &oauthError{message: message} }

func existsField(err error) string {
	var e *existsError
	if errors.As(err, &e) {
		return e.field
	}
	return ""
}

func fakeHash(pw string) (string, error) { return "fake$" + pw, nil }

func fakeVerify(pw, encoded string) bool { return encoded == "fake$"+pw }

func fakePair(subject string) (TokenPair, error) {
	return TokenPair{AccessToken: "access:" + subject, RefreshToken: "refresh:" + subject}, nil
}

func seedPasswordAccount(st *memory.Store, email, username, password string) store.Account {
	hash, _ := fakeHash(password)
	acc, err := st.CreateAccount(context.Background(), store.NewAccount{Email: email, Username: username, PasswordHash: hash})
	if err != nil {
		panic(err)
	}
	return acc
}

func registerDeps(st *memory.Store) RegisterDeps {
	return RegisterDeps{
		AccountByEmail:    st.AccountByEmail,
		AccountByUsername: st.AccountByUsername,
		CreateAccount:     st.CreateAccount,
		HashPassword:      fakeHash,
		Errors: RegisterErrors{
			EngineNotReady: errNotReady,
			InvalidInput:   errInvalidInput,
			PasswordPolicy: errPolicy,
			RateLimited:    errRateLimited,
			AlreadyExists:  alreadyExists,
		},
	}
}

func loginDeps(st *memory.Store) LoginDeps {
	return LoginDeps{
		AccountByEmail:     st.AccountByEmail,
		AccountByUsername:  st.AccountByUsername,
		UpdatePasswordHash: st.UpdatePasswordHash,
		VerifyPassword:     fakeVerify,
		HashPassword:       fakeHash,
		IssuePair:          fakePair,
		DummyHash:          "fake$dummy",
		Errors: LoginErrors{
			EngineNotReady:     errNotReady,
			InvalidCredentials: errInvalidCredentials,
			InactiveUser:       errInactive,
			RateLimited:        errRateLimited,
		},
	}
}

func externalDeps(st *memory.Store) ExternalDeps {
	return ExternalDeps{
		AccountByExternalID: st.AccountByExternalID,
		AccountByEmail:      st.AccountByEmail,
		AccountByUsername:   st.AccountByUsername,
		UpdateExternalID:    st.UpdateExternalID,
		CreateAccount:       st.CreateAccount,
		IssuePair:           fakePair,
		Errors: ExternalErrors{
			EngineNotReady:      errNotReady,
			InactiveUser:        errInactive,
			UsernameUnavailable: errUsernameUnavailable,
			OAuth:               oauth,
			AlreadyExists:       alreadyExists,
		},
	}
}

func resetDeps(st *memory.Store, notify func(context.Context, string, string) error) PasswordResetDeps {
	n := 0
	return PasswordResetDeps{
		AccountByEmail:     st.AccountByEmail,
		AccountByID:        st.AccountByID,
		UpdatePasswordHash: st.UpdatePasswordHash,
		CreateResetToken:   st.CreateResetToken,
		ResetTokenByValue:  st.ResetTokenByValue,
		MarkResetTokenUsed: st.MarkResetTokenUsed,
		InTx:               st.InTx,
		GenerateToken: func() (string, error) {
			n++
			return "token-" + strings.Repeat("x", n), nil
		},
		ResetLink:    func(token string) string { return "http://localhost:3000/reset-password?token=" + token },
		Notify:       notify,
		HashPassword: fakeHash,
		Errors: PasswordResetErrors{
			EngineNotReady: errNotReady,
			InvalidToken:   errInvalidToken,
			UserNotFound:   errUserNotFound,
			PasswordPolicy: errPolicy,
			RateLimited:    errRateLimited,
		},
	}
}
