package flows

import (
	"context"

	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/store"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Validate.VerifyAccess != nil
}

func (s Service) Register(ctx context.Context, in RegisterInput) (store.Account, error) {
	return RunRegister(ctx, in, s.deps.Register)
}

func (s Service) Login(ctx context.Context, identifier, password string) (LoginResult, error) {
	return RunLogin(ctx, identifier, password, s.deps.Login)
}

func (s Service) LoginExternal(ctx context.Context, assertion string) (LoginResult, error) {
	return RunLoginExternal(ctx, assertion, s.deps.External)
}

func (s Service) Reconcile(ctx context.Context, a identity.Assertion) (store.Account, error) {
	return RunReconcile(ctx, a, s.deps.External)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}

func (s Service) ValidateAccess(token string) (string, error) {
	return RunValidateAccess(token, s.deps.Validate)
}

func (s Service) RequestPasswordReset(ctx context.Context, email string) error {
	return RunRequestPasswordReset(ctx, email, s.deps.PasswordReset)
}

func (s Service) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	return RunConfirmPasswordReset(ctx, token, newPassword, s.deps.PasswordReset)
}
