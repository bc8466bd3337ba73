package flows

// ValidateMetrics carries metric IDs needed by access-token validation.
type ValidateMetrics struct {
	ValidateSuccess int
	ValidateFailure int
}

// ValidateErrors carries host-level sentinel errors used by access-token validation.
type ValidateErrors struct {
	EngineNotReady error
	InvalidToken   error
}

// ValidateDeps supplies collaborators for RunValidateAccess.
type ValidateDeps struct {
	// VerifyAccess returns the subject of a valid access token.
	VerifyAccess func(token string) (string, error)
	MetricInc    func(int)

	Metrics ValidateMetrics
	Errors  ValidateErrors
}

// RunValidateAccess returns the account id carried by an access token. It is
// stateless: no store lookup happens on this path.
func RunValidateAccess(token string, deps ValidateDeps) (string, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.VerifyAccess == nil {
		return "", deps.Errors.EngineNotReady
	}

	subject, err := deps.VerifyAccess(token)
	if err != nil {
		deps.MetricInc(deps.Metrics.ValidateFailure)
		return "", deps.Errors.InvalidToken
	}
	deps.MetricInc(deps.Metrics.ValidateSuccess)
	return subject, nil
}
