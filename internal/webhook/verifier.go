package webhook

import (
	"crypto/subtle"

	"go.uber.org/zap"
)

// Verifier checks the application token Bitrix24 sends with outbound webhooks
type Verifier struct {
	applicationToken string
	logger           *zap.Logger
}

// NewVerifier creates a new webhook verifier
func NewVerifier(applicationToken string, logger *zap.Logger) *Verifier {
	if applicationToken == "" {
		logger.Warn("Bitrix application token not configured, CRM webhooks will be rejected")
	}
	return &Verifier{
		applicationToken: applicationToken,
		logger:           logger,
	}
}

// Verify reports whether token matches the configured application token.
// An unconfigured verifier rejects every token.
func (v *Verifier) Verify(token string) bool {
	if v.applicationToken == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(v.applicationToken)) == 1
}
