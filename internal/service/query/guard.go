package query

import (
	"strings"

	"querydesk/internal/domain"
)

// CheckTerminated rejects statements that do not end with a semicolon.
// Callers run it before Submit; the orchestrator does not re-check.
func CheckTerminated(statement string) error {
	s := strings.TrimSpace(statement)
	if s == "" {
		return domain.ErrEmptyInput("query is empty")
	}
	if !strings.HasSuffix(s, ";") {
		return domain.ErrValidation("query must end with a semicolon (;)")
	}
	return nil
}
