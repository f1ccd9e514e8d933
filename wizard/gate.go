package wizard

import (
	"fmt"

	"github.com/hazyhaar/polizas/apperr"
)

// Gate codes.
const (
	CodeWrongStep       = "wrong_step"
	CodeClientRequired  = "client_required"
	CodeCompanyRequired = "company_required"
	CodeFileRequired    = "file_required"
	CodeExtractRequired = "extraction_required"
	CodeSubmitRequired  = "submit_required"
	CodeRetryNotNeeded  = "retry_not_needed"
	CodeCannotGoBack    = "cannot_go_back"
	CodeCompleted       = "completed"
)

// GateError is returned when an operation is not allowed at the current
// step or its precondition is not met.
type GateError struct {
	Step    Step   `json:"step"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *GateError) Error() string {
	return fmt.Sprintf("wizard: %s at %s: %s", e.Code, e.Step, e.Message)
}

// Unwrap exposes the apperr classification.
func (e *GateError) Unwrap() error {
	return apperr.New(apperr.KindState, "wizard."+e.Code, e.Message)
}

func gate(step Step, code, msg string) *GateError {
	return &GateError{Step: step, Code: code, Message: msg}
}

func wrongStep(at Step) *GateError {
	return gate(at, CodeWrongStep, fmt.Sprintf("acción no disponible en el paso %s", at))
}
