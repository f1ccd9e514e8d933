package server

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/hazyhaar/polizas/apperr"
	"github.com/hazyhaar/polizas/auth"
	"github.com/hazyhaar/polizas/policyform"
	"github.com/hazyhaar/polizas/shield"
	"github.com/hazyhaar/polizas/wizard"
)

type errorBody struct {
	Error      string                       `json:"error"`
	Kind       apperr.Kind                  `json:"kind"`
	Code       string                       `json:"code,omitempty"`
	Step       string                       `json:"step,omitempty"`
	Missing    []string                     `json:"missing,omitempty"`
	Errors     []policyform.ValidationError `json:"errors,omitempty"`
	Validation *policyform.Report           `json:"validation,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// classify builds the error body and status for err.
func classify(err error) (int, errorBody) {
	kind := apperr.KindOf(err)
	body := errorBody{Error: apperr.UserMessage(err), Kind: kind}

	var ge *wizard.GateError
	if errors.As(err, &ge) {
		body.Code = ge.Code
		body.Step = ge.Step.String()
	}
	var missing *policyform.MissingFieldsError
	if errors.As(err, &missing) {
		body.Missing = missing.Fields
	}
	var invalid *policyform.InvalidFormError
	if errors.As(err, &invalid) {
		body.Errors = invalid.Errors
	}
	return apperr.StatusFor(kind), body
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	s.writeErrorBody(w, r, status, body, err)
}

func (s *Server) writeErrorBody(w http.ResponseWriter, r *http.Request, status int, body errorBody, err error) {
	logger := shield.GetLogger(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "kind", body.Kind, "error", err)
	} else {
		logger.Debug("request rejected", "kind", body.Kind, "error", err)
	}
	if body.Kind == apperr.KindAuth {
		auth.ClearTokenCookie(w, s.cfg.CookieDomain)
	}
	writeJSON(w, status, body)
}

// decodeJSON decodes the request body into v. A malformed body is a
// validation error.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Wrap(apperr.KindValidation, "server.decode", "solicitud inválida", err)
	}
	return nil
}
