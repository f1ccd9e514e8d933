package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/polizas/apperr"
	"github.com/hazyhaar/polizas/policyform"
	"github.com/hazyhaar/polizas/wizard"
)

type wizardResponse struct {
	Wizard     *wizard.State      `json:"wizard"`
	CanGoBack  bool               `json:"canGoBack"`
	Validation *policyform.Report `json:"validation,omitempty"`
}

func viewOf(st *wizard.State) wizardResponse {
	resp := wizardResponse{Wizard: st, CanGoBack: st.CanGoBack()}
	if rep, ok := st.Validation(); ok && st.Step == wizard.StepForm {
		resp.Validation = &rep
	}
	return resp
}

func (s *Server) writeWizard(w http.ResponseWriter, r *http.Request, code int, st *wizard.State, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, code, viewOf(st))
}

func (s *Server) handleStartWizard(w http.ResponseWriter, r *http.Request) {
	st, err := s.cfg.Wizards.Start(r.Context(), callerFrom(r.Context()))
	s.writeWizard(w, r, http.StatusCreated, st, err)
}

func (s *Server) handleListWizards(w http.ResponseWriter, r *http.Request) {
	list := s.cfg.Wizards.List(r.Context(), callerFrom(r.Context()))
	out := make([]wizardResponse, len(list))
	for i, st := range list {
		out[i] = viewOf(st)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetWizard(w http.ResponseWriter, r *http.Request) {
	st, err := s.cfg.Wizards.Get(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"))
	s.writeWizard(w, r, http.StatusOK, st, err)
}

func (s *Server) handleDiscardWizard(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Wizards.Discard(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSelectClient(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID string `json:"clientId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.cfg.Wizards.SelectClient(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"), req.ClientID)
	s.writeWizard(w, r, http.StatusOK, st, err)
}

func (s *Server) handleSelectCompany(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CompanyID string `json:"companyId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.cfg.Wizards.SelectCompany(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"), req.CompanyID)
	s.writeWizard(w, r, http.StatusOK, st, err)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	headers, err := s.uploadedFiles(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()
	if len(headers) != 1 {
		s.writeError(w, r, apperr.New(apperr.KindUpload, "server.upload", "seleccione un único archivo PDF"))
		return
	}
	f, err := headers[0].Open()
	if err != nil {
		s.writeError(w, r, apperr.Wrap(apperr.KindUpload, "server.upload", "no se pudo leer el archivo", err))
		return
	}
	defer f.Close()

	st, err := s.cfg.Wizards.Upload(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"), headers[0].Filename, f)
	s.writeWizard(w, r, http.StatusOK, st, err)
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	st, err := s.cfg.Wizards.Extract(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"))
	s.writeWizard(w, r, http.StatusOK, st, err)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	st, err := s.cfg.Wizards.Retry(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"))
	s.writeWizard(w, r, http.StatusOK, st, err)
}

func (s *Server) handleUpdateForm(w http.ResponseWriter, r *http.Request) {
	var edits map[string]any
	if err := decodeJSON(r, &edits); err != nil {
		s.writeError(w, r, err)
		return
	}
	st, rep, err := s.cfg.Wizards.UpdateForm(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"), edits)
	if err != nil && st != nil {
		// the valid edits were kept; report the rejected one with the new state
		status, body := classify(err)
		body.Validation = &rep
		s.writeErrorBody(w, r, status, body, err)
		return
	}
	s.writeWizard(w, r, http.StatusOK, st, err)
}

func (s *Server) handleValidation(w http.ResponseWriter, r *http.Request) {
	rep, err := s.cfg.Wizards.Validation(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": rep.Valid(), "report": rep})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	c := callerFrom(r.Context())
	id := chi.URLParam(r, "id")
	st, err := s.cfg.Wizards.Submit(r.Context(), c, id)
	if err == nil {
		writeJSON(w, http.StatusOK, viewOf(st))
		return
	}

	status, body := classify(err)
	var missing *policyform.MissingFieldsError
	var invalid *policyform.InvalidFormError
	if errors.As(err, &missing) || errors.As(err, &invalid) {
		if rep, verr := s.cfg.Wizards.Validation(r.Context(), c, id); verr == nil {
			body.Missing = rep.Missing()
			body.Errors = rep.Errors
		}
	}
	s.writeErrorBody(w, r, status, body, err)
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	st, err := s.cfg.Wizards.Back(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"))
	s.writeWizard(w, r, http.StatusOK, st, err)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	st, err := s.cfg.Wizards.Reset(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"))
	s.writeWizard(w, r, http.StatusOK, st, err)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	c := callerFrom(r.Context())
	id := chi.URLParam(r, "id")
	if _, err := s.cfg.Wizards.Get(r.Context(), c, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.cfg.Journal == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := s.cfg.Journal.Recent(r.Context(), id, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
