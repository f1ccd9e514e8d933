package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	c := callerFrom(r.Context())
	list, err := s.cfg.Backend.ListClients(r.Context(), c.Token, r.URL.Query().Get("search"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	c := callerFrom(r.Context())
	cl, err := s.cfg.Backend.GetClient(r.Context(), c.Token, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cl)
}

func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	c := callerFrom(r.Context())
	list, err := s.cfg.Backend.ListCompanies(r.Context(), c.Token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	c := callerFrom(r.Context())
	list, err := s.cfg.Backend.ListPolicies(r.Context(), c.Token, r.URL.Query().Get("clienteId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
