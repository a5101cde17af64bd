package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fwojciec/pluck"
	"github.com/fwojciec/pluck/extraction"
	"github.com/rs/zerolog/hlog"
)

// stateResponse is the body returned by the JSON API.
type stateResponse struct {
	State  pluck.UIState           `json:"state"`
	Result *pluck.ExtractionResult `json:"result"`
	Error  string                  `json:"error,omitempty"`
	Code   string                  `json:"code,omitempty"`
}

type credentialRequest struct {
	APIKey string `json:"apiKey"`
}

func (s *Server) handleAPIState(w http.ResponseWriter, r *http.Request) {
	client, err := s.Sessions.Client(r.Context(), w, r)
	if err != nil {
		s.writeJSONError(w, r, err)
		return
	}
	s.writeState(w, r, client, nil)
}

func (s *Server) handleAPIExtract(w http.ResponseWriter, r *http.Request) {
	client, err := s.Sessions.Client(r.Context(), w, r)
	if err != nil {
		s.writeJSONError(w, r, err)
		return
	}

	var req pluck.ExtractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, r, pluck.Errorf(pluck.EINVALID, "invalid JSON body"))
		return
	}

	_, err = client.Submit(context.WithoutCancel(r.Context()), req.TargetURL, req.Prompt)
	s.writeState(w, r, client, err)
}

func (s *Server) handleAPICredentialSave(w http.ResponseWriter, r *http.Request) {
	client, err := s.Sessions.Client(r.Context(), w, r)
	if err != nil {
		s.writeJSONError(w, r, err)
		return
	}

	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, r, pluck.Errorf(pluck.EINVALID, "invalid JSON body"))
		return
	}

	err = client.SaveCredential(r.Context(), req.APIKey)
	s.writeState(w, r, client, err)
}

func (s *Server) handleAPICredentialDelete(w http.ResponseWriter, r *http.Request) {
	client, err := s.Sessions.Client(r.Context(), w, r)
	if err != nil {
		s.writeJSONError(w, r, err)
		return
	}
	err = client.ClearCredential(r.Context())
	s.writeState(w, r, client, err)
}

// writeState writes the client's state with the status matching err.
func (s *Server) writeState(w http.ResponseWriter, r *http.Request, client *extraction.Client, err error) {
	resp := stateResponse{State: client.State(), Result: client.Result()}
	status := http.StatusOK
	if err != nil {
		resp.Code = pluck.ErrorCode(err)
		resp.Error = s.publicMessage(r, err)
		status = ErrorStatusCode(resp.Code)
	}
	writeJSON(w, status, resp)
}

func (s *Server) writeJSONError(w http.ResponseWriter, r *http.Request, err error) {
	code := pluck.ErrorCode(err)
	writeJSON(w, ErrorStatusCode(code), stateResponse{Error: s.publicMessage(r, err), Code: code})
}

// publicMessage hides the details of internal errors from clients.
func (s *Server) publicMessage(r *http.Request, err error) string {
	var appErr *pluck.Error
	if pluck.ErrorCode(err) == pluck.EINTERNAL && !errors.As(err, &appErr) {
		hlog.FromRequest(r).Error().Err(err).Msg("internal error")
		return "Internal error."
	}
	return pluck.ErrorMessage(err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
