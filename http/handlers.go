package http

import (
	"bytes"
	"context"
	"math"
	"net/http"

	"github.com/fwojciec/pluck"
	"github.com/fwojciec/pluck/extraction"
	"github.com/rs/zerolog/hlog"
)

// indexData is the data rendered by the index template.
type indexData struct {
	State  pluck.UIState
	Result *pluck.ExtractionResult

	// Form values echoed back after a submission.
	URL    string
	Prompt string

	// Message explains a rejected submission.
	Message string

	// RefreshSeconds reloads the page while the welcome overlay is pending.
	RefreshSeconds int
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	client, err := s.Sessions.Client(r.Context(), w, r)
	if err != nil {
		s.Error(w, r, err)
		return
	}
	s.renderIndex(w, r, client, indexData{Prompt: pluck.DefaultPrompt}, http.StatusOK)
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	client, err := s.Sessions.Client(r.Context(), w, r)
	if err != nil {
		s.Error(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.Error(w, r, pluck.Errorf(pluck.EINVALID, "invalid form: %s", err))
		return
	}

	data := indexData{URL: r.PostForm.Get("url"), Prompt: r.PostForm.Get("prompt")}

	// A submission runs to completion even if the browser goes away.
	_, err = client.Submit(context.WithoutCancel(r.Context()), data.URL, data.Prompt)

	status := http.StatusOK
	switch code := pluck.ErrorCode(err); code {
	case pluck.EINVALID, pluck.ECONFLICT:
		status = ErrorStatusCode(code)
		data.Message = pluck.ErrorMessage(err)
	}
	s.renderIndex(w, r, client, data, status)
}

func (s *Server) handleCredentialSave(w http.ResponseWriter, r *http.Request) {
	client, err := s.Sessions.Client(r.Context(), w, r)
	if err != nil {
		s.Error(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.Error(w, r, pluck.Errorf(pluck.EINVALID, "invalid form: %s", err))
		return
	}

	if err := client.SaveCredential(r.Context(), r.PostForm.Get("api_key")); err != nil {
		if pluck.ErrorCode(err) == pluck.EINVALID {
			client.OpenCredentialModal()
			s.renderIndex(w, r, client, indexData{Prompt: pluck.DefaultPrompt, Message: pluck.ErrorMessage(err)}, http.StatusBadRequest)
			return
		}
		s.Error(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleCredentialOpen(w http.ResponseWriter, r *http.Request) {
	client, err := s.Sessions.Client(r.Context(), w, r)
	if err != nil {
		s.Error(w, r, err)
		return
	}
	client.OpenCredentialModal()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleCredentialCancel(w http.ResponseWriter, r *http.Request) {
	client, err := s.Sessions.Client(r.Context(), w, r)
	if err != nil {
		s.Error(w, r, err)
		return
	}
	client.CancelCredentialModal()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request, client *extraction.Client, data indexData, status int) {
	data.State = client.State()
	data.Result = client.Result()
	if data.State.IsFirstVisit && !data.State.HasCredential &&
		!data.State.ShowWelcomeOverlay && !data.State.ShowCredentialModal {
		data.RefreshSeconds = int(math.Max(1, math.Ceil(s.WelcomeDelay.Seconds())))
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		s.Error(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Error writes a plain-text error response and logs internal errors.
func (s *Server) Error(w http.ResponseWriter, r *http.Request, err error) {
	code, message := pluck.ErrorCode(err), pluck.ErrorMessage(err)
	if code == pluck.EINTERNAL {
		hlog.FromRequest(r).Error().Err(err).Msg("internal error")
		message = "Internal error."
	}
	http.Error(w, message, ErrorStatusCode(code))
}
