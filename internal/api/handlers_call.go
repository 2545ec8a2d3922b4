// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/ManuGH/voicecab/internal/callstate"
	"github.com/ManuGH/voicecab/internal/controller"
	"github.com/ManuGH/voicecab/internal/log"
	"github.com/ManuGH/voicecab/internal/presentation"
)

// CallResponse is the body of every /api/call endpoint.
type CallResponse struct {
	Status  callstate.Status  `json:"status"`
	View    presentation.View `json:"view"`
	CallURL string            `json:"callUrl,omitempty"`
}

func (s *Server) callResponse(m callstate.Model) CallResponse {
	return CallResponse{
		Status:  m.Status,
		View:    presentation.Render(m),
		CallURL: s.config().API.CallURL(),
	}
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.callResponse(s.ctrl.Snapshot()))
}

// handleConnect mirrors the mic button: it is only accepted while the view
// offers a connect click.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	s.handleClick(w, r, presentation.ActionConnect, s.ctrl.Connect)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.handleClick(w, r, presentation.ActionDisconnect, s.ctrl.Disconnect)
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request, action presentation.Action, do func(ctx context.Context) error) {
	view := presentation.Render(s.ctrl.Snapshot())
	if !view.Allows(action) {
		writeProblem(w, r, http.StatusConflict, "call_state_conflict",
			string(action)+" is not available while the call is "+string(view.Status))
		return
	}

	if err := do(r.Context()); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str(log.FieldEvent, "call."+string(action)+"_rejected").Msg("call request rejected")
		if errors.Is(err, controller.ErrClosed) {
			writeProblem(w, r, http.StatusServiceUnavailable, "shutting_down", "the daemon is shutting down")
			return
		}
		writeProblem(w, r, http.StatusInternalServerError, "call_request_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, s.callResponse(s.ctrl.Snapshot()))
}
