package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/diogoX451/callrelay/internal/api/dto"
)

const (
	defaultAnswerDestination = "user/1001"
	defaultHangupCause       = "NORMAL_CLEARING"
	defaultDialplanContext   = "default"
)

// Handler: POST /api/command
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req dto.CommandRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Command == "" {
		respondError(w, http.StatusBadRequest, "INVALID_COMMAND", "command is required")
		return
	}

	respondJSON(w, http.StatusOK, s.commands.Send(req.Command, req.Args))
}

// Handler: GET /api/calls
func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.commands.Send("show", "calls"))
}

// Handler: POST /api/calls/answer
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req dto.AnswerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.UUID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_CALL", "uuid is required")
		return
	}
	destination := orDefault(req.Destination, defaultAnswerDestination)

	respondJSON(w, http.StatusOK, s.commands.Send("uuid_bridge", fmt.Sprintf("%s %s", req.UUID, destination)))
}

// Handler: POST /api/calls/hangup
func (s *Server) handleHangup(w http.ResponseWriter, r *http.Request) {
	var req dto.HangupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.UUID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_CALL", "uuid is required")
		return
	}
	cause := orDefault(req.Cause, defaultHangupCause)

	respondJSON(w, http.StatusOK, s.commands.Send("uuid_kill", fmt.Sprintf("%s %s", req.UUID, cause)))
}

// Handler: POST /api/calls/transfer
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req dto.TransferRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.UUID == "" || req.Extension == "" {
		respondError(w, http.StatusBadRequest, "INVALID_TRANSFER", "uuid and extension are required")
		return
	}
	dialplan := orDefault(req.Context, defaultDialplanContext)

	args := fmt.Sprintf("%s %s XML %s", req.UUID, req.Extension, dialplan)
	respondJSON(w, http.StatusOK, s.commands.Send("uuid_transfer", args))
}

// Handler: POST /api/calls/originate
func (s *Server) handleOriginate(w http.ResponseWriter, r *http.Request) {
	var req dto.OriginateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Endpoint == "" || req.Destination == "" {
		respondError(w, http.StatusBadRequest, "INVALID_ORIGINATE", "endpoint and destination are required")
		return
	}
	dialplan := orDefault(req.Context, defaultDialplanContext)

	args := fmt.Sprintf("%s %s XML %s", req.Endpoint, req.Destination, dialplan)
	respondJSON(w, http.StatusOK, s.commands.Send("originate", args))
}

// decodeBody aceita corpo vazio como {} e rejeita lixo depois do objeto
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(dst)
	if errors.Is(err, io.EOF) {
		return true
	}
	if err == nil && dec.More() {
		err = errors.New("unexpected data after JSON body")
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return false
	}
	return true
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
