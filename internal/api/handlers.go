package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mastermind-creat/tech.safi-sub001/internal/chatbot"
	"github.com/mastermind-creat/tech.safi-sub001/internal/models"
	"github.com/mastermind-creat/tech.safi-sub001/internal/session"
	"github.com/mastermind-creat/tech.safi-sub001/internal/store"
)

// ChatReply is the widget-facing answer to one utterance.
type ChatReply struct {
	SessionID string                   `json:"session_id"`
	Text      string                   `json:"text"`
	Lines     []chatbot.Line           `json:"lines"`
	Source    models.ReplySource       `json:"source"`
	Rule      string                   `json:"rule,omitempty"`
	State     models.ConnectivityState `json:"state"`
}

func newChatReply(reply chatbot.Reply, info models.SessionInfo) ChatReply {
	return ChatReply{
		SessionID: info.ID,
		Text:      reply.Text,
		Lines:     chatbot.Format(reply.Text),
		Source:    reply.Source,
		Rule:      reply.Rule,
		State:     info.State,
	}
}

// resolveContext detaches resolution from the request so a dropped client does not
// count as an AI failure. The resolver's own timeout still bounds the call.
func resolveContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	info := s.manager.Open(models.ChannelWeb)
	slog.Info("Server.createSessionHandler: conversation created", "id", info.ID, "state", info.State)
	writeJSONResponse(w, http.StatusCreated, models.Success(info))
}

// browserSession returns the conversation with id when a browser may use it. WhatsApp
// conversations are reported as not found.
func (s *Server) browserSession(id string) (models.SessionInfo, error) {
	info, err := s.manager.Get(id)
	if err != nil {
		return models.SessionInfo{}, err
	}
	if !resumable(info.Channel) {
		return models.SessionInfo{}, session.ErrNotFound
	}
	return info, nil
}

func (s *Server) listSessionsHandler(w http.ResponseWriter, r *http.Request) {
	infos := make([]models.SessionInfo, 0)
	for _, info := range s.manager.List() {
		if resumable(info.Channel) {
			infos = append(infos, info)
		}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(infos))
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	info, err := s.browserSession(id)
	if err != nil {
		writeSessionError(w, "Server.getSessionHandler", id, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(info))
}

func (s *Server) closeSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.browserSession(id); err != nil {
		writeSessionError(w, "Server.closeSessionHandler", id, err)
		return
	}
	if err := s.manager.Close(id); err != nil {
		writeSessionError(w, "Server.closeSessionHandler", id, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Conversation closed", nil))
}

func (s *Server) sendMessageHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer r.Body.Close()

	var req models.ChatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.sendMessageHandler: failed to decode JSON", "error", err, "id", id)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Debug("Server.sendMessageHandler: validation failed", "error", err, "id", id)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	if _, err := s.browserSession(id); err != nil {
		writeSessionError(w, "Server.sendMessageHandler", id, err)
		return
	}
	reply, info, err := s.manager.Send(resolveContext(r), id, req.Message)
	if err != nil {
		writeSessionError(w, "Server.sendMessageHandler", id, err)
		return
	}
	slog.Debug("Server.sendMessageHandler: replied", "id", id, "source", reply.Source, "rule", reply.Rule, "state", info.State)
	writeJSONResponse(w, http.StatusOK, models.Success(newChatReply(reply, info)))
}

func (s *Server) transcriptHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	messages, err := s.manager.Store().GetMessages(id)
	if err != nil {
		slog.Error("Server.transcriptHandler: failed to load transcript", "error", err, "id", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load transcript"))
		return
	}
	for _, m := range messages {
		if !resumable(m.Channel) {
			writeSessionError(w, "Server.transcriptHandler", id, session.ErrNotFound)
			return
		}
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(messages))
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	messages, err := s.manager.Store().ListMessages()
	if err != nil {
		slog.Error("Server.statsHandler: failed to list messages", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to compute stats"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(store.Stats(messages)))
}

// writeSessionError maps manager errors to HTTP statuses.
func writeSessionError(w http.ResponseWriter, op, id string, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		slog.Debug(op+": conversation not found", "id", id)
		writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
	case errors.Is(err, chatbot.ErrEmptyUtterance):
		writeJSONResponse(w, http.StatusBadRequest, models.Error(models.ErrEmptyMessage.Error()))
	default:
		slog.Error(op+": failed", "error", err, "id", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
	}
}
