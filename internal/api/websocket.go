package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/mastermind-creat/tech.safi-sub001/internal/chatbot"
	"github.com/mastermind-creat/tech.safi-sub001/internal/models"
	"github.com/mastermind-creat/tech.safi-sub001/internal/session"
)

// WebSocket frame types.
const (
	frameSession = "session"
	frameMessage = "message"
	frameReply   = "reply"
	framePing    = "ping"
	framePong    = "pong"
	frameError   = "error"
)

// wsFrame is the JSON envelope for every WebSocket message in either direction.
type wsFrame struct {
	Type    string              `json:"type"`
	Content string              `json:"content,omitempty"`
	Session *models.SessionInfo `json:"session,omitempty"`
	Reply   *ChatReply          `json:"reply,omitempty"`
}

// websocketHandler serves one widget connection. A "session" query parameter
// resumes a live web or websocket conversation; otherwise a new one is opened.
func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.wsOrigins,
	})
	if err != nil {
		slog.Error("Server.websocketHandler: failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "conversation ended"); closeErr != nil {
			slog.Debug("Server.websocketHandler: close failed", "error", closeErr)
		}
	}()

	ctx := r.Context()
	info, err := s.manager.Get(r.URL.Query().Get("session"))
	if err != nil || !resumable(info.Channel) {
		if err == nil {
			slog.Warn("Server.websocketHandler: refusing to resume conversation from another channel", "id", info.ID, "channel", info.Channel)
		}
		info = s.manager.Open(models.ChannelWebSocket)
	}
	slog.Info("Server.websocketHandler: connected", "id", info.ID, "state", info.State, "ip", r.RemoteAddr)

	if err := writeFrame(ctx, ws, wsFrame{Type: frameSession, Session: &info}); err != nil {
		slog.Debug("Server.websocketHandler: failed to send session frame", "error", err)
		return
	}

	// Frames are handled in order, one at a time.
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("Server.websocketHandler: closed by client", "id", info.ID)
			} else {
				slog.Debug("Server.websocketHandler: read error", "error", err, "id", info.ID)
			}
			return
		}

		reply := s.handleFrame(ctx, info.ID, data)
		if err := writeFrame(ctx, ws, reply); err != nil {
			slog.Debug("Server.websocketHandler: write error", "error", err, "id", info.ID)
			return
		}
	}
}

// resumable reports whether a browser may attach to a conversation on channel.
// WhatsApp conversations are keyed by phone number and stay private to the webhook.
func resumable(channel models.Channel) bool {
	return channel == models.ChannelWeb || channel == models.ChannelWebSocket
}

func (s *Server) handleFrame(ctx context.Context, id string, data []byte) wsFrame {
	var in wsFrame
	if err := json.Unmarshal(data, &in); err != nil {
		return wsFrame{Type: frameError, Content: "Invalid JSON format"}
	}

	switch in.Type {
	case framePing:
		return wsFrame{Type: framePong}
	case frameMessage:
		req := models.ChatMessageRequest{Message: in.Content}
		if err := req.Validate(); err != nil {
			return wsFrame{Type: frameError, Content: err.Error()}
		}
		reply, info, err := s.manager.Send(context.WithoutCancel(ctx), id, in.Content)
		switch {
		case errors.Is(err, session.ErrNotFound):
			return wsFrame{Type: frameError, Content: "Conversation not found"}
		case errors.Is(err, chatbot.ErrEmptyUtterance):
			return wsFrame{Type: frameError, Content: models.ErrEmptyMessage.Error()}
		case err != nil:
			slog.Error("Server.handleFrame: send failed", "error", err, "id", id)
			return wsFrame{Type: frameError, Content: "Internal server error"}
		}
		out := newChatReply(reply, info)
		return wsFrame{Type: frameReply, Reply: &out}
	default:
		return wsFrame{Type: frameError, Content: "Unknown frame type"}
	}
}

func writeFrame(ctx context.Context, ws *websocket.Conn, frame wsFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
