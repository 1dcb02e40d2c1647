package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/Chandra-cc/personalized-learning/internal/feed"
	"github.com/Chandra-cc/personalized-learning/internal/models"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
	streamEventWait  = 15 * time.Second
)

// Stream message types
const (
	msgConnected = "connected"
	msgProgress  = "progress"
	msgEvent     = "event"
	msgAck       = "ack"
	msgError     = "error"
)

// StreamMessage is exchanged over the progress websocket. Clients send
// "event" messages; the server sends "connected", "progress", "ack" and
// "error".
type StreamMessage struct {
	Type         string                `json:"type"`
	Data         string                `json:"data,omitempty"`
	Event        *models.ProgressEvent `json:"event,omitempty"`
	Update       *feed.Update          `json:"update,omitempty"`
	LearningPath *models.LearningPath  `json:"learning_path,omitempty"`
}

// streamConn serializes writes; gorilla allows one concurrent writer
type streamConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *streamConn) send(msg StreamMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal stream message", "error", err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
		slog.Debug("failed to set stream write deadline", "error", err)
		return err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("failed to send stream message", "error", err)
		return err
	}
	return nil
}

func (c *streamConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait))
}

func (c *streamConn) sendError(message string) {
	c.send(StreamMessage{Type: msgError, Data: message})
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
}

// checkOrigin applies the CORS origin list to websocket upgrades.
// Requests without an Origin header come from non-browser clients.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// handleProgressStream pushes the user's progress updates to the socket and
// records progress events received from it
func (s *Server) handleProgressStream(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	if s.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "stream_unavailable", "progress stream is not enabled")
		return
	}

	path, err := s.service.GetLearningPath(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err, "open progress stream")
		return
	}

	canWrite := ClientFromContext(r.Context()).HasPermission(models.PermProgressWrite)

	ws, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err, "user_id", userID)
		return
	}
	defer ws.Close()
	conn := &streamConn{conn: ws}

	updates, unsubscribe := s.hub.Subscribe(userID)
	defer unsubscribe()

	slog.Info("progress stream connected", "user_id", userID, "client", clientName(r.Context()))

	if err := conn.send(StreamMessage{Type: msgConnected, LearningPath: path}); err != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	// Hub -> WebSocket
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		// unblocks the reader once writing stops
		defer ws.Close()
		ticker := time.NewTicker(streamPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-updates:
				if !ok {
					return
				}
				if err := conn.send(StreamMessage{Type: msgProgress, Update: &u}); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.ping(); err != nil {
					return
				}
			}
		}
	}()

	// WebSocket -> service
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		ws.SetReadDeadline(time.Now().Add(streamPongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("websocket read error", "error", err, "user_id", userID)
				}
				return
			}
			ws.SetReadDeadline(time.Now().Add(streamPongWait))

			var msg StreamMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				conn.sendError("invalid message format")
				continue
			}
			if msg.Type != msgEvent || msg.Event == nil {
				conn.sendError("unsupported message type: " + msg.Type)
				continue
			}
			if !canWrite {
				conn.sendError("client does not have required permission: " + models.PermProgressWrite)
				continue
			}
			s.recordStreamEvent(ctx, conn, userID, *msg.Event)
		}
	}()

	wg.Wait()
	slog.Info("progress stream disconnected", "user_id", userID)
}

func (s *Server) recordStreamEvent(ctx context.Context, conn *streamConn, userID string, ev models.ProgressEvent) {
	if err := s.validate.Struct(ev); err != nil {
		conn.sendError(validationMessage(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, streamEventWait)
	defer cancel()

	// the recorded update reaches this socket through the hub
	if _, err := s.service.RecordProgress(ctx, userID, ev); err != nil {
		slog.Warn("stream progress event rejected", "user_id", userID, "step_index", ev.StepIndex, "error", err)
		conn.sendError(err.Error())
		return
	}
	if err := conn.send(StreamMessage{Type: msgAck, Data: string(ev.Type)}); err != nil {
		slog.Debug("failed to acknowledge stream event", "user_id", userID, "step_index", ev.StepIndex, "error", err)
	}
}
