package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/fellowship/internal/access"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/config"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/content"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/identity"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/live"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/session"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/store"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxCommandSize = 512
)

// UserLoader resolves the current user record for a token subject.
type UserLoader interface {
	Get(ctx context.Context, uid string) (identity.User, error)
}

// Server upgrades /ws requests and binds each connection to one
// live.Subscription, closed exactly once when the socket goes away.
type Server struct {
	store    store.Adapter
	users    UserLoader
	cfg      *config.Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
	now      func() time.Time
}

func NewServer(a store.Adapter, users UserLoader, cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:  a,
		users:  users,
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		now: time.Now,
	}
}

// Handler routes /ws to the gateway.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", s)
	return mux
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	token := q.Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	uid, err := session.ParseToken(s.cfg.JWTSecret, token)
	if err != nil {
		http.Error(w, access.ReasonUnauthenticated, http.StatusUnauthorized)
		return
	}

	actor, err := s.users.Get(r.Context(), uid)
	if err != nil {
		if errors.Is(err, identity.ErrMalformed) || errors.Is(err, store.ErrUnavailable) {
			http.Error(w, "loading", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, access.ReasonUnauthenticated, http.StatusUnauthorized)
		return
	}

	coll, err := content.Resolve(q.Get("collection"), q.Get("parent"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if d := access.CanPerform(&actor, access.OpRead, coll, nil); !d.Allowed {
		http.Error(w, d.Reason, http.StatusForbidden)
		return
	}

	window, _ := strconv.Atoi(q.Get("window"))
	window = s.cfg.ClampWindow(window)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	s.serve(conn, actor, coll, window)
}

// serve owns conn until the client goes away. All writes happen on this
// goroutine; the read pump only feeds it commands.
func (s *Server) serve(conn *websocket.Conn, actor identity.User, coll content.Collection, window int) {
	defer conn.Close()
	logger := s.logger.With("collection", coll.Path, "actor_id", actor.UID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// latest holds at most one pending snapshot; a newer one replaces it.
	latest := make(chan live.Snapshot, 1)
	sub, err := live.Open(ctx, s.store, coll, live.Options{
		Window:  window,
		Filters: live.ViewerFilters(coll, actor, s.now),
		Logger:  logger,
		OnChange: func(snap live.Snapshot) {
			select {
			case <-latest:
			default:
			}
			latest <- snap
		},
	})
	if err != nil {
		logger.Error("open subscription failed", "error", err)
		s.write(conn, Frame{Type: FrameError, Message: "store unavailable"})
		return
	}
	defer func() {
		if err := sub.Close(); err != nil {
			logger.Warn("subscription already closed", "error", err)
		}
	}()

	notices := make(chan Frame, 4)
	done := make(chan struct{})
	go s.readPump(ctx, conn, sub, actor.UID, notices, done, logger)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case snap := <-latest:
			frame := Frame{
				Type:       FrameSnapshot,
				Collection: coll.Path,
				Window:     sub.Window(),
				Empty:      snap.Empty,
				Items:      content.Views(snap.Items, actor.UID),
			}
			if err := s.write(conn, frame); err != nil {
				logger.Debug("write snapshot failed", "error", err)
				return
			}
		case frame := <-notices:
			if err := s.write(conn, frame); err != nil {
				return
			}
			if frame.Type == FrameError && frame.Reason != "" {
				// Permission lost; the connection ends here.
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) readPump(ctx context.Context, conn *websocket.Conn, sub *live.Subscription, uid string, notices chan<- Frame, done chan<- struct{}, logger *slog.Logger) {
	defer close(done)
	conn.SetReadLimit(maxCommandSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("websocket read failed", "error", err)
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(message, &cmd); err != nil || cmd.Op != OpMore {
			if !send(ctx, notices, Frame{Type: FrameError, Message: "unknown command"}) {
				return
			}
			continue
		}
		if frame, ok := s.more(ctx, sub, uid); !ok {
			if !send(ctx, notices, frame) {
				return
			}
		}
	}
}

// more grows the window after re-checking the caller against a freshly
// loaded user record.
func (s *Server) more(ctx context.Context, sub *live.Subscription, uid string) (Frame, bool) {
	actor, err := s.users.Get(ctx, uid)
	if err != nil {
		return Frame{Type: FrameError, Message: "user unavailable"}, false
	}
	if d := access.CanPerform(&actor, access.OpRead, sub.Collection(), nil); !d.Allowed {
		return Frame{Type: FrameError, Reason: d.Reason, Message: "read denied"}, false
	}

	step := s.cfg.WindowStep
	if limit := s.cfg.WindowMax; limit > 0 && sub.Window()+step > limit {
		step = limit - sub.Window()
	}
	if step <= 0 {
		return Frame{Type: FrameError, Message: "window is at its maximum"}, false
	}
	if err := sub.Grow(ctx, step); err != nil {
		return Frame{Type: FrameError, Message: "store unavailable"}, false
	}
	return Frame{}, true
}

func send(ctx context.Context, ch chan<- Frame, frame Frame) bool {
	select {
	case ch <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Server) write(conn *websocket.Conn, frame Frame) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(frame)
}
