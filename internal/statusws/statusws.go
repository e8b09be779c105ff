// Package statusws pushes sync status changes to websocket clients.
//
// Each client receives the current state as soon as it connects and one
// JSON frame per transition after that:
//
//	{"status":"SYNCING","lastSync":"2024-09-05T08:00:00Z"}
//
// A plain GET without the upgrade headers answers the current state once.
package statusws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/homeroom/internal/hub"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	// The listener is meant for local status widgets.
	CheckOrigin:      func(*http.Request) bool { return true },
	HandshakeTimeout: 10 * time.Second,
}

// Handler serves the status channel.
type Handler struct {
	hub    *hub.Hub
	logger *slog.Logger
}

// NewHandler creates a handler publishing the states of h.
func NewHandler(h *hub.Hub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{hub: h, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(h.hub.State())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	h.serve(conn)
}

// serve owns conn until the client goes away. Only the writer goroutine
// writes data frames.
func (h *Handler) serve(conn *websocket.Conn) {
	defer conn.Close()

	// Latest state wins: a slow client skips intermediate states instead of
	// stalling the hub.
	updates := make(chan hub.State, 1)
	unsubscribe := h.hub.Subscribe(func(s hub.State) {
		select {
		case updates <- s:
		default:
			select {
			case <-updates:
			default:
			}
			updates <- s
		}
	})
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.writeLoop(ctx, cancel, conn, updates)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("status client error", "error", err)
			}
			return
		}
	}
}

func (h *Handler) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, updates <-chan hub.State) {
	defer cancel()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case s := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(s); err != nil {
				h.logger.Debug("status write failed", "error", err)
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

// ListenAndServe serves the status channel on addr at /status until ctx is
// done.
func ListenAndServe(ctx context.Context, addr string, h *Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/status", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	h.logger.Info("status listener started", "addr", addr)

	select {
	case err := <-errc:
		return fmt.Errorf("status listener: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("status listener shutdown: %w", err)
	}
	return nil
}
