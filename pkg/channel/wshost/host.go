// Package wshost exposes the content boundary as a websocket endpoint.
// One content connection is attached at a time; a newer one replaces it.
package wshost

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var ErrNotAttached = errors.New("no content attached")

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 64 << 10
)

type Host struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu   sync.Mutex
	conn *websocket.Conn
	wmu  *sync.Mutex // serializes writes on conn

	smu    sync.Mutex
	subs   map[int]func(string)
	nextID int
}

// New builds a host accepting connections from allowedOrigins. An empty
// list accepts same-origin requests only; "*" accepts any origin.
func New(allowedOrigins []string, logger *slog.Logger) *Host {
	h := &Host{
		log:  logger.With("op", "channel.ws"),
		subs: make(map[int]func(string)),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil // gorilla default: same origin
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(strings.TrimSuffix(a, "/"), u.Scheme+"://"+u.Host) {
				return true
			}
		}
		return false
	}
}

func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", slog.Any("err", err))
		return
	}
	conn.SetReadLimit(maxMessage)
	wmu := &sync.Mutex{}

	h.mu.Lock()
	prev := h.conn
	h.conn, h.wmu = conn, wmu
	h.mu.Unlock()
	if prev != nil {
		h.log.Info("content connection replaced", slog.String("remote", r.RemoteAddr))
		_ = prev.Close()
	} else {
		h.log.Info("content attached", slog.String("remote", r.RemoteAddr))
	}

	done := make(chan struct{})
	go h.keepAlive(conn, wmu, done)
	h.readLoop(conn)
	close(done)

	h.mu.Lock()
	if h.conn == conn {
		h.conn, h.wmu = nil, nil
	}
	h.mu.Unlock()
	_ = conn.Close()
}

func (h *Host) readLoop(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("content connection lost", slog.Any("err", err))
			}
			return
		}
		if kind != websocket.TextMessage {
			h.log.Debug("ignored non-text frame", slog.Int("kind", kind))
			continue
		}
		h.deliver(string(data))
	}
}

func (h *Host) keepAlive(conn *websocket.Conn, wmu *sync.Mutex, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			wmu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			wmu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (h *Host) deliver(text string) {
	h.smu.Lock()
	subs := make([]func(string), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.smu.Unlock()
	for _, fn := range subs {
		fn(text)
	}
}

func (h *Host) Subscribe(fn func(string)) func() {
	h.smu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	h.smu.Unlock()
	return func() {
		h.smu.Lock()
		delete(h.subs, id)
		h.smu.Unlock()
	}
}

// PostMessage writes text to the attached content as one text frame.
func (h *Host) PostMessage(ctx context.Context, text string) error {
	h.mu.Lock()
	conn, wmu := h.conn, h.wmu
	h.mu.Unlock()
	if conn == nil {
		return ErrNotAttached
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	wmu.Lock()
	defer wmu.Unlock()
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// Attached reports whether content is connected.
func (h *Host) Attached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn != nil
}

// Close drops the attached connection, if any.
func (h *Host) Close() error {
	h.mu.Lock()
	conn := h.conn
	h.conn, h.wmu = nil, nil
	h.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}
