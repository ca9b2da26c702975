package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/roboricindustries/raycon-micbridge/pkg/lifecycle"
	bridge "github.com/roboricindustries/raycon-micbridge/pkg/schemas/bridge/v1"
	"github.com/roboricindustries/raycon-micbridge/pkg/shell"
)

const maxBody = 16 << 10

type handlers struct {
	shell Shell
	log   *slog.Logger
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := fmt.Fprintln(w, "ok"); err != nil {
		h.log.Debug("write health", slog.Any("err", err))
	}
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.shell.Status())
}

// lifecycle takes the new app state from the path: active, inactive or
// background.
func (h *handlers) lifecycle(w http.ResponseWriter, r *http.Request) {
	st, err := lifecycle.ParseAppState(mux.Vars(r)["state"])
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	h.shell.SetAppState(st)
	w.WriteHeader(http.StatusNoContent)
}

// recording runs start or stop on behalf of the native host, the same
// commands the content sends. Failures are reported through the usual
// notification path, not the response.
func (h *handlers) recording(w http.ResponseWriter, r *http.Request) {
	var msg bridge.Message
	switch action := mux.Vars(r)["action"]; action {
	case "start":
		msg = bridge.NewStartRecord()
	case "stop":
		msg = bridge.NewStopRecord()
	default:
		h.writeError(w, http.StatusNotFound, fmt.Errorf("unknown recording action %q", action))
		return
	}
	h.shell.Dispatch(context.WithoutCancel(r.Context()), msg)
	h.writeJSON(w, http.StatusOK, h.shell.Status().Session)
}

func (h *handlers) navigation(w http.ResponseWriter, r *http.Request) {
	var ev shell.NavigationEvent
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ev); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("decode navigation event: %w", err))
		return
	}
	if err := h.shell.Navigate(ev); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, shell.ErrBadNavigation) {
			code = http.StatusBadRequest
		}
		h.writeError(w, code, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("write response", slog.Any("err", err))
	}
}

func (h *handlers) writeError(w http.ResponseWriter, code int, err error) {
	h.writeJSON(w, code, map[string]string{"error": err.Error()})
}
