// Package api is the local HTTP surface the native host talks to.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/roboricindustries/raycon-micbridge/pkg/lifecycle"
	bridge "github.com/roboricindustries/raycon-micbridge/pkg/schemas/bridge/v1"
	"github.com/roboricindustries/raycon-micbridge/pkg/shell"
)

// Shell is the part of *shell.Shell the handlers use.
type Shell interface {
	Status() shell.Status
	SetAppState(st lifecycle.AppState)
	Navigate(e shell.NavigationEvent) error
	Dispatch(ctx context.Context, msg bridge.Message)
}

// NewRouter mounts the handlers. ws, when non-nil, serves the content
// websocket at bridgePath.
func NewRouter(sh Shell, bridgePath string, ws http.Handler, logger *slog.Logger) *mux.Router {
	h := &handlers{shell: sh, log: logger.With("op", "api")}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.HandleFunc("/v1/status", h.status).Methods(http.MethodGet)
	r.HandleFunc("/v1/lifecycle/{state}", h.lifecycle).Methods(http.MethodPost)
	r.HandleFunc("/v1/navigation", h.navigation).Methods(http.MethodPost)
	r.HandleFunc("/v1/recording/{action}", h.recording).Methods(http.MethodPost)
	if ws != nil {
		r.Handle(bridgePath, ws).Methods(http.MethodGet)
	}
	return r
}
