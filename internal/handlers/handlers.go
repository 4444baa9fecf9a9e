package handlers

import (
	"net/http"

	"github.com/tkrause/matchday/internal/logger"
	"github.com/tkrause/matchday/internal/services"
	"github.com/tkrause/matchday/internal/websocket"
)

// Handlers holds all HTTP handlers and their dependencies
type Handlers struct {
	Log       logger.Logger
	generator services.GeneratorServicer
	schedule  services.ScheduleServicer
	blocks    services.ExtraBlockServicer
	Hub       *websocket.Hub
	baseURL   string
}

// New creates a new Handlers instance
func New(log logger.Logger, generator services.GeneratorServicer, schedule services.ScheduleServicer, blocks services.ExtraBlockServicer, hub *websocket.Hub, baseURL string) *Handlers {
	return &Handlers{
		Log:       log,
		generator: generator,
		schedule:  schedule,
		blocks:    blocks,
		Hub:       hub,
		baseURL:   baseURL,
	}
}

// handleHealth reports service liveness
func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondOK(w, map[string]string{"status": "ok"})
}
