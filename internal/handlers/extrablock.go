package handlers

import (
	"net/http"

	"github.com/tkrause/matchday/internal/models"
)

// extraBlockRequest is the payload for creating an extra block
type extraBlockRequest struct {
	Name         string `json:"name"`
	Program      int    `json:"program"`
	InsertPoint  string `json:"insert_point"`
	BufferBefore int    `json:"buffer_before"`
	DurationMin  int    `json:"duration_min"`
	BufferAfter  int    `json:"buffer_after"`
	Active       *bool  `json:"active"`
}

// handleCreateExtraBlock serves POST /api/events/{eventID}/extra-blocks
func (h *Handlers) handleCreateExtraBlock(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIntParam(r, "eventID")
	if err != nil {
		h.respondError(w, err)
		return
	}

	var req extraBlockRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	block, err := h.blocks.Submit(r.Context(), models.ExtraBlock{
		EventID:      eventID,
		Name:         req.Name,
		Program:      models.ProgramKind(req.Program),
		InsertPoint:  req.InsertPoint,
		BufferBefore: req.BufferBefore,
		DurationMin:  req.DurationMin,
		BufferAfter:  req.BufferAfter,
		Active:       active,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}

	respondCreated(w, block)
}

// handleToggleExtraBlock serves PUT /api/extra-blocks/{id}/active
func (h *Handlers) handleToggleExtraBlock(w http.ResponseWriter, r *http.Request) {
	id, err := parseIntParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	block, err := h.blocks.ToggleActive(r.Context(), id, req.Active)
	if err != nil {
		h.respondError(w, err)
		return
	}

	respondOK(w, block)
}

// handleFlushExtraBlocks serves POST /api/events/{eventID}/extra-blocks/flush.
// It runs a pending debounced regeneration immediately instead of
// waiting out the coalescing window.
func (h *Handlers) handleFlushExtraBlocks(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIntParam(r, "eventID")
	if err != nil {
		h.respondError(w, err)
		return
	}

	flushed := h.blocks.Flush(eventID)
	respondOK(w, map[string]bool{"flushed": flushed})
}

// handleListExtraBlocks serves GET /api/events/{eventID}/extra-blocks
func (h *Handlers) handleListExtraBlocks(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIntParam(r, "eventID")
	if err != nil {
		h.respondError(w, err)
		return
	}

	blocks, err := h.blocks.List(r.Context(), eventID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	if blocks == nil {
		blocks = []models.ExtraBlock{}
	}
	respondOK(w, blocks)
}
