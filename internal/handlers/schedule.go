package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"
)

// handleScheduleNow serves GET /api/schedule/{planID}/now?role=&at=
func (h *Handlers) handleScheduleNow(w http.ResponseWriter, r *http.Request) {
	planID, err := parseIntParam(r, "planID")
	if err != nil {
		h.respondError(w, err)
		return
	}

	at, err := parseAt(r.URL.Query().Get("at"))
	if err != nil {
		h.respondError(w, err)
		return
	}

	role := r.URL.Query().Get("role")
	respondOK(w, h.schedule.Now(planID, role, at))
}

// handleScheduleNext serves GET /api/schedule/{planID}/next?role=&at=&interval=
func (h *Handlers) handleScheduleNext(w http.ResponseWriter, r *http.Request) {
	planID, err := parseIntParam(r, "planID")
	if err != nil {
		h.respondError(w, err)
		return
	}

	at, err := parseAt(r.URL.Query().Get("at"))
	if err != nil {
		h.respondError(w, err)
		return
	}

	interval := 60
	if raw := r.URL.Query().Get("interval"); raw != "" {
		interval, err = strconv.Atoi(raw)
		if err != nil || interval <= 0 {
			h.respondError(w, BadRequest("Invalid interval parameter"))
			return
		}
	}

	role := r.URL.Query().Get("role")
	respondOK(w, h.schedule.Next(planID, role, at, interval))
}

// handleScheduleQR serves a QR code image linking venue signage to the
// plan's live schedule display.
func (h *Handlers) handleScheduleQR(w http.ResponseWriter, r *http.Request) {
	planID, err := parseIntParam(r, "planID")
	if err != nil {
		h.respondError(w, err)
		return
	}

	url := fmt.Sprintf("%s/api/schedule/%d/now", h.baseURL, planID)
	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		h.respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// parseAt parses the query time: either HH:MM (optionally dN-prefixed
// for multi-day events) or plain minutes from midnight. Empty means the
// current wall clock.
func parseAt(raw string) (int, error) {
	if raw == "" {
		now := time.Now()
		return now.Hour()*60 + now.Minute(), nil
	}

	day := 0
	if strings.HasPrefix(raw, "d") {
		rest := raw
		if idx := strings.IndexByte(raw, ' '); idx > 1 {
			d, err := strconv.Atoi(raw[1:idx])
			if err != nil || d < 1 {
				return 0, BadRequest("Invalid at parameter")
			}
			day = d - 1
			rest = raw[idx+1:]
		}
		raw = rest
	}

	if hh, mm, ok := strings.Cut(raw, ":"); ok {
		hour, err1 := strconv.Atoi(hh)
		minute, err2 := strconv.Atoi(mm)
		if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
			return 0, BadRequest("Invalid at parameter")
		}
		return day*24*60 + hour*60 + minute, nil
	}

	min, err := strconv.Atoi(raw)
	if err != nil || min < 0 {
		return 0, BadRequest("Invalid at parameter")
	}
	return day*24*60 + min, nil
}
