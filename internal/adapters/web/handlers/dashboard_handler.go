package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/lcalzada-xor/aegis/internal/adapters/frame"
	"github.com/lcalzada-xor/aegis/internal/core/domain"
	"github.com/lcalzada-xor/aegis/internal/core/services/session"
	"github.com/lcalzada-xor/aegis/internal/core/services/views"
)

// DashboardHandler serves the telemetry and view endpoints.
type DashboardHandler struct {
	State     *session.State
	Presenter *views.Presenter
	Frames    *frame.Encoder
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(state *session.State, presenter *views.Presenter, frames *frame.Encoder) *DashboardHandler {
	return &DashboardHandler{
		State:     state,
		Presenter: presenter,
		Frames:    frames,
	}
}

// HandleGetView renders the active view.
func (h *DashboardHandler) HandleGetView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Presenter.Active())
}

// HandleSetView switches the active view and renders it.
func (h *DashboardHandler) HandleSetView(w http.ResponseWriter, r *http.Request) {
	var req struct {
		View string `json:"view"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.State.SetActiveView(domain.View(req.View)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.Presenter.Active())
}

// HandleRenderView renders the view named in the path without selecting it.
func (h *DashboardHandler) HandleRenderView(w http.ResponseWriter, r *http.Request) {
	page, err := h.Presenter.Render(domain.View(mux.Vars(r)["id"]))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleNavigation lists the selectable views.
func (h *DashboardHandler) HandleNavigation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"active": h.State.ActiveView(),
		"items":  domain.Navigation(),
	})
}

// HandleEvents returns the event ring, oldest first.
func (h *DashboardHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.State.Events())
}

// HandleStats returns the aggregate point ring, oldest first.
func (h *DashboardHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.State.Points())
}

// HandleFrame returns the synthetic frame of one event as hex and layer dump.
func (h *DashboardHandler) HandleFrame(w http.ResponseWriter, r *http.Request) {
	event, err := h.State.Event(mux.Vars(r)["id"])
	if errors.Is(err, domain.ErrEventNotFound) {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	view, err := h.Frames.Inspect(event)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleCapture downloads the event ring as a pcap file.
func (h *DashboardHandler) HandleCapture(w http.ResponseWriter, r *http.Request) {
	events := h.State.Events()
	filename := fmt.Sprintf("aegis-capture-%s.pcap", time.Now().Format("20060102-150405"))

	w.Header().Set("Content-Type", "application/vnd.tcpdump.pcap")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	skipped, err := h.Frames.WritePcap(w, events)
	if err != nil {
		slog.Warn("Capture export failed", "error", err)
		return
	}
	if skipped > 0 {
		slog.Debug("Capture export skipped events", "skipped", skipped)
	}
}

// HandleHealth reports liveness.
func (h *DashboardHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
