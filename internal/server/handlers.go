package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/speedwagon-io/weatherdash/internal/chart"
	"github.com/speedwagon-io/weatherdash/internal/lib/logger/sl"
	"github.com/speedwagon-io/weatherdash/internal/model"
)

type metricView struct {
	Kind     string
	Title    string
	Readout  string
	ChartURL string
}

type intervalOption struct {
	Seconds  int
	Label    string
	Selected bool
}

type dashboardData struct {
	HasFrame    bool
	FrameID     string
	Timestamp   string
	LastError   string
	Metrics     []metricView
	Intervals   []intervalOption
	AutoRefresh int // page meta-refresh seconds, 0 for none
	SetupURL    string
}

var intervalLabels = []struct {
	seconds int
	label   string
}{
	{0, "Never"},
	{1, "1s"},
	{5, "5s"},
	{60, "60s"},
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	frame := s.store.Frame()
	lastErr, _ := s.store.LastError()
	selected := int(s.store.Interval() / time.Second)

	data := dashboardData{
		LastError:   lastErr,
		AutoRefresh: selected,
		SetupURL:    s.deviceURL + "/config.html",
	}

	for _, opt := range intervalLabels {
		data.Intervals = append(data.Intervals, intervalOption{
			Seconds:  opt.seconds,
			Label:    opt.label,
			Selected: opt.seconds == selected,
		})
	}

	if frame != nil {
		data.HasFrame = true
		data.FrameID = frame.ID
		data.Timestamp = frame.Status.Timestamp
		for _, m := range model.Metrics {
			scale, ok := chart.ScaleFor(m)
			if !ok {
				continue
			}
			data.Metrics = append(data.Metrics, metricView{
				Kind:    string(m),
				Title:   scale.Title,
				Readout: fmt.Sprintf("%s %s", scale.Title, scale.Readout(frame.Status.Reading(m))),
				// frame id busts browser caches between polls
				ChartURL: fmt.Sprintf("/charts/%s.png?frame=%s", m, frame.ID),
			})
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "dashboard.html", data); err != nil {
		s.log.Error("failed to render dashboard", sl.Err(err))
	}
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	metric := model.Metric(chi.URLParam(r, "metric"))
	if _, ok := chart.ScaleFor(metric); !ok {
		http.Error(w, "unknown metric", http.StatusNotFound)
		return
	}

	frame := s.store.Frame()
	if frame == nil {
		http.Error(w, "no frame rendered yet", http.StatusNotFound)
		return
	}

	data, ok := frame.Charts[metric]
	if !ok {
		http.Error(w, "chart not available", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	frame := s.store.Frame()
	if frame == nil {
		writeError(w, http.StatusNotFound, "no frame available yet")
		return
	}

	lastErr, errAt := s.store.LastError()
	resp := struct {
		*model.Frame
		Interval  int    `json:"refresh_interval_seconds"`
		LastError string `json:"last_error,omitempty"`
		ErrorAt   string `json:"error_at,omitempty"`
	}{
		Frame:     frame,
		Interval:  int(s.store.Interval() / time.Second),
		LastError: lastErr,
	}
	if !errAt.IsZero() {
		resp.ErrorAt = errAt.Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "archive is disabled")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be an integer in [1,1000]")
			return
		}
		limit = n
	}

	snapshots, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.log.Error("failed to query history", sl.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to query history")
		return
	}

	writeJSON(w, http.StatusOK, snapshots)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form")
		return
	}

	raw := r.PostForm.Get("interval")
	seconds, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "interval must be an integer number of seconds")
		return
	}

	if err := s.intervals.SetInterval(time.Duration(seconds) * time.Second); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.log.Info("refresh interval requested", "interval_seconds", seconds)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
