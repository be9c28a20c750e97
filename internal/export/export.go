// Package export relays polled snapshots to an upstream collector. Export
// is optional and best-effort: a failed export never blocks the refresh
// cycle, it only logs.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/speedwagon-io/weatherdash/internal/config"
	"github.com/speedwagon-io/weatherdash/internal/lib/logger/sl"
	"github.com/speedwagon-io/weatherdash/internal/model"
)

type HTTPExporter struct {
	log          *slog.Logger
	url          string
	token        string
	client       *http.Client
	initialDelay time.Duration
	maxDelay     time.Duration
	retries      int
}

func NewHTTPExporter(log *slog.Logger, cfg *config.ExportConfig) *HTTPExporter {
	return &HTTPExporter{
		log:   log,
		url:   cfg.URL,
		token: cfg.Token,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		initialDelay: cfg.Retry.InitialDelay,
		maxDelay:     cfg.Retry.MaxDelay,
		retries:      cfg.Retry.MaxAttempts,
	}
}

// Export posts one frame upstream, retrying with backoff on failure.
func (e *HTTPExporter) Export(ctx context.Context, frame *model.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < e.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffDelay(attempt-1, e.initialDelay, e.maxDelay)):
			}
		}

		err := e.post(ctx, data)
		if err == nil {
			return nil
		}

		lastErr = err
		e.log.Warn("export attempt failed",
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", e.retries),
			sl.Err(err),
		)
	}

	return fmt.Errorf("all %d export attempts failed: %w", e.retries, lastErr)
}

// backoffDelay returns the pause before retry number attempt (zero-based):
// the initial delay doubled per attempt, capped at max, with 10% jitter so
// restarting exporters do not thunder in step.
func backoffDelay(attempt int, initial, max time.Duration) time.Duration {
	d := float64(initial)
	for i := 0; i < attempt && d < float64(max); i++ {
		d *= 2
	}
	if d > float64(max) {
		d = float64(max)
	}
	d += d * 0.1 * (2*rand.Float64() - 1)
	if d > float64(max) {
		d = float64(max)
	}
	return time.Duration(d)
}

func (e *HTTPExporter) post(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
}

// LogExporter logs frames instead of sending them (for dry runs).
type LogExporter struct {
	log *slog.Logger
}

func NewLogExporter(log *slog.Logger) *LogExporter {
	return &LogExporter{log: log}
}

func (e *LogExporter) Export(ctx context.Context, frame *model.Frame) error {
	e.log.Info("EXPORT",
		slog.String("frame_id", frame.ID),
		slog.String("device_timestamp", frame.Status.Timestamp),
		slog.String("temperature", string(frame.Status.Temperature)),
		slog.String("humidity", string(frame.Status.Humidity)),
		slog.String("pressure", string(frame.Status.Pressure)),
	)
	return nil
}
