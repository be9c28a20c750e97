// Package poller drives the refresh cycle: fetch the device status, decode
// and render it, publish the result, and rearm per the selected interval.
//
// All refresh state (the selected interval and the single pending timer)
// is owned by one goroutine. Fetches run inline in that goroutine, so at
// most one fetch is ever in flight and at most one timer is ever armed;
// interval changes arriving mid-fetch take effect after it completes.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/speedwagon-io/weatherdash/internal/chart"
	"github.com/speedwagon-io/weatherdash/internal/device"
	"github.com/speedwagon-io/weatherdash/internal/lib/logger/sl"
	"github.com/speedwagon-io/weatherdash/internal/model"
	"github.com/speedwagon-io/weatherdash/internal/trend"
)

// State of the refresh cycle.
type State int

const (
	StateIdle State = iota
	StateAwaiting
	StateScheduled
)

// Intervals the user may select. Zero disables refresh.
var Intervals = []time.Duration{0, 1 * time.Second, 5 * time.Second, 60 * time.Second}

// ValidInterval reports whether d is one of the selectable intervals.
func ValidInterval(d time.Duration) bool {
	for _, v := range Intervals {
		if d == v {
			return true
		}
	}
	return false
}

// Fetcher is the device round trip, satisfied by *device.Client.
type Fetcher interface {
	FetchStatus(ctx context.Context) (*model.Status, error)
}

// Archiver persists successful frames, satisfied by *archive.SQLiteArchive.
type Archiver interface {
	Store(ctx context.Context, frame *model.Frame) error
}

// Exporter relays successful frames upstream.
type Exporter interface {
	Export(ctx context.Context, frame *model.Frame) error
}

type Poller struct {
	log          *slog.Logger
	fetcher      Fetcher
	store        *Store
	archiver     Archiver // optional
	exporter     Exporter // optional
	fetchTimeout time.Duration

	interval time.Duration
	state    State
	timer    *time.Timer

	cmds   chan time.Duration
	stopCh chan struct{}
}

func New(
	log *slog.Logger,
	fetcher Fetcher,
	store *Store,
	archiver Archiver,
	exporter Exporter,
	defaultInterval time.Duration,
	fetchTimeout time.Duration,
) *Poller {
	p := &Poller{
		log:          log,
		fetcher:      fetcher,
		store:        store,
		archiver:     archiver,
		exporter:     exporter,
		fetchTimeout: fetchTimeout,
		interval:     defaultInterval,
		cmds:         make(chan time.Duration, 8),
		stopCh:       make(chan struct{}),
	}
	store.SetInterval(defaultInterval)
	return p
}

// SetInterval queues an interval change for the poller goroutine. Invalid
// values are rejected here so callers get an immediate answer.
func (p *Poller) SetInterval(d time.Duration) error {
	if !ValidInterval(d) {
		return fmt.Errorf("interval %s is not selectable", d)
	}
	p.cmds <- d
	return nil
}

// Run executes the refresh loop until ctx is cancelled or Stop is called.
// An immediate fetch fires on entry.
func (p *Poller) Run(ctx context.Context) {
	p.log.Info("starting status poller",
		slog.Duration("interval", p.interval),
		slog.Duration("fetch_timeout", p.fetchTimeout),
	)

	p.refresh(ctx)

	for {
		var timerC <-chan time.Time
		if p.timer != nil {
			timerC = p.timer.C
		}

		select {
		case <-ctx.Done():
			p.log.Info("context cancelled, stopping poller")
			p.disarm()
			return
		case <-p.stopCh:
			p.log.Info("stop signal received, stopping poller")
			p.disarm()
			return
		case d := <-p.cmds:
			p.applyInterval(ctx, d)
		case <-timerC:
			p.timer = nil
			p.refresh(ctx)
		}
	}
}

func (p *Poller) Stop() {
	close(p.stopCh)
}

// applyInterval handles a user selection: cancel the pending timer, store
// the interval, then either fetch immediately (nonzero) or go idle leaving
// the last frame published (zero).
func (p *Poller) applyInterval(ctx context.Context, d time.Duration) {
	p.disarm()
	p.interval = d
	p.store.SetInterval(d)
	p.log.Info("refresh interval selected", slog.Duration("interval", d))

	if d == 0 {
		p.state = StateIdle
		return
	}
	p.refresh(ctx)
}

// refresh performs one fetch-decode-render cycle and arms the next tick on
// success. A failed attempt lands in Idle: no automatic retry, the next
// attempt comes from the armed cadence or an explicit user selection.
func (p *Poller) refresh(ctx context.Context) {
	p.state = StateAwaiting

	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	status, err := p.fetcher.FetchStatus(fetchCtx)
	if err != nil {
		p.store.SetError(userMessage(err))
		p.log.Error("status fetch failed", sl.Err(err))
		p.state = StateIdle
		return
	}

	frame := p.buildFrame(status)
	p.store.SetFrame(frame)
	p.log.Debug("frame published",
		slog.String("frame_id", frame.ID),
		slog.String("device_timestamp", status.Timestamp),
	)

	if p.archiver != nil {
		if err := p.archiver.Store(ctx, frame); err != nil {
			p.log.Error("failed to archive frame", sl.Err(err))
		}
	}
	if p.exporter != nil {
		if err := p.exporter.Export(ctx, frame); err != nil {
			p.log.Error("failed to export frame", sl.Err(err))
		}
	}

	if p.interval > 0 {
		p.arm()
		p.state = StateScheduled
	} else {
		p.state = StateIdle
	}
}

// buildFrame decodes each metric's trend and renders its chart. A trend that
// fails to decode is dropped for this frame only; the chart still renders
// with the current readout and markers, just without a line.
func (p *Poller) buildFrame(status *model.Status) *model.Frame {
	frame := model.NewFrame(status)

	for _, m := range model.Metrics {
		series, err := trend.Decode(status.Trend(m))
		if err != nil {
			p.log.Warn("failed to decode trend",
				slog.String("metric", string(m)),
				sl.Err(err),
			)
			series = nil
		}
		frame.Trends[m] = series

		scale, ok := chart.ScaleFor(m)
		if !ok {
			continue
		}
		img := chart.NewSurface()
		chart.Render(img, series, status.Reading(m), scale)

		data, err := chart.EncodePNG(img)
		if err != nil {
			p.log.Error("failed to encode chart",
				slog.String("metric", string(m)),
				sl.Err(err),
			)
			continue
		}
		frame.Charts[m] = data
	}

	return frame
}

func (p *Poller) arm() {
	p.disarm()
	p.timer = time.NewTimer(p.interval)
}

func (p *Poller) disarm() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// userMessage maps a fetch error to the text shown on the dashboard,
// keeping "no response" distinct from "error status" and naming the code.
func userMessage(err error) string {
	var statusErr *device.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("device returned error status %d", statusErr.Code)
	}
	var transportErr *device.TransportError
	if errors.As(err, &transportErr) {
		return "no response from device"
	}
	return err.Error()
}
