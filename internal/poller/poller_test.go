package poller

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/speedwagon-io/weatherdash/internal/chart"
	"github.com/speedwagon-io/weatherdash/internal/device"
	"github.com/speedwagon-io/weatherdash/internal/model"
)

func testStatus() *model.Status {
	s, err := model.ParseStatus([]byte(`{
		"timestamp": "2024-03-09 12:00:00Z",
		"last_temperature": "72.5",
		"last_humidity": "41.0",
		"last_pressure": "29.92",
		"t_trend": "ff ff 32 34 ff 36",
		"h_trend": "50 51 52 52 53 52",
		"p_trend": "7e 7e 7d 7d 7e 7f"
	}`))
	if err != nil {
		panic(err)
	}
	return s
}

type fakeFetcher struct {
	calls       atomic.Int64
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	delay       time.Duration
	status      *model.Status // nil means testStatus()
	err         error
}

func (f *fakeFetcher) FetchStatus(ctx context.Context) (*model.Status, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxInFlight.Load()
		if n <= max || f.maxInFlight.CompareAndSwap(max, n) {
			break
		}
	}

	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.status != nil {
		return f.status, nil
	}
	return testStatus(), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startPoller(t *testing.T, f Fetcher, interval time.Duration) (*Poller, *Store) {
	t.Helper()
	store := NewStore()
	p := New(discardLogger(), f, store, nil, nil, interval, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return p, store
}

func TestValidInterval(t *testing.T) {
	for _, d := range []time.Duration{0, time.Second, 5 * time.Second, 60 * time.Second} {
		if !ValidInterval(d) {
			t.Errorf("ValidInterval(%s) = false; want true", d)
		}
	}
	for _, d := range []time.Duration{2 * time.Second, -time.Second, 30 * time.Second, time.Millisecond} {
		if ValidInterval(d) {
			t.Errorf("ValidInterval(%s) = true; want false", d)
		}
	}
}

func TestPollerFetchesImmediatelyAndIdlesAtZero(t *testing.T) {
	f := &fakeFetcher{}
	_, store := startPoller(t, f, 0)

	time.Sleep(300 * time.Millisecond)
	if got := f.calls.Load(); got != 1 {
		t.Fatalf("calls = %d; want exactly 1 (immediate fetch, then idle)", got)
	}
	if store.Frame() == nil {
		t.Fatal("no frame published after successful fetch")
	}

	// idle means idle: no further fetch without a user selection
	time.Sleep(700 * time.Millisecond)
	if got := f.calls.Load(); got != 1 {
		t.Errorf("calls = %d after idling; want still 1", got)
	}
}

func TestPollerPublishesRenderedFrame(t *testing.T) {
	f := &fakeFetcher{}
	_, store := startPoller(t, f, 0)

	time.Sleep(300 * time.Millisecond)
	frame := store.Frame()
	if frame == nil {
		t.Fatal("no frame published")
	}
	for _, m := range model.Metrics {
		if len(frame.Charts[m]) == 0 {
			t.Errorf("metric %s has no rendered chart", m)
		}
		if len(frame.Trends[m]) != 6 {
			t.Errorf("metric %s trend length = %d; want 6", m, len(frame.Trends[m]))
		}
	}
	if frame.ID == "" {
		t.Error("frame has no id")
	}
}

func TestPollerDropsOnlyTheBadTrend(t *testing.T) {
	status := testStatus()
	status.TempTrend = "ff zz 34 34 ff 36"
	f := &fakeFetcher{status: status}
	_, store := startPoller(t, f, 0)

	time.Sleep(300 * time.Millisecond)
	frame := store.Frame()
	if frame == nil {
		t.Fatal("no frame published; a bad trend must not abort the cycle")
	}
	if msg, _ := store.LastError(); msg != "" {
		t.Errorf("LastError = %q; a bad trend is not a refresh failure", msg)
	}

	if got := frame.Trends[model.MetricTemperature]; got != nil {
		t.Errorf("temperature trend = %v; want nil for a malformed series", got)
	}
	for _, m := range []model.Metric{model.MetricHumidity, model.MetricPressure} {
		if len(frame.Trends[m]) != 6 {
			t.Errorf("metric %s trend length = %d; want 6", m, len(frame.Trends[m]))
		}
	}
	for _, m := range model.Metrics {
		if len(frame.Charts[m]) == 0 {
			t.Errorf("metric %s has no rendered chart", m)
		}
	}

	// the temperature chart still renders, just without a trend line
	img, err := png.Decode(bytes.NewReader(frame.Charts[model.MetricTemperature]))
	if err != nil {
		t.Fatalf("decoding temperature chart: %v", err)
	}
	if hasColor(img, chart.TemperatureScale.Line) {
		t.Error("temperature chart has trend pixels despite the dropped series")
	}
	hImg, err := png.Decode(bytes.NewReader(frame.Charts[model.MetricHumidity]))
	if err != nil {
		t.Fatalf("decoding humidity chart: %v", err)
	}
	if !hasColor(hImg, chart.HumidityScale.Line) {
		t.Error("humidity chart lost its trend line")
	}
}

func hasColor(img image.Image, want color.RGBA) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if color.RGBAModel.Convert(img.At(x, y)) == want {
				return true
			}
		}
	}
	return false
}

func TestPollerRearmsOnCadence(t *testing.T) {
	f := &fakeFetcher{}
	_, _ = startPoller(t, f, time.Second)

	time.Sleep(2500 * time.Millisecond)
	if got := f.calls.Load(); got < 2 {
		t.Errorf("calls = %d after 2.5s at 1s cadence; want >= 2", got)
	}
}

func TestPollerFailureIsTerminalForTheCycle(t *testing.T) {
	f := &fakeFetcher{err: &device.StatusError{Code: 503}}
	p, store := startPoller(t, f, time.Second)

	time.Sleep(400 * time.Millisecond)
	if got := f.calls.Load(); got != 1 {
		t.Fatalf("calls = %d; want 1", got)
	}
	msg, at := store.LastError()
	if !strings.Contains(msg, "503") {
		t.Errorf("LastError = %q; want the status code in the message", msg)
	}
	if at.IsZero() {
		t.Error("LastError timestamp is zero")
	}

	// no automatic retry: the cadence does not survive a failed attempt
	time.Sleep(1600 * time.Millisecond)
	if got := f.calls.Load(); got != 1 {
		t.Errorf("calls = %d after waiting; want still 1 (no retry)", got)
	}

	// an explicit user selection fires a fresh attempt
	if err := p.SetInterval(time.Second); err != nil {
		t.Fatalf("SetInterval() error = %v", err)
	}
	time.Sleep(400 * time.Millisecond)
	if got := f.calls.Load(); got != 2 {
		t.Errorf("calls = %d after reselection; want 2", got)
	}
}

func TestPollerTransportErrorMessage(t *testing.T) {
	f := &fakeFetcher{err: &device.TransportError{Err: context.DeadlineExceeded}}
	_, store := startPoller(t, f, 0)

	time.Sleep(300 * time.Millisecond)
	msg, _ := store.LastError()
	if msg != "no response from device" {
		t.Errorf("LastError = %q; want \"no response from device\"", msg)
	}
}

func TestPollerZeroSelectionKeepsLastFrame(t *testing.T) {
	f := &fakeFetcher{}
	p, store := startPoller(t, f, time.Second)

	time.Sleep(300 * time.Millisecond)
	if store.Frame() == nil {
		t.Fatal("no frame published")
	}

	if err := p.SetInterval(0); err != nil {
		t.Fatalf("SetInterval(0) error = %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	calls := f.calls.Load()

	time.Sleep(1500 * time.Millisecond)
	if got := f.calls.Load(); got != calls {
		t.Errorf("calls grew from %d to %d after selecting 0; want no further fetches", calls, got)
	}
	if store.Frame() == nil {
		t.Error("last frame was dropped after disabling refresh")
	}
	if got := store.Interval(); got != 0 {
		t.Errorf("Interval() = %s; want 0", got)
	}
}

func TestPollerSingleFlightUnderRapidReselection(t *testing.T) {
	f := &fakeFetcher{delay: 30 * time.Millisecond}
	p, _ := startPoller(t, f, time.Second)

	intervals := []time.Duration{time.Second, 5 * time.Second, 60 * time.Second}
	for i := 0; i < 30; i++ {
		if err := p.SetInterval(intervals[i%len(intervals)]); err != nil {
			t.Fatalf("SetInterval() error = %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(300 * time.Millisecond)

	if got := f.maxInFlight.Load(); got != 1 {
		t.Errorf("max concurrent fetches = %d; want 1", got)
	}
	if got := f.calls.Load(); got < 2 {
		t.Errorf("calls = %d; expected several fetches from reselections", got)
	}
}

func TestPollerRejectsInvalidInterval(t *testing.T) {
	f := &fakeFetcher{}
	p, _ := startPoller(t, f, 0)

	if err := p.SetInterval(2 * time.Second); err == nil {
		t.Error("SetInterval(2s) = nil error; want rejection")
	}
}
