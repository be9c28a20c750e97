// devicesim is a development stand-in for the weather sensor node. It serves
// the /api/status contract with synthetic readings, using the same 0xff-seeded
// sample rings and byte encoding the firmware uses.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/speedwagon-io/weatherdash/internal/lib/logger/sl"
	"github.com/speedwagon-io/weatherdash/internal/trend"
)

type simulator struct {
	mu sync.Mutex

	tempC    float64
	humidity float64
	hPa      float64

	tRing *trend.Ring
	hRing *trend.Ring
	pRing *trend.Ring

	start time.Time
}

func newSimulator(slots int) *simulator {
	return &simulator{
		tempC:    21.0,
		humidity: 45.0,
		hPa:      1013.0,
		tRing:    trend.NewRing(slots),
		hRing:    trend.NewRing(slots),
		pRing:    trend.NewRing(slots),
		start:    time.Now(),
	}
}

// step drifts the readings on slow sine curves with a little noise, the
// shape real weather data roughly has.
func (s *simulator) step() {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := time.Since(s.start).Seconds()
	s.tempC = 21.0 + 6.0*math.Sin(t/600) + rand.Float64()*0.4 - 0.2
	s.humidity = 45.0 + 15.0*math.Sin(t/900+1.3) + rand.Float64()*1.0 - 0.5
	s.hPa = 1013.0 + 8.0*math.Sin(t/1800+2.1) + rand.Float64()*0.3 - 0.15
}

func (s *simulator) sample() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tRing.Add(trend.TemperatureMap.Encode(s.tempC))
	s.hRing.Add(trend.HumidityMap.Encode(s.humidity))
	s.pRing.Add(trend.PressureMap.Encode(s.hPa))
}

func (s *simulator) statusPayload() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	tf := s.tempC*1.8 + 32.0
	inHg := s.hPa * 0.029530

	return map[string]string{
		"timestamp":        time.Now().UTC().Format("2006-01-02 15:04:05Z"),
		"last_temperature": fmt.Sprintf("%.1f", tf),
		"last_humidity":    fmt.Sprintf("%.1f", s.humidity),
		"last_pressure":    fmt.Sprintf("%.2f", inHg),
		"t_trend":          s.tRing.String(),
		"h_trend":          s.hRing.String(),
		"p_trend":          s.pRing.String(),
	}
}

func main() {
	addr := flag.String("addr", ":7380", "listen address")
	slots := flag.Int("slots", trend.DeviceSlots, "trend slots per metric")
	sampleEvery := flag.Duration("sample-interval", 5*time.Second, "time between trend samples")
	stepEvery := flag.Duration("step-interval", time.Second, "time between reading updates")
	flag.Parse()

	log := sl.SetupLogger("info", "text")

	sim := newSimulator(*slots)
	sim.step()
	sim.sample()

	go func() {
		stepTicker := time.NewTicker(*stepEvery)
		sampleTicker := time.NewTicker(*sampleEvery)
		defer stepTicker.Stop()
		defer sampleTicker.Stop()
		for {
			select {
			case <-stepTicker.C:
				sim.step()
			case <-sampleTicker.C:
				sim.sample()
			}
		}
	}()

	r := chi.NewRouter()
	r.Get("/api/status", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sim.statusPayload())
	})
	// the real device serves its setup page here; the dashboard links to it
	r.Get("/config.html", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<!DOCTYPE html><title>devicesim</title><p>Simulated device, nothing to configure.</p>")
	})

	log.Info("devicesim listening",
		slog.String("addr", *addr),
		slog.Int("slots", *slots),
		slog.Duration("sample_interval", *sampleEvery),
	)

	if err := http.ListenAndServe(*addr, r); err != nil {
		log.Error("server error", sl.Err(err))
	}
}
