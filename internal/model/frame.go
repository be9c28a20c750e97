package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/speedwagon-io/weatherdash/internal/trend"
)

// Frame is one fully processed snapshot: the parsed device status, the
// decoded trend of each metric, and the rendered chart images. The poller
// publishes a new Frame on every successful fetch; nothing older than the
// current Frame is kept in memory.
type Frame struct {
	ID        string                  `json:"id"`
	FetchedAt time.Time               `json:"fetched_at"`
	Status    *Status                 `json:"status"`
	Trends    map[Metric]trend.Series `json:"-"`
	Charts    map[Metric][]byte       `json:"-"`
}

func NewFrame(status *Status) *Frame {
	return &Frame{
		ID:        uuid.New().String(),
		FetchedAt: time.Now().UTC(),
		Status:    status,
		Trends:    make(map[Metric]trend.Series, len(Metrics)),
		Charts:    make(map[Metric][]byte, len(Metrics)),
	}
}
