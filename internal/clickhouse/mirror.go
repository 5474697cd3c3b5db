package clickhouse

import (
	"context"
	"time"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/logger"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/pubsub"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/session"
)

// Mirror copies match recorded events into a Recorder
type Mirror struct {
	recorder Recorder
	timeout  time.Duration
}

func NewMirror(r Recorder) *Mirror {
	return &Mirror{recorder: r, timeout: 10 * time.Second}
}

// Run consumes bus events until ctx is done
func (m *Mirror) Run(ctx context.Context, bus *pubsub.Bus) {
	logger.Info("Analytics mirror started")
	bus.Handle(ctx, func(ev pubsub.Event) {
		if err := m.Record(ctx, ev); err != nil {
			logger.Error("Failed to mirror match", "error", err, "session_id", ev.Payload["sessionId"])
		}
	}, session.TopicMatchRecorded)
	logger.Info("Analytics mirror stopped")
}

// Record writes the appearances carried by one event
func (m *Mirror) Record(ctx context.Context, ev pubsub.Event) error {
	rows := AppearancesFromEvent(ev)
	if len(rows) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.recorder.RecordAppearances(ctx, rows)
}
