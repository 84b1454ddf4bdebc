package analytics

import (
	"context"
	"time"

	"github.com/linkpulse/linkpulse/internal/processing/links"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var clicksRecordedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "clicks_recorded_total",
		Help: "Total number of click events durably recorded",
	},
	[]string{"device"},
)

// Recorder turns a redirect into one Visit document plus an atomic bump of
// the day's click bucket. It runs after the redirect response has been sent;
// callers treat it as fire-and-forget and only log its errors.
type Recorder struct {
	repo ClickRepository
	now  func() time.Time
}

func NewRecorder(repo ClickRepository) *Recorder {
	return &Recorder{repo: repo, now: time.Now}
}

// Record classifies the visitor and persists the visit. At-most-once: a
// failure here means the click is simply not counted.
func (r *Recorder) Record(ctx context.Context, link *links.Link, visitor RequestContext) error {
	return r.RecordAt(ctx, link, visitor, r.now())
}

// RecordAt is Record with an explicit occurrence time, used by the Kafka
// consumer to keep the event's original timestamp.
func (r *Recorder) RecordAt(ctx context.Context, link *links.Link, visitor RequestContext, at time.Time) error {
	c := Classify(visitor.UserAgent)
	at = at.UTC()

	visit := Visit{
		Token:       link.Token,
		Destination: link.Destination,
		OwnerID:     link.OwnerID,
		Date:        at.Format(time.DateOnly),
		Timestamp:   at,
		IP:          visitor.IP,
		Device:      c.Device,
		OS:          c.OS,
		Browser:     c.Browser,
	}

	if err := r.repo.RecordVisit(ctx, visit); err != nil {
		return err
	}

	clicksRecordedTotal.WithLabelValues(string(c.Device)).Inc()
	return nil
}
