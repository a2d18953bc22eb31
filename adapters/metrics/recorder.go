package metrics

import (
	"time"

	"github.com/artpar/dinogen/ports"
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// FieldMutation counts an applied field command.
func (c *Collector) FieldMutation(command string, err error) {
	c.FieldMutations.WithLabelValues(command, outcome(err)).Inc()
}

// Violations counts validation violations by code.
func (c *Collector) Violations(codes []string) {
	for _, code := range codes {
		c.ValidationFailure.WithLabelValues(code).Inc()
	}
}

// CatalogFetch counts a catalog fetch.
func (c *Collector) CatalogFetch(err error) {
	c.CatalogFetches.WithLabelValues(outcome(err)).Inc()
}

// CatalogMiss counts a compile-time catalog miss.
func (c *Collector) CatalogMiss(dataType string) {
	c.CatalogMisses.WithLabelValues(dataType).Inc()
}

// Submission records the outcome and latency of a generation request.
func (c *Collector) Submission(status ports.SubmissionStatus, took time.Duration) {
	c.Submissions.WithLabelValues(string(status)).Inc()
	c.SubmissionDuration.WithLabelValues(string(status)).Observe(took.Seconds())
}

// SessionsOpen sets the open session gauge.
func (c *Collector) SessionsOpen(n int) {
	c.Sessions.Set(float64(n))
}

var _ ports.Recorder = (*Collector)(nil)
