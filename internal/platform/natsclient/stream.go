package natsclient

import (
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	// StreamScanEvents is the durable stream backing live scan-event
	// fan-out (§4.H). Durable replay (§4.E) reads the Postgres event store,
	// not this stream.
	StreamScanEvents = "SCAN_EVENTS"
	// SubjectScanEvents captures every scan's events, partitioned by
	// scanId so a subscriber can filter to one scan with SCAN_EVENTS.<scanId>.
	SubjectScanEvents = "SCAN_EVENTS.>"
)

var streamSubjects = []string{SubjectScanEvents}

// ProvisionStreams idempotently ensures the SCAN_EVENTS JetStream stream
// exists with the correct subject filter.
func (c *Client) ProvisionStreams() error {
	info, err := c.JS.StreamInfo(StreamScanEvents)
	if err == nil {
		_ = info
		c.Log.Info("NATS stream already exists", zap.String("stream", StreamScanEvents))
		return nil
	}

	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:      StreamScanEvents,
		Subjects:  streamSubjects,
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
	}

	if _, err := c.JS.AddStream(cfg); err != nil {
		return fmt.Errorf("create stream: %w", err)
	}

	c.Log.Info("NATS stream provisioned",
		zap.String("stream", StreamScanEvents),
		zap.Strings("subjects", streamSubjects),
	)
	return nil
}

// Subject returns the per-scan publish/subscribe subject.
func Subject(scanId string) string {
	return StreamScanEvents + "." + scanId
}
