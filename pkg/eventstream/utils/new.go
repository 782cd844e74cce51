// Package eventstreamutils picks an eventstream publisher from configuration.
package eventstreamutils

import (
	"fmt"
	"log/slog"

	"github.com/papercomputeco/bpmnchat/pkg/eventstream"
	"github.com/papercomputeco/bpmnchat/pkg/eventstream/kafka"
	"github.com/papercomputeco/bpmnchat/pkg/eventstream/nop"
)

type NewPublisherOpts struct {
	KafkaBrokers []string
	KafkaTopic   string
	Logger       *slog.Logger
}

// NewPublisher returns a Kafka publisher when brokers are configured and a
// no-op publisher otherwise.
func NewPublisher(o *NewPublisherOpts) (eventstream.Publisher, error) {
	if len(o.KafkaBrokers) == 0 {
		return nop.NewPublisher(o.Logger), nil
	}

	p, err := kafka.NewPublisher(kafka.Config{
		Brokers: o.KafkaBrokers,
		Topic:   o.KafkaTopic,
		Logger:  o.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}

	o.Logger.Info("publishing session events to kafka",
		"brokers", o.KafkaBrokers,
		"topic", o.KafkaTopic,
	)
	return p, nil
}
