package oracle

import (
	"context"

	"github.com/ayushsaklani-min/AutoXshift/core/events"
)

// EmitterPublisher forwards aggregated updates to an event emitter.
type EmitterPublisher struct {
	Emitter events.Emitter
}

// PublishOracleUpdate implements Publisher.
func (p EmitterPublisher) PublishOracleUpdate(_ context.Context, update Update) error {
	if p.Emitter == nil {
		return nil
	}
	p.Emitter.Emit(events.RateSnapshot{
		Base:      update.Base,
		Quote:     update.Quote,
		Median:    update.Median,
		Feeders:   append([]string(nil), update.Feeders...),
		ProofID:   update.ProofID,
		Timestamp: update.Time.Unix(),
	})
	return nil
}
