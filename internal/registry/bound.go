package registry

import (
	"context"

	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
)

// Bound is a Broker pinned to one caller identity, for in-process
// producers that never cross the RPC boundary.
type Bound struct {
	broker *Broker
	id     telephony.Identity
}

func (b *Broker) Bind(id telephony.Identity) Bound {
	return Bound{broker: b, id: id}
}

func (p Bound) Update(ctx context.Context, slot telephony.SlotID, v telephony.Value) error {
	return p.broker.Update(ctx, p.id, slot, v)
}
