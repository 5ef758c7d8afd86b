package bus

import (
	"context"
	"fmt"
	"strings"

	"voxpilot/pkg/protocol"
)

// Transport is the subset of *protocol.Protocol used here.
type Transport interface {
	Transmit(v any) error
	TransmitReceive(ctx context.Context, v any) (*protocol.Message, error)
}

type target struct {
	shard string
	noun  string
}

// registry maps spoken device names to bus shards.
var registry = map[string]target{
	"lamp":       {shard: "VERTEX", noun: "LAMP"},
	"flashlight": {shard: "VERTEX", noun: "LAMP"},
	"torch":      {shard: "VERTEX", noun: "LAMP"},
	"led":        {shard: "VERTEX", noun: "LED"},
}

// Devices switches smart-home devices attached to the bus.
type Devices struct {
	t Transport
}

func NewDevices(t Transport) *Devices {
	return &Devices{t: t}
}

func (d *Devices) Flashlight(ctx context.Context, on bool) error {
	return d.Switch(ctx, "flashlight", on)
}

func (d *Devices) Switch(ctx context.Context, device string, on bool) error {
	tgt, ok := registry[strings.ToLower(strings.TrimSpace(device))]
	if !ok {
		return fmt.Errorf("unknown device %q", device)
	}

	verb := "OFF"
	if on {
		verb = "ON"
	}

	reply, err := d.t.TransmitReceive(ctx, []string{tgt.shard, verb, tgt.noun})
	if err != nil {
		return fmt.Errorf("switch %s: %w", device, err)
	}
	if reply.IsError() {
		return fmt.Errorf("switch %s: %s", device, reply.String())
	}
	return nil
}

// StatePublisher broadcasts agent state changes to every shard.
type StatePublisher struct {
	t Transport
}

func NewStatePublisher(t Transport) *StatePublisher {
	return &StatePublisher{t: t}
}

func (p *StatePublisher) Publish(state string) error {
	return p.t.Transmit(protocol.Message{To: "ALL", Verb: "STATE", Noun: strings.ToUpper(state)})
}
