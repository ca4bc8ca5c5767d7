package deck

import (
	"context"
	"fmt"

	"github.com/nerrad567/opendeck-core/internal/device"
)

type inboundKind int

const (
	kindRegister inboundKind = iota
	kindDeregister
	kindInput
)

type inbound struct {
	kind   inboundKind
	plugin string
	rec    device.Record
	via    transport
	event  EventMessage
}

// worker serialises the traffic of one device.
type worker struct {
	id    string
	inbox chan inbound
}

func (b *Bridge) run(ctx context.Context, w *worker) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-w.inbox:
			if err := b.handle(ctx, w.id, msg); err != nil {
				b.logger.Warn("device message failed", "device", w.id, "error", err)
			}
			if msg.kind != kindInput && b.retire(w) {
				return
			}
		}
	}
}

// retire removes an idle worker whose device is not registered. A worker
// with queued messages keeps running; a registration may be among them.
func (b *Bridge) retire(w *worker) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(w.inbox) > 0 {
		return false
	}
	if _, registered := b.owners[w.id]; registered {
		return false
	}
	delete(b.workers, w.id)
	return true
}

func (b *Bridge) handle(ctx context.Context, deviceID string, msg inbound) error {
	switch msg.kind {
	case kindRegister:
		// Painting during registration needs the command path.
		b.setOwner(deviceID, &owner{transport: msg.via, plugin: msg.plugin})
		err := b.router.RegisterDevice(ctx, msg.plugin, msg.rec)
		if rejected(err) {
			b.setOwner(deviceID, nil)
			return err
		}
		if err == nil {
			b.logger.Info("device registered", "device", deviceID, "plugin", msg.plugin)
		}
		return err

	case kindDeregister:
		err := b.router.DeregisterDevice(ctx, msg.plugin, deviceID)
		if rejected(err) {
			return err
		}
		b.setOwner(deviceID, nil)
		b.logger.Info("device deregistered", "device", deviceID)
		return err

	case kindInput:
		ev := msg.event
		switch ev.Event {
		case EventKeyDown:
			return b.router.KeyDown(ctx, deviceID, ev.Position)
		case EventKeyUp:
			return b.router.KeyUp(ctx, deviceID, ev.Position)
		case EventEncoderDown:
			return b.router.EncoderDown(ctx, deviceID, ev.Position)
		case EventEncoderUp:
			return b.router.EncoderUp(ctx, deviceID, ev.Position)
		case EventEncoderChange:
			return b.router.EncoderRotate(ctx, deviceID, ev.Position, ev.Ticks)
		}
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Event)
	}
	return nil
}
