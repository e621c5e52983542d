package headset

import (
	"log/slog"
	"testing"
	"time"
)

func TestBus_PublishFansOut(t *testing.T) {
	bus := NewBus(8, slog.Default())
	defer bus.Close()

	ch1, cancel1 := bus.Subscribe()
	defer cancel1()
	ch2, cancel2 := bus.Subscribe()
	defer cancel2()

	bus.Publish(DeviceMuteChanged("alpha", true))

	for i, ch := range []<-chan NormalizedEvent{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Kind != KindDeviceMuteChanged || !ev.Muted {
				t.Fatalf("subscriber %d: unexpected event %+v", i, ev)
			}
			if ev.OccurredAt.IsZero() {
				t.Fatalf("subscriber %d: OccurredAt not stamped", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: no event", i)
		}
	}
}

func TestBus_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus(1, slog.Default())
	defer bus.Close()

	_, cancel := bus.Subscribe()
	defer cancel()

	// Second publish overflows the size-1 buffer; Publish must return
	// anyway and count the drop.
	bus.Publish(DeviceMuteChanged("alpha", true))
	bus.Publish(DeviceMuteChanged("alpha", false))

	if got := bus.DroppedCount(); got != 1 {
		t.Fatalf("expected 1 dropped event, got %d", got)
	}
}

func TestBus_CancelIsIdempotentAndStopsDelivery(t *testing.T) {
	bus := NewBus(8, slog.Default())
	defer bus.Close()

	ch, cancel := bus.Subscribe()
	cancel()
	cancel()

	bus.Publish(DeviceMuteChanged("alpha", true))

	if _, open := <-ch; open {
		t.Fatalf("expected closed channel after cancel")
	}
}

func TestBus_CloseEndsSubscribersAndMutesPublish(t *testing.T) {
	bus := NewBus(8, slog.Default())
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Close()
	bus.Publish(DeviceMuteChanged("alpha", true))

	if _, open := <-ch; open {
		t.Fatalf("expected closed channel after bus close")
	}

	// Subscribing after close yields an already-closed channel.
	late, lateCancel := bus.Subscribe()
	defer lateCancel()
	if _, open := <-late; open {
		t.Fatalf("expected closed channel for late subscriber")
	}
}
