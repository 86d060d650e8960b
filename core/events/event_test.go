package events

import "testing"

func TestMemoryEmitterRecordsInOrder(t *testing.T) {
	emitter := &MemoryEmitter{}
	emitter.Emit(&Event{Type: "a"})
	emitter.Emit(nil)
	emitter.Emit(&Event{Type: "b"})

	got := emitter.Events()
	if len(got) != 2 {
		t.Fatalf("recorded %d events, want 2", len(got))
	}
	if got[0].Type != "a" || got[1].Type != "b" {
		t.Fatalf("order = %s, %s", got[0].Type, got[1].Type)
	}
}

func TestNoopEmitterDiscards(t *testing.T) {
	// Must not panic on nil events.
	NoopEmitter{}.Emit(nil)
	NoopEmitter{}.Emit(&Event{Type: "x"})
}
