package bus

import (
	"context"
	"testing"

	scribeflow "github.com/scribeflow/scribeflow"
)

func TestStoreSubscriberPersists(t *testing.T) {
	store := NewMemEventStore()
	sub := NewStoreSubscriber(store, nil)

	e := scribeflow.NewEvent(scribeflow.EventRunStarted, "run-1")
	e.Seq = 1
	sub.Handle(e)

	events, err := store.List(context.Background(), "run-1", 0, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Kind != scribeflow.EventRunStarted {
		t.Errorf("Kind = %v, want run_started", events[0].Kind)
	}
}

func TestStoreSubscriberAsEventHandler(t *testing.T) {
	store := NewMemEventStore()
	sub := NewStoreSubscriber(store, nil)

	var handler scribeflow.EventHandler = sub.Handle
	e := scribeflow.NewEvent(scribeflow.EventRunFinished, "run-2")
	e.Seq = 9
	handler(e)

	seq, err := store.LatestSeq(context.Background(), "run-2")
	if err != nil {
		t.Fatalf("LatestSeq() error = %v", err)
	}
	if seq != 9 {
		t.Errorf("LatestSeq = %d, want 9", seq)
	}
}
