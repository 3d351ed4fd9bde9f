package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/neilotoole/slogt"
)

type failingLedger struct{}

func (failingLedger) Record(context.Context, NewNotification) (Notification, error) {
	return Notification{}, ledgerStorage("notify.Record", errors.New("db down"))
}

func (failingLedger) ListUnread(context.Context, string) ([]Notification, error) {
	return nil, ledgerStorage("notify.ListUnread", errors.New("db down"))
}

func (failingLedger) MarkAllRead(context.Context, string) (int64, error) {
	return 0, ledgerStorage("notify.MarkAllRead", errors.New("db down"))
}

func (failingLedger) Close() error { return nil }

func TestDispatcherRecordsAndPushes(t *testing.T) {
	log := slogt.New(t)
	ledger := NewInMemoryLedger()
	registry := NewRegistry(log, nil)
	d := NewDispatcher(log, ledger, registry, nil)

	cl := NewClient("alice", "s1", 8)
	registry.Subscribe(cl)

	d.ReplyPosted(context.Background(), "alice", "m1")

	unread, err := ledger.ListUnread(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ListUnread: %v", err)
	}
	if len(unread) != 1 || unread[0].Type != TypeReply || unread[0].MessageID != "m1" {
		t.Fatalf("ledger rows: %+v", unread)
	}

	select {
	case ev := <-cl.Send:
		if ev.Type != TypeReply {
			t.Errorf("event type %q", ev.Type)
		}
		var p ReplyPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if p.MessageID != "m1" {
			t.Errorf("payload message id %q", p.MessageID)
		}
	default:
		t.Fatal("no live event delivered")
	}
}

func TestDispatcherReactionCarriesValue(t *testing.T) {
	log := slogt.New(t)
	ledger := NewInMemoryLedger()
	registry := NewRegistry(log, nil)
	d := NewDispatcher(log, ledger, registry, nil)

	cl := NewClient("alice", "s1", 8)
	registry.Subscribe(cl)

	d.ReactionSet(context.Background(), "alice", "m2", -1)

	unread, _ := ledger.ListUnread(context.Background(), "alice")
	if len(unread) != 1 || unread[0].Value != -1 {
		t.Fatalf("ledger rows: %+v", unread)
	}

	ev := <-cl.Send
	var p ReactionPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.MessageID != "m2" || p.Value != -1 {
		t.Errorf("payload: %+v", p)
	}
}

func TestDispatcherSurvivesLedgerFailure(t *testing.T) {
	log := slogt.New(t)
	registry := NewRegistry(log, nil)
	d := NewDispatcher(log, failingLedger{}, registry, nil)

	cl := NewClient("alice", "s1", 8)
	registry.Subscribe(cl)

	// Must not panic; the live push still goes out.
	d.ReplyPosted(context.Background(), "alice", "m1")

	select {
	case ev := <-cl.Send:
		if ev.Type != TypeReply {
			t.Errorf("event type %q", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("live push must survive a ledger failure")
	}
}

func TestDispatcherWithNoSubscribers(t *testing.T) {
	log := slogt.New(t)
	d := NewDispatcher(log, NewInMemoryLedger(), NewRegistry(log, nil), nil)

	// No sessions registered: the trigger only lands in the ledger.
	d.ReactionSet(context.Background(), "alice", "m1", 1)
}
