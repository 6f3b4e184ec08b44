package runtime

import (
	"context"
	"testing"
	"time"
)

func TestDispatcherManagerSeparatesSessionsConcurrently(t *testing.T) {
	blockA := make(chan struct{})
	startedA := make(chan struct{})
	startedB := make(chan struct{}, 1)
	handler := &keyedBlockingHandler{
		blockOn:  "a-customer",
		block:    blockA,
		started:  startedA,
		othersCh: startedB,
	}
	manager := NewDispatcherManager(handler, 10)
	writer := &recordingWriter{}

	keyA := SessionKey{OwnerUserID: "biz", CustomerPhone: "a-customer", Platform: "whatsapp"}
	keyB := SessionKey{OwnerUserID: "biz", CustomerPhone: "b-customer", Platform: "whatsapp"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.Enqueue(ctx, keyA, &Message{Text: "a-customer"}, writer); err != nil {
		t.Fatalf("enqueue a: %v", err)
	}
	<-startedA

	if err := manager.Enqueue(ctx, keyB, &Message{Text: "b-customer"}, writer); err != nil {
		t.Fatalf("enqueue b: %v", err)
	}
	select {
	case <-startedB:
	case <-time.After(time.Second):
		t.Fatalf("session b should not be blocked by session a's in-flight run")
	}

	close(blockA)
	manager.StopAll()
}

type keyedBlockingHandler struct {
	blockOn  string
	block    chan struct{}
	started  chan struct{}
	othersCh chan struct{}
}

func (h *keyedBlockingHandler) HandleMessage(ctx context.Context, _ ResponseWriter, msg *Message) error {
	if msg.Text == h.blockOn {
		close(h.started)
		select {
		case <-h.block:
		case <-ctx.Done():
		}
		return nil
	}
	h.othersCh <- struct{}{}
	return nil
}
