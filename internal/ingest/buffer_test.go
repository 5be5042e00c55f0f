package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/vehicleconnect-dashboard/internal/domain"
)

type memoryWriter struct {
	mu      sync.Mutex
	batches [][]domain.APIEvent
	fail    bool
}

func (m *memoryWriter) WriteBatch(_ context.Context, events []domain.APIEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("db down")
	}
	m.batches = append(m.batches, events)
	return nil
}

func (m *memoryWriter) sizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.batches))
	for i, b := range m.batches {
		out[i] = len(b)
	}
	return out
}

func event(client string) domain.APIEvent {
	return domain.APIEvent{Endpoint: "/api/vehicle/status", Method: "GET", StatusCode: 200, ClientID: client, Success: true}
}

func TestBufferFlushesBySizeAndDrainsOnStop(t *testing.T) {
	w := &memoryWriter{}
	var flushed int
	var mu sync.Mutex
	b := NewBuffer(w, Options{
		BatchSize:     3,
		FlushInterval: time.Hour,
		OnFlush: func(_ context.Context, n int) {
			mu.Lock()
			flushed += n
			mu.Unlock()
		},
	}, zap.NewNop())
	b.Start()

	for i := 0; i < 7; i++ {
		if !b.Offer(event("vehicle")) {
			t.Fatalf("offer %d rejected", i)
		}
	}
	b.Stop()

	sizes := w.sizes()
	if len(sizes) != 3 || sizes[0] != 3 || sizes[1] != 3 || sizes[2] != 1 {
		t.Fatalf("expected batches [3 3 1], got %v", sizes)
	}
	mu.Lock()
	defer mu.Unlock()
	if flushed != 7 {
		t.Fatalf("expected flush hook for 7 events, got %d", flushed)
	}
	if !w.batches[0][0].Timestamp.After(time.Time{}) {
		t.Fatalf("offer must stamp missing timestamps")
	}
}

func TestBufferFlushesByTicker(t *testing.T) {
	w := &memoryWriter{}
	b := NewBuffer(w, Options{BatchSize: 100, FlushInterval: 10 * time.Millisecond}, zap.NewNop())
	b.Start()
	defer b.Stop()

	b.Offer(event("vehicle"))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(w.sizes()) == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected ticker flush, got %v", w.sizes())
}

func TestBufferRejectsAfterStopAndOnOverflow(t *testing.T) {
	w := &memoryWriter{}

	// Воркер не запущен: канал на одно событие заполняется сразу
	b := NewBuffer(w, Options{BufferSize: 1}, zap.NewNop())
	if !b.Offer(event("a")) {
		t.Fatalf("first offer must fit")
	}
	if b.Offer(event("b")) {
		t.Fatalf("offer into full buffer must be rejected")
	}

	b.Start()
	b.Stop()
	b.Stop() // повторный Stop безопасен

	if b.Offer(event("c")) {
		t.Fatalf("offer after stop must be rejected")
	}
	if sizes := w.sizes(); len(sizes) != 1 || sizes[0] != 1 {
		t.Fatalf("expected the buffered event to be drained, got %v", sizes)
	}
}

func TestBufferSkipsHookOnWriteFailure(t *testing.T) {
	w := &memoryWriter{fail: true}
	called := false
	b := NewBuffer(w, Options{OnFlush: func(context.Context, int) { called = true }}, zap.NewNop())
	b.Start()
	b.Offer(event("a"))
	b.Stop()

	if called {
		t.Fatalf("flush hook must not run when the write fails")
	}
}
