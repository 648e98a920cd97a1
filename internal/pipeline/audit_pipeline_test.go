package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"auditgraph/internal/assembler"
	"auditgraph/internal/cache"
	"auditgraph/internal/store"
)

type memStore struct {
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Put(key string, value []byte) error {
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *memStore) Get(key string) ([]byte, error) {
	value, ok := s.data[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return value, nil
}

func (s *memStore) Delete(key string) error {
	delete(s.data, key)
	return nil
}

func (s *memStore) Close() error { return nil }

// stubFeed serves pre-buffered lines and counts Close calls, so tests
// can tell whether shutdown drained the feed or walked away from it.
type stubFeed struct {
	lines  chan string
	closes int
}

func newStubFeed(lines ...string) *stubFeed {
	ch := make(chan string, len(lines))
	for _, l := range lines {
		ch <- l
	}
	return &stubFeed{lines: ch}
}

func (f *stubFeed) Lines() <-chan string { return f.lines }

func (f *stubFeed) Err() error { return nil }

func (f *stubFeed) Close() error {
	if f.closes == 0 {
		close(f.lines)
	}
	f.closes++
	return nil
}

// packetLine builds a self-terminating audit record, so every line fed
// to the assembler reaches the handler exactly once.
func packetLine(id int) string {
	return fmt.Sprintf("type=NETFILTER_PKT msg=audit(100.00%d:%d): mark=0x0 saddr=10.0.0.1 daddr=10.0.0.2 proto=17", id, id)
}

func newTestPipeline(t *testing.T, feed *stubFeed, waitForLog bool, handled *int) *AuditPipeline {
	t.Helper()
	buffer, err := cache.New[map[string]string](cache.Options{MaxEntries: 64}, newMemStore())
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	asm := assembler.New(buffer, func(event map[string]string) {
		*handled++
	})
	return NewAuditPipeline(feed, asm, time.Second, waitForLog)
}

func TestRunConsumesFeedToExhaustion(t *testing.T) {
	feed := newStubFeed(packetLine(1), packetLine(2), packetLine(3))
	feed.Close()

	handled := 0
	pipe := newTestPipeline(t, feed, true, &handled)

	if err := pipe.Run(context.Background()); err != nil {
		t.Fatalf("run returned %v", err)
	}
	if handled != 3 {
		t.Fatalf("expected 3 dispatched events, got %d", handled)
	}
}

func TestCancelledRunDrainsBufferedLines(t *testing.T) {
	feed := newStubFeed(packetLine(1), packetLine(2), packetLine(3))

	handled := 0
	pipe := newTestPipeline(t, feed, true, &handled)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := pipe.Run(ctx); err != context.Canceled {
		t.Fatalf("run returned %v, want context.Canceled", err)
	}
	if handled != 3 {
		t.Fatalf("expected all 3 buffered lines dispatched on shutdown, got %d", handled)
	}
	if feed.closes == 0 {
		t.Fatalf("expected the drain to close the feed")
	}
}

func TestCancelledRunSkipsDrainWhenNotWaiting(t *testing.T) {
	feed := newStubFeed(packetLine(1), packetLine(2), packetLine(3))

	handled := 0
	pipe := newTestPipeline(t, feed, false, &handled)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := pipe.Run(ctx); err != context.Canceled {
		t.Fatalf("run returned %v, want context.Canceled", err)
	}
	if feed.closes != 0 {
		t.Fatalf("expected shutdown to leave the feed untouched, got %d Close calls", feed.closes)
	}
}
