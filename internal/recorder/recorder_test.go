package recorder

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mockforge/core/internal/model"
)

func sampleExchange() *model.RecordedExchange {
	return &model.RecordedExchange{
		Version:        model.CurrentRecordingVersion,
		RequestID:      "req-1",
		Protocol:       model.ProtocolHTTP,
		Method:         "GET",
		Path:           "/widgets",
		Query:          map[string]string{"a": "1"},
		Headers:        map[string]string{"X-Test": "yes"},
		Body:           "",
		ResponseStatus: 200,
		ResponseBody:   `{"ok":true}`,
		RequestedAt:    time.Unix(0, 0),
		RespondedAt:    time.Unix(0, 0),
	}
}

func TestDiskStorePutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}

	exchange := sampleExchange()
	if err := store.Put("key1", exchange); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, hit, err := store.Get("key1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !hit {
		t.Fatal("expected hit after Put")
	}
	if got.RequestID != exchange.RequestID {
		t.Fatalf("expected round-tripped RequestID %q, got %q", exchange.RequestID, got.RequestID)
	}
}

func TestDiskStoreGetMissesUnknownKey(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}

	_, hit, err := store.Get("missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hit {
		t.Fatal("expected miss for unknown key")
	}
}

func TestDiskStoreTreatsVersionMismatchAsMiss(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}

	exchange := sampleExchange()
	exchange.Version = model.CurrentRecordingVersion + 1
	if err := store.Put("stale", exchange); err != nil {
		t.Fatalf("Put: %v", err)
	}

	_, hit, err := store.Get("stale")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hit {
		t.Fatal("expected version mismatch to be treated as a miss")
	}
}

func TestDiskStorePathForIsScopedToDir(t *testing.T) {
	store := &DiskStore{Dir: "/tmp/recordings"}
	got := store.pathFor("abc")
	want := filepath.Join("/tmp/recordings", "abc.json")
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestAsyncRecorderDropsOldestOnOverflow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	blocking := &blockingStore{release: make(chan struct{})}
	async := NewAsyncRecorder(ctx, blocking, 1)

	async.Enqueue("first", sampleExchange())
	// give the goroutine a chance to pull "first" into blockingStore.Put
	// and block there, so the queue is empty but the store is occupied.
	time.Sleep(20 * time.Millisecond)

	async.Enqueue("second", sampleExchange())
	async.Enqueue("third", sampleExchange())

	close(blocking.release)

	deadline := time.After(time.Second)
	for async.Dropped.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected at least one dropped write on overflow")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

type blockingStore struct {
	release chan struct{}
	put     []string
}

func (s *blockingStore) Put(key string, exchange *model.RecordedExchange) error {
	if key == "first" {
		<-s.release
	}
	s.put = append(s.put, key)
	return nil
}

func (s *blockingStore) Get(key string) (*model.RecordedExchange, bool, error) {
	return nil, false, nil
}

func TestRecorderLookupMissThenRecordThenHit(t *testing.T) {
	ctx := context.Background()
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	rec := New(ctx, store, 8, nil)

	key := rec.Key("GET", "/widgets", map[string][]string{"a": {"1"}, "b": {"2", "3"}})

	_, hit, err := rec.Lookup(ctx, key)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if hit {
		t.Fatal("expected miss before any Record")
	}

	rec.Record(ctx, key, sampleExchange())

	deadline := time.After(time.Second)
	for {
		_, hit, err := rec.Lookup(ctx, key)
		if err != nil {
			t.Fatalf("Lookup: %v", err)
		}
		if hit {
			break
		}
		select {
		case <-deadline:
			t.Fatal("expected async write to become visible")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestRecorderKeyStableAcrossQueryReorder(t *testing.T) {
	rec := New(context.Background(), &blockingStore{release: make(chan struct{})}, 1, nil)
	k1 := rec.Key("POST", "/widgets", map[string][]string{"a": {"1"}, "b": {"2"}})
	k2 := rec.Key("POST", "/widgets", map[string][]string{"b": {"2"}, "a": {"1"}})
	if k1 != k2 {
		t.Fatalf("expected stable key across query reordering, got %q vs %q", k1, k2)
	}
}
