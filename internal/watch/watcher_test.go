package watch

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestIsSheet(t *testing.T) {
	w := &Watcher{path: "/data/kunden.csv"}

	tests := []struct {
		name string
		want bool
	}{
		{"/data/kunden.csv", true},
		{"/data/./kunden.csv", true},
		{"/data/kunden.csv.tmp", false},
		{"/data/other.csv", false},
	}
	for _, tt := range tests {
		if got := w.isSheet(tt.name); got != tt.want {
			t.Errorf("isSheet(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestScheduleReloadDebounces(t *testing.T) {
	var calls int64
	w := &Watcher{
		path:     filepath.Join(t.TempDir(), "kunden.csv"),
		debounce: 50 * time.Millisecond,
		onChange: func(context.Context) { atomic.AddInt64(&calls, 1) },
	}

	// A burst of events must collapse into a single reload.
	for i := 0; i < 5; i++ {
		w.scheduleReload(context.Background())
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(300 * time.Millisecond)
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Errorf("onChange called %d times, want 1", got)
	}
}

func TestCloseStopsPendingReload(t *testing.T) {
	var calls int64
	w := &Watcher{
		path:     "kunden.csv",
		debounce: 50 * time.Millisecond,
		onChange: func(context.Context) { atomic.AddInt64(&calls, 1) },
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		t.Fatalf("creating fsnotify watcher: %v", err)
	}
	w.watcher = fs

	w.scheduleReload(context.Background())
	if err := w.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	if got := atomic.LoadInt64(&calls); got != 0 {
		t.Errorf("onChange called %d times after Close, want 0", got)
	}
}
