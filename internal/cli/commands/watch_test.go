package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestWatchTargets(t *testing.T) {
	targets := newWatchTargets([]string{"logs/*.log", "logs/extra.txt", "/var/log/journal.txt"}, "conf/rules.yaml")

	wantDirs := []string{"logs", "/var/log", "conf"}
	if got := targets.dirs(); !reflect.DeepEqual(got, wantDirs) {
		t.Errorf("dirs() = %v, want %v", got, wantDirs)
	}

	tests := []struct {
		name string
		want bool
	}{
		{"logs/a.log", true},
		{"./logs/b.log", true},
		{"logs/extra.txt", true},
		{"logs/other.txt", false},
		{"/var/log/journal.txt", true},
		{"conf/rules.yaml", true},
		{"conf/other.yaml", false},
	}
	for _, tt := range tests {
		if got := targets.matches(tt.name); got != tt.want {
			t.Errorf("matches(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestWatchLoop_CoalescesEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan fsnotify.Event)
	errs := make(chan error)
	ran := make(chan struct{}, 10)
	var runs atomic.Int32

	run := func() {
		runs.Add(1)
		ran <- struct{}{}
	}
	match := func(name string) bool { return filepath.Base(name) == "a.log" }

	done := make(chan error, 1)
	go func() {
		done <- watchLoop(ctx, events, errs, match, 20*time.Millisecond, run)
	}()

	waitRun(t, ran)

	// Non-matching names and ops are ignored.
	events <- fsnotify.Event{Name: "b.log", Op: fsnotify.Write}
	events <- fsnotify.Event{Name: "a.log", Op: fsnotify.Chmod}

	// A burst of writes is one follow-up run.
	for i := 0; i < 3; i++ {
		events <- fsnotify.Event{Name: "a.log", Op: fsnotify.Write}
	}
	waitRun(t, ran)

	time.Sleep(100 * time.Millisecond)
	if got := runs.Load(); got != 2 {
		t.Errorf("runs = %d, want 2", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watchLoop() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watchLoop did not stop on cancel")
	}
}

func TestWatchLoop_ClosedEvents(t *testing.T) {
	events := make(chan fsnotify.Event)
	close(events)

	err := watchLoop(context.Background(), events, make(chan error), func(string) bool { return true }, time.Millisecond, func() {})
	if err != nil {
		t.Errorf("watchLoop() error = %v", err)
	}
}

func TestRunWatch_RejectsStdin(t *testing.T) {
	cmd := NewWatchCommand()
	cmd.SetArgs([]string{"-"})
	cmd.SetOut(&bytes.Buffer{})

	if err := cmd.ExecuteContext(context.Background()); err == nil {
		t.Error("expected error for stdin input")
	}
}

func waitRun(t *testing.T, ran <-chan struct{}) {
	t.Helper()
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for run")
	}
}
