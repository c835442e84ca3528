package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runLog struct {
	mu       sync.Mutex
	triggers []Trigger
	ch       chan Trigger
}

func newRunLog() *runLog { return &runLog{ch: make(chan Trigger, 16)} }

func (r *runLog) run(_ context.Context, t Trigger) error {
	r.mu.Lock()
	r.triggers = append(r.triggers, t)
	r.mu.Unlock()
	select {
	case r.ch <- t:
	default:
	}
	if t == TriggerStartup {
		return errors.New("startup failures do not stop watching")
	}
	return nil
}

// settle waits out pending debounced runs and discards them.
func (r *runLog) settle() {
	time.Sleep(100 * time.Millisecond)
	for {
		select {
		case <-r.ch:
		default:
			return
		}
	}
}

func (r *runLog) await(t *testing.T, want Trigger) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-r.ch:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s run", want)
		}
	}
}

func TestRelevant(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "core")
	require.NoError(t, os.Mkdir(sub, 0o750))
	file := filepath.Join(dir, "main.cpp")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	w, err := New(func(context.Context, Trigger) error { return nil }, Options{Files: []string{"projgen.yaml"}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.watcher.Close() })

	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"declaration written", fsnotify.Event{Name: filepath.Join(dir, "build.yaml"), Op: fsnotify.Write}, true},
		{"manifest removed", fsnotify.Event{Name: filepath.Join(dir, "library.yaml"), Op: fsnotify.Remove}, true},
		{"config file", fsnotify.Event{Name: filepath.Join(dir, "projgen.yaml"), Op: fsnotify.Write}, true},
		{"env file", fsnotify.Event{Name: filepath.Join(dir, ".env"), Op: fsnotify.Create}, true},
		{"chmod only", fsnotify.Event{Name: filepath.Join(dir, "build.yaml"), Op: fsnotify.Chmod}, false},
		{"source written", fsnotify.Event{Name: file, Op: fsnotify.Write}, false},
		{"source created", fsnotify.Event{Name: file, Op: fsnotify.Create}, false},
		{"directory created", fsnotify.Event{Name: sub, Op: fsnotify.Create}, true},
		{"directory removed", fsnotify.Event{Name: filepath.Join(dir, "gone"), Op: fsnotify.Remove}, true},
		{"hidden directory", fsnotify.Event{Name: filepath.Join(dir, ".git"), Op: fsnotify.Remove}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.relevant(tt.ev))
		})
	}
}

func TestRunRegeneratesOnChange(t *testing.T) {
	root := t.TempDir()
	mod := filepath.Join(root, "engine", "core")
	require.NoError(t, os.MkdirAll(mod, 0o750))

	log := newRunLog()
	w, err := New(log.run, Options{Paths: []string{root, filepath.Join(root, "missing")}, Debounce: 20 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	log.await(t, TriggerStartup)

	// Nested directories are watched, including ones created after start.
	require.NoError(t, os.WriteFile(filepath.Join(mod, "build.yaml"), []byte("tests: true\n"), 0o600))
	log.await(t, TriggerChange)

	log.settle()
	fresh := filepath.Join(root, "engine", "net")
	require.NoError(t, os.Mkdir(fresh, 0o750))
	log.await(t, TriggerChange)
	log.settle()
	require.NoError(t, os.WriteFile(filepath.Join(fresh, "build.yaml"), nil, 0o600))
	log.await(t, TriggerChange)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestRunOnInterval(t *testing.T) {
	log := newRunLog()
	w, err := New(log.run, Options{Interval: 50 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	log.await(t, TriggerStartup)
	log.await(t, TriggerSchedule)
}
