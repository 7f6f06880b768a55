// Package supervisor implements the background-task supervisor (C6): a
// single owner loop that adds, supersedes, and cancels long-running tasks
// keyed by name, driven by a FIFO command channel.
package supervisor

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Task is a long-running function that must exit promptly when ctx is
// cancelled. It does not attempt to finish in-flight work on cancellation.
type Task func(ctx context.Context)

type commandKind int

const (
	cmdAdd commandKind = iota
	cmdRemove
)

type command struct {
	kind commandKind
	key  string
	task Task
}

// Supervisor owns the set of running background tasks. Add and Remove are
// safe to call from any goroutine; Run must be started exactly once and
// drives the actual spawn/cancel bookkeeping from a single goroutine so
// commands are applied in the order they were submitted.
type Supervisor struct {
	log *zap.Logger

	cmds chan command

	mu      sync.RWMutex
	entries map[string]context.CancelFunc
}

// New builds an empty supervisor. Run must be called to start processing
// commands.
func New(log *zap.Logger) *Supervisor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Supervisor{
		log:     log,
		cmds:    make(chan command, 1024),
		entries: make(map[string]context.CancelFunc),
	}
}

// Add registers task under key, spawning it immediately. If key is already
// registered, the previous task is cancelled and the new one supersedes it.
// Add enqueues the command and returns without waiting for it to be
// processed; ordering relative to other Add/Remove calls is preserved by
// the underlying FIFO channel.
func (s *Supervisor) Add(key string, task Task) {
	s.cmds <- command{kind: cmdAdd, key: key, task: task}
}

// Remove cancels and deregisters the task at key. Idempotent on unknown
// keys.
func (s *Supervisor) Remove(key string) {
	s.cmds <- command{kind: cmdRemove, key: key}
}

// Keys returns a snapshot of currently registered task keys, for admin
// introspection and tests.
func (s *Supervisor) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}

// Run processes commands in FIFO order until ctx is cancelled, at which
// point every registered task is cancelled and Run returns.
func (s *Supervisor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.cancelAll()
			return
		case cmd := <-s.cmds:
			switch cmd.kind {
			case cmdAdd:
				s.handleAdd(ctx, cmd.key, cmd.task)
			case cmdRemove:
				s.handleRemove(cmd.key)
			}
		}
	}
}

func (s *Supervisor) handleAdd(parent context.Context, key string, task Task) {
	s.mu.Lock()
	if cancel, ok := s.entries[key]; ok {
		cancel()
	}
	taskCtx, cancel := context.WithCancel(parent)
	s.entries[key] = cancel
	s.mu.Unlock()

	go task(taskCtx)
	s.log.Debug("supervised task registered", zap.String("key", key))
}

func (s *Supervisor) handleRemove(key string) {
	s.mu.Lock()
	cancel, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
	}
	s.mu.Unlock()

	if ok {
		cancel()
		s.log.Debug("supervised task removed", zap.String("key", key))
	}
}

func (s *Supervisor) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, cancel := range s.entries {
		cancel()
		delete(s.entries, key)
	}
}
