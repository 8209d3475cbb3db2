// Package state tracks the bot's coarse run state: running/stopped/error,
// the consecutive-failure counter and uptime. All methods are safe for
// concurrent use.
package state

import (
	"errors"
	"sync"
	"time"

	"github.com/drongunkam-dotcom/arb-bot/internal/types"
)

var (
	// ErrAlreadyRunning is returned by Start when the bot is already running.
	ErrAlreadyRunning = errors.New("bot already running")
)

type State struct {
	mu        sync.RWMutex
	status    types.BotStatus
	failures  int
	startedAt time.Time
	simMode   bool
}

func New(simulationMode bool) *State {
	return &State{status: types.StatusStopped, simMode: simulationMode}
}

// Start transitions to running. Starting from error clears the
// failure counter: an explicit operator restart acknowledges the halt.
func (s *State) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == types.StatusRunning {
		return ErrAlreadyRunning
	}
	s.status = types.StatusRunning
	s.failures = 0
	s.startedAt = time.Now()
	return nil
}

// Stop transitions to stopped. Idempotent.
func (s *State) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == types.StatusRunning {
		s.status = types.StatusStopped
	}
}

// Halt moves the bot into the error state. Only Start clears it.
func (s *State) Halt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = types.StatusError
}

func (s *State) Status() types.BotStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *State) SimulationMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.simMode
}

// RecordSuccess resets the consecutive-failure counter.
func (s *State) RecordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = 0
}

// RecordFailure increments the consecutive-failure counter and returns
// the new value.
func (s *State) RecordFailure() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
	return s.failures
}

func (s *State) ConsecutiveFailures() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failures
}

// Snapshot is a consistent point-in-time view for the API layer.
type Snapshot struct {
	Status              types.BotStatus `json:"status"`
	SimulationMode      bool            `json:"simulation_mode"`
	ConsecutiveFailures int             `json:"consecutive_failures"`
	UptimeSeconds       int64           `json:"uptime_seconds"`
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var up int64
	if s.status == types.StatusRunning {
		up = int64(time.Since(s.startedAt).Seconds())
	}
	return Snapshot{
		Status:              s.status,
		SimulationMode:      s.simMode,
		ConsecutiveFailures: s.failures,
		UptimeSeconds:       up,
	}
}
