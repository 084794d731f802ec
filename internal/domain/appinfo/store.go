// Package appinfo holds the authoritative per-app status records.
//
// The orchestrator and the runtime handlers never keep shadow copies of an
// app's life status; every read and write goes through this store so the
// value cannot diverge across a suspension point.
package appinfo

import (
	"sync"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
)

// Store keeps life status, runtime status and running records per app
type Store struct {
	mu       sync.RWMutex
	life     map[string]types.LifeStatus
	runtime  map[string]types.RuntimeStatus
	pidByApp map[string]int
	appByPid map[int]string
	preload  map[string]string // app id -> preload tag
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		life:     make(map[string]types.LifeStatus),
		runtime:  make(map[string]types.RuntimeStatus),
		pidByApp: make(map[string]int),
		appByPid: make(map[int]string),
		preload:  make(map[string]string),
	}
}

// LifeStatus returns the current life status, defaulting to stop.
func (s *Store) LifeStatus(appID string) types.LifeStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.life[appID]; ok {
		return st
	}
	return types.LifeStatusStop
}

// SetLifeStatus writes the authoritative life status.
func (s *Store) SetLifeStatus(appID string, st types.LifeStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st == types.LifeStatusStop {
		delete(s.life, appID)
		return
	}
	s.life[appID] = st
}

// RuntimeStatus returns the process-level status, defaulting to stop.
func (s *Store) RuntimeStatus(appID string) types.RuntimeStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.runtime[appID]; ok {
		return st
	}
	return types.RuntimeStatusStop
}

// SetRuntimeStatus writes the process-level status.
func (s *Store) SetRuntimeStatus(appID string, st types.RuntimeStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st == types.RuntimeStatusStop {
		delete(s.runtime, appID)
		return
	}
	s.runtime[appID] = st
}

// IsRunning reports whether a running record exists for appID.
func (s *Store) IsRunning(appID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pidByApp[appID]
	return ok
}

// AddRunningRecord records appID as running under pid.
func (s *Store) AddRunningRecord(appID string, pid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.pidByApp[appID]; ok {
		delete(s.appByPid, old)
	}
	s.pidByApp[appID] = pid
	s.appByPid[pid] = appID
}

// RemoveRunningRecord deletes the running record for appID.
func (s *Store) RemoveRunningRecord(appID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pid, ok := s.pidByApp[appID]; ok {
		delete(s.appByPid, pid)
		delete(s.pidByApp, appID)
	}
}

// RebindRunningRecord atomically re-keys a running record to a new app id.
// It fails when the source is not running or the target already is.
func (s *Store) RebindRunningRecord(fromID, toID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	pid, ok := s.pidByApp[fromID]
	if !ok {
		return false
	}
	if _, exists := s.pidByApp[toID]; exists {
		return false
	}
	delete(s.pidByApp, fromID)
	s.pidByApp[toID] = pid
	s.appByPid[pid] = toID

	if st, ok := s.runtime[fromID]; ok {
		delete(s.runtime, fromID)
		s.runtime[toID] = st
	}
	if st, ok := s.life[fromID]; ok {
		delete(s.life, fromID)
		s.life[toID] = st
	}
	if tag, ok := s.preload[fromID]; ok {
		delete(s.preload, fromID)
		s.preload[toID] = tag
	}
	return true
}

// PIDForApp returns the pid recorded for appID.
func (s *Store) PIDForApp(appID string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pid, ok := s.pidByApp[appID]
	return pid, ok
}

// AppIDForPID returns the app id recorded for pid.
func (s *Store) AppIDForPID(pid int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	appID, ok := s.appByPid[pid]
	return appID, ok
}

// RunningList returns a snapshot of all running records.
func (s *Store) RunningList() []types.RunningApp {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.RunningApp, 0, len(s.pidByApp))
	for appID, pid := range s.pidByApp {
		out = append(out, types.RunningApp{AppID: appID, PID: pid})
	}
	return out
}

// SetPreloadMode records a non-empty preload tag for appID.
func (s *Store) SetPreloadMode(appID, tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tag == "" {
		delete(s.preload, appID)
		return
	}
	s.preload[appID] = tag
}

// PreloadMode returns the preload tag for appID, empty for foreground apps.
func (s *Store) PreloadMode(appID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.preload[appID]
}

// ClearPreloadMode removes the preload tag for appID.
func (s *Store) ClearPreloadMode(appID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.preload, appID)
}
