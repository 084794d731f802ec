package runtime

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/loop"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/paths"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
)

// SupervisorOptions tunes process supervision
type SupervisorOptions struct {
	// JailerPath wraps untrusted apps when non-empty.
	JailerPath string
	// NoJailApps bypass the jailer regardless of trust level.
	NoJailApps []string
	// KillGrace is the SIGTERM to SIGKILL escalation window.
	KillGrace time.Duration
}

// KillRecord tracks one pending forced termination
type KillRecord struct {
	AppID string
	PID   int
	PIDs  []int // process plus descendants, snapshotted when armed
	timer *loop.Timer
	// escalation fires KillGrace after the graceful deadline passed.
	escalation *loop.Timer
}

// Supervisor spawns native app processes, watches their exit, and owns the
// kill-timer table. All state is confined to the event loop.
type Supervisor struct {
	log     *logging.Logger
	lp      *loop.Loop
	metrics *monitoring.Metrics
	opts    SupervisorOptions

	kills    map[string]*KillRecord
	appByPid map[int]string
	noJail   map[string]bool
	onExit   func(appID string, pid int)
}

// NewSupervisor creates a supervisor.
func NewSupervisor(log *logging.Logger, lp *loop.Loop, metrics *monitoring.Metrics, opts SupervisorOptions) *Supervisor {
	if opts.KillGrace <= 0 {
		opts.KillGrace = 2 * time.Second
	}
	noJail := make(map[string]bool, len(opts.NoJailApps))
	for _, id := range opts.NoJailApps {
		noJail[id] = true
	}
	return &Supervisor{
		log:      log.Named("supervisor"),
		lp:       lp,
		metrics:  metrics,
		opts:     opts,
		kills:    make(map[string]*KillRecord),
		appByPid: make(map[int]string),
		noJail:   noJail,
	}
}

// SetExitHandler installs the child-exit callback. It is invoked on the
// event loop with the app id currently bound to the exited pid.
func (s *Supervisor) SetExitHandler(fn func(appID string, pid int)) {
	s.onExit = fn
}

// Spawn forks the app's process and registers an exit watcher. The jail
// wrapper is applied for untrusted apps unless the app is allow-listed.
func (s *Supervisor) Spawn(desc *types.AppDescriptor, params types.LaunchParams) (int, error) {
	if desc.Exec == "" {
		return 0, fmt.Errorf("app %s has no executable", desc.ID)
	}

	var cmd *exec.Cmd
	if s.useJail(desc) {
		args := append([]string{"--id", desc.ID, "--", desc.Exec}, desc.Args...)
		cmd = exec.Command(s.opts.JailerPath, args...)
	} else {
		cmd = exec.Command(desc.Exec, desc.Args...)
	}
	app := paths.AppPath(desc.ID)
	cmd.Env = append(os.Environ(),
		"APP_ID="+desc.ID,
		"APP_DATA_DIR="+app.DataDir(),
		"APP_CACHE_DIR="+app.CacheDir(),
		"APP_TEMP_DIR="+app.TempDir(),
		"LAUNCH_REASON="+params.String("reason"),
	)
	setPlatformAttrs(cmd)

	if err := cmd.Start(); err != nil {
		if s.metrics != nil {
			s.metrics.SpawnFailures.Inc()
		}
		return 0, fmt.Errorf("failed to spawn %s: %w", desc.ID, err)
	}

	pid := cmd.Process.Pid
	s.appByPid[pid] = desc.ID
	s.log.Info("process spawned",
		zap.String("appId", desc.ID),
		zap.Int("pid", pid),
		zap.Bool("jailed", s.useJail(desc)),
	)

	go func() {
		// Reap the child; errors here only mean a non-zero exit.
		_ = cmd.Wait()
		s.lp.Post(func() { s.handleExit(pid) })
	}()

	return pid, nil
}

func (s *Supervisor) useJail(desc *types.AppDescriptor) bool {
	if s.opts.JailerPath == "" {
		return false
	}
	if desc.TrustLevel == types.TrustTrusted {
		return false
	}
	return !s.noJail[desc.ID]
}

// handleExit runs on the loop.
func (s *Supervisor) handleExit(pid int) {
	appID, ok := s.appByPid[pid]
	if !ok {
		// Exit for a process we no longer track; nothing to report through.
		s.log.Debug("exit for untracked pid", zap.Int("pid", pid))
		return
	}
	delete(s.appByPid, pid)
	s.log.Info("process exited", zap.String("appId", appID), zap.Int("pid", pid))

	if s.onExit != nil {
		s.onExit(appID, pid)
	}
}

// PIDTree returns pid plus all its descendants. Falls back to just pid when
// enumeration fails.
func (s *Supervisor) PIDTree(pid int) []int {
	pids := []int{pid}
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return pids
	}
	children, err := proc.Children()
	if err != nil {
		return pids
	}
	for _, child := range children {
		pids = append(pids, s.PIDTree(int(child.Pid))...)
	}
	return pids
}

// ArmKillTimer schedules forced termination for appID unless it exits
// within timeout. At most one KillRecord exists per app; arming twice is a
// no-op and reports false.
func (s *Supervisor) ArmKillTimer(appID string, pid int, timeout time.Duration) bool {
	if _, exists := s.kills[appID]; exists {
		return false
	}
	rec := &KillRecord{
		AppID: appID,
		PID:   pid,
		PIDs:  s.PIDTree(pid),
	}
	rec.timer = s.lp.AfterFunc(timeout, func() { s.escalate(rec) })
	s.kills[appID] = rec
	return true
}

// escalate runs on the loop when the graceful window lapsed.
func (s *Supervisor) escalate(rec *KillRecord) {
	if s.kills[rec.AppID] != rec {
		return
	}
	if s.metrics != nil {
		s.metrics.KillEscalations.Inc()
	}
	s.log.Warn("graceful close timed out, terminating",
		zap.String("appId", rec.AppID),
		zap.Int("pid", rec.PID),
		zap.Ints("pids", rec.PIDs),
	)
	signalTerm(rec.PIDs)
	rec.escalation = s.lp.AfterFunc(s.opts.KillGrace, func() {
		if s.kills[rec.AppID] != rec {
			return
		}
		signalKill(rec.PIDs)
		delete(s.kills, rec.AppID)
	})
}

// CancelKillTimer drops the kill record for appID, typically because the
// process exited on its own or reconnected under a new id.
func (s *Supervisor) CancelKillTimer(appID string) {
	rec, exists := s.kills[appID]
	if !exists {
		return
	}
	rec.timer.Cancel()
	rec.escalation.Cancel()
	delete(s.kills, appID)
}

// HasKillRecord reports whether a forced termination is pending for appID.
func (s *Supervisor) HasKillRecord(appID string) bool {
	_, exists := s.kills[appID]
	return exists
}

// ForceKill terminates the app's process tree immediately, skipping the
// graceful window.
func (s *Supervisor) ForceKill(appID string, pid int) error {
	s.CancelKillTimer(appID)
	pids := s.PIDTree(pid)
	if len(pids) == 0 {
		return fmt.Errorf("no pids found to signal for app %s", appID)
	}
	s.log.Warn("force killing",
		zap.String("appId", appID),
		zap.Ints("pids", pids),
	)
	signalKill(pids)
	return nil
}

// Rekey rebinds the supervision pid mapping to a new app id.
func (s *Supervisor) Rekey(oldID, newID string) {
	for pid, appID := range s.appByPid {
		if appID == oldID {
			s.appByPid[pid] = newID
		}
	}
	if rec, exists := s.kills[oldID]; exists {
		delete(s.kills, oldID)
		rec.AppID = newID
		s.kills[newID] = rec
	}
}
