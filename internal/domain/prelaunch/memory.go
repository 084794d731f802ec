package prelaunch

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/logging"
)

// MemoryOptions tunes the memory admission gate.
type MemoryOptions struct {
	// MinFreeMB is the admission floor. Zero disables the check entirely.
	MinFreeMB uint64
	// Probe reports available memory in MB. Defaults to the system probe.
	Probe func() (uint64, error)
}

// MemoryGate queues launch items and admits them against available memory
// when Run is called. Preload launches bypass the floor: they load hidden
// and are the first thing reclaimed under pressure anyway.
type MemoryGate struct {
	log      *logging.Logger
	opts     MemoryOptions
	complete CompleteFunc
	queue    []*lifecycle.LaunchingItem
}

// NewMemoryGate creates a memory gate. The complete callback is invoked
// exactly once per added item.
func NewMemoryGate(log *logging.Logger, opts MemoryOptions, complete CompleteFunc) *MemoryGate {
	if opts.Probe == nil {
		opts.Probe = systemAvailableMB
	}
	return &MemoryGate{
		log:      log.Named("memgate"),
		opts:     opts,
		complete: complete,
	}
}

func systemAvailableMB() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.Available / (1 << 20), nil
}

// AddItem implements lifecycle.MemoryChecker.
func (g *MemoryGate) AddItem(it *lifecycle.LaunchingItem) {
	g.queue = append(g.queue, it)
}

// Run drains the queue, reporting each item's admission outcome.
func (g *MemoryGate) Run() {
	queue := g.queue
	g.queue = nil
	for _, it := range queue {
		code, text := g.admit(it)
		g.complete(it.UID, code, text)
	}
}

func (g *MemoryGate) admit(it *lifecycle.LaunchingItem) (int, string) {
	if g.opts.MinFreeMB == 0 || it.Preload() {
		return lifecycle.ErrNone, ""
	}
	available, err := g.opts.Probe()
	if err != nil {
		// Admission must not block launches on a broken probe.
		g.log.Warn("memory probe failed, admitting launch", zap.Error(err))
		return lifecycle.ErrNone, ""
	}
	if available < g.opts.MinFreeMB {
		g.log.Warn("launch rejected on low memory",
			zap.String("appId", it.AppID),
			zap.Uint64("availableMB", available),
			zap.Uint64("minFreeMB", g.opts.MinFreeMB),
		)
		return lifecycle.ErrMemoryLow,
			fmt.Sprintf("not enough memory: %dMB available, %dMB required", available, g.opts.MinFreeMB)
	}
	return lifecycle.ErrNone, ""
}

// CancelAll fails every queued item, typically at shutdown.
func (g *MemoryGate) CancelAll() {
	queue := g.queue
	g.queue = nil
	for _, it := range queue {
		g.complete(it.UID, lifecycle.ErrCanceled, "memory check was cancelled")
	}
}
