package runtime

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/appinfo"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/loop"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
)

// NativeOptions tunes native app supervision
type NativeOptions struct {
	// RegistrationTimeout is the grace window for a spawned process to
	// register itself.
	RegistrationTimeout time.Duration
	// KillTimeout is armed after a graceful close notification.
	KillTimeout time.Duration
	// MemoryReclaimKillTimeout replaces KillTimeout for memory-reclaim
	// closes.
	MemoryReclaimKillTimeout time.Duration
}

// Client is the supervision record for one running native app
type Client struct {
	AppID              string
	PID                int
	InterfaceVersion   int
	Registered         bool
	RegistrationExpired bool

	conn     lifecycle.AppConnection
	regTimer *loop.Timer
}

type pendingLaunch struct {
	it   *lifecycle.LaunchingItem
	desc *types.AppDescriptor
	done lifecycle.DoneFunc
}

// NativeHandler drives launch, registration, close and pause for native
// processes. All state is confined to the event loop.
type NativeHandler struct {
	log     *logging.Logger
	lp      *loop.Loop
	appInfo *appinfo.Store
	sink    StatusSink
	sup     *Supervisor
	metrics *monitoring.Metrics
	opts    NativeOptions

	clients map[string]*Client
	// pending holds launches queued behind a spawn, close or unregistered
	// instance, per app id.
	pending map[string][]*pendingLaunch
}

// NewNativeHandler creates the native runtime handler and installs itself
// as the supervisor's exit watcher.
func NewNativeHandler(log *logging.Logger, lp *loop.Loop, store *appinfo.Store, sink StatusSink, sup *Supervisor, metrics *monitoring.Metrics, opts NativeOptions) *NativeHandler {
	if opts.RegistrationTimeout <= 0 {
		opts.RegistrationTimeout = 20 * time.Second
	}
	if opts.KillTimeout <= 0 {
		opts.KillTimeout = 10 * time.Second
	}
	if opts.MemoryReclaimKillTimeout <= 0 {
		opts.MemoryReclaimKillTimeout = 3 * time.Second
	}

	h := &NativeHandler{
		log:     log.Named("native"),
		lp:      lp,
		appInfo: store,
		sink:    sink,
		sup:     sup,
		metrics: metrics,
		opts:    opts,
		clients: make(map[string]*Client),
		pending: make(map[string][]*pendingLaunch),
	}
	sup.SetExitHandler(h.onProcessExit)
	return h
}

// Kind implements lifecycle.RuntimeHandler.
func (h *NativeHandler) Kind() types.RuntimeKind { return types.RuntimeNative }

// Client returns the supervision record for appID, if any.
func (h *NativeHandler) Client(appID string) (*Client, bool) {
	c, ok := h.clients[appID]
	return c, ok
}

// Launch dispatches to the per-runtime-status launch policy.
func (h *NativeHandler) Launch(it *lifecycle.LaunchingItem, desc *types.AppDescriptor, done lifecycle.DoneFunc) {
	switch h.appInfo.RuntimeStatus(it.AppID) {
	case types.RuntimeStatusStop:
		h.launchFresh(it, desc, done)

	case types.RuntimeStatusRegistered:
		h.relaunchInPlace(it, done)

	case types.RuntimeStatusRunning:
		client := h.clients[it.AppID]
		if client != nil && client.RegistrationExpired {
			// The instance missed its registration window. Protocol v2
			// proactively force-kills it before queuing; v1 queues the
			// relaunch behind a forced close.
			if !h.enqueue(it, desc, done) {
				return
			}
			h.beginForcedClose(it.AppID, client)
			return
		}
		// Still within the registration grace window.
		h.enqueue(it, desc, done)

	case types.RuntimeStatusLaunching, types.RuntimeStatusClosing:
		h.enqueue(it, desc, done)
	}
}

// enqueue parks a launch on the per-app pending queue. Protocol v1 allows a
// single pending slot and rejects a second concurrent launch outright.
func (h *NativeHandler) enqueue(it *lifecycle.LaunchingItem, desc *types.AppDescriptor, done lifecycle.DoneFunc) bool {
	if desc.InterfaceVersion < 2 && len(h.pending[it.AppID]) > 0 {
		done(it.UID, lifecycle.ErrLaunchPending,
			fmt.Sprintf("a launch for app %s is already pending", it.AppID))
		return false
	}
	h.pending[it.AppID] = append(h.pending[it.AppID], &pendingLaunch{it: it, desc: desc, done: done})
	h.log.Debug("launch queued",
		zap.String("appId", it.AppID),
		zap.String("uid", it.UID),
		zap.Int("queued", len(h.pending[it.AppID])),
	)
	return true
}

func (h *NativeHandler) launchFresh(it *lifecycle.LaunchingItem, desc *types.AppDescriptor, done lifecycle.DoneFunc) {
	h.appInfo.SetRuntimeStatus(it.AppID, types.RuntimeStatusLaunching)

	pid, err := h.sup.Spawn(desc, it.Params)
	if err != nil {
		h.appInfo.SetRuntimeStatus(it.AppID, types.RuntimeStatusStop)
		done(it.UID, lifecycle.ErrSpawnFailed, err.Error())
		return
	}

	client := &Client{
		AppID:            it.AppID,
		PID:              pid,
		InterfaceVersion: desc.InterfaceVersion,
	}
	h.clients[it.AppID] = client

	h.appInfo.SetRuntimeStatus(it.AppID, types.RuntimeStatusRunning)
	h.appInfo.AddRunningRecord(it.AppID, pid)
	h.sink.NotifyRunningList()
	h.sink.RequestStatus(it.AppID, types.LifeStatusLaunching)

	appID := it.AppID
	client.regTimer = h.lp.AfterFunc(h.opts.RegistrationTimeout, func() {
		c, ok := h.clients[appID]
		if !ok || c != client || c.Registered {
			return
		}
		c.RegistrationExpired = true
		if h.metrics != nil {
			h.metrics.RegistrationTimeouts.Inc()
		}
		h.log.Warn("registration window expired",
			zap.String("appId", appID),
			zap.Int("pid", c.PID),
		)
	})

	done(it.UID, lifecycle.ErrNone, "")
}

func (h *NativeHandler) relaunchInPlace(it *lifecycle.LaunchingItem, done lifecycle.DoneFunc) {
	client := h.clients[it.AppID]
	if client == nil || client.conn == nil {
		done(it.UID, lifecycle.ErrNoProcess,
			fmt.Sprintf("app %s has no registered connection", it.AppID))
		return
	}
	if err := client.conn.Send("relaunch", map[string]interface{}{
		"appId":      it.AppID,
		"parameters": map[string]interface{}(it.Params),
		"reason":     it.LaunchReason,
	}); err != nil {
		done(it.UID, lifecycle.ErrGeneral, err.Error())
		return
	}
	h.sink.RequestStatus(it.AppID, types.LifeStatusLaunching)
	done(it.UID, lifecycle.ErrNone, "")
}

// beginForcedClose kills an unregistered instance so a queued launch can
// proceed once its exit is observed.
func (h *NativeHandler) beginForcedClose(appID string, client *Client) {
	h.appInfo.SetRuntimeStatus(appID, types.RuntimeStatusClosing)
	h.sink.RequestStatus(appID, types.LifeStatusClosing)
	if err := h.sup.ForceKill(appID, client.PID); err != nil {
		h.log.Error("forced close failed", zap.String("appId", appID), zap.Error(err))
	}
}

// Register completes the registration handshake. It succeeds only for apps
// whose runtime status is running or registered; otherwise it fails with a
// descriptive error and changes nothing.
func (h *NativeHandler) Register(appID string, conn lifecycle.AppConnection, done func(errCode int, errText string)) {
	rs := h.appInfo.RuntimeStatus(appID)
	if rs != types.RuntimeStatusRunning && rs != types.RuntimeStatusRegistered {
		done(lifecycle.ErrRegistrationDenied,
			fmt.Sprintf("cannot register app %s in runtime status %s", appID, rs))
		return
	}
	client := h.clients[appID]
	if client == nil {
		done(lifecycle.ErrNoProcess,
			fmt.Sprintf("app %s has no supervision record", appID))
		return
	}

	client.Registered = true
	client.RegistrationExpired = false
	client.conn = conn
	client.regTimer.Cancel()
	h.appInfo.SetRuntimeStatus(appID, types.RuntimeStatusRegistered)
	h.log.Info("app registered",
		zap.String("appId", appID),
		zap.Int("pid", client.PID),
		zap.Int("interfaceVersion", client.InterfaceVersion),
	)

	// Registration releases every queued launch for this app.
	queued := h.pending[appID]
	delete(h.pending, appID)
	for _, p := range queued {
		h.relaunchInPlace(p.it, p.done)
	}

	done(lifecycle.ErrNone, "")
}

// Close tears the app down. A close while already closing is idempotent;
// an unregistered client is force-killed immediately; a registered client
// gets a graceful close notification backed by a kill timer.
func (h *NativeHandler) Close(ci *lifecycle.CloseItem, desc *types.AppDescriptor, done lifecycle.DoneFunc) {
	if h.appInfo.RuntimeStatus(ci.AppID) == types.RuntimeStatusClosing {
		done(ci.UID, lifecycle.ErrNone, "")
		return
	}

	client := h.clients[ci.AppID]
	if client == nil {
		done(ci.UID, lifecycle.ErrNoProcess,
			fmt.Sprintf("app %s has no supervision record", ci.AppID))
		return
	}

	if !client.Registered {
		h.failPending(ci.AppID, "app closed before registration")
		h.beginForcedClose(ci.AppID, client)
		done(ci.UID, lifecycle.ErrNone, "")
		return
	}

	if err := client.conn.Send("close", map[string]interface{}{
		"appId":  ci.AppID,
		"reason": ci.Reason,
	}); err != nil {
		h.log.Warn("graceful close notification failed, forcing",
			zap.String("appId", ci.AppID), zap.Error(err))
		h.beginForcedClose(ci.AppID, client)
		done(ci.UID, lifecycle.ErrNone, "")
		return
	}

	timeout := h.opts.KillTimeout
	if ci.IsMemoryReclaim {
		timeout = h.opts.MemoryReclaimKillTimeout
	}
	h.sup.ArmKillTimer(ci.AppID, client.PID, timeout)
	h.appInfo.SetRuntimeStatus(ci.AppID, types.RuntimeStatusClosing)
	h.sink.RequestStatus(ci.AppID, types.LifeStatusClosing)
	done(ci.UID, lifecycle.ErrNone, "")
}

// Pause sends a pause notification to a registered app; an unregistered
// app is treated as a forced close.
func (h *NativeHandler) Pause(appID string, params types.LaunchParams, done func(errCode int, errText string)) {
	client := h.clients[appID]
	if client == nil {
		done(lifecycle.ErrNoProcess,
			fmt.Sprintf("app %s has no supervision record", appID))
		return
	}

	if !client.Registered {
		h.failPending(appID, "app closed before registration")
		h.beginForcedClose(appID, client)
		done(lifecycle.ErrNone, "")
		return
	}

	if err := client.conn.Send("pause", map[string]interface{}{
		"appId":      appID,
		"parameters": map[string]interface{}(params),
	}); err != nil {
		done(lifecycle.ErrGeneral, err.Error())
		return
	}
	h.sink.RequestStatus(appID, types.LifeStatusPausing)
	done(lifecycle.ErrNone, "")
}

// ChangeAppID atomically re-keys a running client's identity: the
// supervision record is removed and reinserted under the new key within one
// loop step, never mutated in place for other holders.
func (h *NativeHandler) ChangeAppID(currentID, targetID string, done func(errCode int, errText string)) {
	client := h.clients[currentID]
	if client == nil {
		done(lifecycle.ErrNoProcess,
			fmt.Sprintf("app %s has no native client", currentID))
		return
	}
	if _, exists := h.clients[targetID]; exists {
		done(lifecycle.ErrTargetRunning,
			fmt.Sprintf("app %s is already running", targetID))
		return
	}
	if !h.appInfo.RebindRunningRecord(currentID, targetID) {
		done(lifecycle.ErrTargetRunning,
			fmt.Sprintf("running record for %s could not be rebound", currentID))
		return
	}

	delete(h.clients, currentID)
	client.AppID = targetID
	h.clients[targetID] = client

	// The process lives on under the new id; any pending forced
	// termination for the old id no longer applies.
	h.sup.CancelKillTimer(currentID)
	h.sup.Rekey(currentID, targetID)
	h.sink.NotifyRunningList()
	h.log.Info("running app id changed",
		zap.String("from", currentID),
		zap.String("to", targetID),
		zap.Int("pid", client.PID),
	)
	done(lifecycle.ErrNone, "")
}

// onProcessExit runs on the loop when the OS process goes away.
func (h *NativeHandler) onProcessExit(appID string, pid int) {
	h.sup.CancelKillTimer(appID)

	client := h.clients[appID]
	if client == nil {
		h.log.Warn("exit with no supervision record",
			zap.String("appId", appID), zap.Int("pid", pid))
	} else {
		client.regTimer.Cancel()
		delete(h.clients, appID)
	}

	h.appInfo.RemoveRunningRecord(appID)
	h.appInfo.SetRuntimeStatus(appID, types.RuntimeStatusStop)
	h.sink.NotifyRunningList()
	h.sink.RequestStatus(appID, types.LifeStatusStop)

	// Exit releases at most one queued launch; registration-time release
	// flushes them all.
	if queued := h.pending[appID]; len(queued) > 0 {
		p := queued[0]
		rest := queued[1:]
		if len(rest) == 0 {
			delete(h.pending, appID)
		} else {
			h.pending[appID] = rest
		}
		h.log.Info("releasing pending launch after exit",
			zap.String("appId", appID), zap.String("uid", p.it.UID))
		h.Launch(p.it, p.desc, p.done)
	}
}

// failPending rejects every queued launch for appID.
func (h *NativeHandler) failPending(appID, reason string) {
	queued := h.pending[appID]
	delete(h.pending, appID)
	for _, p := range queued {
		p.done(p.it.UID, lifecycle.ErrCanceled, reason)
	}
}
