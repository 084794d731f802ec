package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/appinfo"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/events"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/loop"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
)

// Options tunes orchestrator behavior
type Options struct {
	// LoadingAppTimeout expires stale loading-app entries.
	LoadingAppTimeout time.Duration
	// TrustedCallerPrefix marks internal callers allowed to close
	// keep-alive apps.
	TrustedCallerPrefix string
	// PrivilegedCloseReasons bypass the keep-alive downgrade.
	PrivilegedCloseReasons []string
}

// DefaultOptions returns production defaults.
func DefaultOptions() Options {
	return Options{
		LoadingAppTimeout:      90 * time.Second,
		TrustedCallerPrefix:    "com.platform.",
		PrivilegedCloseReasons: []string{"memoryReclaim", "systemShutdown"},
	}
}

// Deps are the orchestrator's constructor-injected collaborators
type Deps struct {
	Log     *logging.Logger
	Loop    *loop.Loop
	AppInfo *appinfo.Store
	Catalog Catalog
	Bus     *events.Bus
	Metrics *monitoring.Metrics // optional
}

// loadingEntry tracks one app that started a launch but has not reached a
// terminal running state.
type loadingEntry struct {
	appID   string
	kind    types.RuntimeKind
	started time.Time
	expiry  *loop.Timer
}

// Orchestrator coordinates every in-flight lifecycle request.
//
// All fields below the dependency block are confined to the event loop.
type Orchestrator struct {
	log     *logging.Logger
	lp      *loop.Loop
	appInfo *appinfo.Store
	catalog Catalog
	bus     *events.Bus
	metrics *monitoring.Metrics
	opts    Options

	handlers      map[types.RuntimeKind]RuntimeHandler
	registrar     NativeRegistrar
	prelauncher   PrelaunchChecker
	memChecker    MemoryChecker
	lastAppLaunch Launcher
	loadingPolicy LoadingPolicy

	ready   bool
	items   []*LaunchingItem
	readyQ  []*LaunchingItem
	scanQ   []*LaunchingItem
	autoQ   []*LaunchingItem
	loading map[string]*loadingEntry
	bridged map[string]*LaunchingItem
	// lastLaunching holds uids of foreground launches eligible for the
	// last-app fallback computation.
	lastLaunching map[string]bool

	foregroundApp string
}

// NewOrchestrator builds an orchestrator. Runtime handlers and pluggable
// collaborators are attached afterwards, before Init.
func NewOrchestrator(deps Deps, opts Options) *Orchestrator {
	if opts.LoadingAppTimeout <= 0 {
		opts.LoadingAppTimeout = DefaultOptions().LoadingAppTimeout
	}
	if opts.TrustedCallerPrefix == "" {
		opts.TrustedCallerPrefix = DefaultOptions().TrustedCallerPrefix
	}
	if opts.PrivilegedCloseReasons == nil {
		opts.PrivilegedCloseReasons = DefaultOptions().PrivilegedCloseReasons
	}

	o := &Orchestrator{
		log:           deps.Log.Named("lifecycle"),
		lp:            deps.Loop,
		appInfo:       deps.AppInfo,
		catalog:       deps.Catalog,
		bus:           deps.Bus,
		metrics:       deps.Metrics,
		opts:          opts,
		handlers:      make(map[types.RuntimeKind]RuntimeHandler),
		loading:       make(map[string]*loadingEntry),
		bridged:       make(map[string]*LaunchingItem),
		lastLaunching: make(map[string]bool),
	}

	deps.Catalog.OnScanFinished(func() {
		o.lp.Post(o.releaseScanGate)
	})
	return o
}

// RegisterHandler attaches the handler for one runtime kind.
func (o *Orchestrator) RegisterHandler(h RuntimeHandler) {
	o.handlers[h.Kind()] = h
}

// WithNativeRegistrar attaches the native registration surface.
func (o *Orchestrator) WithNativeRegistrar(r NativeRegistrar) *Orchestrator {
	o.registrar = r
	return o
}

// WithPrelaunchChecker attaches the pre-launch policy checker.
func (o *Orchestrator) WithPrelaunchChecker(c PrelaunchChecker) *Orchestrator {
	o.prelauncher = c
	return o
}

// WithMemoryChecker attaches the memory admission checker.
func (o *Orchestrator) WithMemoryChecker(c MemoryChecker) *Orchestrator {
	o.memChecker = c
	return o
}

// WithLastAppLauncher attaches the last-app fallback handler.
func (o *Orchestrator) WithLastAppLauncher(l Launcher) *Orchestrator {
	o.lastAppLaunch = l
	return o
}

// WithLoadingPolicy attaches the fullscreen-loading heuristic.
func (o *Orchestrator) WithLoadingPolicy(p LoadingPolicy) *Orchestrator {
	o.loadingPolicy = p
	return o
}

// Init marks the orchestrator ready and releases the ready-gate queue.
func (o *Orchestrator) Init() {
	o.lp.Post(func() {
		if o.ready {
			return
		}
		o.ready = true
		queued := o.readyQ
		o.readyQ = nil
		o.gaugeQueue("ready", 0)
		for _, it := range queued {
			o.processLaunch(it)
		}
	})
}

// Shutdown cancels all in-flight work. Every active item still gets its
// terminal reply.
func (o *Orchestrator) Shutdown() {
	o.lp.Call(func() {
		if o.memChecker != nil {
			o.memChecker.CancelAll()
		}
		active := make([]*LaunchingItem, len(o.items))
		copy(active, o.items)
		for _, it := range active {
			it.SetError(ErrCanceled, "application manager is shutting down")
			o.finishLaunching(it)
		}
	})
}

// Launch admits a launch request and drives it through the pipeline.
func (o *Orchestrator) Launch(task *LifecycleTask) {
	o.lp.Post(func() {
		if task.AppID == "" {
			task.Respond(errReply("", ErrInvalidAppID, "invalid app id"))
			return
		}

		// Duplicate in-flight launch of the same app is a first-class
		// rejection, not a second item.
		if dup := o.findItemByApp(task.AppID); dup != nil && !dup.HasError() {
			task.Respond(errReply(task.AppID, ErrAlreadyLaunching,
				fmt.Sprintf("app %s is already launching", task.AppID)))
			return
		}

		it := NewLaunchingItem(task)
		o.items = append(o.items, it)
		if o.metrics != nil {
			o.metrics.ActiveLaunches.Inc()
		}
		o.log.Info("launch admitted",
			zap.String("uid", it.UID),
			zap.String("appId", it.AppID),
			zap.String("caller", it.CallerID),
			zap.Bool("automatic", it.AutomaticLaunch),
		)

		if !o.ready {
			o.readyQ = append(o.readyQ, it)
			o.gaugeQueue("ready", len(o.readyQ))
			return
		}
		o.processLaunch(it)
	})
}

// processLaunch applies the pre-pipeline gates and enters the pipeline.
// Runs on the loop.
func (o *Orchestrator) processLaunch(it *LaunchingItem) {
	if o.catalog.IsScanning() {
		o.scanQ = append(o.scanQ, it)
		o.gaugeQueue("scan", len(o.scanQ))
		return
	}

	desc, ok := o.catalog.GetAppByID(it.AppID)
	if !ok {
		it.SetError(ErrAppNotFound, fmt.Sprintf("app %s is not installed", it.AppID))
		o.finishLaunching(it)
		return
	}

	if it.AutomaticLaunch {
		if o.appInfo.IsRunning(it.AppID) {
			// Held until the running instance is torn down.
			o.autoQ = append(o.autoQ, it)
			o.gaugeQueue("automatic", len(o.autoQ))
			return
		}
		if o.loadingPolicy != nil && o.loadingPolicy.IsFullscreenLoading(it.UID) {
			it.SetError(ErrCanceled, "another fullscreen app is loading")
			o.finishLaunching(it)
			return
		}
	}

	if !it.Preload() && desc.Fullscreen() {
		o.lastLaunching[it.UID] = true
	}

	if o.loadingPolicy != nil && o.lastAppLaunch != nil && o.loadingPolicy.IsRelaunchCandidate(it) {
		// Same-process relaunch: completes without spawning.
		o.finishLaunching(it)
		return
	}

	o.runWithPrelauncher(it)
}

// releaseScanGate drains the scan-gate queue after a catalog rescan.
// Runs on the loop.
func (o *Orchestrator) releaseScanGate() {
	queued := o.scanQ
	o.scanQ = nil
	o.gaugeQueue("scan", 0)
	for _, it := range queued {
		o.processLaunch(it)
	}
}

// Pause requests a pause for a running app.
func (o *Orchestrator) Pause(task *LifecycleTask) {
	o.lp.Post(func() {
		desc, ok := o.resolveTarget(task)
		if !ok {
			return
		}
		o.doPause(task, desc)
	})
}

func (o *Orchestrator) doPause(task *LifecycleTask, desc *types.AppDescriptor) {
	if !o.appInfo.IsRunning(task.AppID) {
		task.Respond(errReply(task.AppID, ErrNotRunning,
			fmt.Sprintf("app %s is not running", task.AppID)))
		return
	}
	handler, ok := o.handlers[desc.Kind]
	if !ok {
		task.Respond(errReply(task.AppID, ErrNoHandler,
			fmt.Sprintf("no handler for runtime kind %s", desc.Kind)))
		return
	}
	appID := task.AppID
	handler.Pause(appID, task.Params, func(code int, text string) {
		if code != ErrNone {
			task.Respond(errReply(appID, code, text))
			return
		}
		task.Respond(Reply{OK: true, AppID: appID})
	})
}

// Close requests a close for a running app, downgrading to pause for
// policy-protected apps unless the caller or reason is privileged.
func (o *Orchestrator) Close(task *LifecycleTask) {
	o.lp.Post(func() { o.doClose(task) })
}

// CloseByPid resolves the target app by pid and closes it.
func (o *Orchestrator) CloseByPid(task *LifecycleTask) {
	o.lp.Post(func() {
		appID, ok := o.appInfo.AppIDForPID(task.PID)
		if !ok {
			task.Respond(errReply("", ErrNotRunning,
				fmt.Sprintf("no app found for pid %d", task.PID)))
			return
		}
		task.AppID = appID
		o.doClose(task)
	})
}

// CloseAll closes every running app. The caller gets an immediate
// best-effort reply; individual failures are logged only.
func (o *Orchestrator) CloseAll(task *LifecycleTask) {
	o.lp.Post(func() {
		running := o.appInfo.RunningList()
		task.Respond(Reply{OK: true})

		for _, r := range running {
			appID := r.AppID
			sub := NewTask(appID, task.CallerID, nil, func(reply Reply) {
				if !reply.OK {
					o.log.Warn("close-all: app close failed",
						zap.String("appId", appID),
						zap.String("error", reply.ErrorText))
				}
			})
			sub.Reason = task.Reason
			o.doClose(sub)
		}
	})
}

// doClose runs on the loop.
func (o *Orchestrator) doClose(task *LifecycleTask) {
	desc, ok := o.resolveTarget(task)
	if !ok {
		return
	}

	// A close arriving mid-launch cancels the launch item. If the pipeline
	// already reached the launch stage a process may exist, so the close
	// still proceeds against the handler.
	if it := o.findItemByApp(task.AppID); it != nil && it.Stage < StageLaunch {
		it.SetError(ErrCanceled, "closed while launching")
		o.finishLaunching(it)
		if !o.appInfo.IsRunning(task.AppID) {
			task.Respond(Reply{OK: true, AppID: task.AppID})
			return
		}
	}

	if !o.appInfo.IsRunning(task.AppID) {
		task.Respond(errReply(task.AppID, ErrNotRunning,
			fmt.Sprintf("app %s is not running", task.AppID)))
		return
	}

	if desc.KeepAlive && !o.trustedCaller(task.CallerID) && !o.privilegedReason(task.Reason) {
		o.log.Info("keep-alive app close downgraded to pause",
			zap.String("appId", task.AppID),
			zap.String("caller", task.CallerID))
		o.doPause(task, desc)
		return
	}

	handler, ok := o.handlers[desc.Kind]
	if !ok {
		task.Respond(errReply(task.AppID, ErrNoHandler,
			fmt.Sprintf("no handler for runtime kind %s", desc.Kind)))
		return
	}

	pid, _ := o.appInfo.PIDForApp(task.AppID)
	ci := NewCloseItem(task.AppID, pid, task.CallerID, task.Reason)
	appID := task.AppID
	handler.Close(ci, desc, func(uid string, code int, text string) {
		result := "success"
		if code != ErrNone {
			result = "failure"
			task.Respond(errReply(appID, code, text))
		} else {
			task.Respond(Reply{OK: true, AppID: appID, PID: ci.PID})
		}
		if o.metrics != nil {
			o.metrics.ClosesTotal.WithLabelValues(result).Inc()
		}
	})
}

// RegisterApp completes the registration handshake for a native app.
func (o *Orchestrator) RegisterApp(appID string, conn AppConnection, done func(errCode int, errText string)) {
	o.lp.Post(func() {
		if o.registrar == nil {
			done(ErrNoCollaborator, "no native registrar configured")
			return
		}
		o.registrar.Register(appID, conn, done)
	})
}

// ConnectNativeApp is the protocol v2 name for the registration handshake.
func (o *Orchestrator) ConnectNativeApp(appID string, conn AppConnection, done func(errCode int, errText string)) {
	o.RegisterApp(appID, conn, done)
}

// ChangeRunningAppID atomically re-keys a running native client's identity.
func (o *Orchestrator) ChangeRunningAppID(currentID, targetID string, done func(errCode int, errText string)) {
	o.lp.Post(func() {
		if currentID == "" || targetID == "" || currentID == targetID {
			done(ErrInvalidAppID, "invalid app id pair")
			return
		}
		if o.appInfo.IsRunning(targetID) {
			done(ErrTargetRunning, fmt.Sprintf("app %s is already running", targetID))
			return
		}
		if o.registrar == nil {
			done(ErrNoCollaborator, "no native registrar configured")
			return
		}
		o.registrar.ChangeAppID(currentID, targetID, done)
	})
}

// resolveTarget validates the task's app id against the catalog, replying on
// failure. Runs on the loop.
func (o *Orchestrator) resolveTarget(task *LifecycleTask) (*types.AppDescriptor, bool) {
	if task.AppID == "" {
		task.Respond(errReply("", ErrInvalidAppID, "invalid app id"))
		return nil, false
	}
	desc, ok := o.catalog.GetAppByID(task.AppID)
	if !ok {
		task.Respond(errReply(task.AppID, ErrAppNotFound,
			fmt.Sprintf("app %s is not installed", task.AppID)))
		return nil, false
	}
	return desc, true
}

func (o *Orchestrator) trustedCaller(callerID string) bool {
	return callerID != "" && strings.HasPrefix(callerID, o.opts.TrustedCallerPrefix)
}

func (o *Orchestrator) privilegedReason(reason string) bool {
	for _, r := range o.opts.PrivilegedCloseReasons {
		if reason == r {
			return true
		}
	}
	return false
}

// findItemByUID returns the active item with the given uid.
func (o *Orchestrator) findItemByUID(uid string) *LaunchingItem {
	for _, it := range o.items {
		if it.UID == uid {
			return it
		}
	}
	return nil
}

// findItemByApp returns the active item targeting the given app.
func (o *Orchestrator) findItemByApp(appID string) *LaunchingItem {
	for _, it := range o.items {
		if it.AppID == appID {
			return it
		}
	}
	return nil
}

// removeItem drops it from the active list and every gate queue.
func (o *Orchestrator) removeItem(target *LaunchingItem) {
	remove := func(list []*LaunchingItem) []*LaunchingItem {
		for i, it := range list {
			if it.UID == target.UID {
				return append(list[:i], list[i+1:]...)
			}
		}
		return list
	}
	o.items = remove(o.items)
	o.readyQ = remove(o.readyQ)
	o.scanQ = remove(o.scanQ)
	o.autoQ = remove(o.autoQ)
	if target.BridgeToken != "" {
		delete(o.bridged, target.BridgeToken)
	}
	delete(o.lastLaunching, target.UID)
}

// ActiveItems returns a snapshot of in-flight launch items for inspection.
func (o *Orchestrator) ActiveItems() []string {
	var uids []string
	o.lp.Call(func() {
		for _, it := range o.items {
			uids = append(uids, it.UID)
		}
	})
	return uids
}

func (o *Orchestrator) gaugeQueue(name string, size int) {
	if o.metrics != nil {
		o.metrics.PendingQueueSize.WithLabelValues(name).Set(float64(size))
	}
}
