package lifecycle

import (
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/events"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
)

// RequestStatus routes a requested life-status change through the
// StatusRouter and, when the router proceeds, applies the bookkeeping and
// publishes the notifications. Must be called from the event loop; runtime
// handlers satisfy this because they run on it.
func (o *Orchestrator) RequestStatus(appID string, requested types.LifeStatus) {
	// A launch against an app in preload mode surfaces as preloading.
	if requested == types.LifeStatusLaunching && o.appInfo.PreloadMode(appID) != "" {
		requested = types.LifeStatusPreloading
	}

	current := o.appInfo.LifeStatus(appID)
	d := Route(current, requested)

	if o.metrics != nil {
		o.metrics.RecordTransition(string(current), string(requested), d.Action == ActionIgnore)
	}

	fields := []zap.Field{
		zap.String("appId", appID),
		zap.String("current", string(current)),
		zap.String("requested", string(requested)),
	}
	if d.Action == ActionIgnore {
		fields = append(fields, zap.String("reason", d.Reason))
		switch d.Severity {
		case SeverityError:
			o.log.Error("status request ignored", fields...)
		case SeverityWarn:
			o.log.Warn("status request ignored", fields...)
		default:
			o.log.Debug("status request ignored", fields...)
		}
		return
	}

	next := d.Next
	o.log.Info("life status changed", append(fields, zap.String("next", string(next)))...)

	// Loading-set bookkeeping.
	switch next {
	case types.LifeStatusLaunching, types.LifeStatusRelaunching, types.LifeStatusPreloading:
		o.addLoadingApp(appID)
	case types.LifeStatusPausing, types.LifeStatusForeground,
		types.LifeStatusBackground, types.LifeStatusStop:
		o.removeLoadingApp(appID)
	}

	// Entering stop or foreground clears preload mode.
	if next == types.LifeStatusStop || next == types.LifeStatusForeground {
		o.appInfo.ClearPreloadMode(appID)
	}

	o.appInfo.SetLifeStatus(appID, next)

	splash := false
	if it := o.findItemByApp(appID); it != nil {
		splash = it.ShowSplash && !it.Preload()
	}
	o.bus.Publish(events.Event{
		Type:  events.TypeLifecycleEvent,
		AppID: appID,
		Event: EventFor(next, splash),
	})
	o.bus.Publish(events.Event{
		Type:   events.TypeLifeStatus,
		AppID:  appID,
		Status: next,
	})

	switch next {
	case types.LifeStatusForeground:
		if o.foregroundApp != appID {
			o.foregroundApp = appID
			o.bus.Publish(events.Event{
				Type:  events.TypeForegroundChanged,
				AppID: appID,
			})
		}
		o.cancelAutomaticPending(appID)
	case types.LifeStatusStop:
		if o.foregroundApp == appID {
			o.foregroundApp = ""
		}
		o.releaseAutomaticPending(appID)
	}
}

// NotifyRunningList publishes the current running-apps snapshot. Called by
// runtime handlers after a running record changes.
func (o *Orchestrator) NotifyRunningList() {
	running := o.appInfo.RunningList()
	if o.metrics != nil {
		o.metrics.RunningApps.Set(float64(len(running)))
	}
	o.bus.Publish(events.Event{
		Type:    events.TypeRunningList,
		Running: running,
	})
}

// ForegroundApp returns the current foreground app id.
func (o *Orchestrator) ForegroundApp() string {
	var appID string
	o.lp.Call(func() { appID = o.foregroundApp })
	return appID
}

// LoadingApps returns the ids of apps currently in the loading set.
func (o *Orchestrator) LoadingApps() []string {
	var ids []string
	o.lp.Call(func() {
		for appID := range o.loading {
			ids = append(ids, appID)
		}
	})
	return ids
}

// addLoadingApp runs on the loop.
func (o *Orchestrator) addLoadingApp(appID string) {
	if _, exists := o.loading[appID]; exists {
		return
	}
	entry := &loadingEntry{
		appID:   appID,
		started: time.Now(),
	}
	if desc, ok := o.catalog.GetAppByID(appID); ok {
		entry.kind = desc.Kind
	}
	entry.expiry = o.lp.AfterFunc(o.opts.LoadingAppTimeout, func() {
		if _, exists := o.loading[appID]; !exists {
			return
		}
		o.log.Warn("loading app expired", zap.String("appId", appID))
		delete(o.loading, appID)
	})
	o.loading[appID] = entry
}

// removeLoadingApp runs on the loop.
func (o *Orchestrator) removeLoadingApp(appID string) {
	entry, exists := o.loading[appID]
	if !exists {
		return
	}
	entry.expiry.Cancel()
	delete(o.loading, appID)
}

// releaseAutomaticPending resumes at most the first automatic launch held
// behind the torn-down instance of appID. Runs on the loop.
func (o *Orchestrator) releaseAutomaticPending(appID string) {
	for i, it := range o.autoQ {
		if it.AppID != appID {
			continue
		}
		o.autoQ = append(o.autoQ[:i], o.autoQ[i+1:]...)
		o.gaugeQueue("automatic", len(o.autoQ))
		o.log.Info("releasing automatic pending launch",
			zap.String("uid", it.UID),
			zap.String("appId", it.AppID))
		o.processLaunch(it)
		return
	}
}

// cancelAutomaticPending cancels automatic launches for appID when the
// teardown they were waiting on was itself cancelled. Runs on the loop.
func (o *Orchestrator) cancelAutomaticPending(appID string) {
	var cancelled []*LaunchingItem
	for _, it := range o.autoQ {
		if it.AppID == appID {
			cancelled = append(cancelled, it)
		}
	}
	for _, it := range cancelled {
		it.SetError(ErrCanceled, "teardown of running instance was cancelled")
		o.finishLaunching(it)
	}
	if len(cancelled) > 0 {
		o.gaugeQueue("automatic", len(o.autoQ))
	}
}
