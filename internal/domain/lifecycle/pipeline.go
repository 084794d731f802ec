package lifecycle

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
)

// The stage helpers are thin adapters: each records the stage on the item,
// hands it to the configured collaborator and expects exactly one completion
// callback keyed by uid. A missing collaborator is a configuration error
// surfaced as a launch failure, never a silent skip.

func (o *Orchestrator) runWithPrelauncher(it *LaunchingItem) {
	if o.prelauncher == nil {
		it.SetError(ErrNoCollaborator, "no prelaunch checker configured")
		o.finishLaunching(it)
		return
	}
	it.Stage = StagePrelaunch
	o.prelauncher.AddItem(it)
}

// OnPrelaunchingDone resumes the pipeline after the prelaunch check.
// Callable from any goroutine.
func (o *Orchestrator) OnPrelaunchingDone(uid string, errCode int, errText string) {
	o.lp.Post(func() {
		it := o.findItemByUID(uid)
		if it == nil || it.Stage != StagePrelaunch {
			o.log.Debug("stale prelaunch callback ignored", zap.String("uid", uid))
			return
		}
		if it.BridgeToken != "" {
			// Suspended for a bridged decision; resumed elsewhere.
			return
		}
		if errCode != ErrNone {
			it.SetError(errCode, errText)
			o.finishLaunching(it)
			return
		}
		o.runWithMemoryChecker(it)
	})
}

// SuspendForBridgedRequest parks a prelaunch-stage item until an external
// bridged decision arrives. It returns the token the decision must carry,
// or empty if the item is unknown or past prelaunch.
//
// Runs on the loop. Prelaunch checkers receive AddItem on the loop, so a
// checker suspends by calling this directly instead of completing the item;
// blocking here would wedge every pending lifecycle operation.
func (o *Orchestrator) SuspendForBridgedRequest(uid string) string {
	it := o.findItemByUID(uid)
	if it == nil || it.Stage != StagePrelaunch {
		return ""
	}
	token := uuid.New().String()
	it.BridgeToken = token
	o.bridged[token] = it
	return token
}

// HandleBridgedLaunchRequest resumes a launch suspended for a bridged
// decision, matched by the token embedded in params.
func (o *Orchestrator) HandleBridgedLaunchRequest(params types.LaunchParams) {
	o.lp.Post(func() {
		token := params.String("token")
		it, ok := o.bridged[token]
		if !ok {
			o.log.Warn("bridged launch request with unknown token",
				zap.String("token", token))
			return
		}
		delete(o.bridged, token)
		it.BridgeToken = ""

		proceed := true
		if v, present := params["proceed"]; present {
			proceed, _ = v.(bool)
		}
		if !proceed {
			it.SetError(ErrBridgeRejected, "bridged launch was rejected")
			o.finishLaunching(it)
			return
		}
		o.runWithMemoryChecker(it)
	})
}

func (o *Orchestrator) runWithMemoryChecker(it *LaunchingItem) {
	if o.memChecker == nil {
		it.SetError(ErrNoCollaborator, "no memory checker configured")
		o.finishLaunching(it)
		return
	}
	it.Stage = StageMemoryCheck
	o.memChecker.AddItem(it)
	o.memChecker.Run()
}

// OnMemoryCheckingDone resumes the pipeline after memory admission.
// Callable from any goroutine.
func (o *Orchestrator) OnMemoryCheckingDone(uid string, errCode int, errText string) {
	o.lp.Post(func() {
		it := o.findItemByUID(uid)
		if it == nil || it.Stage != StageMemoryCheck {
			o.log.Debug("stale memory-check callback ignored", zap.String("uid", uid))
			return
		}
		if errCode != ErrNone {
			it.SetError(errCode, errText)
			o.finishLaunching(it)
			return
		}
		o.runWithLauncher(it)
	})
}

func (o *Orchestrator) runWithLauncher(it *LaunchingItem) {
	it.Stage = StageLaunch
	o.launchApp(it)
}

// launchApp delegates the terminal stage to the owning runtime handler.
// Runs on the loop.
func (o *Orchestrator) launchApp(it *LaunchingItem) {
	desc, ok := o.catalog.GetAppByID(it.AppID)
	if !ok {
		// The catalog may have changed across a suspension point.
		it.SetError(ErrAppNotFound, fmt.Sprintf("app %s is no longer installed", it.AppID))
		o.finishLaunching(it)
		return
	}

	handler, ok := o.handlers[desc.Kind]
	if !ok {
		it.SetError(ErrNoHandler, fmt.Sprintf("no handler for runtime kind %s", desc.Kind))
		o.finishLaunching(it)
		return
	}

	if it.Preload() {
		o.appInfo.SetPreloadMode(it.AppID, it.PreloadTag)
	}

	handler.Launch(it, desc, func(uid string, code int, text string) {
		o.onLaunchingDone(uid, code, text)
	})
}

// onLaunchingDone is the terminal pipeline callback. Runs on the loop.
func (o *Orchestrator) onLaunchingDone(uid string, errCode int, errText string) {
	it := o.findItemByUID(uid)
	if it == nil || it.Stage != StageLaunch {
		o.log.Debug("stale launch callback ignored", zap.String("uid", uid))
		return
	}
	if errCode != ErrNone {
		it.SetError(errCode, errText)
	}
	o.finishLaunching(it)
}

// finishLaunching is the single completion path for every launch item:
// it removes the item, sends the one terminal reply, and only then
// considers the last-app fallback. Runs on the loop.
func (o *Orchestrator) finishLaunching(it *LaunchingItem) {
	soleCandidate := len(o.lastLaunching) == 1 && o.lastLaunching[it.UID]

	it.Stage = StageDone
	o.removeItem(it)

	result := "success"
	if it.HasError() {
		result = "failure"
	}
	if o.metrics != nil {
		o.metrics.ActiveLaunches.Dec()
		o.metrics.RecordLaunch(result, time.Since(it.LaunchStartTime))
	}
	o.log.Info("launch finished",
		zap.String("uid", it.UID),
		zap.String("appId", it.AppID),
		zap.String("result", result),
		zap.Int("errorCode", it.ErrorCode),
	)

	it.task.Respond(Reply{
		OK:        !it.HasError(),
		AppID:     it.AppID,
		UID:       it.UID,
		ErrorCode: it.ErrorCode,
		ErrorText: it.ErrorText,
	})

	if it.HasError() {
		o.appInfo.ClearPreloadMode(it.AppID)
	}

	redirectToLastApp := it.HasError() &&
		(it.AutomaticLaunch || it.IsLastInputApp || soleCandidate)
	if !redirectToLastApp || o.lastAppLaunch == nil {
		return
	}
	if o.loadingPolicy != nil && o.loadingPolicy.IsFullscreenLoading("") {
		return
	}
	o.log.Info("redirecting failed launch to last-app fallback",
		zap.String("appId", it.AppID))
	o.lastAppLaunch.Launch()
}
