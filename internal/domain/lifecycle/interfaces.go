package lifecycle

import (
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
)

// DoneFunc reports the terminal outcome of a delegated stage, keyed by uid.
// A zero code means success.
type DoneFunc func(uid string, errCode int, errText string)

// RuntimeHandler owns the start/stop/pause mechanics for one runtime kind.
// Handlers run on the orchestrator's event loop and report outcomes through
// the supplied callbacks, never through a synchronous return.
type RuntimeHandler interface {
	Kind() types.RuntimeKind
	Launch(it *LaunchingItem, desc *types.AppDescriptor, done DoneFunc)
	Close(ci *CloseItem, desc *types.AppDescriptor, done DoneFunc)
	Pause(appID string, params types.LaunchParams, done func(errCode int, errText string))
}

// AppConnection is a registered application's channel for asynchronous
// lifecycle notifications (relaunch, close, pause).
type AppConnection interface {
	Send(method string, payload map[string]interface{}) error
}

// NativeRegistrar completes the native registration handshake and supports
// re-keying a running client's identity.
type NativeRegistrar interface {
	Register(appID string, conn AppConnection, done func(errCode int, errText string))
	ChangeAppID(currentID, targetID string, done func(errCode int, errText string))
}

// PrelaunchChecker runs policy checks before a launch may proceed. It must
// eventually call back OnPrelaunchingDone for every added item (or suspend
// the item for a bridged decision).
type PrelaunchChecker interface {
	AddItem(it *LaunchingItem)
}

// MemoryChecker admits launches against available memory. It must eventually
// call back OnMemoryCheckingDone for every added item.
type MemoryChecker interface {
	AddItem(it *LaunchingItem)
	Run()
	CancelAll()
}

// Launcher is the last-app fallback, invoked with no further coordination.
type Launcher interface {
	Launch()
}

// LoadingPolicy is the pluggable fullscreen-loading heuristic. Its exact
// exclusions are product-specific, so it stays outside the orchestrator.
type LoadingPolicy interface {
	// IsFullscreenLoading reports whether a fullscreen app other than the
	// named item is currently loading.
	IsFullscreenLoading(exceptUID string) bool
	// IsRelaunchCandidate reports whether the launch can be absorbed by an
	// already-running fullscreen instance without spawning.
	IsRelaunchCandidate(it *LaunchingItem) bool
}

// Catalog is the descriptor lookup surface the orchestrator needs.
type Catalog interface {
	GetAppByID(id string) (*types.AppDescriptor, bool)
	IsScanning() bool
	OnScanFinished(fn func())
}
