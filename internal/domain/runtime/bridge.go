package runtime

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/appinfo"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
)

// EngineBridge abstracts a hosting engine that runs apps in-process on our
// behalf. Web apps live inside the browser engine, QML apps inside the
// declarative UI engine; neither spawns an OS process per app.
type EngineBridge interface {
	Launch(appID string, params types.LaunchParams) (pid int, err error)
	Relaunch(appID string, params types.LaunchParams) error
	Close(appID string) error
	Pause(appID string, params types.LaunchParams) error
}

// bridgeHandler implements the launch, close and pause operations shared by
// engine-hosted runtimes. The engine reports a representative pid for
// bookkeeping; lifecycle progress still flows through the status sink.
type bridgeHandler struct {
	kind    types.RuntimeKind
	log     *logging.Logger
	appInfo *appinfo.Store
	sink    StatusSink
	bridge  EngineBridge
}

func (h *bridgeHandler) Kind() types.RuntimeKind { return h.kind }

func (h *bridgeHandler) Launch(it *lifecycle.LaunchingItem, desc *types.AppDescriptor, done lifecycle.DoneFunc) {
	if h.appInfo.IsRunning(it.AppID) {
		if err := h.bridge.Relaunch(it.AppID, it.Params); err != nil {
			done(it.UID, lifecycle.ErrGeneral, err.Error())
			return
		}
		h.sink.RequestStatus(it.AppID, types.LifeStatusLaunching)
		done(it.UID, lifecycle.ErrNone, "")
		return
	}

	h.appInfo.SetRuntimeStatus(it.AppID, types.RuntimeStatusLaunching)
	pid, err := h.bridge.Launch(it.AppID, it.Params)
	if err != nil {
		h.appInfo.SetRuntimeStatus(it.AppID, types.RuntimeStatusStop)
		done(it.UID, lifecycle.ErrSpawnFailed, err.Error())
		return
	}

	h.appInfo.SetRuntimeStatus(it.AppID, types.RuntimeStatusRunning)
	h.appInfo.AddRunningRecord(it.AppID, pid)
	h.sink.NotifyRunningList()
	h.sink.RequestStatus(it.AppID, types.LifeStatusLaunching)
	h.log.Debug("engine launch",
		zap.String("appId", it.AppID),
		zap.String("kind", string(h.kind)),
		zap.Int("pid", pid),
	)
	done(it.UID, lifecycle.ErrNone, "")
}

func (h *bridgeHandler) Close(ci *lifecycle.CloseItem, desc *types.AppDescriptor, done lifecycle.DoneFunc) {
	if !h.appInfo.IsRunning(ci.AppID) {
		done(ci.UID, lifecycle.ErrNoProcess,
			fmt.Sprintf("app %s is not running", ci.AppID))
		return
	}
	if err := h.bridge.Close(ci.AppID); err != nil {
		done(ci.UID, lifecycle.ErrGeneral, err.Error())
		return
	}

	h.sink.RequestStatus(ci.AppID, types.LifeStatusClosing)
	h.appInfo.RemoveRunningRecord(ci.AppID)
	h.appInfo.SetRuntimeStatus(ci.AppID, types.RuntimeStatusStop)
	h.sink.NotifyRunningList()
	h.sink.RequestStatus(ci.AppID, types.LifeStatusStop)
	done(ci.UID, lifecycle.ErrNone, "")
}

func (h *bridgeHandler) Pause(appID string, params types.LaunchParams, done func(errCode int, errText string)) {
	if !h.appInfo.IsRunning(appID) {
		done(lifecycle.ErrNoProcess, fmt.Sprintf("app %s is not running", appID))
		return
	}
	if err := h.bridge.Pause(appID, params); err != nil {
		done(lifecycle.ErrGeneral, err.Error())
		return
	}
	h.sink.RequestStatus(appID, types.LifeStatusPausing)
	done(lifecycle.ErrNone, "")
}

// WebHandler runs web apps through the browser engine bridge.
type WebHandler struct {
	bridgeHandler
}

// NewWebHandler creates the web runtime handler.
func NewWebHandler(log *logging.Logger, store *appinfo.Store, sink StatusSink, bridge EngineBridge) *WebHandler {
	return &WebHandler{bridgeHandler{
		kind:    types.RuntimeWeb,
		log:     log.Named("web"),
		appInfo: store,
		sink:    sink,
		bridge:  bridge,
	}}
}

// QMLHandler runs QML apps through the declarative engine bridge.
type QMLHandler struct {
	bridgeHandler
}

// NewQMLHandler creates the QML runtime handler.
func NewQMLHandler(log *logging.Logger, store *appinfo.Store, sink StatusSink, bridge EngineBridge) *QMLHandler {
	return &QMLHandler{bridgeHandler{
		kind:    types.RuntimeQML,
		log:     log.Named("qml"),
		appInfo: store,
		sink:    sink,
		bridge:  bridge,
	}}
}

// NopBridge is an EngineBridge that accepts every operation. It stands in
// when no hosting engine is attached, assigning synthetic pids so the
// running-record bookkeeping still works.
type NopBridge struct {
	nextPID int
}

func (b *NopBridge) Launch(appID string, params types.LaunchParams) (int, error) {
	b.nextPID--
	return b.nextPID, nil
}

func (b *NopBridge) Relaunch(appID string, params types.LaunchParams) error { return nil }
func (b *NopBridge) Close(appID string) error                               { return nil }
func (b *NopBridge) Pause(appID string, params types.LaunchParams) error    { return nil }
