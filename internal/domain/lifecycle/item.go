package lifecycle

import (
	"strings"
	"time"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
)

// Stage is the pipeline position of a launch item. Stages only advance.
type Stage int

const (
	StageNone Stage = iota
	StagePrelaunch
	StageMemoryCheck
	StageLaunch
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageNone:
		return "none"
	case StagePrelaunch:
		return "prelaunch"
	case StageMemoryCheck:
		return "memory-check"
	case StageLaunch:
		return "launch"
	case StageDone:
		return "done"
	}
	return "unknown"
}

// LaunchingItem is one in-flight launch request
type LaunchingItem struct {
	UID             string
	AppID           string // mutable: redirection may retarget it
	RequestedAppID  string // immutable original target
	RequestType     types.RequestType
	Stage           Stage
	SubStage        int
	Params          types.LaunchParams
	CallerID        string
	ShowSplash      bool
	ShowSpinner     bool
	PreloadTag      string
	KeepAlive       bool
	AutomaticLaunch bool
	ErrorCode       int
	ErrorText       string
	LaunchStartTime time.Time
	LaunchReason    string
	IsLastInputApp  bool
	BridgeToken     string

	task *LifecycleTask
}

// NewLaunchingItem builds a fresh pipeline item from a task. The item gets
// a new sortable uid and starts at StageNone.
func NewLaunchingItem(task *LifecycleTask) *LaunchingItem {
	reqType := task.RequestType
	if reqType == "" {
		reqType = types.RequestExternal
	}
	return &LaunchingItem{
		UID:             id.NewLaunchID().String(),
		AppID:           task.AppID,
		RequestedAppID:  task.AppID,
		RequestType:     reqType,
		Stage:           StageNone,
		Params:          task.Params,
		CallerID:        task.CallerID,
		ShowSplash:      task.ShowSplash,
		ShowSpinner:     task.ShowSpinner,
		PreloadTag:      task.PreloadTag,
		KeepAlive:       task.KeepAlive,
		AutomaticLaunch: task.Automatic,
		LaunchStartTime: time.Now(),
		LaunchReason:    task.LaunchReason,
		IsLastInputApp:  task.IsLastInputApp,
		task:            task,
	}
}

// SetError records the first error; later errors do not overwrite it.
func (it *LaunchingItem) SetError(code int, text string) {
	if it.ErrorCode != ErrNone {
		return
	}
	it.ErrorCode = code
	it.ErrorText = text
}

// HasError reports whether the item accumulated an error.
func (it *LaunchingItem) HasError() bool {
	return it.ErrorCode != ErrNone
}

// Preload reports whether this is a hidden preload launch.
func (it *LaunchingItem) Preload() bool {
	return it.PreloadTag != ""
}

// CloseItem is one in-flight close request
type CloseItem struct {
	UID             string
	AppID           string
	PID             int
	CallerID        string
	Reason          string
	IsMemoryReclaim bool
	CloseStartTime  time.Time
}

// NewCloseItem builds a close item. A reason mentioning memory marks the
// close as a memory reclaim, which shortens the kill timeout downstream.
func NewCloseItem(appID string, pid int, callerID, reason string) *CloseItem {
	return &CloseItem{
		UID:             id.NewCloseID().String(),
		AppID:           appID,
		PID:             pid,
		CallerID:        callerID,
		Reason:          reason,
		IsMemoryReclaim: strings.Contains(strings.ToLower(reason), "memory"),
		CloseStartTime:  time.Now(),
	}
}
