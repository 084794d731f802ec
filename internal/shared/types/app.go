package types

// LifeStatus represents the app-level lifecycle status exposed externally
type LifeStatus string

const (
	LifeStatusInvalid     LifeStatus = "invalid"
	LifeStatusStop        LifeStatus = "stop"
	LifeStatusPreloading  LifeStatus = "preloading"
	LifeStatusLaunching   LifeStatus = "launching"
	LifeStatusRelaunching LifeStatus = "relaunching"
	LifeStatusForeground  LifeStatus = "foreground"
	LifeStatusBackground  LifeStatus = "background"
	LifeStatusPausing     LifeStatus = "pausing"
	LifeStatusClosing     LifeStatus = "closing"
)

// LifeStatuses enumerates every defined life status.
var LifeStatuses = []LifeStatus{
	LifeStatusInvalid,
	LifeStatusStop,
	LifeStatusPreloading,
	LifeStatusLaunching,
	LifeStatusRelaunching,
	LifeStatusForeground,
	LifeStatusBackground,
	LifeStatusPausing,
	LifeStatusClosing,
}

// Valid reports whether s is one of the defined life statuses.
func (s LifeStatus) Valid() bool {
	for _, v := range LifeStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// RuntimeStatus represents the process-level status tracked by a runtime handler
type RuntimeStatus string

const (
	RuntimeStatusStop       RuntimeStatus = "stop"
	RuntimeStatusLaunching  RuntimeStatus = "launching"
	RuntimeStatusRunning    RuntimeStatus = "running"
	RuntimeStatusRegistered RuntimeStatus = "registered"
	RuntimeStatusClosing    RuntimeStatus = "closing"
)

// RuntimeKind identifies the runtime that executes an application
type RuntimeKind string

const (
	RuntimeNative RuntimeKind = "native"
	RuntimeWeb    RuntimeKind = "web"
	RuntimeQML    RuntimeKind = "qml"
)

// LifeEvent is a lifecycle event published to subscribers
type LifeEvent string

const (
	EventSplash     LifeEvent = "splash"
	EventPreload    LifeEvent = "preload"
	EventLaunch     LifeEvent = "launch"
	EventForeground LifeEvent = "foreground"
	EventBackground LifeEvent = "background"
	EventPause      LifeEvent = "pause"
	EventClose      LifeEvent = "close"
	EventStop       LifeEvent = "stop"
)

// RequestType distinguishes where a launch request originated
type RequestType string

const (
	RequestInternal        RequestType = "internal"
	RequestExternal        RequestType = "external"
	RequestExternalVirtual RequestType = "external-for-virtual-app"
)

// TrustLevel controls process isolation at spawn time
type TrustLevel string

const (
	TrustDefault TrustLevel = "default"
	TrustTrusted TrustLevel = "trusted"
)

// AppDescriptor holds the installed metadata for one application
type AppDescriptor struct {
	ID               string      `json:"id" yaml:"id"`
	Title            string      `json:"title" yaml:"title"`
	Kind             RuntimeKind `json:"type" yaml:"type"`
	Exec             string      `json:"main,omitempty" yaml:"main,omitempty"`
	Args             []string    `json:"params,omitempty" yaml:"params,omitempty"`
	TrustLevel       TrustLevel  `json:"trustLevel,omitempty" yaml:"trustLevel,omitempty"`
	NoJail           bool        `json:"noJail,omitempty" yaml:"noJail,omitempty"`
	KeepAlive        bool        `json:"keepAlive,omitempty" yaml:"keepAlive,omitempty"`
	InterfaceVersion int         `json:"nativeLifeCycleInterfaceVersion,omitempty" yaml:"nativeLifeCycleInterfaceVersion,omitempty"`
	WindowType       string      `json:"windowType,omitempty" yaml:"windowType,omitempty"`
	Visible          bool        `json:"visible" yaml:"visible"`
}

// Fullscreen reports whether the app presents a fullscreen card window.
func (d *AppDescriptor) Fullscreen() bool {
	return d.WindowType == "" || d.WindowType == "card"
}

// LaunchParams is the opaque structured payload carried by a launch request
type LaunchParams map[string]interface{}

// String returns the string value for key, or empty.
func (p LaunchParams) String(key string) string {
	if p == nil {
		return ""
	}
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

// Bool returns the boolean value for key, or false.
func (p LaunchParams) Bool(key string) bool {
	if p == nil {
		return false
	}
	v, _ := p[key].(bool)
	return v
}

// RunningApp is one entry of the running-apps list
type RunningApp struct {
	AppID string `json:"id"`
	PID   int    `json:"processid"`
}
