package lifecycle

import (
	"sync"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
)

// Reply is the single terminal response for a lifecycle task
type Reply struct {
	OK        bool   `json:"returnValue"`
	AppID     string `json:"appId,omitempty"`
	UID       string `json:"uid,omitempty"`
	PID       int    `json:"processid,omitempty"`
	ErrorCode int    `json:"errorCode,omitempty"`
	ErrorText string `json:"errorText,omitempty"`
}

// LifecycleTask wraps one inbound request plus its reply channel.
// Respond delivers at most one reply no matter how many code paths race to
// produce one.
type LifecycleTask struct {
	AppID          string
	CallerID       string
	Reason         string
	PID            int
	Params         types.LaunchParams
	RequestType    types.RequestType
	PreloadTag     string
	ShowSplash     bool
	ShowSpinner    bool
	KeepAlive      bool
	Automatic      bool
	IsLastInputApp bool
	LaunchReason   string

	reply func(Reply)
	once  sync.Once
}

// NewTask creates a task delivering its terminal reply through fn.
func NewTask(appID, callerID string, params types.LaunchParams, fn func(Reply)) *LifecycleTask {
	return &LifecycleTask{
		AppID:      appID,
		CallerID:   callerID,
		Params:     params,
		ShowSplash: true,
		reply:      fn,
	}
}

// Respond delivers the terminal reply exactly once.
func (t *LifecycleTask) Respond(r Reply) {
	t.once.Do(func() {
		if t.reply != nil {
			t.reply(r)
		}
	})
}

func errReply(appID string, code int, text string) Reply {
	return Reply{OK: false, AppID: appID, ErrorCode: code, ErrorText: text}
}
