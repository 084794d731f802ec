package runtime

import (
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
)

// StatusSink receives life-status transition requests and running-list
// change notifications from handlers. The lifecycle orchestrator implements
// it; handlers call it only from the event loop.
type StatusSink interface {
	RequestStatus(appID string, requested types.LifeStatus)
	NotifyRunningList()
}
