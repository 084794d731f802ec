package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
)

func TestRouteTotality(t *testing.T) {
	// Every pair must yield a decision: proceeding pairs carry a valid next
	// status, ignored pairs carry a reason.
	for _, current := range types.LifeStatuses {
		for _, requested := range types.LifeStatuses {
			d := Route(current, requested)
			if d.Action == ActionProceed {
				assert.True(t, d.Next.Valid(),
					"proceed %s -> %s yielded invalid next", current, requested)
				assert.NotEqual(t, types.LifeStatusInvalid, d.Next)
			} else {
				assert.NotEmpty(t, d.Reason,
					"ignore %s -> %s carries no reason", current, requested)
			}
		}
	}
}

func TestRouteInvalidRequest(t *testing.T) {
	d := Route(types.LifeStatusForeground, types.LifeStatusInvalid)
	assert.Equal(t, ActionIgnore, d.Action)
	assert.Equal(t, SeverityError, d.Severity)

	d = Route(types.LifeStatusForeground, types.LifeStatus("bogus"))
	assert.Equal(t, ActionIgnore, d.Action)
}

func TestRouteUnknownCurrentTreatedAsStop(t *testing.T) {
	d := Route(types.LifeStatus("bogus"), types.LifeStatusLaunching)
	assert.Equal(t, ActionProceed, d.Action)
	assert.Equal(t, types.LifeStatusLaunching, d.Next)
}

func TestRouteLaunchBecomesRelaunchForLiveApp(t *testing.T) {
	for _, current := range []types.LifeStatus{
		types.LifeStatusForeground,
		types.LifeStatusBackground,
		types.LifeStatusPausing,
	} {
		d := Route(current, types.LifeStatusLaunching)
		assert.Equal(t, ActionProceed, d.Action, "from %s", current)
		assert.Equal(t, types.LifeStatusRelaunching, d.Next, "from %s", current)
	}
}

func TestRouteLaunchWhileClosingWarns(t *testing.T) {
	d := Route(types.LifeStatusClosing, types.LifeStatusLaunching)
	assert.Equal(t, ActionProceed, d.Action)
	assert.Equal(t, types.LifeStatusRelaunching, d.Next)
	assert.Equal(t, SeverityWarn, d.Severity)
}

func TestRouteLaunchWhileLaunchingIgnored(t *testing.T) {
	for _, current := range []types.LifeStatus{
		types.LifeStatusLaunching,
		types.LifeStatusRelaunching,
	} {
		d := Route(current, types.LifeStatusLaunching)
		assert.Equal(t, ActionIgnore, d.Action, "from %s", current)
	}
}

func TestRouteIgnoreIsIdempotent(t *testing.T) {
	// An ignored request leaves current unchanged, so repeating it must
	// yield the identical decision.
	for _, current := range types.LifeStatuses {
		for _, requested := range types.LifeStatuses {
			first := Route(current, requested)
			if first.Action != ActionIgnore {
				continue
			}
			assert.Equal(t, first, Route(current, requested))
		}
	}
}

func TestRoutePreloadRequiresStopped(t *testing.T) {
	d := Route(types.LifeStatusStop, types.LifeStatusPreloading)
	assert.Equal(t, ActionProceed, d.Action)

	d = Route(types.LifeStatusForeground, types.LifeStatusPreloading)
	assert.Equal(t, ActionIgnore, d.Action)
}

func TestRouteForegroundFromDeadIgnored(t *testing.T) {
	for _, current := range []types.LifeStatus{
		types.LifeStatusStop,
		types.LifeStatusClosing,
	} {
		d := Route(current, types.LifeStatusForeground)
		assert.Equal(t, ActionIgnore, d.Action, "from %s", current)
		assert.Equal(t, SeverityError, d.Severity, "from %s", current)
	}
}

func TestRouteCloseFromAnyLiveState(t *testing.T) {
	for _, current := range []types.LifeStatus{
		types.LifeStatusPreloading,
		types.LifeStatusLaunching,
		types.LifeStatusRelaunching,
		types.LifeStatusForeground,
		types.LifeStatusBackground,
		types.LifeStatusPausing,
	} {
		d := Route(current, types.LifeStatusClosing)
		assert.Equal(t, ActionProceed, d.Action, "from %s", current)
		assert.Equal(t, types.LifeStatusClosing, d.Next, "from %s", current)
	}
}

func TestEventForSplash(t *testing.T) {
	assert.Equal(t, types.EventSplash, EventFor(types.LifeStatusLaunching, true))
	assert.Equal(t, types.EventLaunch, EventFor(types.LifeStatusLaunching, false))
	assert.Equal(t, types.EventSplash, EventFor(types.LifeStatusRelaunching, true))
	assert.Equal(t, types.EventPreload, EventFor(types.LifeStatusPreloading, true))
	assert.Equal(t, types.EventStop, EventFor(types.LifeStatusStop, false))
}
