package lifecycle

import (
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
)

// Action tells the orchestrator whether a requested transition proceeds
type Action int

const (
	ActionProceed Action = iota
	ActionIgnore
)

// Severity classifies the log line emitted for a routing decision
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityError
)

// Decision is the routing result for one (current, requested) pair
type Decision struct {
	Next     types.LifeStatus
	Action   Action
	Severity Severity
	Reason   string
}

func proceed(next types.LifeStatus) Decision {
	return Decision{Next: next, Action: ActionProceed, Severity: SeverityInfo}
}

func ignore(sev Severity, reason string) Decision {
	return Decision{Action: ActionIgnore, Severity: sev, Reason: reason}
}

// Route maps (current, requested) to the next life status and an action.
// It is a pure function and total over the product of both enums: every
// pair yields a decision, with structurally invalid pairs ignored.
func Route(current, requested types.LifeStatus) Decision {
	if !requested.Valid() || requested == types.LifeStatusInvalid {
		return ignore(SeverityError, "requested status is invalid")
	}
	if !current.Valid() {
		current = types.LifeStatusStop
	}

	switch requested {
	case types.LifeStatusStop:
		if current == types.LifeStatusStop {
			return ignore(SeverityInfo, "already stopped")
		}
		return proceed(types.LifeStatusStop)

	case types.LifeStatusPreloading:
		if current == types.LifeStatusStop {
			return proceed(types.LifeStatusPreloading)
		}
		return ignore(SeverityWarn, "preload requires a stopped app")

	case types.LifeStatusLaunching:
		switch current {
		case types.LifeStatusStop, types.LifeStatusInvalid:
			return proceed(types.LifeStatusLaunching)
		case types.LifeStatusPreloading:
			// Promoting a preloaded app to a visible launch.
			return proceed(types.LifeStatusLaunching)
		case types.LifeStatusForeground, types.LifeStatusBackground, types.LifeStatusPausing:
			return proceed(types.LifeStatusRelaunching)
		case types.LifeStatusClosing:
			d := proceed(types.LifeStatusRelaunching)
			d.Severity = SeverityWarn
			return d
		default: // launching, relaunching
			return ignore(SeverityWarn, "launch already in progress")
		}

	case types.LifeStatusRelaunching:
		switch current {
		case types.LifeStatusForeground, types.LifeStatusBackground,
			types.LifeStatusPausing, types.LifeStatusClosing:
			return proceed(types.LifeStatusRelaunching)
		case types.LifeStatusStop, types.LifeStatusPreloading:
			d := proceed(types.LifeStatusLaunching)
			d.Severity = SeverityWarn
			return d
		default: // launching, relaunching
			return ignore(SeverityWarn, "launch already in progress")
		}

	case types.LifeStatusForeground:
		switch current {
		case types.LifeStatusLaunching, types.LifeStatusRelaunching,
			types.LifeStatusBackground, types.LifeStatusPreloading,
			types.LifeStatusPausing:
			return proceed(types.LifeStatusForeground)
		case types.LifeStatusForeground:
			return ignore(SeverityInfo, "already foreground")
		default: // stop, closing
			return ignore(SeverityError, "cannot foreground an app that is not alive")
		}

	case types.LifeStatusBackground:
		switch current {
		case types.LifeStatusForeground, types.LifeStatusPausing:
			return proceed(types.LifeStatusBackground)
		case types.LifeStatusBackground:
			return ignore(SeverityInfo, "already background")
		default:
			return ignore(SeverityWarn, "background requires a foreground app")
		}

	case types.LifeStatusPausing:
		switch current {
		case types.LifeStatusForeground, types.LifeStatusBackground,
			types.LifeStatusLaunching, types.LifeStatusRelaunching:
			return proceed(types.LifeStatusPausing)
		case types.LifeStatusPausing:
			return ignore(SeverityInfo, "already pausing")
		default: // stop, closing, preloading
			return ignore(SeverityWarn, "pause requires a running app")
		}

	case types.LifeStatusClosing:
		switch current {
		case types.LifeStatusStop:
			return ignore(SeverityWarn, "app is not running")
		case types.LifeStatusClosing:
			return ignore(SeverityInfo, "close already in progress")
		default:
			return proceed(types.LifeStatusClosing)
		}
	}

	return ignore(SeverityError, "unroutable status pair")
}

// EventFor derives the lifecycle event published for an applied status.
func EventFor(status types.LifeStatus, splash bool) types.LifeEvent {
	switch status {
	case types.LifeStatusPreloading:
		return types.EventPreload
	case types.LifeStatusLaunching, types.LifeStatusRelaunching:
		if splash {
			return types.EventSplash
		}
		return types.EventLaunch
	case types.LifeStatusForeground:
		return types.EventForeground
	case types.LifeStatusBackground:
		return types.EventBackground
	case types.LifeStatusPausing:
		return types.EventPause
	case types.LifeStatusClosing:
		return types.EventClose
	}
	return types.EventStop
}
