package runtime

import (
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
)

// GuardedBridge wraps an EngineBridge with a circuit breaker. A hosting
// engine that stops answering fails launches fast instead of queuing them
// behind a dead engine. Close and pause always pass through: teardown must
// work even when the engine is unhealthy.
type GuardedBridge struct {
	inner   EngineBridge
	breaker *resilience.Breaker
}

// NewGuardedBridge wraps bridge with a breaker named for the engine.
func NewGuardedBridge(name string, log *logging.Logger, bridge EngineBridge) *GuardedBridge {
	blog := log.Named("breaker")
	return &GuardedBridge{
		inner: bridge,
		breaker: resilience.New(name, resilience.Settings{
			MaxRequests: 2,
			Timeout:     15 * time.Second,
			ReadyToTrip: func(c resilience.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to resilience.State) {
				blog.Warn("engine breaker state changed",
					zap.String("engine", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
	}
}

func (g *GuardedBridge) Launch(appID string, params types.LaunchParams) (int, error) {
	var pid int
	err := g.breaker.Do(func() error {
		var err error
		pid, err = g.inner.Launch(appID, params)
		return err
	})
	return pid, err
}

func (g *GuardedBridge) Relaunch(appID string, params types.LaunchParams) error {
	return g.breaker.Do(func() error {
		return g.inner.Relaunch(appID, params)
	})
}

func (g *GuardedBridge) Close(appID string) error {
	return g.inner.Close(appID)
}

func (g *GuardedBridge) Pause(appID string, params types.LaunchParams) error {
	return g.inner.Pause(appID, params)
}

// State exposes the breaker state for health reporting.
func (g *GuardedBridge) State() resilience.State {
	return g.breaker.State()
}
