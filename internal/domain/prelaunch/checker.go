// Package prelaunch provides the default launch admission collaborators:
// a policy checker that vets a launch before resources are committed and a
// memory gate that admits launches against available system memory.
package prelaunch

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
)

// CompleteFunc reports a stage outcome back to the pipeline, keyed by uid.
type CompleteFunc func(uid string, errCode int, errText string)

// Rule is one admission check. A non-zero code rejects the launch.
type Rule func(it *lifecycle.LaunchingItem, desc *types.AppDescriptor) (errCode int, errText string)

// Checker runs the configured rules for each added item and reports the
// first failure, or success once every rule passes.
type Checker struct {
	log      *logging.Logger
	catalog  lifecycle.Catalog
	rules    []Rule
	complete CompleteFunc
}

// NewChecker creates a prelaunch checker. The complete callback is invoked
// exactly once per added item.
func NewChecker(log *logging.Logger, catalog lifecycle.Catalog, complete CompleteFunc, rules ...Rule) *Checker {
	return &Checker{
		log:      log.Named("prelaunch"),
		catalog:  catalog,
		rules:    rules,
		complete: complete,
	}
}

// AddItem implements lifecycle.PrelaunchChecker.
func (c *Checker) AddItem(it *lifecycle.LaunchingItem) {
	desc, ok := c.catalog.GetAppByID(it.AppID)
	if !ok {
		c.complete(it.UID, lifecycle.ErrAppNotFound,
			fmt.Sprintf("app %s is not installed", it.AppID))
		return
	}
	for _, rule := range c.rules {
		if code, text := rule(it, desc); code != lifecycle.ErrNone {
			c.log.Info("launch rejected by prelaunch rule",
				zap.String("appId", it.AppID),
				zap.String("uid", it.UID),
				zap.Int("errorCode", code),
				zap.String("reason", text),
			)
			c.complete(it.UID, code, text)
			return
		}
	}
	c.complete(it.UID, lifecycle.ErrNone, "")
}

// VisibleRule rejects external launches of invisible apps. Invisible apps
// are service-like and may only be started by the platform itself.
func VisibleRule(it *lifecycle.LaunchingItem, desc *types.AppDescriptor) (int, string) {
	if desc.Visible {
		return lifecycle.ErrNone, ""
	}
	if it.RequestType == types.RequestInternal || it.AutomaticLaunch || it.Preload() {
		return lifecycle.ErrNone, ""
	}
	return lifecycle.ErrGeneral,
		fmt.Sprintf("app %s is not visible and cannot be launched externally", desc.ID)
}

// ExecutableRule rejects native apps without an executable before the
// runtime handler wastes a pipeline round trip on them.
func ExecutableRule(it *lifecycle.LaunchingItem, desc *types.AppDescriptor) (int, string) {
	if desc.Kind == types.RuntimeNative && desc.Exec == "" {
		return lifecycle.ErrSpawnFailed,
			fmt.Sprintf("app %s declares no executable", desc.ID)
	}
	return lifecycle.ErrNone, ""
}

// DefaultRules is the standard admission rule set.
func DefaultRules() []Rule {
	return []Rule{VisibleRule, ExecutableRule}
}
