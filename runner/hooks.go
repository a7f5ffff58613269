package runner

import (
	"time"

	"github.com/gruntwork-io/actiontree/action"
	"github.com/gruntwork-io/actiontree/pkg/log"
)

// Hooks observes the transitions of the actions of a run.
// Methods are called synchronously by the scheduler and must not block.
type Hooks interface {
	ActionPending(t time.Time, a *action.Action)
	ActionReady(t time.Time, a *action.Action)
	ActionStarted(t time.Time, a *action.Action)
	ActionPrinted(t time.Time, a *action.Action, output []byte)
	ActionSuccessful(t time.Time, a *action.Action)
	ActionFailed(t time.Time, a *action.Action)
	ActionCanceled(t time.Time, a *action.Action)
}

// NopHooks ignores every transition. Embed it to observe only some of them.
type NopHooks struct{}

func (NopHooks) ActionPending(time.Time, *action.Action)         {}
func (NopHooks) ActionReady(time.Time, *action.Action)           {}
func (NopHooks) ActionStarted(time.Time, *action.Action)         {}
func (NopHooks) ActionPrinted(time.Time, *action.Action, []byte) {}
func (NopHooks) ActionSuccessful(time.Time, *action.Action)      {}
func (NopHooks) ActionFailed(time.Time, *action.Action)          {}
func (NopHooks) ActionCanceled(time.Time, *action.Action)        {}

// LogHooks returns hooks logging every transition to l.
func LogHooks(l log.Logger) Hooks {
	return &logHooks{logger: l}
}

type logHooks struct {
	logger log.Logger
}

func (hooks *logHooks) entry(t time.Time, a *action.Action) log.Logger {
	return hooks.logger.WithTime(t).WithField(log.FieldKeyAction, a.Label())
}

func (hooks *logHooks) ActionPending(t time.Time, a *action.Action) {
	hooks.entry(t, a).Trace("Action pending")
}

func (hooks *logHooks) ActionReady(t time.Time, a *action.Action) {
	hooks.entry(t, a).Debug("Action ready")
}

func (hooks *logHooks) ActionStarted(t time.Time, a *action.Action) {
	hooks.entry(t, a).Info("Action started")
}

func (hooks *logHooks) ActionPrinted(t time.Time, a *action.Action, output []byte) {
	hooks.entry(t, a).Tracef("Action printed %d bytes", len(output))
}

func (hooks *logHooks) ActionSuccessful(t time.Time, a *action.Action) {
	hooks.entry(t, a).Info("Action successful")
}

func (hooks *logHooks) ActionFailed(t time.Time, a *action.Action) {
	hooks.entry(t, a).Error("Action failed")
}

func (hooks *logHooks) ActionCanceled(t time.Time, a *action.Action) {
	hooks.entry(t, a).Warn("Action canceled")
}
