package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/watch/internal/config"
	"github.com/listenupapp/watch/internal/id"
	"github.com/listenupapp/watch/internal/logger"
	"github.com/listenupapp/watch/internal/session"
	"github.com/listenupapp/watch/internal/target"
	"github.com/listenupapp/watch/internal/trigger"
	"github.com/listenupapp/watch/internal/watcher"
)

// ProvideTarget resolves the watched path against the working directory.
func ProvideTarget(i do.Injector) (target.Target, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	t, err := target.Resolve(cfg.Watch.Path, nil)
	if err != nil {
		return target.Target{}, err
	}

	log.Debug("Target resolved", "target", t)
	return t, nil
}

// ProvideTrigger provides the command trigger.
func ProvideTrigger(i do.Injector) (*trigger.Trigger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	return trigger.New(cfg.Command.Line, trigger.Options{
		Shell:  cfg.Command.Shell,
		Direct: cfg.Command.Direct,
	})
}

// ChannelHandle wraps the notification channel with shutdown capability.
type ChannelHandle struct {
	watcher.Channel
}

// Shutdown implements do.Shutdownable.
func (h *ChannelHandle) Shutdown() error {
	return h.Close()
}

// ProvideChannel opens the notification channel on the target.
func ProvideChannel(i do.Injector) (*ChannelHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	t := do.MustInvoke[target.Target](i)

	ch, err := watcher.Open(log.Logger, t, watcher.Options{EveryWrite: cfg.Watch.EveryWrite})
	if err != nil {
		return nil, err
	}

	log.Debug("Notification channel opened", "dir", t.WatchedDirectory, "subtree", t.Subtree(), "every_write", cfg.Watch.EveryWrite)
	return &ChannelHandle{Channel: ch}, nil
}

// ProvideSession wires the watch loop. The trigger is built before the
// channel so a bad command line fails without touching the file system.
func ProvideSession(i do.Injector) (*session.Session, error) {
	log := do.MustInvoke[*logger.Logger](i)
	t := do.MustInvoke[target.Target](i)
	fire := do.MustInvoke[*trigger.Trigger](i)
	handle := do.MustInvoke[*ChannelHandle](i)

	runID, err := id.Generate("run")
	if err != nil {
		return nil, err
	}

	return session.New(t, handle.Channel, fire, log.WithField("run", runID).Logger), nil
}
