package notify

import (
	"fmt"

	"github.com/gen2brain/beeep"
)

// Notifier raises desktop notifications for tracking state changes.
// A disabled notifier is a no-op.
type Notifier struct {
	enabled bool
}

func New(enabled bool) *Notifier {
	return &Notifier{enabled: enabled}
}

func (n *Notifier) TrackingStarted(project, activity string) error {
	if !n.enabled {
		return nil
	}
	return beeep.Notify("Kimai", fmt.Sprintf("Started %s / %s", project, activity), "")
}

func (n *Notifier) TrackingStopped(project string, elapsed string) error {
	if !n.enabled {
		return nil
	}
	return beeep.Notify("Kimai", fmt.Sprintf("Stopped %s after %s", project, elapsed), "")
}

func (n *Notifier) Disconnected(reason string) error {
	if !n.enabled {
		return nil
	}
	return beeep.Alert("Kimai", fmt.Sprintf("Connection lost: %s", reason), "")
}
