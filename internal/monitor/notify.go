package monitor

import (
	"time"

	"go.uber.org/zap"

	"github.com/user/nsmon/internal/util"
)

// Notification announces a status change.
type Notification struct {
	Title     string
	Message   string
	Connected bool
	At        time.Time
}

// Notifier delivers notifications to the user.
type Notifier interface {
	Notify(n Notification)
}

// NopNotifier drops notifications.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(Notification) {}

// LogNotifier writes notifications to the operator log. A new connection
// is logged as a warning.
type LogNotifier struct {
	log *zap.SugaredLogger
}

// NewLogNotifier creates a notifier on the default logger.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: util.Named("notify")}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(note Notification) {
	if note.Connected {
		n.log.Warnw(note.Title, "message", note.Message, "at", note.At.Format("15:04:05"))
		return
	}
	n.log.Infow(note.Title, "message", note.Message, "at", note.At.Format("15:04:05"))
}
