package cart

import "fmt"

type Level uint8

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Notice is a user-visible message about a cart operation.
type Notice struct {
	Level   Level
	Title   string
	Message string
}

func (n Notice) String() string {
	return fmt.Sprintf("[%s] %s: %s", n.Level, n.Title, n.Message)
}

// Notifier shows notices to the user.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(n Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// logNotifier writes notices to the package logger
type logNotifier struct{}

func (logNotifier) Notify(n Notice) {
	switch n.Level {
	case LevelError:
		Logger.Errorf("%s: %s", n.Title, n.Message)
	case LevelWarning:
		Logger.Warningf("%s: %s", n.Title, n.Message)
	default:
		Logger.Infof("%s: %s", n.Title, n.Message)
	}
}
