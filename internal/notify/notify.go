package notify

import (
	"github.com/rs/zerolog"

	"quiz-lobby-service/internal/domain"
)

// Notice is one user-facing success or failure signal from the engine.
type Notice struct {
	Success bool
	Message string
	Kind    domain.FailureKind // set only when Success is false
}

// Notifier is the sink the engine emits notices through. Presentation is up to
// the implementation (toast, log line, test recorder).
type Notifier interface {
	Notify(n Notice)
}

// Func adapts a plain function to Notifier.
type Func func(n Notice)

func (f Func) Notify(n Notice) { f(n) }

// LogNotifier writes notices to a zerolog logger.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (l LogNotifier) Notify(n Notice) {
	if n.Success {
		l.Logger.Info().Msg(n.Message)
		return
	}
	l.Logger.Warn().Str("kind", string(n.Kind)).Msg(n.Message)
}

// Discard drops every notice.
var Discard Notifier = Func(func(Notice) {})
