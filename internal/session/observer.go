package session

import (
	"time"

	"github.com/nao1215/onionrotate/internal/model"
)

// Observer receives session progress. Rendering, metrics, and the event
// log are all observers; none of them can influence the session.
type Observer interface {
	// SessionStarted is called once the baseline address is known
	// (possibly unknown).
	SessionStarted(state model.SessionState)

	// Countdown is called once per second while waiting in auto mode,
	// with the time left before the next rotation.
	Countdown(remaining time.Duration, state model.SessionState)

	// RotationCompleted is called after every attempt.
	RotationCompleted(event model.RotationEvent, state model.SessionState)

	// SessionTerminated is called when the session ends for any reason.
	SessionTerminated(state model.SessionState, err error)
}

// Observers fans out to every observer in order.
type Observers []Observer

// SessionStarted implements Observer.
func (o Observers) SessionStarted(state model.SessionState) {
	for _, obs := range o {
		obs.SessionStarted(state)
	}
}

// Countdown implements Observer.
func (o Observers) Countdown(remaining time.Duration, state model.SessionState) {
	for _, obs := range o {
		obs.Countdown(remaining, state)
	}
}

// RotationCompleted implements Observer.
func (o Observers) RotationCompleted(event model.RotationEvent, state model.SessionState) {
	for _, obs := range o {
		obs.RotationCompleted(event, state)
	}
}

// SessionTerminated implements Observer.
func (o Observers) SessionTerminated(state model.SessionState, err error) {
	for _, obs := range o {
		obs.SessionTerminated(state, err)
	}
}

// NopObserver ignores every notification. Embed it to implement only the
// hooks you need.
type NopObserver struct{}

// SessionStarted implements Observer.
func (NopObserver) SessionStarted(model.SessionState) {}

// Countdown implements Observer.
func (NopObserver) Countdown(time.Duration, model.SessionState) {}

// RotationCompleted implements Observer.
func (NopObserver) RotationCompleted(model.RotationEvent, model.SessionState) {}

// SessionTerminated implements Observer.
func (NopObserver) SessionTerminated(model.SessionState, error) {}
