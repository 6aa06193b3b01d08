package lifecycle

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// State is the coarse server lifecycle. Handler faults never move it; only
// an explicit termination signal drives it forward.
type State int32

const (
	Running State = iota
	Draining
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Controller coordinates graceful shutdown: notify every session, stop
// accepting work, wait out a grace period, then force-terminate if the
// close has not completed by the hard deadline.
type Controller struct {
	state  atomic.Int32
	grace  time.Duration
	logger zerolog.Logger

	// exit is swappable so tests can observe the forced path.
	exit func(code int)
}

func New(grace time.Duration, logger *zerolog.Logger) *Controller {
	return &Controller{
		grace:  grace,
		logger: logger.With().Str("component", "lifecycle").Logger(),
		exit:   os.Exit,
	}
}

func (c *Controller) State() State {
	return State(c.state.Load())
}

// Shutdown runs the drain sequence: notify is the best-effort shutdown
// broadcast, closeFn closes the listener and live connections within the
// given context. The hard deadline timer runs concurrently and
// force-terminates with exit code 1 if closeFn overruns it. Returns true on
// a graceful stop; false when shutdown was already in progress.
func (c *Controller) Shutdown(notify func(), closeFn func(context.Context) error) bool {
	if !c.state.CompareAndSwap(int32(Running), int32(Draining)) {
		return false
	}
	c.logger.Info().Dur("grace", c.grace).Msg("draining")

	notify()

	deadline := time.AfterFunc(c.grace, func() {
		c.logger.Error().Msg("shutdown deadline exceeded, terminating")
		c.exit(1)
	})

	ctx, cancel := context.WithTimeout(context.Background(), c.grace)
	defer cancel()
	if err := closeFn(ctx); err != nil {
		c.logger.Error().Err(err).Msg("close did not finish cleanly")
	}
	deadline.Stop()

	c.state.Store(int32(Stopped))
	c.logger.Info().Msg("stopped")
	return true
}
