package janitor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ChileCris2011/Walkie-Server/internal/media"
	"github.com/ChileCris2011/Walkie-Server/internal/state"
	"github.com/ChileCris2011/Walkie-Server/internal/types"
)

// Janitor runs the periodic consistency sweeps: empty-channel cleanup (a
// backstop behind the synchronous deletion path), expired-clip removal, and
// the read-only stats log. All tickers stop with the lifecycle context.
type Janitor struct {
	registry  *state.Registry
	directory *state.Directory
	media     *media.Store // nil when uploads are disabled
	logger    zerolog.Logger

	sweepInterval time.Duration
	statsInterval time.Duration
}

func New(
	registry *state.Registry,
	directory *state.Directory,
	mediaStore *media.Store,
	sweepInterval, statsInterval time.Duration,
	logger *zerolog.Logger,
) *Janitor {
	return &Janitor{
		registry:      registry,
		directory:     directory,
		media:         mediaStore,
		logger:        logger.With().Str("component", "janitor").Logger(),
		sweepInterval: sweepInterval,
		statsInterval: statsInterval,
	}
}

// Run blocks until the context is canceled.
func (j *Janitor) Run(ctx context.Context) {
	sweep := time.NewTicker(j.sweepInterval)
	stats := time.NewTicker(j.statsInterval)
	defer sweep.Stop()
	defer stats.Stop()

	j.logger.Debug().
		Dur("sweepInterval", j.sweepInterval).
		Dur("statsInterval", j.statsInterval).
		Msg("janitor started")

	for {
		select {
		case <-ctx.Done():
			j.logger.Debug().Msg("janitor stopped")
			return
		case <-sweep.C:
			j.Sweep()
		case <-stats.C:
			j.LogStats()
		}
	}
}

// Sweep runs the empty-channel and stale-media sweeps once. Redundant runs
// are harmless. Returns the number of channels cleaned.
func (j *Janitor) Sweep() int {
	cleaned := j.directory.SweepEmpty()
	if cleaned > 0 {
		j.logger.Info().Int("cleaned", cleaned).Msg("empty channels removed")
	}
	if j.media != nil {
		j.media.SweepExpired()
	}
	return cleaned
}

// Stats aggregates without mutating anything.
func (j *Janitor) Stats() types.ServerStats {
	return types.ServerStats{
		Connections:   j.registry.Count(),
		Channels:      j.directory.Count(),
		TotalMessages: j.directory.TotalMessages(),
	}
}

func (j *Janitor) LogStats() {
	s := j.Stats()
	j.logger.Info().
		Int("connections", s.Connections).
		Int("channels", s.Channels).
		Int64("totalMessages", s.TotalMessages).
		Msg("server stats")
}
