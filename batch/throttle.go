package batch

import (
	"context"
	"time"

	"github.com/aluiziolira/go-scrape-apps/config"
)

// Tier is the length class of the pause taken after an item.
type Tier int

const (
	TierShort Tier = iota
	TierMedium
	TierLong
)

func (t Tier) String() string {
	switch t {
	case TierMedium:
		return "medium"
	case TierLong:
		return "long"
	default:
		return "short"
	}
}

// Throttle spaces out items: a short pause after each one, a medium pause
// after every MediumEvery items and a long pause after every LongEvery items.
type Throttle struct {
	Unit        time.Duration
	Short       int
	Medium      int
	Long        int
	MediumEvery int
	LongEvery   int
}

// ThrottleFromConfig reads the item pacing from cfg.
func ThrottleFromConfig(cfg *config.Config) Throttle {
	return Throttle{
		Unit:        cfg.ThrottleUnit,
		Short:       cfg.ShortThrottle,
		Medium:      cfg.MediumThrottle,
		Long:        cfg.LongThrottle,
		MediumEvery: cfg.MediumEvery,
		LongEvery:   cfg.LongEvery,
	}
}

// TierFor returns the tier for the zero-based index i of an item within the
// current run.
func (t Throttle) TierFor(i int) Tier {
	n := i + 1
	switch {
	case t.LongEvery > 0 && n%t.LongEvery == 0:
		return TierLong
	case t.MediumEvery > 0 && n%t.MediumEvery == 0:
		return TierMedium
	default:
		return TierShort
	}
}

// Duration converts tier into a wall-clock pause.
func (t Throttle) Duration(tier Tier) time.Duration {
	switch tier {
	case TierLong:
		return time.Duration(t.Long) * t.Unit
	case TierMedium:
		return time.Duration(t.Medium) * t.Unit
	default:
		return time.Duration(t.Short) * t.Unit
	}
}

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep blocks for d. It returns ctx.Err() if ctx ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
