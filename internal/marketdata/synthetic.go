package marketdata

import (
	"context"
	"math"
	"math/rand"
	"time"

	"option-pricer/internal/errors"
	"option-pricer/internal/models"
	"option-pricer/pkg/utils"
)

// SyntheticConfig controls the generated price series.
type SyntheticConfig struct {
	StartPrice float64 // first open
	Drift      float64 // annualized
	Vol        float64 // annualized
	Seed       int64
	BaseVolume int64
	End        time.Time // date of the last candle; zero means today
}

// DefaultSyntheticConfig returns the demo series parameters.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		StartPrice: 100,
		Drift:      0.05,
		Vol:        0.2,
		Seed:       42,
		BaseVolume: 1000000,
	}
}

// SyntheticProvider generates daily candles along a seeded geometric
// Brownian motion path. The same config always yields the same series.
type SyntheticProvider struct {
	cfg SyntheticConfig
}

// NewSyntheticProvider creates a generator, filling zero config fields
// with defaults.
func NewSyntheticProvider(cfg SyntheticConfig) *SyntheticProvider {
	def := DefaultSyntheticConfig()
	if cfg.StartPrice <= 0 {
		cfg.StartPrice = def.StartPrice
	}
	if cfg.Vol <= 0 {
		cfg.Vol = def.Vol
	}
	if cfg.Seed == 0 {
		cfg.Seed = def.Seed
	}
	if cfg.BaseVolume <= 0 {
		cfg.BaseVolume = def.BaseVolume
	}
	return &SyntheticProvider{cfg: cfg}
}

func (p *SyntheticProvider) Name() string {
	return string(SourceSynthetic)
}

func (p *SyntheticProvider) Candles(ctx context.Context, symbol string, limit int) ([]models.Candle, error) {
	if limit <= 0 {
		return nil, errors.NewParameterError("limit", limit, "must be positive")
	}

	end := p.cfg.End
	if end.IsZero() {
		end = time.Now().UTC()
	}
	end = end.Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -(limit - 1))

	rng := rand.New(rand.NewSource(p.cfg.Seed))
	dt := 1.0 / utils.TradingDaysPerYear
	sqrtDt := math.Sqrt(dt)
	step := (p.cfg.Drift - 0.5*p.cfg.Vol*p.cfg.Vol) * dt

	candles := make([]models.Candle, limit)
	price := p.cfg.StartPrice
	for i := 0; i < limit; i++ {
		open := price
		price = price * math.Exp(step+p.cfg.Vol*sqrtDt*rng.NormFloat64())

		// Wicks extend beyond the body by a fraction of a daily move.
		hi := math.Max(open, price) * (1 + 0.3*p.cfg.Vol*sqrtDt*math.Abs(rng.NormFloat64()))
		lo := math.Min(open, price) * (1 - 0.3*p.cfg.Vol*sqrtDt*math.Abs(rng.NormFloat64()))

		candles[i] = models.Candle{
			Timestamp: start.AddDate(0, 0, i),
			Open:      open,
			High:      hi,
			Low:       lo,
			Close:     price,
			Volume:    p.cfg.BaseVolume + rng.Int63n(p.cfg.BaseVolume),
		}
	}

	return candles, nil
}
