package marketdata

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"option-pricer/internal/errors"
	"option-pricer/internal/models"
	"option-pricer/pkg/utils"
)

// VolEstimate summarizes realized volatility over a candle window.
type VolEstimate struct {
	Vol     float64 // annualized sample stdev of log returns
	Drift   float64 // annualized arithmetic drift
	Spot    float64 // most recent close
	Samples int     // log returns used
	From    time.Time
	To      time.Time
}

// EstimateVol computes annualized realized volatility and drift from
// close-to-close log returns. Candles may arrive in any order; at least
// three are needed for a sample standard deviation.
func EstimateVol(candles []models.Candle) (*VolEstimate, error) {
	if len(candles) < 3 {
		return nil, errors.ErrInsufficientData
	}

	sorted := make([]models.Candle, len(candles))
	copy(sorted, candles)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	returns := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].Close <= 0 || sorted[i].Close <= 0 {
			return nil, errors.NewParameterError("close", sorted[i].Close, "must be positive to take log returns")
		}
		returns = append(returns, math.Log(sorted[i].Close/sorted[i-1].Close))
	}

	mean, err := stats.Mean(returns)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate drift: %w", err)
	}
	sd, err := stats.StandardDeviationSample(returns)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate volatility: %w", err)
	}

	vol := sd * math.Sqrt(utils.TradingDaysPerYear)

	// The mean log return estimates mu - sigma^2/2 per day; add the
	// variance correction back to report the arithmetic drift.
	drift := mean*utils.TradingDaysPerYear + 0.5*vol*vol

	return &VolEstimate{
		Vol:     vol,
		Drift:   drift,
		Spot:    sorted[len(sorted)-1].Close,
		Samples: len(returns),
		From:    sorted[0].Timestamp,
		To:      sorted[len(sorted)-1].Timestamp,
	}, nil
}
