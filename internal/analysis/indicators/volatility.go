package indicators

import (
	"fmt"
	"math"

	"option-pricer/internal/models"
	"option-pricer/pkg/utils"
)

// HistoricalVolatility calculates rolling annualized close-to-close
// volatility: the sample standard deviation of the last period log returns,
// scaled by the square root of the trading days per year. Values are
// fractions (0.20 is 20% annualized).
type HistoricalVolatility struct {
	period int
}

// NewHistoricalVolatility creates a historical volatility indicator over
// the given number of daily log returns.
func NewHistoricalVolatility(period int) *HistoricalVolatility {
	return &HistoricalVolatility{period: period}
}

func (h *HistoricalVolatility) Name() string {
	return fmt.Sprintf("HV_%d", h.period)
}

func (h *HistoricalVolatility) Period() int {
	// One extra candle feeds the first log return.
	return h.period + 1
}

func (h *HistoricalVolatility) Calculate(candles []models.Candle) ([]float64, error) {
	if h.period < 2 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < h.Period() {
		return nil, ErrInsufficientData
	}

	n := len(candles)
	result := make([]float64, n)
	returns := logReturns(closePrices(candles))
	annualize := math.Sqrt(utils.TradingDaysPerYear)

	// returns[i-1] is the move into candle i; the window ending at candle
	// i holds returns[i-period .. i-1].
	for i := h.period; i < n; i++ {
		window := returns[i-h.period : i]
		result[i] = sampleStdDev(window) * annualize
	}

	return result, nil
}
