// Package store provides persistence for candle history and the valuation
// journal.
package store

import (
	"context"
	"fmt"
	"time"

	"option-pricer/internal/models"
)

// Store defines the persistence interface.
type Store interface {
	// Candles
	SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error
	Candles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error)
	RecentCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error)
	CandlesFreshness(ctx context.Context, symbol, timeframe string) (time.Time, error)

	// Valuation journal
	SaveValuation(ctx context.Context, v *models.Valuation) error
	Valuations(ctx context.Context, filter ValuationFilter) ([]models.Valuation, error)
	ValuationByID(ctx context.Context, id string) (*models.Valuation, error)
	PruneValuations(ctx context.Context, before time.Time) (int64, error)

	// Greeks attached to journaled valuations
	SaveGreeks(ctx context.Context, valuationID string, g *models.GreeksResult) error
	GreeksFor(ctx context.Context, valuationID string) (*models.GreeksResult, error)

	// Lifecycle
	Close() error
}

// ValuationFilter narrows journal queries. Zero fields are ignored.
type ValuationFilter struct {
	Symbol    string
	Method    models.Method
	Kind      models.OptionKind
	StartDate time.Time
	EndDate   time.Time
	Limit     int
}

// NewValuationID mints a journal ID from the wall clock.
func NewValuationID() string {
	return fmt.Sprintf("VAL-%d", time.Now().UnixNano())
}
