// Package marketdata supplies candle history for volatility estimation.
//
// Candles come from three places: CSV files on disk, the local store, or a
// seeded synthetic generator for demos and tests. All providers return
// chronologically ascending candles.
package marketdata

import (
	"context"

	"option-pricer/internal/errors"
	"option-pricer/internal/models"
	"option-pricer/internal/store"
)

// Source identifies where candle history comes from.
type Source string

const (
	SourceCSV       Source = "csv"
	SourceSynthetic Source = "synthetic"
	SourceStore     Source = "store"
)

// ParseSource validates a source name from config or a CLI flag.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceCSV, SourceSynthetic, SourceStore:
		return Source(s), nil
	default:
		return "", errors.NewParameterError("source", s, "must be csv, synthetic, or store")
	}
}

// Provider supplies the most recent candles for a symbol.
type Provider interface {
	Name() string
	Candles(ctx context.Context, symbol string, limit int) ([]models.Candle, error)
}

// OpenSource resolves a configured source into a provider. The csvPath and
// store arguments are only required by their respective sources.
func OpenSource(src Source, csvPath string, st store.Store, timeframe string) (Provider, error) {
	switch src {
	case SourceCSV:
		if csvPath == "" {
			return nil, errors.NewParameterError("csv_path", csvPath, "required for the csv source")
		}
		return NewCSVProvider(csvPath), nil
	case SourceSynthetic:
		return NewSyntheticProvider(DefaultSyntheticConfig()), nil
	case SourceStore:
		if st == nil {
			return nil, errors.NewParameterError("source", string(src), "no store configured")
		}
		return NewStoreProvider(st, timeframe), nil
	default:
		return nil, errors.NewParameterError("source", string(src), "must be csv, synthetic, or store")
	}
}

// StoreProvider reads previously imported candles from the local store.
type StoreProvider struct {
	store     store.Store
	timeframe string
}

// NewStoreProvider creates a provider backed by the store. An empty
// timeframe defaults to daily candles.
func NewStoreProvider(s store.Store, timeframe string) *StoreProvider {
	if timeframe == "" {
		timeframe = models.TimeframeDay
	}
	return &StoreProvider{store: s, timeframe: timeframe}
}

func (p *StoreProvider) Name() string {
	return string(SourceStore)
}

func (p *StoreProvider) Candles(ctx context.Context, symbol string, limit int) ([]models.Candle, error) {
	return p.store.RecentCandles(ctx, symbol, p.timeframe, limit)
}

// QuoteFromCandles derives a spot snapshot from the last candle of an
// ascending series. Change is measured against the prior close.
func QuoteFromCandles(symbol string, candles []models.Candle) (*models.Quote, error) {
	if len(candles) == 0 {
		return nil, errors.NewStoreError("quote", errors.ErrDataNotFound)
	}

	last := candles[len(candles)-1]
	q := &models.Quote{
		Symbol:    symbol,
		Spot:      last.Close,
		Open:      last.Open,
		High:      last.High,
		Low:       last.Low,
		Close:     last.Close,
		Volume:    last.Volume,
		Timestamp: last.Timestamp,
	}
	if len(candles) > 1 {
		prev := candles[len(candles)-2].Close
		q.Change = last.Close - prev
		if prev != 0 {
			q.ChangePercent = q.Change / prev * 100
		}
	}
	return q, nil
}
