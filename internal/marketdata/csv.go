package marketdata

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/gocarina/gocsv"

	"option-pricer/internal/errors"
	"option-pricer/internal/models"
)

// csvDate handles the date column of import files. Bare dates and full
// RFC 3339 timestamps are both accepted.
type csvDate struct {
	time.Time
}

var csvDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func (d *csvDate) UnmarshalCSV(field string) error {
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, field); err == nil {
			d.Time = t
			return nil
		}
	}
	return errors.NewParameterError("date", field, "unrecognized date format")
}

func (d csvDate) MarshalCSV() (string, error) {
	return d.Format("2006-01-02"), nil
}

// csvCandle mirrors one row of an OHLCV file.
type csvCandle struct {
	Date   csvDate `csv:"date"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume int64   `csv:"volume"`
}

// CSVProvider reads candles from a single OHLCV file. The symbol argument
// is carried for logging only; the file path decides what is read.
type CSVProvider struct {
	path string
}

// NewCSVProvider creates a provider for one CSV file.
func NewCSVProvider(path string) *CSVProvider {
	return &CSVProvider{path: path}
}

func (p *CSVProvider) Name() string {
	return string(SourceCSV)
}

func (p *CSVProvider) Candles(ctx context.Context, symbol string, limit int) ([]models.Candle, error) {
	candles, err := ReadCandlesCSV(p.path)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

// ReadCandlesCSV loads and validates an OHLCV file, returning candles in
// chronological order regardless of the file's row order.
func ReadCandlesCSV(path string) ([]models.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open candle file: %w", err)
	}
	defer f.Close()

	var rows []csvCandle
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	candles := make([]models.Candle, 0, len(rows))
	for i, row := range rows {
		if row.Close <= 0 {
			return nil, errors.NewParameterError("close", row.Close, fmt.Sprintf("row %d must have a positive close", i+1))
		}
		if row.High < row.Low {
			return nil, errors.NewParameterError("high", row.High, fmt.Sprintf("row %d has high below low", i+1))
		}
		candles = append(candles, models.Candle{
			Timestamp: row.Date.Time,
			Open:      row.Open,
			High:      row.High,
			Low:       row.Low,
			Close:     row.Close,
			Volume:    row.Volume,
		})
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})

	return candles, nil
}

// WriteCandlesCSV writes candles as an OHLCV file with a header row.
func WriteCandlesCSV(path string, candles []models.Candle) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create candle file: %w", err)
	}
	defer f.Close()

	rows := make([]csvCandle, len(candles))
	for i, c := range candles {
		rows[i] = csvCandle{
			Date:   csvDate{c.Timestamp},
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		}
	}

	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
