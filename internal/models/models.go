// Package models provides domain models for the option pricing application.
package models

import (
	"time"
)

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Quote represents a spot snapshot derived from the most recent candle.
type Quote struct {
	Symbol        string
	Spot          float64
	Open          float64
	High          float64
	Low           float64
	Close         float64
	Volume        int64
	Change        float64
	ChangePercent float64
	Timestamp     time.Time
}

// Timeframe constants for candle series.
const (
	TimeframeDay = "day"
)
