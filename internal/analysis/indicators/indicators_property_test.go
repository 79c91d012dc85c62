package indicators

import (
	"context"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"option-pricer/internal/errors"
	"option-pricer/internal/models"
)

// candleGen generates valid candle data with realistic OHLCV values.
func candleGen() gopter.Gen {
	return gen.Struct(reflect.TypeOf(models.Candle{}), map[string]gopter.Gen{
		"Timestamp": gen.TimeRange(time.Now().Add(-365*24*time.Hour), time.Hour),
		"Open":      gen.Float64Range(50.0, 500.0),
		"High":      gen.Float64Range(50.0, 500.0),
		"Low":       gen.Float64Range(50.0, 500.0),
		"Close":     gen.Float64Range(50.0, 500.0),
		"Volume":    gen.Int64Range(1000, 10000000),
	}).Map(fixCandle)
}

// fixCandle repairs generated values so OHLC constraints hold: positive
// prices, High at least max(Open, Close), Low at most min(Open, Close).
func fixCandle(c models.Candle) models.Candle {
	if c.Open <= 0 {
		c.Open = 100.0
	}
	if c.Close <= 0 {
		c.Close = 100.0
	}
	c.High = math.Max(c.High, math.Max(c.Open, c.Close))
	c.Low = math.Min(c.Low, math.Min(c.Open, c.Close))
	if c.Low <= 0 {
		c.Low = math.Min(c.Open, c.Close)
	}
	return c
}

// candleSliceGen generates a chronological slice of valid candles.
func candleSliceGen(minLen, maxLen int) gopter.Gen {
	return gen.SliceOfN(maxLen, candleGen()).Map(func(candles []models.Candle) []models.Candle {
		if len(candles) == 0 {
			candles = []models.Candle{fixCandle(models.Candle{})}
		}
		for len(candles) < minLen {
			candles = append(candles, candles[len(candles)-1])
		}
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := range candles {
			candles[i] = fixCandle(candles[i])
			candles[i].Timestamp = base.AddDate(0, 0, i)
		}
		return candles
	})
}

func TestProperty_RSIWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("RSI values are within [0, 100]", prop.ForAll(
		func(candles []models.Candle) bool {
			rsi := NewRSI(14)
			values, err := rsi.Calculate(candles)
			if err != nil {
				return true
			}

			for i := rsi.Period(); i < len(values); i++ {
				if values[i] < 0 || values[i] > 100 {
					return false
				}
			}
			return true
		},
		candleSliceGen(20, 100),
	))

	properties.TestingRun(t)
}

func TestProperty_SMAIsAverageOfPrices(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("SMA is the arithmetic mean of closes over the period", prop.ForAll(
		func(candles []models.Candle) bool {
			period := 10
			sma := NewSMA(period)
			values, err := sma.Calculate(candles)
			if err != nil {
				return true
			}

			closes := closePrices(candles)
			for i := period - 1; i < len(values); i++ {
				expected := mean(closes[i-period+1 : i+1])
				if math.Abs(values[i]-expected) > 1e-9 {
					return false
				}
			}
			return true
		},
		candleSliceGen(15, 60),
	))

	properties.TestingRun(t)
}

func TestProperty_EMAStaysWithinCloseRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("EMA never escapes the range of closes seen so far", prop.ForAll(
		func(candles []models.Candle) bool {
			period := 10
			ema := NewEMA(period)
			values, err := ema.Calculate(candles)
			if err != nil {
				return true
			}

			closes := closePrices(candles)
			lo, hi := closes[0], closes[0]
			for i, c := range closes {
				lo = math.Min(lo, c)
				hi = math.Max(hi, c)
				if i < period-1 {
					continue
				}
				if values[i] < lo-1e-6 || values[i] > hi+1e-6 {
					return false
				}
			}
			return true
		},
		candleSliceGen(15, 60),
	))

	properties.TestingRun(t)
}

func TestProperty_MACDHistogramIsSpread(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("MACD histogram equals macd minus signal", prop.ForAll(
		func(candles []models.Candle) bool {
			macd := NewMACD(12, 26, 9)
			values, err := macd.Calculate(candles)
			if err != nil {
				return true
			}

			macdLine := values["macd"]
			signal := values["signal"]
			histogram := values["histogram"]
			for i := macd.Period() - 1; i < len(histogram); i++ {
				if histogram[i] != macdLine[i]-signal[i] {
					return false
				}
			}
			return true
		},
		candleSliceGen(40, 120),
	))

	properties.TestingRun(t)
}

func TestProperty_HistoricalVolatilityNonNegative(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("HV is zero through warmup and non-negative after", prop.ForAll(
		func(candles []models.Candle) bool {
			period := 10
			hv := NewHistoricalVolatility(period)
			values, err := hv.Calculate(candles)
			if err != nil {
				return true
			}

			for i, v := range values {
				if i < period && v != 0 {
					return false
				}
				if v < 0 || math.IsNaN(v) {
					return false
				}
			}
			return true
		},
		candleSliceGen(15, 60),
	))

	properties.TestingRun(t)
}

// fixtureCandles builds a daily series from closes alone.
func fixtureCandles(closes ...float64) []models.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, len(closes))
	for i, c := range closes {
		candles[i] = models.Candle{
			Timestamp: base.AddDate(0, 0, i),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1000,
		}
	}
	return candles
}

func TestSMAValues(t *testing.T) {
	values, err := NewSMA(3).Calculate(fixtureCandles(1, 2, 3, 4, 5))
	if err != nil {
		t.Fatalf("SMA failed: %v", err)
	}
	want := []float64{0, 0, 2, 3, 4}
	for i, w := range want {
		if math.Abs(values[i]-w) > 1e-12 {
			t.Errorf("SMA[%d] = %f, want %f", i, values[i], w)
		}
	}
}

func TestEMAFirstValueIsSMA(t *testing.T) {
	candles := fixtureCandles(10, 20, 30, 40, 50)
	values, err := NewEMA(3).Calculate(candles)
	if err != nil {
		t.Fatalf("EMA failed: %v", err)
	}
	if values[2] != 20 {
		t.Errorf("first EMA = %f, want the seed SMA 20", values[2])
	}
	if values[1] != 0 {
		t.Errorf("warmup EMA = %f, want 0", values[1])
	}
}

func TestRSIAllGains(t *testing.T) {
	candles := fixtureCandles(100, 101, 102, 103, 104, 105, 106, 107)
	values, err := NewRSI(5).Calculate(candles)
	if err != nil {
		t.Fatalf("RSI failed: %v", err)
	}
	for i := 5; i < len(values); i++ {
		if values[i] != 100 {
			t.Errorf("RSI[%d] = %f on a gains-only series, want 100", i, values[i])
		}
	}
}

func TestHistoricalVolatilityValue(t *testing.T) {
	// Alternating +/-ln(1.1) moves; sample stdev computed by hand below.
	candles := fixtureCandles(100, 110, 100, 110, 100)
	values, err := NewHistoricalVolatility(4).Calculate(candles)
	if err != nil {
		t.Fatalf("HV failed: %v", err)
	}

	r := math.Log(1.1)
	variance := 4 * r * r / 3 // mean 0, four returns, n-1 divisor
	want := math.Sqrt(variance) * math.Sqrt(252)

	got := values[len(values)-1]
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("HV = %f, want %f", got, want)
	}
}

func TestHistoricalVolatilityFlatSeries(t *testing.T) {
	values, err := NewHistoricalVolatility(3).Calculate(fixtureCandles(50, 50, 50, 50, 50, 50))
	if err != nil {
		t.Fatalf("HV failed: %v", err)
	}
	for i, v := range values {
		if v != 0 {
			t.Errorf("HV[%d] = %f on a flat series, want 0", i, v)
		}
	}
}

func TestIndicatorErrors(t *testing.T) {
	candles := fixtureCandles(1, 2, 3)

	if _, err := NewSMA(0).Calculate(candles); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("SMA period 0: got %v, want ErrInvalidPeriod", err)
	}
	if _, err := NewSMA(10).Calculate(candles); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("SMA short window: got %v, want ErrInsufficientData", err)
	}
	if _, err := NewRSI(5).Calculate(candles); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("RSI short window: got %v, want ErrInsufficientData", err)
	}
	if _, err := NewHistoricalVolatility(1).Calculate(candles); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("HV period 1: got %v, want ErrInvalidPeriod", err)
	}
	if _, err := NewMACD(26, 12, 9).Calculate(candles); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("MACD fast>=slow: got %v, want ErrInvalidPeriod", err)
	}
}

func TestEngineCalculateAll(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/5)
	}
	candles := fixtureCandles(closes...)

	engine := NewEngine(4)
	engine.RegisterIndicator(NewSMA(20))
	engine.RegisterIndicator(NewEMA(20))
	engine.RegisterIndicator(NewRSI(14))
	engine.RegisterIndicator(NewHistoricalVolatility(20))
	engine.RegisterMultiIndicator(NewMACD(12, 26, 9))

	singles, multis, err := engine.CalculateAll(context.Background(), candles)
	if err != nil {
		t.Fatalf("CalculateAll failed: %v", err)
	}

	for _, name := range []string{"SMA_20", "EMA_20", "RSI_14", "HV_20"} {
		values, ok := singles[name]
		if !ok {
			t.Fatalf("missing %s in results", name)
		}
		if len(values) != len(candles) {
			t.Errorf("%s has %d values, want %d", name, len(values), len(candles))
		}
	}

	macd, ok := multis["MACD_12_26_9"]
	if !ok {
		t.Fatal("missing MACD in results")
	}
	for _, key := range []string{"macd", "signal", "histogram"} {
		if len(macd[key]) != len(candles) {
			t.Errorf("MACD %s has %d values, want %d", key, len(macd[key]), len(candles))
		}
	}
}

func TestEngineSkipsIndicatorsNeedingMoreData(t *testing.T) {
	candles := fixtureCandles(1, 2, 3, 4, 5)

	engine := NewEngine(2)
	engine.RegisterIndicator(NewSMA(3))
	engine.RegisterIndicator(NewSMA(10))

	singles, _, err := engine.CalculateAll(context.Background(), candles)
	if err != nil {
		t.Fatalf("CalculateAll failed: %v", err)
	}
	if _, ok := singles["SMA_3"]; !ok {
		t.Error("SMA_3 should be computed")
	}
	if _, ok := singles["SMA_10"]; ok {
		t.Error("SMA_10 should be skipped on a 5-candle window")
	}
}

func TestEngineCalculateByName(t *testing.T) {
	candles := fixtureCandles(1, 2, 3, 4, 5, 6)
	engine := NewEngine(2)
	engine.RegisterIndicator(NewSMA(3))

	values, err := engine.Calculate(context.Background(), "SMA_3", candles)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if len(values) != 6 {
		t.Errorf("got %d values, want 6", len(values))
	}

	var paramErr *errors.ParameterError
	if _, err := engine.Calculate(context.Background(), "SMA_99", candles); !errors.As(err, &paramErr) {
		t.Errorf("unknown indicator: got %v, want ParameterError", err)
	}
}
