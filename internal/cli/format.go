// Package cli implements the pricer command-line interface.
package cli

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"option-pricer/internal/models"
)

// FormatMoney formats an amount with thousands separators and two decimal
// places. Rounding goes through decimal to keep display values exact.
func FormatMoney(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	str := decimal.NewFromFloat(amount).StringFixed(2)
	parts := strings.Split(str, ".")
	intPart := parts[0]
	decPart := parts[1]

	result := groupThousands(intPart) + "." + decPart
	if negative {
		result = "-" + result
	}
	return result
}

// groupThousands inserts a comma every three digits from the right.
func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	result := s[n-3:]
	s = s[:n-3]

	for len(s) > 0 {
		if len(s) >= 3 {
			result = s[len(s)-3:] + "," + result
			s = s[:len(s)-3]
		} else {
			result = s + "," + result
			s = ""
		}
	}

	return result
}

// FormatPrice formats an option or underlying price. Small premiums keep four
// decimal places so deep out-of-the-money values stay visible.
func FormatPrice(price float64) string {
	d := decimal.NewFromFloat(price)
	if math.Abs(price) >= 10 {
		return d.StringFixed(2)
	}
	return d.StringFixed(4)
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatVol formats an annualized volatility fraction as a percentage.
func FormatVol(vol float64) string {
	return fmt.Sprintf("%.2f%%", vol*100)
}

// FormatRate formats a continuously compounded rate as a signed percentage.
func FormatRate(rate float64) string {
	return FormatPercent(rate * 100)
}

// FormatGreek formats a single sensitivity value.
func FormatGreek(value float64) string {
	return fmt.Sprintf("%.4f", value)
}

// FormatCI formats a 95% confidence interval.
func FormatCI(ci *models.ConfidenceInterval) string {
	if ci == nil {
		return "-"
	}
	return fmt.Sprintf("[%s, %s]", FormatPrice(ci.Low), FormatPrice(ci.High))
}

// FormatMaturity formats a maturity in years with the day count alongside.
func FormatMaturity(years float64) string {
	days := int(math.Round(years * 365))
	return fmt.Sprintf("%.4fy (%dd)", years, days)
}

// FormatCount formats an integer count with thousands separators.
func FormatCount(n int64) string {
	if n < 0 {
		return "-" + groupThousands(fmt.Sprintf("%d", -n))
	}
	return groupThousands(fmt.Sprintf("%d", n))
}

// FormatVolume formats volume in compact form.
func FormatVolume(volume int64) string {
	if volume >= 1000000000 {
		return fmt.Sprintf("%.2fB", float64(volume)/1000000000)
	} else if volume >= 1000000 {
		return fmt.Sprintf("%.2fM", float64(volume)/1000000)
	} else if volume >= 1000 {
		return fmt.Sprintf("%.2fK", float64(volume)/1000)
	}
	return fmt.Sprintf("%d", volume)
}

// dateFormat is the display layout for dates, overridable from the
// configuration.
var dateFormat = "02-Jan-2006"

// FormatDate formats a date.
func FormatDate(t time.Time) string {
	return t.Format(dateFormat)
}

// FormatDateTime formats a datetime.
func FormatDateTime(t time.Time) string {
	return t.Format(dateFormat + " 15:04:05")
}

// FormatDuration formats a duration in human-readable form. Pricing runs span
// microseconds to minutes, so the scale adapts.
func FormatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	} else if d < time.Second {
		return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000)
	} else if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// Moneyness bands. ATM is a ±0.5% band of spot around the strike.
const (
	MoneynessITM = "ITM"
	MoneynessATM = "ATM"
	MoneynessOTM = "OTM"

	atmBand = 0.005
)

// Moneyness classifies a contract relative to spot.
func Moneyness(kind models.OptionKind, spot, strike float64) string {
	if strike <= 0 {
		return MoneynessOTM
	}
	ratio := spot / strike
	if ratio >= 1-atmBand && ratio <= 1+atmBand {
		return MoneynessATM
	}
	if kind == models.OptionKindCall {
		if ratio > 1 {
			return MoneynessITM
		}
		return MoneynessOTM
	}
	if ratio < 1 {
		return MoneynessITM
	}
	return MoneynessOTM
}

// TruncateString truncates a string to max length with ellipsis.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
