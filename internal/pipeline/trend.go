package pipeline

import (
	"math"

	"hospital-kpi-pipeline/internal/model"
)

// ComputeTrend derives the month-over-month change from a monthly series.
// It returns nil when fewer than two months exist (never fabricate a trend
// from a single data point) and when the previous month's value is exactly
// zero (a jump from a zero baseline reads as a misleading unbounded
// increase).
func ComputeTrend(series model.MonthlySeries) *model.TrendResult {
	months := SortedMonths(series)
	if len(months) < 2 {
		return nil
	}

	prev := series[months[len(months)-2]]
	curr := series[months[len(months)-1]]
	if prev == 0 {
		return nil
	}

	deltaPct := (curr - prev) / math.Abs(prev) * 100
	rounded := math.Round(deltaPct*10) / 10

	direction := "up"
	if rounded < 0 {
		direction = "down"
	}
	return &model.TrendResult{
		ChangePercent: math.Abs(rounded),
		Direction:     direction,
	}
}
