package pipeline

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"hospital-kpi-pipeline/internal/model"
	"hospital-kpi-pipeline/pkg/utils"
)

// monthKeyPattern accepts YYYY-MM, YYYY/MM, YYYY-MM-DD and YYYY/MM/DD.
var monthKeyPattern = regexp.MustCompile(`^(\d{4})[-/](0[1-9]|1[0-2])(?:[-/]\d{2})?$`)

// NormalizeMonthKey canonicalizes a date-like value to "YYYY-MM".
// Unparseable inputs yield "" and are dropped by the aggregators, never
// defaulted to some month.
func NormalizeMonthKey(raw interface{}) string {
	if raw == nil {
		return ""
	}
	s := strings.TrimSpace(fmt.Sprintf("%v", raw))
	m := monthKeyPattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1] + "-" + m[2]
}

// SortedMonths returns the series' keys in ascending chronological order.
// The canonical key format makes lexicographic order chronological.
func SortedMonths(series model.MonthlySeries) []string {
	keys := make([]string, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LatestMonthValue returns the chronologically last month and its value.
func LatestMonthValue(series model.MonthlySeries) (string, float64, bool) {
	months := SortedMonths(series)
	if len(months) == 0 {
		return "", 0, false
	}
	last := months[len(months)-1]
	return last, series[last], true
}

// SumByMonth reduces records into a month-keyed sum. The month and value
// fields are looked up through ordered candidate lists; records without a
// recognizable month are skipped.
func SumByMonth(records []model.GenericRecord, monthKeys, valueKeys []string) model.MonthlySeries {
	acc := model.MonthlySeries{}
	for _, rec := range records {
		rawMonth, _ := Pick(rec, monthKeys...)
		month := NormalizeMonthKey(rawMonth)
		if month == "" {
			continue
		}
		acc[month] += PickNumber(rec, valueKeys...)
	}
	return acc
}

// explicitRateKeys name a pre-computed monthly rate that, when present on a
// record, overrides the computed numerator/denominator ratio for its month.
var explicitRateKeys = []string{"REVISIT_RATE", "revisit_rate"}

// RatioByMonth reduces records into a month-keyed ratio: numerator and
// denominator are summed separately per month first, then divided. A zero
// denominator sum yields 0 for that month, never NaN or an error.
func RatioByMonth(records []model.GenericRecord, monthKeys, numeratorKeys, denominatorKeys []string) model.MonthlySeries {
	numSum := model.MonthlySeries{}
	denSum := model.MonthlySeries{}
	explicit := model.MonthlySeries{}

	for _, rec := range records {
		rawMonth, _ := Pick(rec, monthKeys...)
		month := NormalizeMonthKey(rawMonth)
		if month == "" {
			continue
		}
		if v, ok := Pick(rec, explicitRateKeys...); ok && strings.TrimSpace(fmt.Sprintf("%v", v)) != "" {
			explicit[month] = utils.Numeric(v)
			continue
		}
		numSum[month] += PickNumber(rec, numeratorKeys...)
		denSum[month] += PickNumber(rec, denominatorKeys...)
	}

	out := model.MonthlySeries{}
	for month, n := range numSum {
		if d := denSum[month]; d > 0 {
			out[month] = n / d
		} else {
			out[month] = 0
		}
	}
	for month, rate := range explicit {
		out[month] = rate
	}
	return out
}
