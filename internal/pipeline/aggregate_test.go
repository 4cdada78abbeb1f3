package pipeline

import (
	"testing"

	"hospital-kpi-pipeline/internal/model"
)

func TestNormalizeMonthKey(t *testing.T) {
	tests := []struct {
		raw  interface{}
		want string
	}{
		{"2025-04", "2025-04"},
		{"2025/04", "2025-04"},
		{"2025-04-15", "2025-04"},
		{"2025/04/15", "2025-04"},
		{" 2025-04 ", "2025-04"},
		{"2025-13", ""},
		{"2025-00", ""},
		{"Q2-2025", ""},
		{"April 2025", ""},
		{"", ""},
		{nil, ""},
		{42.0, ""},
	}

	for _, tt := range tests {
		if got := NormalizeMonthKey(tt.raw); got != tt.want {
			t.Errorf("NormalizeMonthKey(%v) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestSumByMonthSkipsUnparseableMonths(t *testing.T) {
	records := []model.GenericRecord{
		{"MONTH": "2025-03", "TOTAL": 100.0},
		{"MONTH": "2025-03-20", "TOTAL": 50.0},
		{"MONTH": "not-a-month", "TOTAL": 999.0},
		{"MONTH": "2025-04", "TOTAL": 25.0},
	}

	series := SumByMonth(records, []string{"MONTH"}, []string{"TOTAL"})
	if len(series) != 2 {
		t.Fatalf("series has %d months, want 2: %+v", len(series), series)
	}
	if series["2025-03"] != 150.0 {
		t.Errorf("2025-03 = %v, want 150", series["2025-03"])
	}
	if series["2025-04"] != 25.0 {
		t.Errorf("2025-04 = %v, want 25", series["2025-04"])
	}
}

func TestLatestMonthValue(t *testing.T) {
	series := model.MonthlySeries{"2025-01": 1, "2025-03": 3, "2025-02": 2}
	month, val, ok := LatestMonthValue(series)
	if !ok || month != "2025-03" || val != 3 {
		t.Errorf("LatestMonthValue = (%q, %v, %v), want (2025-03, 3, true)", month, val, ok)
	}

	if _, _, ok := LatestMonthValue(model.MonthlySeries{}); ok {
		t.Error("empty series should report no latest month")
	}
}

func TestRatioByMonth(t *testing.T) {
	records := []model.GenericRecord{
		{"MONTH": "2025-03", "REVISIT_COUNT": 20.0, "UNIQUE_PATIENT_COUNT": 100.0},
		{"MONTH": "2025-03", "REVISIT_COUNT": 10.0, "UNIQUE_PATIENT_COUNT": 100.0},
		{"MONTH": "2025-04", "REVISIT_COUNT": 5.0, "UNIQUE_PATIENT_COUNT": 0.0},
	}

	series := RatioByMonth(records, []string{"MONTH"},
		[]string{"REVISIT_COUNT"}, []string{"UNIQUE_PATIENT_COUNT"})

	if series["2025-03"] != 0.15 {
		t.Errorf("2025-03 ratio = %v, want 0.15 (summed before dividing)", series["2025-03"])
	}
	if series["2025-04"] != 0 {
		t.Errorf("2025-04 ratio = %v, want 0 for a zero denominator", series["2025-04"])
	}
}

func TestRatioByMonthExplicitRateOverride(t *testing.T) {
	records := []model.GenericRecord{
		{"MONTH": "2025-03", "REVISIT_RATE": 0.42},
		{"MONTH": "2025-04", "REVISIT_COUNT": 30.0, "UNIQUE_PATIENT_COUNT": 100.0},
	}

	series := RatioByMonth(records, []string{"MONTH"},
		[]string{"REVISIT_COUNT"}, []string{"UNIQUE_PATIENT_COUNT"})

	if series["2025-03"] != 0.42 {
		t.Errorf("explicit rate = %v, want 0.42", series["2025-03"])
	}
	if series["2025-04"] != 0.3 {
		t.Errorf("computed rate = %v, want 0.3", series["2025-04"])
	}
}
