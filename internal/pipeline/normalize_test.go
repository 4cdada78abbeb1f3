package pipeline

import (
	"reflect"
	"testing"

	"hospital-kpi-pipeline/internal/model"
)

func TestNormalizeUnwrapsDataEnvelopes(t *testing.T) {
	inner := map[string]interface{}{"totals": map[string]interface{}{"x": 1.0}}

	tests := []struct {
		name    string
		payload model.GenericRecord
	}{
		{"no envelope", inner},
		{"single data wrapper", model.GenericRecord{"data": inner}},
		{"double data wrapper", model.GenericRecord{"data": map[string]interface{}{"data": inner}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Normalize("mhpl0001", tt.payload)
			if !reflect.DeepEqual(v.Root, model.GenericRecord(inner)) {
				t.Errorf("Root = %+v, want the unwrapped object", v.Root)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	payload := model.GenericRecord{"data": map[string]interface{}{"totals": map[string]interface{}{"x": 1.0}}}

	first := Normalize("mhpl0001", payload)
	second := Normalize("mhpl0001", payload)
	if !reflect.DeepEqual(first.Root, second.Root) {
		t.Error("normalizing the same payload twice must give identical views")
	}
}

func TestGroupShapes(t *testing.T) {
	rec := map[string]interface{}{"v": 1.0}

	tests := []struct {
		name string
		root model.GenericRecord
		want int
	}{
		{
			name: "bare array",
			root: model.GenericRecord{"g": []interface{}{rec, rec}},
			want: 2,
		},
		{
			name: "object with items",
			root: model.GenericRecord{"g": map[string]interface{}{"items": []interface{}{rec}}},
			want: 1,
		},
		{
			name: "array of items wrappers",
			root: model.GenericRecord{"g": []interface{}{
				map[string]interface{}{"items": []interface{}{rec, rec}},
				map[string]interface{}{"items": []interface{}{rec}},
			}},
			want: 3,
		},
		{
			name: "absent",
			root: model.GenericRecord{},
			want: 0,
		},
		{
			name: "scalar",
			root: model.GenericRecord{"g": "nope"},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := View{Root: tt.root}
			if got := len(v.Group("g")); got != tt.want {
				t.Errorf("Group() returned %d records, want %d", got, tt.want)
			}
		})
	}
}

func TestListOnlyMatchesBareArrays(t *testing.T) {
	v := View{Root: model.GenericRecord{
		"arr": []interface{}{map[string]interface{}{"a": 1.0}},
		"obj": map[string]interface{}{"items": []interface{}{map[string]interface{}{"a": 1.0}}},
	}}

	if got := len(v.List("arr")); got != 1 {
		t.Errorf("List(arr) = %d records, want 1", got)
	}
	if got := v.List("obj"); got != nil {
		t.Errorf("List(obj) = %+v, want nil for object form", got)
	}
}

func TestPickFirstMatchWins(t *testing.T) {
	rec := model.GenericRecord{"TOTAL": 5.0, "total": 7.0}

	v, ok := Pick(rec, "TOTAL", "total")
	if !ok || v.(float64) != 5.0 {
		t.Errorf("Pick = %v, want 5 (first candidate)", v)
	}
	if _, ok := Pick(rec, "missing", "absent"); ok {
		t.Error("Pick should report absence when no candidate matches")
	}
	if got := PickNumber(rec, "missing"); got != 0 {
		t.Errorf("PickNumber on absent keys = %v, want 0", got)
	}
	if got := PickNumber(model.GenericRecord{"n": "12.5"}, "n"); got != 12.5 {
		t.Errorf("PickNumber string coercion = %v, want 12.5", got)
	}
}
