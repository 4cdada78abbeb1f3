package pipeline

import (
	"hospital-kpi-pipeline/internal/model"
	"hospital-kpi-pipeline/pkg/utils"
)

// View is the normalized projection of one endpoint's raw payload. All
// accessors are pure; normalizing the same payload twice yields identical
// views.
type View struct {
	EndpointID string
	Root       model.GenericRecord
}

// Normalize unwraps the payload envelope down to the actual business
// object. Depending on the endpoint and the proxy hop the object of
// interest sits at payload.data.data, payload.data or the payload itself.
func Normalize(endpointID string, payload model.GenericRecord) View {
	root := payload
	for i := 0; i < 2; i++ {
		inner, ok := root["data"].(map[string]interface{})
		if !ok {
			break
		}
		root = inner
	}
	return View{EndpointID: endpointID, Root: root}
}

// Group returns the named record group flattened to a list. The upstream
// emits groups as a bare array, an object with an "items" array, or an
// array of objects each wrapping an "items" array; all are equivalent.
func (v View) Group(name string) []model.GenericRecord {
	return flattenGroup(v.Root[name])
}

// Object returns the named field when it is a plain object (the totals
// shape used by several endpoints), nil otherwise.
func (v View) Object(name string) model.GenericRecord {
	if m, ok := v.Root[name].(map[string]interface{}); ok {
		return m
	}
	return nil
}

// List returns the named field when it is a bare array of records, without
// unwrapping nested items. Used where array-form and object-form totals
// must be told apart.
func (v View) List(name string) []model.GenericRecord {
	arr, ok := v.Root[name].([]interface{})
	if !ok {
		return nil
	}
	out := make([]model.GenericRecord, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func flattenGroup(group interface{}) []model.GenericRecord {
	switch g := group.(type) {
	case []interface{}:
		var out []model.GenericRecord
		for _, item := range g {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if items, ok := m["items"].([]interface{}); ok {
				for _, it := range items {
					if rec, ok := it.(map[string]interface{}); ok {
						out = append(out, rec)
					}
				}
			} else {
				out = append(out, m)
			}
		}
		return out
	case map[string]interface{}:
		if items, ok := g["items"].([]interface{}); ok {
			out := make([]model.GenericRecord, 0, len(items))
			for _, it := range items {
				if rec, ok := it.(map[string]interface{}); ok {
					out = append(out, rec)
				}
			}
			return out
		}
		return nil
	default:
		return nil
	}
}

// Pick returns the first present value among the candidate keys. The
// upstream is inconsistent about casing and spelling across endpoints and
// over time, so every field read goes through an ordered variant list.
func Pick(rec model.GenericRecord, keys ...string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := rec[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// PickNumber is Pick with safe numeric coercion: absent or non-numeric
// values yield 0, never an error.
func PickNumber(rec model.GenericRecord, keys ...string) float64 {
	v, ok := Pick(rec, keys...)
	if !ok {
		return 0
	}
	return utils.Numeric(v)
}
