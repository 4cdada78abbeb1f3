package endpoint

import (
	"strings"
	"time"

	"hospital-kpi-pipeline/internal/model"
)

// Resolve merges caller-supplied parameters with the endpoint's required
// defaults and returns the final header set plus the list of defaults that
// were injected on the caller's behalf. An explicit caller value always wins.
func Resolve(endpointID string, callerParams map[string]string) (map[string]string, []model.Override) {
	out := make(map[string]string, len(callerParams)+4)
	for k, v := range callerParams {
		if strings.TrimSpace(v) == "" {
			continue
		}
		out[k] = v
	}

	applyDateDefaults(out, time.Now())

	var overrides []model.Override
	for _, rule := range endpointDefaults[endpointID] {
		if _, present := out[rule.Key]; present {
			continue
		}
		out[rule.Key] = rule.Value
		if rule.Notify {
			overrides = append(overrides, model.Override{
				EndpointID: endpointID,
				Key:        rule.Key,
				Value:      rule.Value,
			})
		}
	}

	normalizePaging(endpointID, out)
	return out, overrides
}

// applyDateDefaults ensures StartDate/EndDate are always present: first day
// of the current month through today, formatted YYYY-MM-DD.
func applyDateDefaults(params map[string]string, now time.Time) {
	if strings.TrimSpace(params["StartDate"]) == "" {
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		params["StartDate"] = start.Format("2006-01-02")
	}
	if strings.TrimSpace(params["EndDate"]) == "" {
		params["EndDate"] = now.Format("2006-01-02")
	}
}

// normalizePaging reconciles the two pagination header spellings the
// upstream uses. A zero page size means "no pagination" and removes both
// headers entirely.
func normalizePaging(endpointID string, params map[string]string) {
	if underscorePaged[endpointID] {
		if v, ok := params["PageSize"]; ok {
			if _, exists := params["Page_Size"]; !exists {
				params["Page_Size"] = v
			}
			delete(params, "PageSize")
		}
		if v, ok := params["PageNumber"]; ok {
			if _, exists := params["Page_Number"]; !exists {
				params["Page_Number"] = v
			}
			delete(params, "PageNumber")
		}
		if params["Page_Size"] == "0" {
			delete(params, "Page_Size")
			delete(params, "Page_Number")
		}
		return
	}
	if params["PageSize"] == "0" {
		delete(params, "PageSize")
		delete(params, "PageNumber")
	}
}
