package endpoint

import (
	"testing"
	"time"
)

func TestResolveAppliesDefaultsAndReportsOverrides(t *testing.T) {
	params, overrides := Resolve("mhpl0001", nil)

	if params["PatCat"] != "INPATIENT" {
		t.Errorf("PatCat = %q, want INPATIENT", params["PatCat"])
	}
	if len(overrides) != 1 || overrides[0].Key != "PatCat" || overrides[0].Value != "INPATIENT" {
		t.Errorf("overrides = %+v, want one PatCat=INPATIENT override", overrides)
	}
	if overrides[0].EndpointID != "mhpl0001" {
		t.Errorf("override endpoint = %q, want mhpl0001", overrides[0].EndpointID)
	}
}

func TestResolveCallerValueWins(t *testing.T) {
	params, overrides := Resolve("mhpl0001", map[string]string{"PatCat": "OUTPATIENT"})

	if params["PatCat"] != "OUTPATIENT" {
		t.Errorf("PatCat = %q, want caller value OUTPATIENT", params["PatCat"])
	}
	if len(overrides) != 0 {
		t.Errorf("expected no overrides when caller supplied the value, got %+v", overrides)
	}
}

func TestResolveBlankValueTreatedAsAbsent(t *testing.T) {
	params, overrides := Resolve("mhpl0001", map[string]string{"PatCat": "   "})

	if params["PatCat"] != "INPATIENT" {
		t.Errorf("PatCat = %q, want default INPATIENT for a blank caller value", params["PatCat"])
	}
	if len(overrides) != 1 {
		t.Errorf("expected one override, got %+v", overrides)
	}
}

func TestResolveDateDefaults(t *testing.T) {
	params, _ := Resolve("mhpl0002", nil)

	now := time.Now()
	wantStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).Format("2006-01-02")
	if params["StartDate"] != wantStart {
		t.Errorf("StartDate = %q, want %q", params["StartDate"], wantStart)
	}
	if params["EndDate"] != now.Format("2006-01-02") {
		t.Errorf("EndDate = %q, want today", params["EndDate"])
	}
}

func TestResolveSilentPagingDefaults(t *testing.T) {
	params, overrides := Resolve("mhpl0005", nil)

	if params["Page_Size"] != "5" || params["Page_Number"] != "1" {
		t.Errorf("paging headers = %q/%q, want 5/1", params["Page_Size"], params["Page_Number"])
	}
	if _, ok := params["PageSize"]; ok {
		t.Error("PageSize should be renamed to Page_Size for this endpoint")
	}

	for _, ov := range overrides {
		if ov.Key == "PageSize" || ov.Key == "Page_Size" || ov.Key == "PageNumber" {
			t.Errorf("paging default %s must be applied silently", ov.Key)
		}
	}
	if len(overrides) != 1 || overrides[0].Key != "ServiceTypes" {
		t.Errorf("overrides = %+v, want only ServiceTypes", overrides)
	}
}

func TestResolveZeroPageSizeDisablesPaging(t *testing.T) {
	params, _ := Resolve("mhpl0006", map[string]string{"PageSize": "0", "PageNumber": "3"})

	if _, ok := params["Page_Size"]; ok {
		t.Error("Page_Size should be absent when the caller disables paging")
	}
	if _, ok := params["Page_Number"]; ok {
		t.Error("Page_Number should be absent when the caller disables paging")
	}
}

func TestResolveSummTypeSilent(t *testing.T) {
	params, overrides := Resolve("mhpl0010", nil)

	if params["SummType"] != "Monthly" {
		t.Errorf("SummType = %q, want Monthly", params["SummType"])
	}
	for _, ov := range overrides {
		if ov.Key == "SummType" {
			t.Error("SummType default must be applied silently")
		}
	}
	if len(overrides) != 2 {
		t.Errorf("overrides = %+v, want EmpType and Departments only", overrides)
	}
}
