package endpoint

// Endpoint describes one upstream analytics data source. The path split
// between /xapi and /ords/xapi is a fixed property of the upstream system.
type Endpoint struct {
	ID   string
	Name string
	Path string
	// Slow endpoints get double the standard timeout budget.
	Slow bool
}

// Registry holds the ten analytics endpoints keyed by ID.
var Registry = map[string]Endpoint{
	"mhpl0001": {ID: "mhpl0001", Name: "Patient Revisit Analysis", Path: "/xapi/xapp/mhpl0001"},
	"mhpl0002": {ID: "mhpl0002", Name: "Payroll Total Expense", Path: "/xapi/xapp/mhpl0002"},
	"mhpl0003": {ID: "mhpl0003", Name: "Patient Location Analysis", Path: "/ords/xapi/xapp/mhpl0003", Slow: true},
	"mhpl0004": {ID: "mhpl0004", Name: "Patient Spending Analysis", Path: "/ords/xapi/xapp/mhpl0004", Slow: true},
	"mhpl0005": {ID: "mhpl0005", Name: "Revenue Driver Consultant Analysis", Path: "/ords/xapi/xapp/mhpl0005"},
	"mhpl0006": {ID: "mhpl0006", Name: "IPD Insurance Claims", Path: "/ords/xapi/xapp/mhpl0006", Slow: true},
	"mhpl0007": {ID: "mhpl0007", Name: "IPD Bed Occupancy", Path: "/ords/xapi/xapp/mhpl0007"},
	"mhpl0008": {ID: "mhpl0008", Name: "Employee Performance", Path: "/ords/xapi/xapp/mhpl0008"},
	"mhpl0009": {ID: "mhpl0009", Name: "Pharmacy Expired Medicine", Path: "/ords/xapi/xapp/mhpl0009"},
	"mhpl0010": {ID: "mhpl0010", Name: "Employee Salary Summary", Path: "/ords/xapi/xapp/mhpl0010"},
}

// AllIDs is the canonical endpoint order; the assembled card list follows it
// regardless of fetch completion order.
var AllIDs = []string{
	"mhpl0001", "mhpl0002", "mhpl0003", "mhpl0004", "mhpl0005",
	"mhpl0006", "mhpl0007", "mhpl0008", "mhpl0009", "mhpl0010",
}

// defaultRule is one required-parameter default for an endpoint. Notify
// controls whether applying the rule is reported back as an override (some
// housekeeping defaults, like pagination, are injected silently).
type defaultRule struct {
	Key    string
	Value  string
	Notify bool
}

// endpointDefaults is the per-endpoint required-field table. Adding an
// eleventh endpoint means adding a row here, not new control flow.
var endpointDefaults = map[string][]defaultRule{
	"mhpl0001": {
		{Key: "PatCat", Value: "INPATIENT", Notify: true},
	},
	"mhpl0003": {
		{Key: "PatCat", Value: "IPD", Notify: true},
	},
	"mhpl0004": {
		{Key: "PatCat", Value: "IPD", Notify: true},
	},
	"mhpl0005": {
		{Key: "ServiceTypes", Value: "IPD", Notify: true},
		{Key: "PageSize", Value: "5"},
		{Key: "PageNumber", Value: "1"},
	},
	"mhpl0006": {
		{Key: "InsuranceProviders", Value: "MetLife Alico", Notify: true},
		{Key: "PageSize", Value: "5"},
		{Key: "PageNumber", Value: "1"},
	},
	"mhpl0007": {
		{Key: "Threshold", Value: "70", Notify: true},
	},
	"mhpl0009": {
		{Key: "medicine_categories", Value: "tablet", Notify: true},
	},
	"mhpl0010": {
		{Key: "EmpType", Value: "worker", Notify: true},
		{Key: "Departments", Value: "billing, monthly", Notify: true},
		{Key: "SummType", Value: "Monthly"},
	},
}

// underscorePaged endpoints expect Page_Size/Page_Number header spellings
// instead of PageSize/PageNumber.
var underscorePaged = map[string]bool{
	"mhpl0005": true,
	"mhpl0006": true,
}
