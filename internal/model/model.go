package model

// GenericRecord is a schema-agnostic map for any upstream payload fragment.
// The analytics endpoints are inconsistent about casing and nesting, so all
// normalization works on maps rather than fixed structs.
type GenericRecord map[string]interface{}

// ErrorKind classifies every failure mode of an endpoint call.
type ErrorKind string

const (
	ErrTimeout         ErrorKind = "TIMEOUT"
	ErrNetwork         ErrorKind = "NETWORK_ERROR"
	ErrUnauthorized    ErrorKind = "UNAUTHORIZED"
	ErrServer          ErrorKind = "SERVER_ERROR"
	ErrParse           ErrorKind = "PARSE_ERROR"
	ErrUnknownEndpoint ErrorKind = "UNKNOWN_ENDPOINT"
	ErrAuth            ErrorKind = "AUTH_ERROR"
)

// EndpointResult is the settled outcome of one endpoint call. Exactly one
// exists per requested endpoint per run; either Payload is set (success) or
// Kind/Message describe the failure.
type EndpointResult struct {
	EndpointID string            `json:"endpoint_id"`
	Success    bool              `json:"success"`
	Payload    GenericRecord     `json:"payload,omitempty"`
	Params     map[string]string `json:"requested_parameters,omitempty"`
	Kind       ErrorKind         `json:"error_kind,omitempty"`
	Message    string            `json:"message,omitempty"`
}

// MonthlySeries maps canonical "YYYY-MM" keys to aggregated values.
// Insertion order is irrelevant; consumers sort keys ascending before use.
type MonthlySeries map[string]float64

// TrendResult is a month-over-month change. A nil *TrendResult means the
// trend is intentionally suppressed (insufficient history or zero baseline).
type TrendResult struct {
	ChangePercent float64 `json:"change_percent"`
	Direction     string  `json:"direction"` // "up" or "down"
}

// FilterChip reflects a local filter applied to a card (resolved defaults or
// caller overrides) so the dashboard can surface what was queried.
type FilterChip struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// AlertBlock flags a KPI that crossed a caller-supplied threshold
// (currently only bed occupancy).
type AlertBlock struct {
	Message      string  `json:"message"`
	Threshold    float64 `json:"threshold"`
	CurrentValue float64 `json:"current_value"`
}

// KpiCard is one displayable metric. Cards are built fresh on every run and
// never mutated afterwards; Detail carries the endpoint's unwrapped business
// object so a drill-down view can render without re-fetching.
type KpiCard struct {
	ID           string            `json:"id"`
	EndpointID   string            `json:"endpoint_id"`
	Title        string            `json:"title"`
	Value        string            `json:"value"`
	HoverMetrics map[string]string `json:"hover_metrics,omitempty"`
	LocalFilters []FilterChip      `json:"local_filters,omitempty"`
	Trend        *TrendResult      `json:"trend,omitempty"`
	Alert        *AlertBlock       `json:"alert,omitempty"`
	Detail       GenericRecord     `json:"-"`
}

// Override records a default the parameter resolver injected because the
// caller left the field blank.
type Override struct {
	EndpointID string `json:"endpoint_id"`
	Key        string `json:"key"`
	Value      string `json:"value"`
}

// RunRequest describes one pipeline invocation.
type RunRequest struct {
	// EndpointIDs selects which endpoints to fetch; empty means all ten.
	EndpointIDs []string `json:"endpoints,omitempty"`
	// Params holds caller-supplied parameters per endpoint ID.
	Params map[string]map[string]string `json:"params,omitempty"`
	// Events, when non-nil, receives progress and override notifications.
	// The channel should be buffered; the pipeline never blocks on it.
	Events chan<- RunEvent `json:"-"`
}

// RunEvent is an advisory progress or override notification.
type RunEvent struct {
	Label    string    `json:"label"`
	Percent  int       `json:"percent"`
	Override *Override `json:"override,omitempty"`
}

// RunResult is the complete output of one pipeline run. Cards are ordered by
// endpoint ID, independent of fetch completion order.
type RunResult struct {
	Cards     []KpiCard                 `json:"cards"`
	Results   map[string]EndpointResult `json:"results"`
	Overrides []Override                `json:"overrides"`
}
