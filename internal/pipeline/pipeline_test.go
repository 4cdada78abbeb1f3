package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"hospital-kpi-pipeline/internal/model"
)

// stubCaller settles each endpoint from a canned table, recording the
// resolved parameters it was handed. Calls arrive concurrently.
type stubCaller struct {
	responses map[string]model.EndpointResult

	mu   sync.Mutex
	seen map[string]map[string]string
}

func (s *stubCaller) Call(ctx context.Context, endpointID string, params map[string]string) model.EndpointResult {
	s.mu.Lock()
	if s.seen == nil {
		s.seen = map[string]map[string]string{}
	}
	s.seen[endpointID] = params
	s.mu.Unlock()

	res, ok := s.responses[endpointID]
	if !ok {
		return model.EndpointResult{EndpointID: endpointID, Kind: model.ErrNetwork, Message: "no canned response"}
	}
	res.EndpointID = endpointID
	res.Params = params
	return res
}

func TestRunIsolatesFailures(t *testing.T) {
	caller := &stubCaller{responses: map[string]model.EndpointResult{
		"mhpl0001": {Kind: model.ErrTimeout, Message: "deadline exceeded"},
		"mhpl0002": {Success: true, Payload: model.GenericRecord{
			"totals": []interface{}{
				map[string]interface{}{"Expense_Type": "Grand_Total_Expense", "Total_Amount": 50000.0},
			},
		}},
	}}

	result, err := New(caller).Run(context.Background(), model.RunRequest{
		EndpointIDs: []string{"mhpl0001", "mhpl0002"},
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(result.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(result.Results))
	}
	if result.Results["mhpl0001"].Kind != model.ErrTimeout {
		t.Errorf("mhpl0001 = %+v, want timeout failure", result.Results["mhpl0001"])
	}
	if !result.Results["mhpl0002"].Success {
		t.Error("mhpl0002 should have succeeded despite the sibling failure")
	}

	// Failed revisit endpoint degrades to its placeholder; payroll is real.
	if len(result.Cards) != 2 {
		t.Fatalf("got %d cards, want placeholder + payroll: %+v", len(result.Cards), result.Cards)
	}
	if result.Cards[0].ID != "patient-revisit-rate" || result.Cards[0].Value != "0.0%" {
		t.Errorf("card[0] = %+v, want revisit placeholder", result.Cards[0])
	}
	if result.Cards[1].ID != "payroll-expense" || result.Cards[1].Value != "50,000" {
		t.Errorf("card[1] = %+v, want payroll-expense 50,000", result.Cards[1])
	}
}

func TestRunResolvesParamsBeforeDispatch(t *testing.T) {
	caller := &stubCaller{responses: map[string]model.EndpointResult{
		"mhpl0001": {Success: true, Payload: model.GenericRecord{}},
	}}

	result, err := New(caller).Run(context.Background(), model.RunRequest{
		EndpointIDs: []string{"mhpl0001"},
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	params := caller.seen["mhpl0001"]
	if params["PatCat"] != "INPATIENT" {
		t.Errorf("dispatched PatCat = %q, want resolved default INPATIENT", params["PatCat"])
	}
	if params["StartDate"] == "" || params["EndDate"] == "" {
		t.Error("date defaults should be resolved before dispatch")
	}

	found := false
	for _, ov := range result.Overrides {
		if ov.EndpointID == "mhpl0001" && ov.Key == "PatCat" && ov.Value == "INPATIENT" {
			found = true
		}
	}
	if !found {
		t.Errorf("overrides = %+v, want PatCat default reported", result.Overrides)
	}
}

func TestRunUnknownEndpointSettlesAsFailure(t *testing.T) {
	caller := &stubCaller{responses: map[string]model.EndpointResult{
		"mhpl0002": {Success: true, Payload: model.GenericRecord{}},
	}}

	result, err := New(caller).Run(context.Background(), model.RunRequest{
		EndpointIDs: []string{"mhpl0002", "mhpl9999"},
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	res, ok := result.Results["mhpl9999"]
	if !ok || res.Kind != model.ErrUnknownEndpoint {
		t.Errorf("mhpl9999 = %+v, want %s failure", res, model.ErrUnknownEndpoint)
	}
	if _, dispatched := caller.seen["mhpl9999"]; dispatched {
		t.Error("unknown endpoints must not be dispatched")
	}
}

func TestRunEmptySelectionMeansAllEndpoints(t *testing.T) {
	caller := &stubCaller{responses: map[string]model.EndpointResult{}}

	result, err := New(caller).Run(context.Background(), model.RunRequest{})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(result.Results) != 10 {
		t.Fatalf("got %d results, want all ten endpoints", len(result.Results))
	}
}

func TestRunEventsNeverBlock(t *testing.T) {
	caller := &stubCaller{responses: map[string]model.EndpointResult{
		"mhpl0001": {Success: true, Payload: model.GenericRecord{}},
	}}

	// An unbuffered channel with no reader would deadlock a blocking emit.
	events := make(chan model.RunEvent)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := New(caller).Run(context.Background(), model.RunRequest{
			EndpointIDs: []string{"mhpl0001"},
			Events:      events,
		})
		if err != nil {
			t.Errorf("Run() error: %v", err)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run blocked on an unread events channel")
	}
}

func TestRunFinalEventReportsCompletion(t *testing.T) {
	caller := &stubCaller{responses: map[string]model.EndpointResult{
		"mhpl0001": {Success: true, Payload: model.GenericRecord{}},
	}}

	events := make(chan model.RunEvent, 64)
	_, err := New(caller).Run(context.Background(), model.RunRequest{
		EndpointIDs: []string{"mhpl0001"},
		Events:      events,
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	close(events)

	last := -1
	prev := -1
	for ev := range events {
		if ev.Percent < prev {
			t.Errorf("progress went backwards: %d after %d", ev.Percent, prev)
		}
		prev = ev.Percent
		last = ev.Percent
	}
	if last != 100 {
		t.Errorf("final progress = %d, want 100", last)
	}
}
