package pipeline

import (
	"context"
	"fmt"
	"sync"

	"hospital-kpi-pipeline/internal/endpoint"
	"hospital-kpi-pipeline/internal/model"
)

// Caller fetches one endpoint. endpoint.Client implements it; tests
// substitute a stub to exercise the orchestration without a network.
type Caller interface {
	Call(ctx context.Context, endpointID string, params map[string]string) model.EndpointResult
}

// Pipeline orchestrates a full refresh: parameter resolution, concurrent
// endpoint fan-out, and card assembly. One Pipeline is safe for concurrent
// use; each Run is independent.
type Pipeline struct {
	caller Caller
}

func New(caller Caller) *Pipeline {
	return &Pipeline{caller: caller}
}

// Run executes one refresh. Endpoint failures never abort the run; every
// requested endpoint settles to exactly one EndpointResult and the card list
// is built from whatever succeeded. Run itself errors only when the
// orchestration breaks, never because an endpoint did.
func (p *Pipeline) Run(ctx context.Context, req model.RunRequest) (result *model.RunResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline run failed: %v", r)
		}
	}()

	requested := req.EndpointIDs
	if len(requested) == 0 {
		requested = endpoint.AllIDs
	}

	results := make(map[string]model.EndpointResult, len(requested))
	var known []string
	for _, id := range endpoint.AllIDs {
		if containsID(requested, id) {
			known = append(known, id)
		}
	}
	for _, id := range requested {
		if _, ok := endpoint.Registry[id]; !ok {
			results[id] = model.EndpointResult{
				EndpointID: id,
				Kind:       model.ErrUnknownEndpoint,
				Message:    fmt.Sprintf("unknown endpoint: %s", id),
			}
		}
	}

	emit(req.Events, model.RunEvent{Label: "Resolving parameters", Percent: 10})

	resolved := make(map[string]map[string]string, len(known))
	var overrides []model.Override
	for _, id := range known {
		params, applied := endpoint.Resolve(id, req.Params[id])
		resolved[id] = params
		for _, ov := range applied {
			overrides = append(overrides, ov)
			ov := ov
			emit(req.Events, model.RunEvent{
				Label:    fmt.Sprintf("[%s] applied default %s=%s", ov.EndpointID, ov.Key, ov.Value),
				Percent:  20,
				Override: &ov,
			})
		}
	}

	emit(req.Events, model.RunEvent{Label: "Fetching endpoints", Percent: 25})
	fmt.Printf("🚀 Dispatching %d endpoint call(s)\n", len(known))

	type settled struct {
		id  string
		res model.EndpointResult
	}
	settledCh := make(chan settled, len(known))

	var wg sync.WaitGroup
	for _, id := range known {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			settledCh <- settled{id: id, res: p.caller.Call(ctx, id, resolved[id])}
		}(id)
	}
	wg.Wait()
	close(settledCh)

	// Progress is reported per settled endpoint; the remaining 70 points
	// above the dispatch baseline are split evenly, capped below 100 until
	// assembly finishes.
	share := 0
	if len(known) > 0 {
		share = 70 / len(known)
	}
	done := 0
	for s := range settledCh {
		results[s.id] = s.res
		done++
		pct := 25 + done*share
		if pct > 95 {
			pct = 95
		}
		if s.res.Success {
			fmt.Printf("✅ [%s] fetched\n", s.id)
		} else {
			fmt.Printf("❌ [%s] %s: %s\n", s.id, s.res.Kind, s.res.Message)
		}
		emit(req.Events, model.RunEvent{Label: fmt.Sprintf("[%s] settled", s.id), Percent: pct})
	}

	cards := AssembleCards(known, results)
	emit(req.Events, model.RunEvent{Label: "Run complete", Percent: 100})
	fmt.Printf("📊 Assembled %d card(s) from %d endpoint(s)\n", len(cards), len(known))

	return &model.RunResult{
		Cards:     cards,
		Results:   results,
		Overrides: overrides,
	}, nil
}

// emit delivers an advisory event without ever blocking the run; a slow or
// absent consumer just misses updates.
func emit(ch chan<- model.RunEvent, ev model.RunEvent) {
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
