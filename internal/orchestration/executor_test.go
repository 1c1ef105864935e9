package orchestration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"webresearch/internal/browser"
	"webresearch/internal/knowledge"
)

// fakeLLM routes every completion through a single function.
type fakeLLM struct {
	reply func(system, user string) (string, error)
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return f.CompleteWithSystem(ctx, "", prompt)
}

func (f *fakeLLM) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	if f.reply == nil {
		return "", fmt.Errorf("no reply configured")
	}
	return f.reply(system, user)
}

func (f *fakeLLM) Name() string { return "fake" }

// brokenLLM always errors.
func brokenLLM() *fakeLLM {
	return &fakeLLM{reply: func(system, user string) (string, error) {
		return "", fmt.Errorf("model offline")
	}}
}

// fakeSearcher returns one hit per query; failVisit drops page visits and
// failSearch fails the search itself.
type fakeSearcher struct {
	failSearch bool
	failVisit  bool
	visits     int
}

func (f *fakeSearcher) Search(ctx context.Context, query, engine string, maxResults int) ([]knowledge.Result, error) {
	if f.failSearch {
		return nil, fmt.Errorf("search backend down")
	}
	return []knowledge.Result{
		{Title: "Hit one for " + query, URL: "https://example.com/1", Snippet: "first", Source: "web_search"},
		{Title: "Hit two for " + query, URL: "https://example.com/2", Snippet: "second", Source: "web_search"},
	}, nil
}

func (f *fakeSearcher) VisitPage(ctx context.Context, url string) (*browser.PageContent, error) {
	f.visits++
	if f.failVisit {
		return nil, fmt.Errorf("visit refused")
	}
	return &browser.PageContent{
		URL:       url,
		Title:     "Visited " + url,
		Content:   "page content for " + url,
		Timestamp: time.Now(),
	}, nil
}

// fakeRegistry returns one canned item per query.
type fakeRegistry struct {
	empty   bool
	queries []string
}

func (f *fakeRegistry) Query(ctx context.Context, source, query string, maxResults int) []knowledge.Result {
	f.queries = append(f.queries, source+":"+query)
	if f.empty {
		return nil
	}
	return []knowledge.Result{{
		Title:   source + " result for " + query,
		URL:     "https://example.org/" + source,
		Snippet: "knowledge snippet",
		Source:  source,
	}}
}

func twoStepPlan(query string) *ResearchPlan {
	return &ResearchPlan{
		ID:    "plan-test",
		Query: query,
		Steps: []*Step{
			{Type: StepWebSearch, Engine: "duckduckgo", Query: query, MaxResults: 5, Status: StepPending},
			{Type: StepKnowledgeSource, Source: "wikipedia", Query: query, MaxResults: 2, Status: StepPending},
		},
	}
}

func TestExecuteCompletesAllSteps(t *testing.T) {
	t.Parallel()

	exec := NewExecutor(&fakeSearcher{}, &fakeRegistry{}, brokenLLM(), 0)
	plan := twoStepPlan("quantum computing basics")

	results := exec.ExecuteResearchPlan(context.Background(), plan)

	if results.Status != ResultsComplete {
		t.Errorf("status: got %q, want complete", results.Status)
	}
	if results.CompletedSteps != len(plan.Steps) {
		t.Errorf("completed_steps: got %d, want %d", results.CompletedSteps, len(plan.Steps))
	}
	if len(results.Results) != 2 {
		t.Fatalf("results length: got %d, want 2", len(results.Results))
	}
	if results.Results[0].Type != StepWebSearch || results.Results[1].Type != StepKnowledgeSource {
		t.Error("step results out of order")
	}
	for i, sr := range results.Results {
		if sr.Status != StepComplete {
			t.Errorf("step %d status: got %q", i, sr.Status)
		}
	}
	if plan.Steps[0].Status != StepComplete {
		t.Errorf("plan step status not updated: %q", plan.Steps[0].Status)
	}
}

func TestExecuteAbsorbsStepFailure(t *testing.T) {
	t.Parallel()

	exec := NewExecutor(&fakeSearcher{failSearch: true}, &fakeRegistry{}, brokenLLM(), 0)
	plan := twoStepPlan("anything")

	results := exec.ExecuteResearchPlan(context.Background(), plan)

	if results.Status != ResultsComplete {
		t.Errorf("plan must still complete, got %q", results.Status)
	}
	if results.CompletedSteps != 2 {
		t.Errorf("completed_steps: got %d, want 2", results.CompletedSteps)
	}
	if results.Results[0].Status != StepError {
		t.Errorf("failed step should carry error status, got %q", results.Results[0].Status)
	}
	if results.Results[0].Error == "" {
		t.Error("failed step should carry an error message")
	}
	// Later step still ran
	if results.Results[1].Status != StepComplete {
		t.Errorf("later step should still run, got %q", results.Results[1].Status)
	}
}

func TestExecuteOmitsFailedPageVisits(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{failVisit: true}
	exec := NewExecutor(searcher, &fakeRegistry{}, brokenLLM(), 0)
	plan := &ResearchPlan{
		Query: "q",
		Steps: []*Step{{Type: StepWebSearch, Query: "q", MaxResults: 5, Status: StepPending}},
	}

	results := exec.ExecuteResearchPlan(context.Background(), plan)

	sr := results.Results[0]
	if sr.Status != StepComplete {
		t.Errorf("per-page failures must not fail the step, got %q", sr.Status)
	}
	if len(sr.Pages) != 0 {
		t.Errorf("failed visits should be omitted, got %d pages", len(sr.Pages))
	}
	if searcher.visits != 2 {
		t.Errorf("every hit should be attempted, got %d visits", searcher.visits)
	}
}

func TestExecuteUnknownStepType(t *testing.T) {
	t.Parallel()

	exec := NewExecutor(&fakeSearcher{}, &fakeRegistry{}, brokenLLM(), 0)
	plan := &ResearchPlan{
		Query: "q",
		Steps: []*Step{
			{Type: StepType("teleport"), Status: StepPending},
			{Type: StepKnowledgeSource, Source: "arxiv", Query: "q", MaxResults: 3, Status: StepPending},
		},
	}

	results := exec.ExecuteResearchPlan(context.Background(), plan)

	if results.Results[0].Status != StepError {
		t.Errorf("unknown type should error, got %q", results.Results[0].Status)
	}
	if results.Results[1].Status != StepComplete {
		t.Error("execution should continue past the unknown step")
	}
	if results.Status != ResultsComplete || results.CompletedSteps != 2 {
		t.Errorf("plan should complete: status=%q completed=%d", results.Status, results.CompletedSteps)
	}
}

func TestExecuteFollowupPlaceholders(t *testing.T) {
	t.Parallel()

	exec := NewExecutor(&fakeSearcher{}, &fakeRegistry{}, brokenLLM(), 0)
	plan := &ResearchPlan{
		Query: "dark matter",
		Steps: []*Step{{Type: StepGenerateFollowup, BasedOn: "dark matter", Status: StepPending}},
	}

	results := exec.ExecuteResearchPlan(context.Background(), plan)

	sr := results.Results[0]
	if sr.Status != StepComplete {
		t.Errorf("followup should complete even without a model, got %q", sr.Status)
	}
	if len(sr.Questions) == 0 {
		t.Fatal("expected placeholder questions")
	}
	if !strings.Contains(sr.Questions[0], "dark matter") {
		t.Errorf("placeholders should reference the query: %q", sr.Questions[0])
	}
}

func TestExecuteFollowupFromModel(t *testing.T) {
	t.Parallel()

	model := &fakeLLM{reply: func(system, user string) (string, error) {
		return `["How was it detected?", "What instruments are used?"]`, nil
	}}
	exec := NewExecutor(&fakeSearcher{}, &fakeRegistry{}, model, 0)
	plan := &ResearchPlan{
		Query: "gravitational waves",
		Steps: []*Step{{Type: StepGenerateFollowup, Status: StepPending}},
	}

	results := exec.ExecuteResearchPlan(context.Background(), plan)
	if got := results.Results[0].Questions; len(got) != 2 || got[0] != "How was it detected?" {
		t.Errorf("model questions not used: %v", got)
	}
}

func TestStepDelayBetweenStepsOnly(t *testing.T) {
	t.Parallel()

	const delay = 120 * time.Millisecond

	// Two steps: exactly one inter-step delay.
	exec := NewExecutor(&fakeSearcher{}, &fakeRegistry{}, brokenLLM(), delay)
	start := time.Now()
	exec.ExecuteResearchPlan(context.Background(), twoStepPlan("q"))
	elapsed := time.Since(start)
	if elapsed < delay {
		t.Errorf("inter-step delay not applied: %v", elapsed)
	}
	if elapsed > 2*delay {
		t.Errorf("delay applied after the last step: %v", elapsed)
	}

	// One step: no delay at all.
	start = time.Now()
	exec.ExecuteResearchPlan(context.Background(), &ResearchPlan{
		Query: "q",
		Steps: []*Step{{Type: StepKnowledgeSource, Source: "wikipedia", Query: "q", Status: StepPending}},
	})
	if elapsed := time.Since(start); elapsed > delay/2 {
		t.Errorf("single-step plan should not pause: %v", elapsed)
	}
}
