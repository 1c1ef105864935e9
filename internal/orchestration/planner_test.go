package orchestration

import (
	"context"
	"encoding/json"
	"testing"
)

func TestPlanFallbackOnGarbageReply(t *testing.T) {
	t.Parallel()

	planner := NewPlanner(&fakeLLM{reply: func(system, user string) (string, error) {
		return "I cannot answer that in JSON, sorry.", nil
	}})

	plan := planner.CreateResearchPlan(context.Background(), "history of cryptography")

	if plan.Analysis.MainQuestion != "history of cryptography" {
		t.Errorf("main question: got %q", plan.Analysis.MainQuestion)
	}
	if len(plan.Analysis.SubQuestions) != 1 || plan.Analysis.SubQuestions[0] != "history of cryptography" {
		t.Errorf("sub questions: got %v", plan.Analysis.SubQuestions)
	}
	if len(plan.Steps) != 1 {
		t.Fatalf("steps: got %d, want 1", len(plan.Steps))
	}
	step := plan.Steps[0]
	if step.Type != StepWebSearch || step.Query != "history of cryptography" || step.MaxResults != 5 {
		t.Errorf("fallback step wrong: %+v", step)
	}
}

func TestPlanFallbackOnModelError(t *testing.T) {
	t.Parallel()

	planner := NewPlanner(brokenLLM())
	plan := planner.CreateResearchPlan(context.Background(), "solar flares")

	if len(plan.Steps) != 1 || plan.Steps[0].Type != StepWebSearch {
		t.Fatalf("expected single web search fallback, got %+v", plan.Steps)
	}
}

func TestPlanFollowsPriorityOrder(t *testing.T) {
	t.Parallel()

	analysis := `{
		"main_question": "how do vaccines work",
		"sub_questions": ["what is an antigen"],
		"search_terms": {
			"web_search": ["vaccine mechanism", "mrna vaccine"],
			"wikipedia": ["Vaccine"],
			"arxiv": ["vaccine efficacy modeling"]
		},
		"priority_order": ["wikipedia", "web_search", "arxiv"],
		"requires_followup": true
	}`
	planner := NewPlanner(&fakeLLM{reply: func(system, user string) (string, error) {
		return "```json\n" + analysis + "\n```", nil
	}})

	plan := planner.CreateResearchPlan(context.Background(), "how do vaccines work")

	want := []struct {
		typ    StepType
		source string
		query  string
		max    int
	}{
		{StepKnowledgeSource, "wikipedia", "Vaccine", 2},
		{StepWebSearch, "", "vaccine mechanism", 5},
		{StepWebSearch, "", "mrna vaccine", 5},
		{StepKnowledgeSource, "arxiv", "vaccine efficacy modeling", 3},
		{StepGenerateFollowup, "", "", 0},
	}
	if len(plan.Steps) != len(want) {
		t.Fatalf("steps: got %d, want %d", len(plan.Steps), len(want))
	}
	for i, w := range want {
		step := plan.Steps[i]
		if step.Type != w.typ || step.Source != w.source || step.Query != w.query || step.MaxResults != w.max {
			t.Errorf("step %d: got %+v, want %+v", i, step, w)
		}
		if step.Status != StepPending {
			t.Errorf("step %d should start pending, got %q", i, step.Status)
		}
	}
	if plan.Steps[4].BasedOn != "how do vaccines work" {
		t.Errorf("followup should carry the main question, got %q", plan.Steps[4].BasedOn)
	}
}

func TestPlanSkipsUnrecognizedSources(t *testing.T) {
	t.Parallel()

	planner := NewPlanner(&fakeLLM{reply: func(system, user string) (string, error) {
		return `{
			"main_question": "q",
			"search_terms": {"usenet": ["old news"], "web_search": ["q"]},
			"priority_order": ["usenet", "web_search"]
		}`, nil
	}})

	plan := planner.CreateResearchPlan(context.Background(), "q")
	if len(plan.Steps) != 1 || plan.Steps[0].Type != StepWebSearch {
		t.Errorf("unknown sources should be skipped: %+v", plan.Steps)
	}
}

func TestPlanFallbackOnEmptyAnalysis(t *testing.T) {
	t.Parallel()

	// Valid JSON, but nothing actionable in it.
	planner := NewPlanner(&fakeLLM{reply: func(system, user string) (string, error) {
		return `{"main_question": "q", "search_terms": {}, "priority_order": []}`, nil
	}})

	plan := planner.CreateResearchPlan(context.Background(), "q")
	if len(plan.Steps) != 1 || plan.Steps[0].Type != StepWebSearch {
		t.Errorf("empty analysis should fall back to web search: %+v", plan.Steps)
	}
}

func TestTermListAcceptsStringOrArray(t *testing.T) {
	t.Parallel()

	var analysis QueryAnalysis
	data := `{"search_terms": {"wikipedia": "Single Term", "web_search": ["a", "b"]}}`
	if err := json.Unmarshal([]byte(data), &analysis); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := analysis.SearchTerms["wikipedia"]; len(got) != 1 || got[0] != "Single Term" {
		t.Errorf("scalar term: got %v", got)
	}
	if got := analysis.SearchTerms["web_search"]; len(got) != 2 || got[1] != "b" {
		t.Errorf("array terms: got %v", got)
	}
}

func TestExtractObject(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{`{"a": 1}`, `{"a": 1}`},
		{`Here you go: {"a": {"b": 2}} hope that helps`, `{"a": {"b": 2}}`},
		{`no json here`, `no json here`},
		{``, ``},
	}
	for _, tc := range cases {
		if got := extractObject(tc.in); got != tc.want {
			t.Errorf("extractObject(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
