package orchestration

import (
	"context"
	"encoding/json"
	"time"

	"webresearch/internal/llm"
	"webresearch/internal/logging"

	"github.com/google/uuid"
)

// Per-source result caps applied when synthesizing steps.
const (
	webSearchMaxResults = 5
	wikipediaMaxResults = 2
	arxivMaxResults     = 3
)

// Planner turns a free-text query into an ordered research plan.
type Planner struct {
	llm llm.Client
}

// NewPlanner creates a planner over the given model client.
func NewPlanner(client llm.Client) *Planner {
	return &Planner{llm: client}
}

// CreateResearchPlan analyzes the query and lays out the executable steps.
// Planning never fails: an unusable model reply falls back to a single
// web search for the raw query.
func (p *Planner) CreateResearchPlan(ctx context.Context, query string) *ResearchPlan {
	timer := logging.StartTimer(logging.CategoryPlanner, "create plan")
	defer timer.StopWithInfo()

	analysis := p.analyzeQuery(ctx, query)
	steps := buildSteps(analysis)

	plan := &ResearchPlan{
		ID:        uuid.NewString(),
		Query:     query,
		Analysis:  analysis,
		Steps:     steps,
		CreatedAt: time.Now(),
	}
	logging.Planner("plan %s: %d steps for %q (priority %v)", plan.ID, len(steps), query, analysis.PriorityOrder)
	return plan
}

// analyzeQuery asks the model for a structured decomposition, substituting
// the deterministic fallback when the reply does not parse.
func (p *Planner) analyzeQuery(ctx context.Context, query string) QueryAnalysis {
	reply, err := p.llm.CompleteWithSystem(ctx, analysisSystemPrompt, query)
	if err != nil {
		logging.PlannerWarn("analysis request failed, using fallback: %v", err)
		return fallbackAnalysis(query)
	}

	cleaned := llm.StripFences(reply)
	var analysis QueryAnalysis
	if err := json.Unmarshal([]byte(extractObject(cleaned)), &analysis); err != nil {
		logging.PlannerWarn("analysis reply not parseable, using fallback: %v", err)
		return fallbackAnalysis(query)
	}

	// A structurally valid but empty analysis is as useless as a parse
	// failure.
	if len(analysis.PriorityOrder) == 0 || len(analysis.SearchTerms) == 0 {
		logging.PlannerWarn("analysis reply missing terms or priority, using fallback")
		return fallbackAnalysis(query)
	}

	if analysis.MainQuestion == "" {
		analysis.MainQuestion = query
	}
	if len(analysis.SubQuestions) == 0 {
		analysis.SubQuestions = []string{query}
	}
	return analysis
}

// fallbackAnalysis echoes the raw query into a single web search.
func fallbackAnalysis(query string) QueryAnalysis {
	return QueryAnalysis{
		MainQuestion: query,
		SubQuestions: []string{query},
		SearchTerms: map[string]TermList{
			"web_search": {query},
		},
		PriorityOrder: []string{"web_search"},
	}
}

// buildSteps walks the priority order and emits steps in that order;
// within a source, terms keep their listed order. Unrecognized source
// names are skipped silently.
func buildSteps(analysis QueryAnalysis) []*Step {
	var steps []*Step

	for _, source := range analysis.PriorityOrder {
		terms := analysis.SearchTerms[source]
		if len(terms) == 0 {
			continue
		}
		switch source {
		case "web_search":
			for _, term := range terms {
				steps = append(steps, &Step{
					Type:       StepWebSearch,
					Engine:     "duckduckgo",
					Query:      term,
					MaxResults: webSearchMaxResults,
					Status:     StepPending,
				})
			}
		case "wikipedia":
			steps = append(steps, &Step{
				Type:       StepKnowledgeSource,
				Source:     "wikipedia",
				Query:      terms[0],
				MaxResults: wikipediaMaxResults,
				Status:     StepPending,
			})
		case "arxiv":
			steps = append(steps, &Step{
				Type:       StepKnowledgeSource,
				Source:     "arxiv",
				Query:      terms[0],
				MaxResults: arxivMaxResults,
				Status:     StepPending,
			})
		default:
			logging.PlannerDebug("skipping unrecognized source %q", source)
		}
	}

	if analysis.RequiresFollowup {
		steps = append(steps, &Step{
			Type:    StepGenerateFollowup,
			BasedOn: analysis.MainQuestion,
			Status:  StepPending,
		})
	}
	return steps
}

// extractObject trims prose around the outermost JSON object. Input
// without braces passes through so the caller sees the parse error.
func extractObject(s string) string {
	start := -1
	depth := 0
	for i, r := range s {
		switch r {
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && start >= 0 {
				return s[start : i+1]
			}
		}
	}
	return s
}
