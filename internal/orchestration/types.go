// Package orchestration contains the research pipeline core: the planner
// that decomposes a query into steps, the executor that walks them, and
// the report generator that synthesizes the findings.
package orchestration

import (
	"encoding/json"
	"fmt"
	"time"

	"webresearch/internal/browser"
	"webresearch/internal/knowledge"
)

// StepType tags the variant of one plan step.
type StepType string

const (
	StepWebSearch        StepType = "web_search"
	StepKnowledgeSource  StepType = "knowledge_source"
	StepGenerateFollowup StepType = "generate_followup"
)

// StepStatus tracks a step through execution.
type StepStatus string

const (
	StepPending  StepStatus = "pending"
	StepComplete StepStatus = "complete"
	StepError    StepStatus = "error"
)

// ResultsStatus tracks the whole plan. There is no failure terminal state:
// individual step failures are absorbed per step and the plan always
// reaches complete.
type ResultsStatus string

const (
	ResultsPending    ResultsStatus = "pending"
	ResultsInProgress ResultsStatus = "in_progress"
	ResultsComplete   ResultsStatus = "complete"
)

// TermList accepts either a JSON string or an array of strings, since the
// model is inconsistent about which it returns.
type TermList []string

// UnmarshalJSON implements the lenient decoding.
func (t *TermList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*t = TermList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("search term is neither string nor list: %w", err)
	}
	*t = TermList(many)
	return nil
}

// QueryAnalysis is the structured decomposition of a research query.
type QueryAnalysis struct {
	MainQuestion     string              `json:"main_question"`
	SubQuestions     []string            `json:"sub_questions"`
	SearchTerms      map[string]TermList `json:"search_terms"`
	PriorityOrder    []string            `json:"priority_order"`
	RequiresFollowup bool                `json:"requires_followup"`
	DomainKnowledge  []string            `json:"domain_knowledge,omitempty"`
}

// Step is one unit of work in a plan. Status is the only field the
// executor mutates; everything else is fixed at planning time.
type Step struct {
	Type       StepType   `json:"type"`
	Engine     string     `json:"engine,omitempty"`      // web_search
	Source     string     `json:"source,omitempty"`      // knowledge_source
	Query      string     `json:"query,omitempty"`       // web_search, knowledge_source
	MaxResults int        `json:"max_results,omitempty"` // web_search, knowledge_source
	BasedOn    string     `json:"based_on,omitempty"`    // generate_followup
	Status     StepStatus `json:"status"`
}

// ResearchPlan is the planner's output: immutable once constructed apart
// from the step status fields owned by the executor.
type ResearchPlan struct {
	ID        string        `json:"id"`
	Query     string        `json:"query"`
	Analysis  QueryAnalysis `json:"analysis"`
	Steps     []*Step       `json:"steps"`
	CreatedAt time.Time     `json:"created_at"`
}

// PageRecord is one search hit, optionally enriched with visited content.
type PageRecord struct {
	Title   string               `json:"title"`
	URL     string               `json:"url"`
	Snippet string               `json:"snippet,omitempty"`
	Source  string               `json:"source,omitempty"`
	Content *browser.PageContent `json:"content,omitempty"`
}

// StepResult records the outcome of one executed step. On error the step's
// partial output is dropped and Error carries the message; the remaining
// steps still run.
type StepResult struct {
	Type      StepType           `json:"type"`
	Status    StepStatus         `json:"status"`
	Error     string             `json:"error,omitempty"`
	Pages     []PageRecord       `json:"pages,omitempty"`     // web_search
	Items     []knowledge.Result `json:"items,omitempty"`     // knowledge_source
	Questions []string           `json:"questions,omitempty"` // generate_followup
}

// ResearchResults accumulates step outcomes for one executed plan. It is
// mutated only by the executor and becomes effectively immutable once
// Status is ResultsComplete.
type ResearchResults struct {
	ID             string        `json:"id"`
	Query          string        `json:"query"`
	Results        []StepResult  `json:"results"`
	Status         ResultsStatus `json:"status"`
	CompletedSteps int           `json:"completed_steps"`
	TotalSteps     int           `json:"total_steps"`
	StartedAt      time.Time     `json:"started_at"`
	CompletedAt    time.Time     `json:"completed_at,omitempty"`
}
