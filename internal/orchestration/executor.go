package orchestration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"webresearch/internal/browser"
	"webresearch/internal/knowledge"
	"webresearch/internal/llm"
	"webresearch/internal/logging"

	"github.com/google/uuid"
)

// Searcher is the browser capability the executor consumes: ranked search
// plus content-enriching page visits.
type Searcher interface {
	Search(ctx context.Context, query, engine string, maxResults int) ([]knowledge.Result, error)
	VisitPage(ctx context.Context, url string) (*browser.PageContent, error)
}

// SourceQuerier is the knowledge registry capability. Failures surface as
// empty result lists, never as errors.
type SourceQuerier interface {
	Query(ctx context.Context, source, query string, maxResults int) []knowledge.Result
}

// Executor walks a plan's steps strictly in order, absorbing per-step
// failures so the plan as a whole always completes.
type Executor struct {
	searcher  Searcher
	registry  SourceQuerier
	llm       llm.Client
	stepDelay time.Duration
}

// NewExecutor wires an executor from its collaborators.
func NewExecutor(searcher Searcher, registry SourceQuerier, client llm.Client, stepDelay time.Duration) *Executor {
	return &Executor{
		searcher:  searcher,
		registry:  registry,
		llm:       client,
		stepDelay: stepDelay,
	}
}

// ExecuteResearchPlan runs every step and returns the accumulated results.
// The returned record always has Status complete and CompletedSteps equal
// to the plan's step count, regardless of individual step errors.
func (e *Executor) ExecuteResearchPlan(ctx context.Context, plan *ResearchPlan) *ResearchResults {
	results := &ResearchResults{
		ID:         uuid.NewString(),
		Query:      plan.Query,
		Status:     ResultsInProgress,
		TotalSteps: len(plan.Steps),
		StartedAt:  time.Now(),
	}

	logging.Executor("executing plan %s: %d steps", plan.ID, len(plan.Steps))

	for i, step := range plan.Steps {
		stepResult := e.dispatch(ctx, step, results)
		step.Status = stepResult.Status

		results.Results = append(results.Results, stepResult)
		results.CompletedSteps++

		if stepResult.Status == StepError {
			logging.ExecutorWarn("step %d/%d (%s) failed: %s", i+1, len(plan.Steps), step.Type, stepResult.Error)
		} else {
			logging.Executor("step %d/%d (%s) complete", i+1, len(plan.Steps), step.Type)
		}

		// Politeness pause between heterogeneous operations; skipped after
		// the last step. A cancelled context shortens the pause but never
		// aborts the walk.
		if i < len(plan.Steps)-1 && e.stepDelay > 0 {
			timer := time.NewTimer(e.stepDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
			case <-timer.C:
			}
		}
	}

	results.Status = ResultsComplete
	results.CompletedAt = time.Now()
	logging.Executor("plan %s complete: %d/%d steps", plan.ID, results.CompletedSteps, results.TotalSteps)
	return results
}

// dispatch runs one step, converting any failure into an error-status
// result at this boundary.
func (e *Executor) dispatch(ctx context.Context, step *Step, sofar *ResearchResults) StepResult {
	switch step.Type {
	case StepWebSearch:
		return e.executeWebSearch(ctx, step)
	case StepKnowledgeSource:
		items := e.registry.Query(ctx, step.Source, step.Query, step.MaxResults)
		return StepResult{
			Type:   StepKnowledgeSource,
			Status: StepComplete,
			Items:  items,
		}
	case StepGenerateFollowup:
		return e.executeFollowup(ctx, step, sofar)
	default:
		return StepResult{
			Type:   step.Type,
			Status: StepError,
			Error:  fmt.Sprintf("unknown step type %q", step.Type),
		}
	}
}

// executeWebSearch searches and then visits each hit in rank order.
// Per-page visit failures drop that page from the enriched set; they never
// fail the step.
func (e *Executor) executeWebSearch(ctx context.Context, step *Step) StepResult {
	hits, err := e.searcher.Search(ctx, step.Query, step.Engine, step.MaxResults)
	if err != nil {
		return StepResult{
			Type:   StepWebSearch,
			Status: StepError,
			Error:  fmt.Sprintf("search failed: %v", err),
		}
	}

	pages := make([]PageRecord, 0, len(hits))
	for _, hit := range hits {
		record := PageRecord{
			Title:   hit.Title,
			URL:     hit.URL,
			Snippet: hit.Snippet,
			Source:  hit.Source,
		}
		content, err := e.searcher.VisitPage(ctx, hit.URL)
		if err != nil {
			logging.ExecutorDebug("page visit %s omitted: %v", hit.URL, err)
			continue
		}
		record.Content = content
		pages = append(pages, record)
	}

	return StepResult{
		Type:   StepWebSearch,
		Status: StepComplete,
		Pages:  pages,
	}
}

// executeFollowup generates follow-up questions from the findings so far,
// with a deterministic placeholder set when the model is unavailable.
func (e *Executor) executeFollowup(ctx context.Context, step *Step, sofar *ResearchResults) StepResult {
	digest := findingsDigest(sofar)
	if step.BasedOn != "" {
		digest = "Main question: " + step.BasedOn + "\n" + digest
	}

	questions, err := llm.GenerateQuestions(ctx, e.llm, digest, 3)
	if err != nil {
		logging.ExecutorWarn("follow-up generation failed, using placeholders: %v", err)
		questions = placeholderQuestions(sofar.Query)
	}

	return StepResult{
		Type:      StepGenerateFollowup,
		Status:    StepComplete,
		Questions: questions,
	}
}

// findingsDigest flattens titles and snippets accumulated so far into a
// prompt-sized text block.
func findingsDigest(results *ResearchResults) string {
	var sb strings.Builder
	sb.WriteString("Research query: ")
	sb.WriteString(results.Query)
	sb.WriteString("\n\nFindings:\n")

	for _, sr := range results.Results {
		for _, page := range sr.Pages {
			fmt.Fprintf(&sb, "- %s: %s\n", page.Title, page.Snippet)
		}
		for _, item := range sr.Items {
			fmt.Fprintf(&sb, "- %s: %s\n", item.Title, item.Snippet)
		}
	}
	return sb.String()
}

func placeholderQuestions(query string) []string {
	return []string{
		fmt.Sprintf("What are the broader implications of %s?", query),
		fmt.Sprintf("What recent developments relate to %s?", query),
		fmt.Sprintf("What open problems remain around %s?", query),
	}
}
