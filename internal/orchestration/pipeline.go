package orchestration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"webresearch/internal/config"
	"webresearch/internal/llm"
	"webresearch/internal/logging"
)

var unsafeFilenamePattern = regexp.MustCompile(`[^a-z0-9]+`)

// Pipeline chains planner, executor, and report generator behind one call.
type Pipeline struct {
	planner    *Planner
	executor   *Executor
	reporter   *ReportGenerator
	reportsDir string
}

// NewPipeline wires the full research pipeline.
func NewPipeline(client llm.Client, searcher Searcher, registry SourceQuerier, cfg *config.Config) *Pipeline {
	return &Pipeline{
		planner:    NewPlanner(client),
		executor:   NewExecutor(searcher, registry, client, cfg.Executor.StepDelay()),
		reporter:   NewReportGenerator(client, cfg.Report),
		reportsDir: cfg.Output.ReportsDir,
	}
}

// Run executes one research query end to end and saves the report. The
// report text and results are always returned; only report persistence
// can fail.
func (p *Pipeline) Run(ctx context.Context, query string) (string, *ResearchResults, string, error) {
	plan := p.planner.CreateResearchPlan(ctx, query)
	results := p.executor.ExecuteResearchPlan(ctx, plan)
	report := p.reporter.GenerateReport(ctx, results)

	path, err := p.SaveReport(query, report)
	if err != nil {
		return report, results, "", fmt.Errorf("report generated but not saved: %w", err)
	}
	return report, results, path, nil
}

// SaveReport writes the report under the reports directory. The filename
// derives from a sanitized query plus a timestamp.
func (p *Pipeline) SaveReport(query, report string) (string, error) {
	if err := os.MkdirAll(p.reportsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s.md", sanitizeQuery(query), time.Now().Format("20060102_150405"))
	path := filepath.Join(p.reportsDir, name)

	if err := os.WriteFile(path, []byte(report), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	logging.Report("report saved to %s", path)
	return path, nil
}

// sanitizeQuery turns a free-text query into a safe filename stem.
func sanitizeQuery(query string) string {
	s := strings.ToLower(strings.TrimSpace(query))
	s = unsafeFilenamePattern.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 50 {
		s = s[:50]
	}
	if s == "" {
		s = "research"
	}
	return s
}
