package orchestration

import (
	"context"
	"strings"
	"testing"

	"webresearch/internal/browser"
	"webresearch/internal/config"
	"webresearch/internal/knowledge"
)

func sampleResults() *ResearchResults {
	return &ResearchResults{
		Query:  "quantum computing basics",
		Status: ResultsComplete,
		Results: []StepResult{
			{
				Type:   StepWebSearch,
				Status: StepComplete,
				Pages: []PageRecord{
					{
						Title:   "Quantum Computing Explained",
						URL:     "https://example.com/qc",
						Snippet: "An overview of qubits.",
						Content: &browser.PageContent{Content: "qubit details"},
					},
				},
			},
			{
				Type:   StepKnowledgeSource,
				Status: StepComplete,
				Items: []knowledge.Result{
					{
						Title:   "Quantum computing",
						URL:     "https://en.wikipedia.org/wiki/Quantum_computing",
						Snippet: "Computation using quantum mechanics.",
						Source:  "wikipedia",
					},
				},
			},
		},
	}
}

func TestGenerateReportPrependsHeading(t *testing.T) {
	t.Parallel()

	model := &fakeLLM{reply: func(system, user string) (string, error) {
		return "The findings indicate qubits are central.", nil
	}}
	gen := NewReportGenerator(model, config.ReportConfig{})

	report := gen.GenerateReport(context.Background(), sampleResults())

	if !strings.HasPrefix(report, "# Research Report: quantum computing basics") {
		t.Errorf("missing heading:\n%s", report)
	}
	if !strings.Contains(report, "The findings indicate") {
		t.Error("model body dropped")
	}
}

func TestGenerateReportPrependsHeadingOverSubHeading(t *testing.T) {
	t.Parallel()

	// A reply opening with an H2 still lacks a top-level heading.
	model := &fakeLLM{reply: func(system, user string) (string, error) {
		return "## Key Findings\n\nBody text.", nil
	}}
	gen := NewReportGenerator(model, config.ReportConfig{})

	report := gen.GenerateReport(context.Background(), sampleResults())

	if !strings.HasPrefix(report, "# Research Report: quantum computing basics") {
		t.Errorf("H1 should be prepended above a sub-heading:\n%s", report)
	}
	if !strings.Contains(report, "## Key Findings") {
		t.Error("model body dropped")
	}
}

func TestGenerateReportKeepsModelHeading(t *testing.T) {
	t.Parallel()

	model := &fakeLLM{reply: func(system, user string) (string, error) {
		return "# Qubits in Practice\n\nBody text.", nil
	}}
	gen := NewReportGenerator(model, config.ReportConfig{})

	report := gen.GenerateReport(context.Background(), sampleResults())
	if !strings.HasPrefix(report, "# Qubits in Practice") {
		t.Errorf("model heading should be preserved:\n%s", report)
	}
}

func TestGenerateReportAppendsCitations(t *testing.T) {
	t.Parallel()

	model := &fakeLLM{reply: func(system, user string) (string, error) {
		return "# Report\n\nBody.", nil
	}}
	gen := NewReportGenerator(model, config.ReportConfig{})

	report := gen.GenerateReport(context.Background(), sampleResults())

	if !strings.Contains(report, "## Sources") {
		t.Fatalf("citations section missing:\n%s", report)
	}
	if !strings.Contains(report, "1. Quantum Computing Explained (https://example.com/qc)") {
		t.Error("page citation missing or misnumbered")
	}
	if !strings.Contains(report, "2. Quantum computing (https://en.wikipedia.org/wiki/Quantum_computing)") {
		t.Error("item citation should continue the global numbering")
	}
}

func TestGenerateReportFallback(t *testing.T) {
	t.Parallel()

	gen := NewReportGenerator(brokenLLM(), config.ReportConfig{})
	report := gen.GenerateReport(context.Background(), sampleResults())

	if !strings.HasPrefix(report, "# Research Report: quantum computing basics") {
		t.Errorf("fallback missing heading:\n%s", report)
	}
	if !strings.Contains(report, "Quantum Computing Explained") {
		t.Error("fallback should list raw findings")
	}
}

func TestGenerateReportSummarizesOversized(t *testing.T) {
	t.Parallel()

	model := &fakeLLM{reply: func(system, user string) (string, error) {
		return "condensed", nil
	}}
	gen := NewReportGenerator(model, config.ReportConfig{
		SizeThreshold:    100,
		ContentThreshold: 50,
		SummaryMaxLength: 40,
	})

	results := sampleResults()
	long := strings.Repeat("the measurement problem ", 20)
	results.Results[0].Pages[0].Content.Content = long
	results.Results[1].Items[0].Content = long

	gen.GenerateReport(context.Background(), results)

	page := results.Results[0].Pages[0]
	if page.Content.Content == long {
		t.Error("oversized page content not summarized")
	}
	if page.Content.Metadata["summarized"] != "true" {
		t.Error("summarized page not marked")
	}
	item := results.Results[1].Items[0]
	if item.Content == long || !item.Summarized {
		t.Errorf("oversized item not summarized: marked=%v", item.Summarized)
	}
}

func TestGenerateReportSkipsSummarizationUnderThreshold(t *testing.T) {
	t.Parallel()

	model := &fakeLLM{reply: func(system, user string) (string, error) {
		return "# Report\n\nBody.", nil
	}}
	gen := NewReportGenerator(model, config.ReportConfig{})

	results := sampleResults()
	original := results.Results[0].Pages[0].Content.Content
	gen.GenerateReport(context.Background(), results)

	if results.Results[0].Pages[0].Content.Content != original {
		t.Error("small content should pass through untouched")
	}
	if results.Results[1].Items[0].Summarized {
		t.Error("small item should not be marked summarized")
	}
}

func TestFormatCitations(t *testing.T) {
	t.Parallel()

	results := &ResearchResults{
		Results: []StepResult{
			{
				Type: StepWebSearch,
				Pages: []PageRecord{
					{Title: "First", URL: "https://a.example"},
					{Title: "", URL: "https://no-title.example"},
					{Title: "No URL"},
				},
			},
			{
				Type:  StepKnowledgeSource,
				Items: []knowledge.Result{{Title: "Second", URL: "https://b.example"}},
			},
		},
	}

	got := FormatCitations(results)
	want := "1. First (https://a.example)\n2. Second (https://b.example)"
	if got != want {
		t.Errorf("citations:\ngot  %q\nwant %q", got, want)
	}

	if FormatCitations(&ResearchResults{}) != "" {
		t.Error("no citable items should yield empty string")
	}
}
