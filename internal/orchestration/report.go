package orchestration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"webresearch/internal/config"
	"webresearch/internal/llm"
	"webresearch/internal/logging"
)

// ReportGenerator synthesizes accumulated results into a Markdown report
// with a citations section, pre-summarizing oversized content so the
// findings fit a model context budget.
type ReportGenerator struct {
	llm llm.Client
	cfg config.ReportConfig
}

// NewReportGenerator creates a generator over the given model client.
func NewReportGenerator(client llm.Client, cfg config.ReportConfig) *ReportGenerator {
	return &ReportGenerator{llm: client, cfg: cfg}
}

// GenerateReport produces the final Markdown report. Generation never
// fails: if the model is unavailable a deterministic report is assembled
// from the raw results instead.
func (g *ReportGenerator) GenerateReport(ctx context.Context, results *ResearchResults) string {
	timer := logging.StartTimer(logging.CategoryReport, "generate report")
	defer timer.StopWithInfo()

	serialized := g.serialize(results)
	if len(serialized) > g.sizeThreshold() {
		logging.Report("results serialize to %d chars, pre-summarizing", len(serialized))
		g.summarizeOversized(ctx, results)
		serialized = g.serialize(results)
	}

	prompt := fmt.Sprintf("Research query: %s\n\nFindings (JSON):\n%s", results.Query, serialized)
	report, err := g.llm.CompleteWithSystem(ctx, synthesisSystemPrompt, prompt)
	if err != nil || strings.TrimSpace(report) == "" {
		logging.ReportWarn("synthesis failed, assembling fallback report: %v", err)
		report = g.fallbackReport(results)
	}

	report = strings.TrimSpace(report)
	if !strings.HasPrefix(report, "# ") {
		report = fmt.Sprintf("# Research Report: %s\n\n%s", results.Query, report)
	}

	if citations := FormatCitations(results); citations != "" {
		report += "\n\n## Sources\n\n" + citations
	}
	return report
}

func (g *ReportGenerator) sizeThreshold() int {
	if g.cfg.SizeThreshold <= 0 {
		return 6000
	}
	return g.cfg.SizeThreshold
}

func (g *ReportGenerator) contentThreshold() int {
	if g.cfg.ContentThreshold <= 0 {
		return 800
	}
	return g.cfg.ContentThreshold
}

func (g *ReportGenerator) summaryMax() int {
	if g.cfg.SummaryMaxLength <= 0 {
		return 500
	}
	return g.cfg.SummaryMaxLength
}

func (g *ReportGenerator) serialize(results *ResearchResults) string {
	data, err := json.Marshal(results)
	if err != nil {
		return ""
	}
	return string(data)
}

// summarizeOversized replaces every oversized content field with a model
// summary and marks the item. Items under the threshold pass through
// unchanged.
func (g *ReportGenerator) summarizeOversized(ctx context.Context, results *ResearchResults) {
	const focus = "key facts and insights"
	limit := g.contentThreshold()
	maxLen := g.summaryMax()

	for i := range results.Results {
		sr := &results.Results[i]
		switch sr.Type {
		case StepWebSearch:
			for j := range sr.Pages {
				page := &sr.Pages[j]
				if page.Content != nil && len(page.Content.Content) > limit {
					page.Content.Content = llm.Summarize(ctx, g.llm, page.Content.Content, maxLen, focus)
					if page.Content.Metadata == nil {
						page.Content.Metadata = make(map[string]string)
					}
					page.Content.Metadata["summarized"] = "true"
				}
			}
		case StepKnowledgeSource:
			for j := range sr.Items {
				item := &sr.Items[j]
				if len(item.Content) > limit {
					item.Content = llm.Summarize(ctx, g.llm, item.Content, maxLen, focus)
					item.Summarized = true
				}
			}
		}
	}
}

// fallbackReport lists the raw findings when synthesis is unavailable.
func (g *ReportGenerator) fallbackReport(results *ResearchResults) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Research Report: %s\n\n", results.Query)
	fmt.Fprintf(&sb, "Automated synthesis was unavailable; the raw findings are listed below.\n\n")

	for _, sr := range results.Results {
		switch sr.Type {
		case StepWebSearch:
			for _, page := range sr.Pages {
				fmt.Fprintf(&sb, "## %s\n\n%s\n\n", page.Title, page.Snippet)
			}
		case StepKnowledgeSource:
			for _, item := range sr.Items {
				fmt.Fprintf(&sb, "## %s\n\n%s\n\n", item.Title, item.Snippet)
			}
		case StepGenerateFollowup:
			if len(sr.Questions) > 0 {
				sb.WriteString("## Follow-up Questions\n\n")
				for _, q := range sr.Questions {
					fmt.Fprintf(&sb, "- %s\n", q)
				}
				sb.WriteString("\n")
			}
		}
	}
	return strings.TrimSpace(sb.String())
}

// FormatCitations emits one numbered citation per item carrying both a
// title and a URL, numbered globally across all steps in traversal order.
// No citable items yields an empty string.
func FormatCitations(results *ResearchResults) string {
	var sb strings.Builder
	n := 0

	cite := func(title, url string) {
		if title == "" || url == "" {
			return
		}
		n++
		fmt.Fprintf(&sb, "%d. %s (%s)\n", n, title, url)
	}

	for _, sr := range results.Results {
		for _, page := range sr.Pages {
			cite(page.Title, page.URL)
		}
		for _, item := range sr.Items {
			cite(item.Title, item.URL)
		}
	}
	return strings.TrimSpace(sb.String())
}
