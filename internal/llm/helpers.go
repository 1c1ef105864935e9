package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"webresearch/internal/logging"
)

// Summarize condenses text to at most maxLength characters. The focus hint
// steers what the summary keeps. On any model failure the text is truncated
// instead; summarization never fails.
func Summarize(ctx context.Context, c Client, text string, maxLength int, focus string) string {
	if maxLength <= 0 {
		maxLength = 500
	}
	if len(text) <= maxLength {
		return text
	}

	prompt := fmt.Sprintf(
		"Summarize the following text in no more than %d characters. Focus on %s. Return only the summary.\n\n%s",
		maxLength, focus, text)

	summary, err := c.Complete(ctx, prompt)
	if err != nil || summary == "" {
		logging.LLMWarn("summarize fell back to truncation: %v", err)
		return truncate(text, maxLength)
	}
	return truncate(summary, maxLength)
}

// GenerateQuestions asks the model for n follow-up questions about text.
// The model is asked for a JSON array; replies that do not parse are split
// into lines and cleaned instead.
func GenerateQuestions(ctx context.Context, c Client, text string, n int) ([]string, error) {
	if n <= 0 {
		n = 3
	}

	prompt := fmt.Sprintf(
		"Based on the following research findings, generate %d follow-up questions that would deepen the research. Respond with a JSON array of strings only.\n\n%s",
		n, text)

	reply, err := c.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("question generation failed: %w", err)
	}

	var questions []string
	if err := json.Unmarshal([]byte(StripFences(reply)), &questions); err == nil {
		if len(questions) > n {
			questions = questions[:n]
		}
		return questions, nil
	}

	// Line-split fallback for prose-shaped replies
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789.) ")
		if line != "" && strings.Contains(line, "?") {
			questions = append(questions, line)
		}
		if len(questions) >= n {
			break
		}
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("no questions found in reply")
	}
	return questions, nil
}

// Classify assigns text to one of categories. Replies that name no known
// category yield "unknown".
func Classify(ctx context.Context, c Client, text string, categories []string) string {
	prompt := fmt.Sprintf(
		"Classify the following text into exactly one of these categories: %s. Respond with the category name only.\n\n%s",
		strings.Join(categories, ", "), text)

	reply, err := c.Complete(ctx, prompt)
	if err != nil {
		logging.LLMWarn("classification failed: %v", err)
		return "unknown"
	}

	lower := strings.ToLower(strings.TrimSpace(reply))
	for _, cat := range categories {
		if strings.Contains(lower, strings.ToLower(cat)) {
			return cat
		}
	}
	return "unknown"
}

// ExtractJSON finds and parses the outermost JSON object in raw model
// output, tolerating markdown code fences and surrounding prose.
func ExtractJSON(raw string) (map[string]any, error) {
	cleaned := StripFences(raw)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object found in reply")
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse JSON reply: %w", err)
	}
	return parsed, nil
}

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop a language tag like "json"
	if idx := strings.IndexFunc(s, unicode.IsSpace); idx >= 0 {
		first := s[:idx]
		if len(first) > 0 && len(first) < 16 && !strings.ContainsAny(first, "{}[]") {
			s = s[idx:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
