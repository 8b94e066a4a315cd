package openai

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const summaryPromptTemplate = `Summarize the following text:

%s`

// genericSummaries are responses treated as "no summary" regardless of case.
var genericSummaries = []string{"", "no summary generated"}

// buildSummaryPrompt creates the user prompt from the first limit characters of text.
func buildSummaryPrompt(text string, limit int) string {
	return fmt.Sprintf(summaryPromptTemplate, truncateRunes(text, limit))
}

func isGenericSummary(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, g := range genericSummaries {
		if s == g {
			return true
		}
	}
	return false
}

// truncateRunes returns at most limit characters of s.
func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
