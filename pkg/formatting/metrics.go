package formatting

import "strings"

// WordCount returns the number of whitespace-separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// SentenceCount returns the number of non-empty sentence fragments in text,
// splitting on terminal punctuation.
func SentenceCount(text string) int {
	count := 0
	for sentence := range strings.FieldsFuncSeq(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		if strings.TrimSpace(sentence) != "" {
			count++
		}
	}
	return count
}

// ParagraphCount returns the number of non-empty paragraphs in text,
// splitting on blank lines.
func ParagraphCount(text string) int {
	count := 0
	for _, paragraph := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(paragraph) != "" {
			count++
		}
	}
	return count
}

// Truncate shortens text to max runes, appending an ellipsis when truncated.
func Truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
