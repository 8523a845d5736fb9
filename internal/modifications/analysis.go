package modifications

import "github.com/JaimeStill/quill/pkg/formatting"

// Analysis is the structured result of the analyze operation. The AI-backed
// path fills every field; the basic fallback fills only the locally
// computable metrics.
type Analysis struct {
	WordCount      int      `json:"word_count"`
	SentenceCount  int      `json:"sentence_count"`
	ParagraphCount int      `json:"paragraph_count"`
	CharacterCount int      `json:"character_count,omitempty"`
	ReadingLevel   string   `json:"reading_level"`
	Sentiment      string   `json:"sentiment"`
	KeyTopics      []string `json:"key_topics"`
	Language       string   `json:"language"`
	Tone           string   `json:"tone"`
	Summary        string   `json:"summary"`
}

// basicAnalysis computes local metrics when the provider is unreachable or
// returns unparseable content. Qualitative fields report unknown rather
// than guess.
func basicAnalysis(text string) *Analysis {
	return &Analysis{
		WordCount:      formatting.WordCount(text),
		SentenceCount:  formatting.SentenceCount(text),
		ParagraphCount: formatting.ParagraphCount(text),
		CharacterCount: len(text),
		ReadingLevel:   "unknown",
		Sentiment:      "unknown",
		KeyTopics:      []string{},
		Language:       "unknown",
		Tone:           "unknown",
		Summary:        formatting.Truncate(text, 100),
	}
}
