package provider

import "fmt"

var systemPrompts = map[string]string{
	"summarize": "You are an expert at creating concise, accurate summaries that capture the key points of any text.",
	"improve":   "You are an expert editor who improves text clarity, grammar, and readability while preserving the original meaning and tone.",
	"translate": "You are an expert translator who provides accurate, natural translations while preserving context and meaning.",
	"correct":   "You are an expert proofreader who corrects grammar, spelling, and punctuation errors while maintaining the original style.",
	"expand":    "You are an expert writer who can elaborate on ideas with relevant details and examples while maintaining coherence.",
	"simplify":  "You are an expert at making complex text easier to understand while preserving all important information.",
	"analyze":   "You are an expert text analyst who provides detailed insights about content, structure, and meaning.",
}

var userPrompts = map[string]string{
	"summarize": "Please summarize the following text concisely:\n\n%s",
	"improve":   "Please improve the following text for clarity, grammar, and readability:\n\n%s",
	"correct":   "Please correct any grammar, spelling, and punctuation errors in the following text:\n\n%s",
	"expand":    "Please expand and elaborate on the following text with more details:\n\n%s",
	"simplify":  "Please simplify the following text to make it easier to understand:\n\n%s",
	"analyze":   "Please analyze the following text and respond with a JSON object containing word_count, sentence_count, paragraph_count, reading_level, sentiment, key_topics, language, tone, and summary:\n\n%s",
}

func systemPrompt(operation string) string {
	if p, ok := systemPrompts[operation]; ok {
		return p
	}
	return "You are a helpful assistant that processes text according to user requests."
}

func userPrompt(text, operation string, options map[string]any) string {
	if operation == "translate" {
		lang := "English"
		if v, ok := options["target_language"].(string); ok && v != "" {
			lang = v
		}
		return fmt.Sprintf("Please translate the following text to %s:\n\n%s", lang, text)
	}

	if p, ok := userPrompts[operation]; ok {
		return fmt.Sprintf(p, text)
	}
	return fmt.Sprintf("Please process the following text:\n\n%s", text)
}
