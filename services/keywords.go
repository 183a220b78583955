package services

import (
	"context"
	"strings"

	"rental-pipeline/llm"
	"rental-pipeline/utils"
)

// KeywordLanguage selects the target language of a keyword extraction pass.
type KeywordLanguage int

const (
	KeywordsEnglish KeywordLanguage = iota
	KeywordsChinese
)

// keywordUnset is the placeholder a failed or impossible extraction stores;
// it triggers recomputation on the next run.
const keywordUnset = "N/A"

const keywordSystemPromptEN = "Extract concise keywords from the given property description. " +
	"Include aspects such as location, property features, and available facilities. " +
	"Output in one line without any extra text, in English. " +
	"For example: Keywords: 3-bedroom apartment, large courtyard, stylish tiled floor, built-in wardrobes, " +
	"master suite bathroom, air conditioning, ample storage, open kitchen, SMEG appliances, NBN ready, " +
	"resort-style amenities, indoor heated pool, gym, private landscaped courtyard."

const keywordSystemPromptCN = "从给定的房屋描述中提取关键词，关键词请用中文输出。" +
	"要求关键词应包含房屋的位置、特征和可用设施。" +
	"只输出关键词，用逗号分隔，不要包含其他文字。"

// keywordLabels are the known response prefixes stripped when present.
var keywordLabels = []string{"keywords:", "关键词:", "关键词："}

// NeedsKeywords reports whether a keyword field must be recomputed: empty
// and placeholder values do, anything else is accepted as-is.
func NeedsKeywords(s string) bool {
	return s == "" || s == keywordUnset
}

// StripKeywordLabel removes a known label prefix from a response line and
// trims it to the single expected line.
func StripKeywordLabel(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	lower := strings.ToLower(s)
	for _, label := range keywordLabels {
		if strings.HasPrefix(lower, label) {
			return strings.TrimSpace(s[len(label):])
		}
	}
	return s
}

// KeywordExtractor fills keyword fields from the extraction service.
type KeywordExtractor struct {
	chat   llm.Chat
	logger *utils.Logger
}

// NewKeywordExtractor creates an extractor over the chat client.
func NewKeywordExtractor(chat llm.Chat, logger *utils.Logger) *KeywordExtractor {
	return &KeywordExtractor{chat: chat, logger: logger}
}

// Extract requests keywords for one description in the target language and
// returns the value to store plus the number of calls made. Empty responses
// and call failures store the placeholder; non-empty responses are accepted
// without further validation.
func (k *KeywordExtractor) Extract(ctx context.Context, description string, lang KeywordLanguage) (string, int) {
	if strings.TrimSpace(description) == "" || description == keywordUnset {
		return keywordUnset, 0
	}

	system := keywordSystemPromptEN
	if lang == KeywordsChinese {
		system = keywordSystemPromptCN
	}

	resp, err := k.chat.Complete(ctx, system, description)
	if err != nil {
		k.logger.Warn("[keywords] extraction call failed: %v", err)
		return keywordUnset, 1
	}

	keywords := StripKeywordLabel(resp)
	if keywords == "" {
		return keywordUnset, 1
	}
	return keywords, 1
}
