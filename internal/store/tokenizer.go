package store

import (
	"strings"
	"unicode"
)

// EnglishStopWords are dropped from lexical queries.
var EnglishStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "can", "do", "does",
	"for", "from", "has", "have", "how", "i", "if", "in", "into", "is", "it",
	"its", "my", "no", "not", "of", "on", "or", "such", "that", "the", "their",
	"then", "there", "these", "they", "this", "to", "was", "what", "when",
	"where", "which", "who", "will", "with", "under", "am",
}

// Tokenize splits text into lowercase words of at least two characters.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		lower := strings.ToLower(w)
		if len([]rune(lower)) >= 2 {
			tokens = append(tokens, lower)
		}
	}
	return tokens
}

// FilterStopWords removes stop words from a token list.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := stopWords[strings.ToLower(token)]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

// BuildStopWordMap converts a slice of stop words to a map for efficient lookup.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}
