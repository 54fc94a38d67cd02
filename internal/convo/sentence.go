package convo

import (
	"strings"
	"unicode"
)

// IsCompleteSentence reports whether a transcript looks like a finished
// thought: the trailing-whitespace-trimmed text ends with sentence-ending
// punctuation or an ellipsis. A complete thought without terminal punctuation
// is a known false negative; the stale-fragment flush covers that case.
func IsCompleteSentence(text string) bool {
	t := strings.TrimRightFunc(text, unicode.IsSpace)
	for _, ending := range []string{".", "!", "?", "…"} {
		if strings.HasSuffix(t, ending) {
			return true
		}
	}
	return false
}

// SplitSentences splits response text for progressive synthesis: a boundary
// is sentence-ending punctuation followed by whitespace and an uppercase
// letter. Abbreviations mid-sentence cause under-splitting, which just means
// a slightly longer synthesis unit.
func SplitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0

	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}

		// Require whitespace then an uppercase letter after the punctuation.
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j == i+1 || j >= len(runes) || !unicode.IsUpper(runes[j]) {
			continue
		}

		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			sentences = append(sentences, s)
		}
		start = j
		i = j - 1
	}

	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
