package transcript

import (
	"strings"
	"unicode"
)

const UntitledTitle = "MY UNTITLED VOICE ENTRY"

const titleWords = 5

var stopWords = toSet(
	"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with", "by",
	"i", "me", "my", "we", "our", "you", "your", "it", "is", "was", "were", "be", "been", "being",
	"have", "has", "had", "do", "does", "did", "will", "would", "could", "should", "may", "might",
	"must", "shall", "can", "need", "dare", "ought", "used", "that", "this", "these", "those",
	"am", "are", "just", "so", "than", "too", "very", "cannot", "dont", "didnt", "wont",
	"wouldnt", "couldnt", "shouldnt", "im", "ive", "id", "ill",
)

var titleFillers = []string{"VOICE", "ENTRY", "STORY", "MOMENT", "MEMORY", "THOUGHT", "REFLECTION"}

// Title builds a five word uppercase title from the first key words of the
// transcript, padded with filler words.
func Title(transcript string) string {
	fields := strings.Fields(strings.ToLower(transcript))
	if len(fields) == 0 {
		return UntitledTitle
	}

	words := make([]string, 0, titleWords)
	for _, f := range fields {
		w := strings.TrimFunc(f, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsNumber(r) })
		if len([]rune(w)) <= 2 || stopWords[strings.ReplaceAll(w, "'", "")] {
			continue
		}
		words = append(words, strings.ToUpper(w))
		if len(words) == titleWords {
			break
		}
	}

	// the filler at the current length, or the next unused one
	for i := len(words); len(words) < titleWords; i++ {
		if filler := titleFillers[i%len(titleFillers)]; !contains(words, filler) {
			words = append(words, filler)
		}
	}
	return strings.Join(words, " ")
}

func contains(words []string, w string) bool {
	for _, x := range words {
		if x == w {
			return true
		}
	}
	return false
}

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
