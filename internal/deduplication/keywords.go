package deduplication

// DefaultMaxKeywords caps the keywords taken from a single text
const DefaultMaxKeywords = 10

// stopWords are common English function words, pronouns and contraction
// fragments that carry no search signal.
var stopWords = newWordSet(
	"a", "an", "the", "is", "are", "was", "were", "be", "been", "being",
	"have", "has", "had", "do", "does", "did", "will", "would", "could",
	"should", "may", "might", "must", "shall", "can", "need", "dare",
	"ought", "used", "to", "of", "in", "for", "on", "with", "at", "by",
	"from", "as", "into", "through", "during", "before", "after", "above",
	"below", "between", "under", "again", "further", "then", "once", "here",
	"there", "when", "where", "why", "how", "all", "each", "few", "more",
	"most", "other", "some", "such", "no", "nor", "not", "only", "own",
	"same", "so", "than", "too", "very", "just", "also", "now", "and",
	"but", "or", "if", "because", "until", "while", "although", "though",
	"i", "me", "my", "myself", "we", "our", "ours", "ourselves", "you",
	"your", "yours", "yourself", "yourselves", "he", "him", "his", "himself",
	"she", "her", "hers", "herself", "it", "its", "itself", "they", "them",
	"their", "theirs", "themselves", "what", "which", "who", "whom", "this",
	"that", "these", "those", "am", "isn", "aren", "wasn", "weren", "hasn",
	"haven", "hadn", "doesn", "don", "didn", "won", "wouldn", "couldn",
	"shouldn", "mustn", "let", "s", "t", "ve", "ll", "d", "re", "m",
)

type wordSet map[string]struct{}

func newWordSet(words ...string) wordSet {
	set := make(wordSet, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func (s wordSet) has(w string) bool {
	_, ok := s[w]
	return ok
}

// IsStopWord reports whether w (already lowercased) is filtered from keywords
func IsStopWord(w string) bool {
	return stopWords.has(w)
}

// ExtractKeywords returns up to maxKeywords significant lowercase tokens from
// text in first-occurrence order. Tokens are maximal runs of ASCII letters and
// digits; stop words and single-character tokens are dropped.
func ExtractKeywords(text string, maxKeywords int) []string {
	keywords := make([]string, 0, maxKeywords)
	if maxKeywords <= 0 {
		return keywords
	}
	seen := make(map[string]struct{})

	start := -1
	flush := func(end int) bool {
		token := toLowerASCII(text[start:end])
		start = -1
		if len(token) <= 1 || stopWords.has(token) {
			return false
		}
		if _, dup := seen[token]; dup {
			return false
		}
		seen[token] = struct{}{}
		keywords = append(keywords, token)
		return len(keywords) == maxKeywords
	}

	for i := 0; i < len(text); i++ {
		if isASCIIAlnum(text[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 && flush(i) {
			return keywords
		}
	}
	if start >= 0 {
		flush(len(text))
	}
	return keywords
}

// MergeKeywords appends the keywords of extra not already present in base,
// keeping base first, and truncates the union to limit.
func MergeKeywords(base, extra []string, limit int) []string {
	merged := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]struct{}, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, k := range list {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			merged = append(merged, k)
		}
	}
	if limit >= 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

func isASCIIAlnum(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
