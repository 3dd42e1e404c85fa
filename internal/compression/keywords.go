package compression

import (
	"sort"
	"strings"
	"unicode"
)

// stopwords are dropped before counting keyword frequency.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		the and for are but not you your yours with this that these those have has had
		was were will would could should can what when where which who whom why how
		all any both each few more most other some such only own same than too very
		just about above after again against because been before being below between
		into through during from further then once here there out over under until
		off our ours ourselves she her hers him his himself they them their theirs
		its itself myself yourself yourselves i'm you're it's don't didn't doesn't
		isn't wasn't can't won't i've i'd i'll let's get got really also like yeah
		okay well much now even still did does doing going want know think`) {
		stopwords[w] = struct{}{}
	}
}

// tokenize lowercases text and strips surrounding punctuation from each word.
func tokenize(text string) []string {
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.ToLower(strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
		}))
		w = strings.Trim(w, "'")
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// topKeywords returns the k most frequent non-stopword tokens across
// messages. Ties break alphabetically so output is deterministic.
func topKeywords(messages []Message, k int) []string {
	if k <= 0 {
		return nil
	}
	freq := make(map[string]int)
	for _, m := range messages {
		for _, w := range tokenize(m.Content) {
			if len([]rune(w)) <= 2 {
				continue
			}
			if _, stop := stopwords[w]; stop {
				continue
			}
			freq[w]++
		}
	}

	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > k {
		words = words[:k]
	}
	return words
}

// excerpt collapses whitespace and truncates to n runes.
func excerpt(text string, n int) string {
	flat := strings.Join(strings.Fields(text), " ")
	r := []rune(flat)
	if n <= 0 || len(r) <= n {
		return flat
	}
	return string(r[:n]) + "…"
}
