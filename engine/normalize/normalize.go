// Package normalize cleans up slang, phonetic spellings and emphatic
// distortion before embedding, so that "gimme a timerrr!!!" and "give me a
// timer" land on the same vector neighborhood. It also estimates how
// distorted the raw input was, which feeds the input-fidelity context
// factor.
package normalize

import (
	"regexp"
	"strings"
)

// slangMap maps casual or abbreviated forms to their canonical spelling.
var slangMap = map[string]string{
	"gonna":     "going to",
	"wanna":     "want to",
	"gotta":     "got to",
	"kinda":     "kind of",
	"sorta":     "sort of",
	"dunno":     "don't know",
	"lemme":     "let me",
	"gimme":     "give me",
	"wont":      "won't",
	"cant":      "can't",
	"dont":      "don't",
	"didnt":     "didn't",
	"wasnt":     "wasn't",
	"werent":    "weren't",
	"shouldnt":  "shouldn't",
	"wouldnt":   "wouldn't",
	"couldnt":   "couldn't",
	"u":         "you",
	"ur":        "your",
	"r":         "are",
	"y":         "why",
	"pls":       "please",
	"plz":       "please",
	"thx":       "thanks",
	"thnx":      "thanks",
	"np":        "no problem",
	"nvm":       "never mind",
	"idk":       "i don't know",
	"imo":       "in my opinion",
	"btw":       "by the way",
	"omw":       "on my way",
	"bcoz":      "because",
	"coz":       "because",
	"cuz":       "because",
	"tho":       "though",
	"thru":      "through",
	"prolly":    "probably",
	"srsly":     "seriously",
}

// phoneticVariations maps a canonical word to its accent and phonetic
// spellings. The reverse index is built at init.
var phoneticVariations = map[string][]string{
	"what":    {"wut", "wat", "wot"},
	"because": {"bcuz"},
	"yes":     {"yea", "yeah", "yep", "yup"},
	"no":      {"nah", "nope"},
	"okay":    {"ok", "k", "kay", "kk"},
	"thanks":  {"thanx"},
	"please":  {"plox"},
}

var phoneticReverse = func() map[string]string {
	out := map[string]string{}
	for canonical, variations := range phoneticVariations {
		for _, v := range variations {
			out[v] = canonical
		}
	}
	return out
}()

// Runs of terminal punctuation collapse to one.
var punctuationPattern = regexp.MustCompile(`([!?.]){2,}`)

// collapseRepetition collapses three or more of the same rune to two
// ("hellooo" -> "helloo"). Go's RE2 regexp has no backreferences, so the
// run-length pass is done by hand.
func collapseRepetition(s string) string {
	var b strings.Builder
	var prev rune
	run := 0
	for _, r := range s {
		if r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run <= 2 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Result carries the normalized text plus a distortion estimate in [0,1]:
// 0 for untouched input, approaching 1 as more of the input needed repair.
type Result struct {
	Text       string
	Distortion float64
}

// Text normalizes raw input and reports how much of it changed.
func Text(raw string) Result {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = punctuationPattern.ReplaceAllString(normalized, "$1")
	normalized = collapseRepetition(normalized)

	words := strings.Fields(normalized)
	changed := 0
	out := make([]string, 0, len(words))
	for _, word := range words {
		clean := strings.TrimRight(word, ".,!?;:")
		punctuation := word[len(clean):]

		switch {
		case slangMap[clean] != "":
			out = append(out, slangMap[clean]+punctuation)
			changed++
		case phoneticReverse[clean] != "":
			out = append(out, phoneticReverse[clean]+punctuation)
			changed++
		default:
			out = append(out, word)
		}
	}
	normalized = strings.Join(out, " ")

	return Result{
		Text:       normalized,
		Distortion: distortion(raw, normalized, changed, len(words)),
	}
}

// IsVariation reports whether word is a known non-standard form of
// canonical.
func IsVariation(word, canonical string) bool {
	word = strings.ToLower(word)
	canonical = strings.ToLower(canonical)
	if word == canonical {
		return true
	}
	if mapped, ok := slangMap[word]; ok {
		return mapped == canonical
	}
	if mapped, ok := phoneticReverse[word]; ok {
		return mapped == canonical
	}
	return false
}

// distortion blends the word-level replacement rate with the character
// churn between raw and normalized text.
func distortion(raw, normalized string, changedWords, totalWords int) float64 {
	var wordRate float64
	if totalWords > 0 {
		wordRate = float64(changedWords) / float64(totalWords)
	}

	rawLower := strings.ToLower(strings.TrimSpace(raw))
	var charRate float64
	if len(rawLower) > 0 && rawLower != normalized {
		diff := len(rawLower) - len(normalized)
		if diff < 0 {
			diff = -diff
		}
		charRate = float64(diff) / float64(len(rawLower))
	}

	d := 0.7*wordRate + 0.3*charRate
	if d > 1 {
		d = 1
	}
	return d
}
