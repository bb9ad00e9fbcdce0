package station

import "strings"

// abbreviations maps full spoken street words to the canonical abbreviated
// spelling used by station feeds. The table is immutable; both directions of
// the mapping are derived from it at init time.
var abbreviations = map[string]string{
	"street":    "st",
	"avenue":    "av",
	"boulevard": "blvd",
	"drive":     "dr",
	"road":      "rd",
	"lane":      "ln",
	"parkway":   "pkwy",
	"terrace":   "ter",
	"court":     "ct",
	"place":     "pl",
	"mount":     "mt",
}

// directions maps single-letter compass abbreviations to the spoken word.
// Only used when expanding canonical text for speech; spoken input rarely
// contains bare letters.
var directions = map[string]string{
	"n": "north",
	"s": "south",
	"e": "east",
	"w": "west",
}

// expansions is the inverse of abbreviations, built once at package init.
var expansions = func() map[string]string {
	m := make(map[string]string, len(abbreviations))
	for full, ab := range abbreviations {
		m[ab] = full
	}
	return m
}()

// SpeechToCanonical rewrites spoken address text into the canonical
// abbreviated form used by station names: lower-cased, the conjunction "and"
// replaced by "&", and each full street word replaced by its abbreviation.
// Replacement happens on whole whitespace-bounded tokens only, so "Grand"
// is never mangled into "Gr&".
func SpeechToCanonical(text string) string {
	tokens := strings.Fields(strings.ToLower(text))
	for i, tok := range tokens {
		if tok == "and" {
			tokens[i] = "&"
			continue
		}
		if ab, ok := abbreviations[tok]; ok {
			tokens[i] = ab
		}
	}
	return strings.Join(tokens, " ")
}

// CanonicalToSpeech expands canonical station text into a speakable form:
// "&" becomes "and", decorative "(*)" markers are stripped, abbreviations are
// expanded to full words, and compass letters are expanded to direction
// words. The expansion is lossy: text that was never abbreviated passes
// through unchanged apart from lower-casing, so round-tripping through
// SpeechToCanonical is not guaranteed to reproduce the original.
func CanonicalToSpeech(text string) string {
	text = strings.ReplaceAll(strings.ToLower(text), "(*)", "")
	tokens := strings.Fields(text)
	for i, tok := range tokens {
		if tok == "&" {
			tokens[i] = "and"
			continue
		}
		if full, ok := expansions[tok]; ok {
			tokens[i] = full
			continue
		}
		if word, ok := directions[tok]; ok {
			tokens[i] = word
		}
	}
	return strings.Join(tokens, " ")
}
