package station

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// fuzzyThreshold is the minimum Jaro-Winkler similarity between a spoken term
// and a station name for the fuzzy fallback to accept the match.
const fuzzyThreshold = 0.6

// Outcome classifies the result of one resolution attempt.
type Outcome int

const (
	// Found means exactly one station matched.
	Found Outcome = iota

	// NotFound means no station matched any layer of the search.
	NotFound

	// Ambiguous means more than one station matched and the caller must ask
	// the user to disambiguate.
	Ambiguous
)

// Resolution is the outcome of resolving one or two spoken location terms
// against a directory snapshot. Callers must switch on Outcome: Station is
// only meaningful for Found, Candidates only for Ambiguous, and Terms carries
// the original inputs for composing NotFound messages.
type Resolution struct {
	Outcome    Outcome
	Station    Record
	Terms      []string
	Candidates []string
}

// Matches collects every station matching one or two spoken location terms.
// Matching layers are tried in order, stopping at the first that produces any
// candidates:
//
//  1. Single term only: a case-insensitive exact match on a station's display
//     name short-circuits with that single station, even if the term also
//     appears inside other stations' addresses.
//  2. Substring match of the normalised term against every station's address,
//     and (single-term only) against the cross-street field.
//  3. Two terms: a station matches when both normalised terms appear within
//     the same field, checked across address, display name, and cross-street.
//  4. When nothing matched and exact is false, a fuzzy fallback picks the
//     single closest station name by Jaro-Winkler similarity (>= 0.6). With
//     two terms, both orderings of "first & second" are probed and the
//     higher-scoring ordering wins. Fuzzy matching never contributes more
//     than one candidate.
func Matches(directory []Record, first, second string, exact bool) []Record {
	nfirst := SpeechToCanonical(first)

	if second == "" {
		for _, sta := range directory {
			if strings.ToLower(sta.Name) == nfirst {
				return []Record{sta}
			}
		}
		possible := matchOneTerm(directory, nfirst)
		if len(possible) == 0 && !exact {
			if sta, ok := closestByName(nfirst, directory); ok {
				possible = append(possible, sta)
			}
		}
		return possible
	}

	nsecond := SpeechToCanonical(second)
	possible := matchTwoTerms(directory, nfirst, nsecond)
	if len(possible) == 0 && !exact {
		if sta, ok := fuzzyPair(nfirst, nsecond, directory); ok {
			possible = append(possible, sta)
		}
	}
	return possible
}

// Resolve narrows [Matches] to a single station or a typed failure: zero
// candidates yield NotFound, one yields Found, several yield Ambiguous with
// the candidate display names.
func Resolve(directory []Record, first, second string, exact bool) Resolution {
	terms := []string{first}
	if second != "" {
		terms = append(terms, second)
	}

	possible := Matches(directory, first, second, exact)

	switch len(possible) {
	case 0:
		return Resolution{Outcome: NotFound, Terms: terms}
	case 1:
		return Resolution{Outcome: Found, Station: possible[0], Terms: terms}
	default:
		names := make([]string, len(possible))
		for i, sta := range possible {
			names[i] = sta.Name
		}
		return Resolution{Outcome: Ambiguous, Terms: terms, Candidates: names}
	}
}

// matchOneTerm collects stations whose address or cross-street contains the
// normalised term. A station is collected at most once even when both fields
// match.
func matchOneTerm(directory []Record, term string) []Record {
	var possible []Record
	seen := make(map[string]struct{})
	add := func(sta Record) {
		if _, dup := seen[sta.ID]; dup {
			return
		}
		seen[sta.ID] = struct{}{}
		possible = append(possible, sta)
	}

	for _, sta := range directory {
		if strings.Contains(strings.ToLower(sta.Address), term) {
			add(sta)
		}
	}
	for _, sta := range directory {
		if sta.CrossStreet != "" && strings.Contains(strings.ToLower(sta.CrossStreet), term) {
			add(sta)
		}
	}
	return possible
}

// matchTwoTerms collects stations where both normalised terms appear within
// the same field, trying address, display name, and cross-street in turn.
func matchTwoTerms(directory []Record, first, second string) []Record {
	var possible []Record
	for _, sta := range directory {
		address := strings.ToLower(sta.Address)
		name := strings.ToLower(sta.Name)
		cross := strings.ToLower(sta.CrossStreet)
		if bothIn(address, first, second) ||
			bothIn(name, first, second) ||
			(cross != "" && bothIn(cross, first, second)) {
			possible = append(possible, sta)
		}
	}
	return possible
}

func bothIn(field, first, second string) bool {
	return strings.Contains(field, first) && strings.Contains(field, second)
}

// closestByName returns the station whose display name is most similar to the
// normalised term. Acceptance requires the best similarity to clear
// fuzzyThreshold; otherwise ok is false.
func closestByName(term string, directory []Record) (Record, bool) {
	var (
		best      Record
		bestScore float64
	)
	for _, sta := range directory {
		score := matchr.JaroWinkler(term, strings.ToLower(sta.Name), false)
		if score > bestScore {
			best, bestScore = sta, score
		}
	}
	if bestScore < fuzzyThreshold {
		return Record{}, false
	}
	return best, true
}

// fuzzyPair handles two-term fuzzy fallback. Street pairs are often spoken in
// the opposite order from the feed's naming, so both orderings are probed as
// "first & second" strings. Each surviving candidate is scored against the
// probe that produced it and the higher-scoring ordering wins.
func fuzzyPair(first, second string, directory []Record) (Record, bool) {
	probeOne := first + " & " + second
	probeTwo := second + " & " + first

	candOne, okOne := closestByName(probeOne, directory)
	candTwo, okTwo := closestByName(probeTwo, directory)

	var scoreOne, scoreTwo float64
	if okOne {
		scoreOne = matchr.JaroWinkler(probeOne, strings.ToLower(candOne.Name), false)
	}
	if okTwo {
		scoreTwo = matchr.JaroWinkler(probeTwo, strings.ToLower(candTwo.Name), false)
	}

	switch {
	case okOne && scoreOne > scoreTwo:
		return candOne, true
	case okTwo:
		return candTwo, true
	default:
		return Record{}, false
	}
}

// SpeakAlternatives renders candidate display names as a spoken choice list:
// all but the last joined with ", ", the last introduced by ", or ".
func SpeakAlternatives(names []string) string {
	if len(names) == 0 {
		return ""
	}
	spoken := make([]string, len(names))
	for i, n := range names {
		spoken[i] = CanonicalToSpeech(n)
	}
	if len(spoken) == 1 {
		return spoken[0]
	}
	return strings.Join(spoken[:len(spoken)-1], ", ") + ", or " + spoken[len(spoken)-1]
}
