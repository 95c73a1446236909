package displayname

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/w3f/polkadot-registrar-bot/internal/domain"
)

// Check validates a claimed display name against the names already registered
// with this registrar. A name passes when no existing name is confusably
// similar to it; on rejection the returned challenge lists the offending
// names so the claimant knows what collided.
func Check(candidate domain.DisplayName, existing []domain.DisplayName) domain.CheckDisplayNameChallenge {
	var similarities []domain.DisplayName
	target := normalize(string(candidate))
	for _, name := range existing {
		if similar(target, normalize(string(name))) {
			similarities = append(similarities, name)
		}
	}
	if len(similarities) > 0 {
		return domain.CheckDisplayNameChallenge{Status: domain.Invalid, Similarities: similarities}
	}
	return domain.CheckDisplayNameChallenge{Status: domain.Valid}
}

// normalize folds the homograph tricks that make two names read the same:
// compatibility forms (fullwidth, ligatures), case, and whitespace runs.
func normalize(name string) string {
	folded := norm.NFKC.String(name)
	folded = strings.ToLower(folded)
	fields := strings.FieldsFunc(folded, unicode.IsSpace)
	return strings.Join(fields, " ")
}

func similar(a, b string) bool {
	if a == b {
		return true
	}
	// A single edit between normalized names is close enough to confuse.
	return levenshtein(a, b) <= 1
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
