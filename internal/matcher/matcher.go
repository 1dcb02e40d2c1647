// Package matcher resolves free-text goals to catalog keys by fuzzy string
// similarity.
package matcher

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"github.com/Chandra-cc/personalized-learning/internal/models"
)

// Threshold is the minimum score (exclusive) for a match to be accepted
const Threshold = 65

// tokenScale discounts token-based scores so a plain full-string match wins
const tokenScale = 0.95

// Resolve returns the known goal most similar to freeText. Ties keep the
// first goal in knownGoals order. It returns models.ErrNoMatchingGoal when
// no goal scores above Threshold.
func Resolve(freeText string, knownGoals []string) (string, error) {
	best, score := BestMatch(freeText, knownGoals)
	if best == "" || score <= Threshold {
		return "", models.ErrNoMatchingGoal
	}
	return best, nil
}

// BestMatch returns the highest scoring goal and its score without applying
// the threshold
func BestMatch(freeText string, knownGoals []string) (string, int) {
	best, bestScore := "", -1
	for _, goal := range knownGoals {
		if goal == freeText {
			return goal, 100
		}
		if s := Score(freeText, goal); s > bestScore {
			best, bestScore = goal, s
		}
	}
	return best, bestScore
}

// Score rates the similarity of a and b on a 0-100 scale. It is the
// maximum of the plain ratio and the token-sort / token-set ratios.
func Score(a, b string) int {
	na, nb := normalize(a), normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 100
	}

	best := ratio(na, nb)
	ta, tb := tokens(na), tokens(nb)

	sorted := ratio(strings.Join(ta, " "), strings.Join(tb, " "))
	if s := scaled(sorted); s > best {
		best = s
	}
	if s := scaled(tokenSetRatio(ta, tb)); s > best {
		best = s
	}
	return best
}

// ratio is 100 * (1 - distance / longer length), rounded
func ratio(a, b string) int {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 100
	}
	d := levenshtein.ComputeDistance(a, b)
	return int(math.Round(100 * (1 - float64(d)/float64(longest))))
}

// tokenSetRatio compares the shared tokens against each side's full token
// set, so "web developer" scores high against "become a web developer"
func tokenSetRatio(ta, tb []string) int {
	setA, setB := toSet(ta), toSet(tb)

	var common, onlyA, onlyB []string
	for t := range setA {
		if _, ok := setB[t]; ok {
			common = append(common, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range setB {
		if _, ok := setA[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(common, " ")
	withA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	withB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	if base == "" {
		return ratio(withA, withB)
	}
	best := ratio(base, withA)
	if s := ratio(base, withB); s > best {
		best = s
	}
	if s := ratio(withA, withB); s > best {
		best = s
	}
	return best
}

func scaled(s int) int {
	return int(math.Round(float64(s) * tokenScale))
}

// normalize lowercases, replaces punctuation with spaces and collapses runs
// of whitespace
func normalize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}

func tokens(s string) []string {
	t := strings.Fields(s)
	sort.Strings(t)
	return t
}

func toSet(ts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ts))
	for _, t := range ts {
		set[t] = struct{}{}
	}
	return set
}
