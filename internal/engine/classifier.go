package engine

import (
	"sort"
	"strings"
)

// confidenceThreshold is the minimum raw score a trigger phrase must reach
// before its task type is accepted. Anything below falls back to
// general_query instead of guessing.
const confidenceThreshold = 0.3

// Classifier scores instructions against the pattern catalog. It is pure and
// stateless; one instance can serve concurrent callers.
type Classifier struct {
	catalog *Catalog
}

func NewClassifier(catalog *Catalog) *Classifier {
	return &Classifier{catalog: catalog}
}

// Classify returns the best-matching task type for an instruction.
//
// For every trigger phrase the score is the fraction of phrase words found in
// the instruction (literal substring or synonym-group match), plus a bonus
// equal to the phrase word count when the whole phrase appears contiguously.
// Ties break in catalog order: the first phrase to reach the best score wins.
func (c *Classifier) Classify(instruction string) Classification {
	lower := strings.ToLower(strings.TrimSpace(instruction))

	best := Classification{
		Type:            TaskGeneralQuery,
		CandidateScores: make(map[TaskType]float64),
	}
	bestScore := 0.0

	for _, set := range c.catalog.Sets() {
		for _, phrase := range set.TriggerPhrases {
			score := c.scorePhrase(lower, phrase)
			if score > best.CandidateScores[set.Type] {
				best.CandidateScores[set.Type] = score
			}
			if score > bestScore {
				bestScore = score
				best.Type = set.Type
				best.MatchedPattern = phrase
			}
		}
	}

	best.Confidence = bestScore
	if best.Confidence > 1.0 {
		best.Confidence = 1.0
	}
	if bestScore < confidenceThreshold {
		best.Type = TaskGeneralQuery
		best.MatchedPattern = ""
	}
	return best
}

func (c *Classifier) scorePhrase(lowerInstruction, phrase string) float64 {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	words := strings.Fields(phrase)
	if len(words) == 0 {
		return 0
	}

	matched := 0
	for _, word := range words {
		if c.wordMatches(lowerInstruction, word) {
			matched++
		}
	}
	score := float64(matched) / float64(len(words))
	if strings.Contains(lowerInstruction, phrase) {
		score += float64(len(words))
	}
	return score
}

func (c *Classifier) wordMatches(lowerInstruction, word string) bool {
	if strings.Contains(lowerInstruction, word) {
		return true
	}
	for _, synonym := range c.catalog.SynonymsFor(word) {
		if synonym == word {
			continue
		}
		if strings.Contains(lowerInstruction, synonym) {
			return true
		}
	}
	return false
}

// ClosestCandidates returns up to n task types ordered by descending score,
// ties broken by type name for determinism. It backs the "did you mean"
// suggestions when classification falls back to general_query.
func ClosestCandidates(scores map[TaskType]float64, n int) []TaskType {
	type candidate struct {
		t     TaskType
		score float64
	}
	list := make([]candidate, 0, len(scores))
	for t, score := range scores {
		if t == TaskGeneralQuery {
			continue
		}
		list = append(list, candidate{t: t, score: score})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].score == list[j].score {
			return list[i].t < list[j].t
		}
		return list[i].score > list[j].score
	})
	if n > len(list) {
		n = len(list)
	}
	out := make([]TaskType, 0, n)
	for _, c := range list[:n] {
		out = append(out, c.t)
	}
	return out
}
