package engine

import (
	"fmt"
	"strings"

	"github.com/artswap/artswap/internal/core"
	"github.com/artswap/artswap/internal/core/imagefs"
)

// DisambiguationPolicy picks one card when the index returns several candidates.
// candidates is never empty.
type DisambiguationPolicy interface {
	Pick(name string, candidates []core.Card) core.Card
	Name() string
}

const (
	PolicyFirst = "first"
	PolicyExact = "exact"
)

// FirstCandidate keeps the index order and takes the first entry.
type FirstCandidate struct{}

func (FirstCandidate) Pick(_ string, candidates []core.Card) core.Card {
	return candidates[0]
}

func (FirstCandidate) Name() string { return PolicyFirst }

// ExactNameFirst prefers a candidate whose normalised name equals the game card
// name and otherwise behaves like FirstCandidate.
type ExactNameFirst struct{}

func (ExactNameFirst) Pick(name string, candidates []core.Card) core.Card {
	want := imagefs.NormalizeName(name)
	if want != "" {
		for _, c := range candidates {
			if imagefs.NormalizeName(c.Name) == want {
				return c
			}
		}
	}
	return candidates[0]
}

func (ExactNameFirst) Name() string { return PolicyExact }

// PolicyByName resolves a configured policy name.
func PolicyByName(name string) (DisambiguationPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyFirst:
		return FirstCandidate{}, nil
	case PolicyExact:
		return ExactNameFirst{}, nil
	default:
		return nil, fmt.Errorf("unknown disambiguation policy: %s", name)
	}
}
