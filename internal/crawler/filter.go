package crawler

import (
	"fmt"
	"strings"

	"classifieds-scraper/pkg/models"
)

// Selector decides whether a new identifier belongs in the run batch.
type Selector interface {
	Select(id models.ID) bool
}

// AllSelector keeps every identifier.
type AllSelector struct{}

func (AllSelector) Select(models.ID) bool { return true }

// ParitySelector keeps numeric identifiers of one parity, so two
// machines can split a category between them. Non-numeric identifiers
// are never selected.
type ParitySelector struct {
	Even bool
}

func (s ParitySelector) Select(id models.ID) bool {
	n, ok := id.Int()
	if !ok {
		return false
	}
	return (n%2 == 0) == s.Even
}

// SelectorFor maps a SELECTION setting to its selector.
func SelectorFor(name string) (Selector, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "all":
		return AllSelector{}, nil
	case "even":
		return ParitySelector{Even: true}, nil
	case "odd":
		return ParitySelector{Even: false}, nil
	default:
		return nil, fmt.Errorf("unknown selection %q", name)
	}
}

// EmptyPagePolicy decides what discovery does with a page without results.
type EmptyPagePolicy int

const (
	// StopOnEmpty ends discovery at the first empty page.
	StopOnEmpty EmptyPagePolicy = iota
	// SkipEmpty moves on to the next page.
	SkipEmpty
)

func (p EmptyPagePolicy) String() string {
	switch p {
	case StopOnEmpty:
		return "stop"
	case SkipEmpty:
		return "skip"
	default:
		return fmt.Sprintf("EmptyPagePolicy(%d)", int(p))
	}
}

func ParseEmptyPagePolicy(s string) (EmptyPagePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "stop":
		return StopOnEmpty, nil
	case "skip":
		return SkipEmpty, nil
	default:
		return StopOnEmpty, fmt.Errorf("unknown empty page policy %q", s)
	}
}
