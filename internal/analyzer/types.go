// Package analyzer classifies a selection by what the user is working in and
// decides which kinds of assistance apply.
package analyzer

import (
	"sort"
	"strings"
)

// Type is the closed set of context categories.
type Type int

const (
	Generic Type = iota
	Code
	Web
	Text
)

func (t Type) String() string {
	switch t {
	case Code:
		return "code"
	case Web:
		return "web"
	case Text:
		return "text"
	default:
		return "generic"
	}
}

func (t Type) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// Feature names one kind of assistance.
type Feature string

const (
	CodeCompletion      Feature = "code_completion"
	TextSuggestions     Feature = "text_suggestions"
	LearningSuggestions Feature = "learning_suggestions"
	Translation         Feature = "translation"
)

// AllFeatures lists every known feature in a stable order.
var AllFeatures = []Feature{CodeCompletion, TextSuggestions, LearningSuggestions, Translation}

// FeatureSet is a small immutable-by-convention set of features.
type FeatureSet map[Feature]struct{}

func NewFeatureSet(fs ...Feature) FeatureSet {
	out := make(FeatureSet, len(fs))
	for _, f := range fs {
		out[f] = struct{}{}
	}
	return out
}

func (s FeatureSet) Has(f Feature) bool {
	_, ok := s[f]
	return ok
}

func (s FeatureSet) Empty() bool { return len(s) == 0 }

// List returns the features sorted by name.
func (s FeatureSet) List() []string {
	out := make([]string, 0, len(s))
	for f := range s {
		out = append(out, string(f))
	}
	sort.Strings(out)
	return out
}

func (s FeatureSet) String() string { return strings.Join(s.List(), ",") }

// Context is the classified form of a selection.
type Context struct {
	Content  string     `json:"content"`
	Type     Type       `json:"type"`
	Language string     `json:"language,omitempty"`
	Features FeatureSet `json:"-"`
}
