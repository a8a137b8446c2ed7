package analyzer

import (
	"strings"

	"overlayd/internal/window"
)

// Options toggles individual features. A feature listed in Disabled is never
// offered, whatever the context type.
type Options struct {
	Disabled []Feature
}

// Analyzer is a pure classifier; the zero value enables every feature.
type Analyzer struct {
	disabled FeatureSet
}

func New(opts Options) *Analyzer {
	return &Analyzer{disabled: NewFeatureSet(opts.Disabled...)}
}

// Analyze classifies text observed in the window wc. Precedence: file
// extension, then application, then Generic.
func (a *Analyzer) Analyze(text string, wc window.Context) Context {
	typ, lang := Classify(wc)
	return Context{
		Content:  text,
		Type:     typ,
		Language: lang,
		Features: a.features(typ),
	}
}

// Analyze is the package-level form with every feature enabled.
func Analyze(text string, wc window.Context) Context {
	return (&Analyzer{}).Analyze(text, wc)
}

// Classify returns the context type and language implied by wc alone.
func Classify(wc window.Context) (Type, string) {
	if ext := strings.ToLower(wc.FileExtension); ext != "" {
		if lang, ok := languageByExt[ext]; ok {
			return Code, lang
		}
		return Text, ""
	}
	if r, ok := matchApp(wc.AppName); ok {
		return r.typ, r.language
	}
	return Generic, ""
}

func matchApp(name string) (appRule, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return appRule{}, false
	}
	for _, r := range appRules {
		if name == r.name {
			return r, true
		}
	}
	for _, r := range appRules {
		if strings.Contains(name, r.name) {
			return r, true
		}
	}
	return appRule{}, false
}

// FeaturesFor returns the features implied by t with every feature enabled.
func FeaturesFor(t Type) FeatureSet {
	return NewFeatureSet(featuresByType[t]...)
}

func (a *Analyzer) features(t Type) FeatureSet {
	out := FeaturesFor(t)
	for f := range a.disabled {
		delete(out, f)
	}
	return out
}
