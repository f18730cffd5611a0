package domain

import (
	"fmt"
	"strings"
)

// Kind identifies the shape a piece of model output is expected to have.
type Kind string

const (
	KindTopic            Kind = "topic"
	KindSyllabusAnalysis Kind = "syllabus_analysis"
	KindContentDraft     Kind = "content_draft"
	KindSlideOutline     Kind = "slide_outline"
	KindResourceList     Kind = "resource_list"
)

// AllKinds lists every supported kind in a stable order.
func AllKinds() []Kind {
	return []Kind{KindTopic, KindSyllabusAnalysis, KindContentDraft, KindSlideOutline, KindResourceList}
}

// ParseKind accepts the canonical names plus the camel-cased forms used by clients.
func ParseKind(s string) (Kind, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	switch normalized {
	case "topic":
		return KindTopic, nil
	case "syllabus_analysis", "syllabusanalysis", "syllabus":
		return KindSyllabusAnalysis, nil
	case "content_draft", "contentdraft", "content":
		return KindContentDraft, nil
	case "slide_outline", "slideoutline", "slides":
		return KindSlideOutline, nil
	case "resource_list", "resourcelist", "resources":
		return KindResourceList, nil
	}
	return "", fmt.Errorf("unknown kind %q", s)
}

// IsList reports whether the kind's top-level encoding is an array.
func (k Kind) IsList() bool {
	return k == KindResourceList
}

// Opener returns the structural character a payload of this kind starts with.
func (k Kind) Opener() byte {
	if k.IsList() {
		return '['
	}
	return '{'
}

func (k Kind) String() string {
	return string(k)
}

// Tier names the recovery stage that produced an object.
type Tier string

const (
	TierExact     Tier = "exact"
	TierRepaired  Tier = "repaired"
	TierHeuristic Tier = "heuristic"
)

func (t Tier) String() string {
	return string(t)
}
