package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// Payload is a typed object recovered from model output.
type Payload interface {
	Kind() Kind
}

// StringList decodes either a JSON array of strings or a single string.
// A lone string is widened into a one-element list; any other type is rejected.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*l = nil
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var single string
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return err
		}
		*l = StringList{single}
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		items := make([]string, 0)
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	return &json.UnmarshalTypeError{Value: string(trimmed), Type: reflect.TypeOf(StringList{})}
}

// Topic is one unit of a course outline.
type Topic struct {
	Title     string     `json:"title" validate:"required"`
	Subtopics StringList `json:"subtopics" validate:"required"`
}

func (*Topic) Kind() Kind { return KindTopic }

// SyllabusAnalysis is the structured reading of an uploaded syllabus.
type SyllabusAnalysis struct {
	Topics        []Topic    `json:"topics" validate:"required,min=1,dive"`
	TotalDuration *float64   `json:"totalDuration" validate:"required,gte=0"`
	Objectives    StringList `json:"objectives" validate:"required"`
	Prerequisites StringList `json:"prerequisites" validate:"required"`
}

func (*SyllabusAnalysis) Kind() Kind { return KindSyllabusAnalysis }

// ContentDraft is generated lecture material for one topic.
type ContentDraft struct {
	Title     string     `json:"title" validate:"required"`
	Content   string     `json:"content" validate:"required"`
	KeyPoints StringList `json:"keyPoints" validate:"required,min=1"`
	Examples  StringList `json:"examples,omitempty"`
}

func (*ContentDraft) Kind() Kind { return KindContentDraft }

// Slide is a single entry of a SlideOutline.
type Slide struct {
	Title   string     `json:"title" validate:"required"`
	Bullets StringList `json:"bullets" validate:"required"`
	Notes   string     `json:"notes,omitempty"`
}

// SlideOutline is a deck structure for a topic.
type SlideOutline struct {
	Title  string  `json:"title" validate:"required"`
	Slides []Slide `json:"slides" validate:"required,min=1,dive"`
}

func (*SlideOutline) Kind() Kind { return KindSlideOutline }

// ResourceSuggestion is a learning resource proposed by the model.
type ResourceSuggestion struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title" validate:"required"`
	URL         string `json:"url,omitempty"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// ResourceList encodes as a bare JSON array. A {"resources": [...]} wrapper
// is also accepted on decode.
type ResourceList struct {
	Resources []ResourceSuggestion `validate:"required,min=1,dive"`
}

func (*ResourceList) Kind() Kind { return KindResourceList }

func (r ResourceList) MarshalJSON() ([]byte, error) {
	if r.Resources == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.Resources)
}

func (r *ResourceList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapper struct {
			Resources []ResourceSuggestion `json:"resources"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return err
		}
		r.Resources = wrapper.Resources
		return nil
	}
	if bytes.Equal(trimmed, []byte("null")) {
		r.Resources = nil
		return nil
	}
	items := make([]ResourceSuggestion, 0)
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return err
	}
	r.Resources = items
	return nil
}

// NewPayload returns an empty payload for kind, ready to be decoded into.
func NewPayload(kind Kind) (Payload, error) {
	switch kind {
	case KindTopic:
		return &Topic{}, nil
	case KindSyllabusAnalysis:
		return &SyllabusAnalysis{}, nil
	case KindContentDraft:
		return &ContentDraft{}, nil
	case KindSlideOutline:
		return &SlideOutline{}, nil
	case KindResourceList:
		return &ResourceList{}, nil
	}
	return nil, fmt.Errorf("unknown kind %q", kind)
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 {
	return &v
}
