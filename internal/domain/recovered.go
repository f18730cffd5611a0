package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// RawModelResponse is model output together with the prompt that produced it.
type RawModelResponse struct {
	Prompt     string
	Text       string
	ReceivedAt time.Time
}

// RecoveredObject is a typed payload plus the tier that produced it.
// Approximate is set only for heuristic results.
type RecoveredObject struct {
	Kind        Kind    `json:"kind"`
	Tier        Tier    `json:"tier"`
	Approximate bool    `json:"approximate"`
	Payload     Payload `json:"payload"`
}

// NewRecoveredObject tags payload with tier.
func NewRecoveredObject(payload Payload, tier Tier) RecoveredObject {
	return RecoveredObject{
		Kind:        payload.Kind(),
		Tier:        tier,
		Approximate: tier == TierHeuristic,
		Payload:     payload,
	}
}

func (o *RecoveredObject) UnmarshalJSON(data []byte) error {
	var aux struct {
		Kind        Kind            `json:"kind"`
		Tier        Tier            `json:"tier"`
		Approximate bool            `json:"approximate"`
		Payload     json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	payload, err := NewPayload(aux.Kind)
	if err != nil {
		return err
	}
	if len(aux.Payload) > 0 {
		if err := json.Unmarshal(aux.Payload, payload); err != nil {
			return fmt.Errorf("decode %s payload: %w", aux.Kind, err)
		}
	}
	o.Kind = aux.Kind
	o.Tier = aux.Tier
	o.Approximate = aux.Approximate
	o.Payload = payload
	return nil
}

func (o RecoveredObject) Topic() (*Topic, bool) {
	p, ok := o.Payload.(*Topic)
	return p, ok
}

func (o RecoveredObject) SyllabusAnalysis() (*SyllabusAnalysis, bool) {
	p, ok := o.Payload.(*SyllabusAnalysis)
	return p, ok
}

func (o RecoveredObject) ContentDraft() (*ContentDraft, bool) {
	p, ok := o.Payload.(*ContentDraft)
	return p, ok
}

func (o RecoveredObject) SlideOutline() (*SlideOutline, bool) {
	p, ok := o.Payload.(*SlideOutline)
	return p, ok
}

func (o RecoveredObject) ResourceList() (*ResourceList, bool) {
	p, ok := o.Payload.(*ResourceList)
	return p, ok
}
