package domain

import (
	"fmt"
	"time"
)

// LinkType classifies how a resource supports a content record.
type LinkType string

const (
	LinkPrimary       LinkType = "primary"
	LinkSupplementary LinkType = "supplementary"
)

// ParseLinkType validates a link classification.
func ParseLinkType(s string) (LinkType, error) {
	switch LinkType(s) {
	case LinkPrimary, LinkSupplementary:
		return LinkType(s), nil
	}
	return "", fmt.Errorf("invalid link type %q: must be %q or %q", s, LinkPrimary, LinkSupplementary)
}

// Resource is a learning-material reference. ContentID and LinkType are
// set together, and only by the link manager.
type Resource struct {
	ID        string    `json:"id" dynamodbav:"ResourceID"`
	Title     string    `json:"title" dynamodbav:"Title"`
	URL       string    `json:"url,omitempty" dynamodbav:"URL,omitempty"`
	Type      string    `json:"type,omitempty" dynamodbav:"Type,omitempty"`
	ContentID string    `json:"contentId,omitempty" dynamodbav:"ContentID,omitempty"`
	LinkType  LinkType  `json:"linkType,omitempty" dynamodbav:"LinkType,omitempty"`
	Revision  int64     `json:"revision" dynamodbav:"Revision"`
	CreatedAt time.Time `json:"createdAt" dynamodbav:"CreatedAt"`
	UpdatedAt time.Time `json:"updatedAt" dynamodbav:"UpdatedAt"`
}

// IsLinked reports whether the resource points at a content record.
func (r *Resource) IsLinked() bool {
	return r.ContentID != ""
}

// Clone returns a copy of r.
func (r *Resource) Clone() *Resource {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// Content is an editable unit with a current snapshot and a version pointer.
type Content struct {
	ID             string    `json:"id" dynamodbav:"ContentID"`
	Title          string    `json:"title" dynamodbav:"Title"`
	Description    string    `json:"description" dynamodbav:"Description"`
	ResourceIDs    []string  `json:"resourceIds" dynamodbav:"ResourceIDs"`
	CurrentVersion int       `json:"currentVersionNumber" dynamodbav:"CurrentVersion"`
	Revision       int64     `json:"revision" dynamodbav:"Revision"`
	CreatedAt      time.Time `json:"createdAt" dynamodbav:"CreatedAt"`
	UpdatedAt      time.Time `json:"updatedAt" dynamodbav:"UpdatedAt"`
}

// HasResource reports whether id is attached to c.
func (c *Content) HasResource(id string) bool {
	for _, rid := range c.ResourceIDs {
		if rid == id {
			return true
		}
	}
	return false
}

// AddResource appends id if it is not present yet.
func (c *Content) AddResource(id string) bool {
	if c.HasResource(id) {
		return false
	}
	c.ResourceIDs = append(c.ResourceIDs, id)
	return true
}

// RemoveResource drops every occurrence of id.
func (c *Content) RemoveResource(id string) bool {
	kept := c.ResourceIDs[:0:0]
	removed := false
	for _, rid := range c.ResourceIDs {
		if rid == id {
			removed = true
			continue
		}
		kept = append(kept, rid)
	}
	c.ResourceIDs = kept
	return removed
}

// Snapshot captures the current fields of c.
func (c *Content) Snapshot() Snapshot {
	return Snapshot{
		Title:       c.Title,
		Description: c.Description,
		ResourceIDs: append([]string(nil), c.ResourceIDs...),
	}
}

// Clone returns a deep copy of c.
func (c *Content) Clone() *Content {
	if c == nil {
		return nil
	}
	cp := *c
	cp.ResourceIDs = append([]string(nil), c.ResourceIDs...)
	return &cp
}

// Snapshot is the state of a Content at the time a version was recorded.
type Snapshot struct {
	Title       string   `json:"title" dynamodbav:"Title"`
	Description string   `json:"description" dynamodbav:"Description"`
	ResourceIDs []string `json:"resourceIds" dynamodbav:"ResourceIDs"`
}

// Version is an immutable ledger entry.
type Version struct {
	ID        string    `json:"id" dynamodbav:"VersionID"`
	ContentID string    `json:"contentId" dynamodbav:"ContentID"`
	Number    int       `json:"number" dynamodbav:"Number"`
	Snapshot  Snapshot  `json:"snapshot" dynamodbav:"Snapshot"`
	Changes   []string  `json:"changes" dynamodbav:"Changes"`
	EditorID  string    `json:"editorId" dynamodbav:"EditorID"`
	CreatedAt time.Time `json:"createdAt" dynamodbav:"CreatedAt"`
}

// Clone returns a deep copy of v.
func (v *Version) Clone() *Version {
	if v == nil {
		return nil
	}
	cp := *v
	cp.Snapshot.ResourceIDs = append([]string(nil), v.Snapshot.ResourceIDs...)
	cp.Changes = append([]string(nil), v.Changes...)
	return &cp
}

// FieldChange is one difference between two snapshots.
type FieldChange struct {
	Field string `json:"field"`
	From  any    `json:"from"`
	To    any    `json:"to"`
}

// Diff lists the fields that differ from a to b.
func (a Snapshot) Diff(b Snapshot) []FieldChange {
	var changes []FieldChange
	if a.Title != b.Title {
		changes = append(changes, FieldChange{Field: "title", From: a.Title, To: b.Title})
	}
	if a.Description != b.Description {
		changes = append(changes, FieldChange{Field: "description", From: a.Description, To: b.Description})
	}
	if !equalStrings(a.ResourceIDs, b.ResourceIDs) {
		changes = append(changes, FieldChange{Field: "resourceIds", From: a.ResourceIDs, To: b.ResourceIDs})
	}
	return changes
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
