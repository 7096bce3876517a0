package entity

import (
	"time"
)

// Kind discriminates the categories of catalog records.
type Kind string

const (
	KindKeyword    Kind = "keyword"
	KindPerson     Kind = "person"
	KindManuscript Kind = "manuscript"
	KindManagement Kind = "management"
)

func (k Kind) String() string { return string(k) }

// Ref addresses an entity across kinds, e.g. in dependency edges. Label is
// optional and filled only where a projection wants to render the target.
type Ref struct {
	Kind  Kind   `json:"kind"`
	ID    int64  `json:"id"`
	Label string `json:"label,omitempty"`
}

// Identifier is one external identifier scheme with its values, in order.
type Identifier struct {
	Scheme string   `json:"scheme"`
	Values []string `json:"values"`
}

// URL is an external link attached to an entity.
type URL struct {
	ID    int64  `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// Citation is one bibliography reference attached to an entity.
type Citation struct {
	ID     int64  `json:"id"`
	Source string `json:"source"`
	Range  string `json:"range,omitempty"`
}

// Management is a grouping label used to organize curation work.
type Management struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Base carries the fields shared by every entity kind. The tier a value was
// loaded at decides which fields are populated: mini fills only identity and
// label data, short adds comments/identifiers/managements, full adds the
// rest.
type Base struct {
	ID             int64        `json:"id"`
	Public         bool         `json:"public"`
	PublicComment  string       `json:"public_comment,omitempty"`
	PrivateComment string       `json:"private_comment,omitempty"`
	Identifiers    []Identifier `json:"identifiers,omitempty"`
	Managements    []Management `json:"managements,omitempty"`
	URLs           []URL        `json:"urls,omitempty"`
	Citations      []Citation   `json:"citations,omitempty"`
	Created        time.Time    `json:"created,omitzero"`
	Modified       time.Time    `json:"modified,omitzero"`
}

func (b *Base) EntityID() int64 { return b.ID }

// Entity is the minimal surface the generic engine needs from any kind.
type Entity interface {
	EntityID() int64
	EntityKind() Kind
	// Label renders the short human-readable name used in references.
	Label() string
}

// UniqueIDs collapses possibly-repeated ids into a unique list preserving
// first-seen order. Loaders call it before fetching so duplicated input ids
// never cause duplicate downstream work.
func UniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// UniqueRefs collapses repeated refs preserving first-seen order. Labels are
// ignored for identity.
func UniqueRefs(refs []Ref) []Ref {
	type key struct {
		kind Kind
		id   int64
	}
	seen := make(map[key]struct{}, len(refs))
	out := make([]Ref, 0, len(refs))
	for _, ref := range refs {
		k := key{ref.Kind, ref.ID}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, ref)
	}
	return out
}
