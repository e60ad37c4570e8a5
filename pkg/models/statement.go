package models

import "encoding/json"

// Rank is the Wikibase statement rank.
type Rank string

const (
	RankPreferred  Rank = "preferred"
	RankNormal     Rank = "normal"
	RankDeprecated Rank = "deprecated"
)

// IsValid reports whether r is a known rank.
func (r Rank) IsValid() bool {
	return r == RankPreferred || r == RankNormal || r == RankDeprecated
}

// PropertyReference identifies a knowledge-base property.
// An empty ID is a not-yet-selected property.
type PropertyReference struct {
	ID       string          `json:"id"`
	Label    string          `json:"label,omitempty"`
	DataType SchemaValueType `json:"data_type,omitempty"`
}

// PropertyValueMap pairs a property with a value source. Qualifiers and
// reference snaks use it.
type PropertyValueMap struct {
	Property PropertyReference `json:"property"`
	Value    ValueMapping      `json:"value"`
}

// UnmarshalJSON decodes the tagged value variant.
func (p *PropertyValueMap) UnmarshalJSON(data []byte) error {
	var raw struct {
		Property PropertyReference `json:"property"`
		Value    json.RawMessage   `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	value, err := UnmarshalValueMapping(raw.Value)
	if err != nil {
		return err
	}
	p.Property = raw.Property
	p.Value = value
	return nil
}

// ReferenceMapping is one reference block of a statement.
type ReferenceMapping struct {
	Snaks []PropertyValueMap `json:"snaks"`
}

// StatementMapping is a property/value assertion with rank, qualifiers and
// references. The ID is allocated by the schema document and never changes.
type StatementMapping struct {
	ID         string             `json:"id"`
	Property   PropertyReference  `json:"property"`
	Value      ValueMapping       `json:"value"`
	Rank       Rank               `json:"rank"`
	Qualifiers []PropertyValueMap `json:"qualifiers"`
	References []ReferenceMapping `json:"references"`
}

// UnmarshalJSON decodes the tagged value variant.
func (s *StatementMapping) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID         string             `json:"id"`
		Property   PropertyReference  `json:"property"`
		Value      json.RawMessage    `json:"value"`
		Rank       Rank               `json:"rank"`
		Qualifiers []PropertyValueMap `json:"qualifiers"`
		References []ReferenceMapping `json:"references"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	value, err := UnmarshalValueMapping(raw.Value)
	if err != nil {
		return err
	}
	*s = StatementMapping{
		ID:         raw.ID,
		Property:   raw.Property,
		Value:      value,
		Rank:       raw.Rank,
		Qualifiers: raw.Qualifiers,
		References: raw.References,
	}
	return nil
}

// Clone returns a copy that shares no slices with s.
// Value variants are plain values, so copying the interface is enough.
func (s StatementMapping) Clone() StatementMapping {
	out := s
	out.Qualifiers = clonePropertyValues(s.Qualifiers)
	out.References = cloneReferences(s.References)
	return out
}

func clonePropertyValues(in []PropertyValueMap) []PropertyValueMap {
	out := make([]PropertyValueMap, len(in))
	copy(out, in)
	return out
}

func cloneReferences(in []ReferenceMapping) []ReferenceMapping {
	out := make([]ReferenceMapping, len(in))
	for i, ref := range in {
		out[i] = ReferenceMapping{Snaks: clonePropertyValues(ref.Snaks)}
	}
	return out
}
