// Package domain defines the pipeline's shared types and ports
package domain

import "encoding/json"

// DocStatus tracks a document through the pipeline. Progression is monotonic:
// no stage may regress a document to an earlier status
type DocStatus int

// Document statuses in pipeline order
const (
	StatusProcessing DocStatus = 1
	StatusScoring    DocStatus = 2
	StatusProcessed  DocStatus = 3

	// StatusNotAccessible marks documents whose source cannot be fetched; terminal
	StatusNotAccessible DocStatus = 4
)

// String implements fmt.Stringer for logs
func (s DocStatus) String() string {
	switch s {
	case StatusProcessing:
		return "processing"
	case StatusScoring:
		return "scoring"
	case StatusProcessed:
		return "processed"
	case StatusNotAccessible:
		return "not_accessible"
	default:
		return "unknown"
	}
}

// SourceGeneral is the catch-all source id for documents without a dedicated corpus
const SourceGeneral = 100

// DocRef identifies a document by source and id within that source
type DocRef struct {
	SourceID int    `json:"sourceId"`
	DocID    string `json:"docId"`
}

// Document is a tracked document row
type Document struct {
	DocRef
	Description string
	Status      DocStatus
}

// Mention is one annotated span inside a sentence, as produced by the
// analysis service. Offsets are carried verbatim; this core never
// interprets them
type Mention struct {
	From  string `json:"from"`
	To    string `json:"to"`
	ID    string `json:"id"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Sentence is one sentence with its mention annotations
type Sentence struct {
	Text     string    `json:"sentence"`
	Mentions []Mention `json:"mentions"`
}

// StoredSentence is a persisted sentence row, keyed by document and the
// filtered sentence index assigned by the parser
type StoredSentence struct {
	DocRef
	SentenceIndex int
	Text          string
	Mentions      []Mention
}

// Entity is a deduplicated entity produced by scoring; ID is the external
// identifier used for dedup at persistence time
type Entity struct {
	TypeID int    `json:"typeId"`
	ID     string `json:"id"`
	Name   string `json:"name"`
}

// EntityRef points at one endpoint of a relation
type EntityRef struct {
	TypeID int    `json:"typeId"`
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
}

// Relation is one scored edge between two entities in one sentence,
// attributed to a specific scoring model and version. Re-scoring with a new
// model appends rather than replaces
type Relation struct {
	ScoringServiceID string          `json:"scoringServiceId"`
	ModelVersion     string          `json:"modelVersion"`
	Entity1          EntityRef       `json:"entity1"`
	Entity2          EntityRef       `json:"entity2"`
	RelationType     string          `json:"relation"`
	Score            float64         `json:"score"`
	AuxData          json.RawMessage `json:"data,omitempty"`
}

// Scoring is the analysis service's verdict on one sentence
type Scoring struct {
	Entities  []Entity   `json:"entities"`
	Relations []Relation `json:"relations"`
}

// SentenceScoring bundles everything the scoring role persists for one
// scored sentence: the sentence itself plus the entities and relations
// found in it
type SentenceScoring struct {
	StoredSentence
	Entities  []Entity
	Relations []Relation
}
