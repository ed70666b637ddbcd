// Package vocabulary implements the vocabulary bounded context: the
// Entry/Item aggregate pair from spec §9, generalized from
// internal/catalog (Item -> VocabularyItem, AddItem ->
// CreateVocabularyItem, UpdateItemCopies/RemoveItem ->
// UpdateVocabularyItem/DeleteVocabularyItem).
package vocabulary

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jules-labs/lexitrace/pkg/ids"
)

// Definitions is a sense's definition list, persisted as a JSONB
// column since Postgres has no native string-array scan target
// sqlx picks up automatically.
type Definitions []string

func (d Definitions) Value() (driver.Value, error) { return json.Marshal([]string(d)) }

func (d *Definitions) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		*d = nil
		return nil
	default:
		return fmt.Errorf("vocabulary: cannot scan %T into Definitions", src)
	}
	return json.Unmarshal(raw, (*[]string)(d))
}

// Entry is the dictionary-headword aggregate a spelling resolves to;
// several Items (one per sense/disambiguation) can share an Entry.
type Entry struct {
	ID            ids.EntryId `db:"id"`
	Spelling      string      `db:"spelling"`
	PrimaryItemID *string     `db:"primary_item_id"`
	Version       int         `db:"version"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
}

func (e Entry) GetID() string   { return e.ID.String() }
func (e Entry) GetVersion() int { return e.Version }

// PartOfSpeech is the grammatical category a sense belongs to,
// supplemented from the original value-object model.
type PartOfSpeech string

const (
	Noun         PartOfSpeech = "noun"
	Verb         PartOfSpeech = "verb"
	Adjective    PartOfSpeech = "adjective"
	Adverb       PartOfSpeech = "adverb"
	Preposition  PartOfSpeech = "preposition"
	Conjunction  PartOfSpeech = "conjunction"
	Interjection PartOfSpeech = "interjection"
	Pronoun      PartOfSpeech = "pronoun"
)

func (p PartOfSpeech) Valid() bool {
	switch p {
	case Noun, Verb, Adjective, Adverb, Preposition, Conjunction, Interjection, Pronoun:
		return true
	default:
		return false
	}
}

// Register marks the stylistic register a sense is used in.
type Register string

const (
	RegisterNeutral  Register = "neutral"
	RegisterFormal   Register = "formal"
	RegisterInformal Register = "informal"
	RegisterSlang    Register = "slang"
	RegisterArchaic  Register = "archaic"
)

// Domain is the subject-matter field a sense belongs to (distinct from
// the event-sourcing "aggregate type"/"context" usage elsewhere).
type Domain string

const (
	DomainGeneral    Domain = "general"
	DomainBusiness   Domain = "business"
	DomainAcademic   Domain = "academic"
	DomainTechnology Domain = "technology"
	DomainMedical    Domain = "medical"
	DomainLegal      Domain = "legal"
)

// Item is one sense of a word: a specific part-of-speech/register/
// domain combination under an Entry, carrying its own definitions.
type Item struct {
	ID             ids.ItemId   `db:"id"`
	EntryID        ids.EntryId  `db:"entry_id"`
	Spelling       string       `db:"spelling"`
	Disambiguation string       `db:"disambiguation"`
	PartOfSpeech   PartOfSpeech `db:"part_of_speech"`
	Register       Register     `db:"register"`
	Domain         Domain       `db:"domain"`
	Definitions    Definitions  `db:"definitions"`
	CEFRLevel      ids.CEFRLevel `db:"cefr_level"`
	Published      bool         `db:"published"`
	Version        int          `db:"version"`
	CreatedAt      time.Time    `db:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at"`
	DeletedAt      *time.Time   `db:"deleted_at"`
}

func (i Item) GetID() string   { return i.ID.String() }
func (i Item) GetVersion() int { return i.Version }

// FieldUpdate is one entry of UpdateVocabularyItem's updates[] list
// (spec §6.2: "updates[{field_name, value_json}]").
type FieldUpdate struct {
	FieldName string `json:"field_name"`
	ValueJSON string `json:"value_json"`
}
