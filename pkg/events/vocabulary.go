package events

import "github.com/jules-labs/lexitrace/pkg/ids"

// Vocabulary event types, dotted per spec §3.2 ("<context>.<Name>").
const (
	TypeVocabularyItemCreated                 = "vocabulary.VocabularyItemCreated"
	TypeVocabularyItemDisambiguationUpdated   = "vocabulary.VocabularyItemDisambiguationUpdated"
	TypeVocabularyItemPublished               = "vocabulary.VocabularyItemPublished"
	TypeVocabularyItemDeleted                 = "vocabulary.VocabularyItemDeleted"
	TypeVocabularyEntryCreated                = "vocabulary.EntryCreated"
)

// VocabularyItemCreated is emitted by CreateVocabularyItem (spec §6.2).
type VocabularyItemCreated struct {
	ItemID          ids.ItemId    `json:"item_id"`
	EntryID         ids.EntryId   `json:"entry_id"`
	Spelling        string        `json:"spelling"`
	Disambiguation  string        `json:"disambiguation,omitempty"`
	PartOfSpeech    string        `json:"part_of_speech"`
	Register        string        `json:"register,omitempty"`
	Domain          string        `json:"domain,omitempty"`
	Definitions     []string      `json:"definitions"`
	CEFRLevel       ids.CEFRLevel `json:"cefr_level,omitempty"`
}

// VocabularyItemDisambiguationUpdated is emitted by UpdateVocabularyItem
// when the disambiguation field changes.
type VocabularyItemDisambiguationUpdated struct {
	ItemID ids.ItemId `json:"item_id"`
	Old    string     `json:"old"`
	New    string     `json:"new"`
}

// VocabularyItemPublished marks an item as published (AI enrichment
// complete, §4.4 precondition example).
type VocabularyItemPublished struct {
	ItemID ids.ItemId `json:"item_id"`
}

// VocabularyItemDeleted is emitted by DeleteVocabularyItem.
type VocabularyItemDeleted struct {
	ItemID    ids.ItemId `json:"item_id"`
	DeletedBy ids.UserId `json:"deleted_by"`
}

// VocabularyEntryCreated is emitted by the find-or-create-entry path
// (spec §9) when no matching entry exists yet.
type VocabularyEntryCreated struct {
	EntryID  ids.EntryId `json:"entry_id"`
	Spelling string      `json:"spelling"`
}

// VocabularyEvent is the tagged sum of every vocabulary-context event,
// dispatched by pattern matching per spec §9 ("do not rely on run-time
// type inspection").
type VocabularyEvent struct {
	ItemCreated                 *VocabularyItemCreated
	DisambiguationUpdated       *VocabularyItemDisambiguationUpdated
	Published                   *VocabularyItemPublished
	Deleted                     *VocabularyItemDeleted
	EntryCreated                *VocabularyEntryCreated
}
