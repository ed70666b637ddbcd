package search

import "strings"

// Tokenizer splits a raw query string into terms. A second
// implementation (e.g. stemming) can replace SimpleTokenizer without
// touching Analyzer.
type Tokenizer interface {
	Tokenize(text string) []string
}

// SimpleTokenizer splits on whitespace, grounded on
// query_analyzer.rs's SimpleTokenizer.
type SimpleTokenizer struct{}

func (SimpleTokenizer) Tokenize(text string) []string {
	return strings.Fields(text)
}

// SynonymDictionary expands a term into near-synonyms so a search for
// "big" also surfaces items whose definition uses "large". A fixed,
// small seed table, same as the original's SynonymDictionary — this
// system has no synonym corpus of its own to draw from.
type SynonymDictionary struct {
	entries map[string][]string
}

func NewSynonymDictionary() *SynonymDictionary {
	return &SynonymDictionary{entries: map[string][]string{
		"learn": {"study", "acquire", "master"},
		"big":   {"large", "huge", "enormous"},
		"small": {"little", "tiny", "petite"},
		"fast":  {"quick", "rapid", "swift"},
		"slow":  {"sluggish", "leisurely"},
	}}
}

func (d *SynonymDictionary) Synonyms(word string) []string {
	return d.entries[strings.ToLower(word)]
}

// Analyzer turns a raw query string into tokens, a normalized query,
// and candidate synonyms, grounded on
// original_source/.../query_analyzer.rs's QueryAnalyzer. Unlike the
// original (a Japanese-English dictionary search), this system's
// vocabulary is English-only (spec §9's CEFR levels), so the language
// field distinguishes English text from anything else rather than
// Japanese/English/Mixed.
type Analyzer struct {
	tokenizer Tokenizer
	synonyms  *SynonymDictionary
}

func NewAnalyzer(tokenizer Tokenizer, synonyms *SynonymDictionary) *Analyzer {
	return &Analyzer{tokenizer: tokenizer, synonyms: synonyms}
}

func NewDefaultAnalyzer() *Analyzer {
	return NewAnalyzer(SimpleTokenizer{}, NewSynonymDictionary())
}

func (a *Analyzer) Analyze(query string) AnalyzedQuery {
	tokens := a.tokenizer.Tokenize(query)

	normalized := make([]string, len(tokens))
	for i, t := range tokens {
		normalized[i] = strings.ToLower(t)
	}

	var syn []string
	for _, t := range tokens {
		syn = append(syn, a.synonyms.Synonyms(t)...)
	}

	return AnalyzedQuery{
		OriginalQuery:   query,
		NormalizedQuery: strings.Join(normalized, " "),
		Tokens:          tokens,
		Synonyms:        syn,
		Language:        detectLanguage(tokens),
	}
}

func detectLanguage(tokens []string) Language {
	for _, t := range tokens {
		for _, r := range t {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				return LanguageEnglish
			}
		}
	}
	return LanguageUnknown
}
