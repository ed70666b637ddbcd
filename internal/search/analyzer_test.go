package search

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSimpleTokenizerSplitsOnWhitespace(t *testing.T) {
	tokens := SimpleTokenizer{}.Tokenize("hello world test")
	require.Equal(t, []string{"hello", "world", "test"}, tokens)
}

func TestSynonymDictionaryKnownAndUnknownWords(t *testing.T) {
	dict := NewSynonymDictionary()
	require.Contains(t, dict.Synonyms("learn"), "study")
	require.Contains(t, dict.Synonyms("learn"), "acquire")
	require.Empty(t, dict.Synonyms("nonexistent"))
}

func TestAnalyzerNormalizesAndExpands(t *testing.T) {
	analyzer := NewDefaultAnalyzer()
	result := analyzer.Analyze("Learn English")

	require.Equal(t, "Learn English", result.OriginalQuery)
	require.Equal(t, "learn english", result.NormalizedQuery)
	require.Equal(t, []string{"Learn", "English"}, result.Tokens)
	require.NotEmpty(t, result.Synonyms)
	require.Equal(t, LanguageEnglish, result.Language)
}

func TestAnalyzerDetectsUnknownLanguageForNonAlphabeticQuery(t *testing.T) {
	analyzer := NewDefaultAnalyzer()
	result := analyzer.Analyze("123 456")
	require.Equal(t, LanguageUnknown, result.Language)
}
