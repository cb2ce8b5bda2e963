package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_PicksFrequentSentencesInOrder(t *testing.T) {
	text := "Cognitive dissonance causes tension. The weather was nice. " +
		"Dissonance theory explains cognitive tension. Lunch is at noon."

	got, err := NewFrequencySummarizer().Summarize(text, 2)
	require.NoError(t, err)
	assert.Equal(t, "Cognitive dissonance causes tension. Dissonance theory explains cognitive tension.", got)
}

func TestSummarize_FewerSentencesThanRequested(t *testing.T) {
	got, err := NewFrequencySummarizer().Summarize("Only one sentence here.", 0)
	require.NoError(t, err)
	assert.Equal(t, "Only one sentence here.", got)
}

func TestSummarize_NoTerminator(t *testing.T) {
	got, err := NewFrequencySummarizer().Summarize("  heading without punctuation  ", 3)
	require.NoError(t, err)
	assert.Equal(t, "heading without punctuation", got)
}

func TestSummarize_Empty(t *testing.T) {
	got, err := NewFrequencySummarizer().Summarize("   ", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}
