package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrag/internal/domain"
)

func TestFlashcardPrompt_StopsAfterCrossingLimit(t *testing.T) {
	base := len(FlashcardPrompt("ctx", nil, 0))
	page := strings.Repeat("w", 100)

	// The limit allows exactly one block to start; the second starts past it.
	prompt := FlashcardPrompt("ctx", []string{page, page, page}, base+50)
	assert.Equal(t, 1, strings.Count(prompt, "***"+page+"***"))

	prompt = FlashcardPrompt("ctx", []string{page, page, page}, base+10_000)
	assert.Equal(t, 3, strings.Count(prompt, "***"+page+"*** \n\n"))
	assert.Contains(t, prompt, "Student context: ctx")
}

func TestParseDeck(t *testing.T) {
	deck, err := ParseDeck("Sure! ```json\n{\"flashcards\":[{\"question\":\"Q1\",\"answer\":\"A1\"}]}\n```")
	require.NoError(t, err)
	assert.Equal(t, []Flashcard{{Question: "Q1", Answer: "A1"}}, deck.Flashcards)

	deck, err = ParseDeck(`{}`)
	require.NoError(t, err)
	assert.Empty(t, deck.Flashcards)
	assert.NotNil(t, deck.Flashcards)

	_, err = ParseDeck("no json here")
	assert.ErrorIs(t, err, domain.ErrMalformedFlashcards)

	_, err = ParseDeck(`{"flashcards": [{"question": }]}`)
	assert.ErrorIs(t, err, domain.ErrMalformedFlashcards)
}

func TestSession_Flashcards(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "psych.txt", psychology)

	gw := &recordingGateway{reply: `{"flashcards":[{"question":"Who proposed it?","answer":"Festinger"}]}`}
	s := newTestSession(t, gw, Options{})

	deck, err := s.Flashcards(context.Background(), []string{path}, "PSY101 midterm")
	require.NoError(t, err)
	assert.Equal(t, []Flashcard{{Question: "Who proposed it?", Answer: "Festinger"}}, deck.Flashcards)

	require.Len(t, gw.prompts, 1)
	assert.Contains(t, gw.prompts[0], "Student context: PSY101 midterm")
	assert.Contains(t, gw.prompts[0], "***Cognitive dissonance is the discomfort")
}

func TestSession_FlashcardsNoMaterial(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "blank.txt", "  ")

	gw := &recordingGateway{reply: "unused"}
	s := newTestSession(t, gw, Options{})

	deck, err := s.Flashcards(context.Background(), []string{path}, "")
	require.NoError(t, err)
	assert.Empty(t, deck.Flashcards)
	assert.Empty(t, gw.prompts)
}

func TestSession_FlashcardsErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "psych.txt", psychology)

	gw := &recordingGateway{err: errors.New("down")}
	s := newTestSession(t, gw, Options{})
	_, err := s.Flashcards(context.Background(), []string{path}, "")
	assert.ErrorIs(t, err, domain.ErrGenerationService)

	gw.err = nil
	gw.reply = "I cannot do that"
	_, err = s.Flashcards(context.Background(), []string{path}, "")
	assert.ErrorIs(t, err, domain.ErrMalformedFlashcards)

	_, err = s.Flashcards(context.Background(), []string{writeFile(t, dir, "x.pptx", "")}, "")
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}
