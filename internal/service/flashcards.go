package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"studyrag/internal/domain"
	"studyrag/internal/extract"
	"studyrag/internal/generation"
)

// Flashcard is one question/answer pair.
type Flashcard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Deck is the JSON document the generator is asked to produce.
type Deck struct {
	Flashcards []Flashcard `json:"flashcards"`
}

const flashcardPreamble = "You generate study flashcards from extracts of a student's course material. " +
	"Produce a complete flashcard set covering the material below.\n\n" +
	"Respond with JSON only, in exactly this format:\n\n" +
	`{"flashcards": [{"question": "What is Cognitive Dissonance?", ` +
	`"answer": "The discomfort felt when holding two or more conflicting beliefs, values, or attitudes."}, ` +
	`{"question": "Who proposed the Cognitive Dissonance Theory and when?", ` +
	`"answer": "Leon Festinger, in 1957."}]}` + "\n\n"

// FlashcardPrompt builds the generation prompt from page texts, adding
// ***page*** blocks while the prompt is within maxChars. The page that
// crosses the limit is the last one added.
func FlashcardPrompt(studentContext string, pages []string, maxChars int) string {
	var sb strings.Builder
	sb.WriteString(flashcardPreamble)
	sb.WriteString("Student context: ")
	sb.WriteString(studentContext)
	sb.WriteString("\n\nStudent material:\n\n")
	for _, p := range pages {
		if sb.Len() > maxChars {
			break
		}
		sb.WriteString("***")
		sb.WriteString(p)
		sb.WriteString("*** \n\n")
	}
	return sb.String()
}

// ParseDeck reads the generator's reply, tolerating text around the JSON
// object.
func ParseDeck(reply string) (Deck, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return Deck{}, fmt.Errorf("no JSON object in reply: %w", domain.ErrMalformedFlashcards)
	}
	var deck Deck
	if err := json.Unmarshal([]byte(reply[start:end+1]), &deck); err != nil {
		return Deck{}, fmt.Errorf("%v: %w", err, domain.ErrMalformedFlashcards)
	}
	if deck.Flashcards == nil {
		deck.Flashcards = []Flashcard{}
	}
	return deck, nil
}

// Flashcards asks the generator for a flashcard deck built from the given
// documents, starting at the configured flashcard page. Documents without
// text are skipped; with no material at all an empty deck is returned
// without calling the generator.
func (s *Session) Flashcards(ctx context.Context, paths []string, studentContext string) (Deck, error) {
	if s.deps.Generator == nil {
		return Deck{}, errors.New("no generator configured")
	}
	var pages []string
	for _, path := range expand(paths) {
		kind := domain.KindFromPath(path)
		if kind == domain.KindUnknown {
			return Deck{}, fmt.Errorf("%s: %w", path, domain.ErrUnsupportedFormat)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return Deck{}, fmt.Errorf("read %s: %w", path, err)
		}
		doc := domain.Document{ID: path, Path: path, Kind: kind, Content: content}
		// The start page only affects paginated documents.
		extracted, err := extract.Extract(doc, s.opts.FlashcardStartPage, 0)
		if err != nil {
			return Deck{}, err
		}
		for _, p := range extracted {
			if strings.TrimSpace(p) != "" {
				pages = append(pages, p)
			}
		}
	}
	if len(pages) == 0 {
		return Deck{Flashcards: []Flashcard{}}, nil
	}

	prompt := FlashcardPrompt(studentContext, pages, s.opts.FlashcardMaxChars)
	res := generation.Run(ctx, s.deps.Generator, generation.Request{Prompt: prompt}, s.logger)
	if !res.OK() {
		return Deck{}, res.Err
	}
	deck, err := ParseDeck(res.Text)
	if err != nil {
		s.logger.Warn("Flashcard reply is not valid JSON", zap.Error(err))
		return Deck{}, err
	}
	return deck, nil
}
