package domain

import "errors"

var (
	// ErrUnsupportedFormat signals a document kind with no extractor.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrNotFitted signals a query against an index before Fit.
	ErrNotFitted = errors.New("index not fitted")
	// ErrAlreadyFitted signals a second Fit on a write-once index.
	ErrAlreadyFitted = errors.New("index already fitted")
	// ErrEmbeddingService signals a failed or malformed embedding call.
	ErrEmbeddingService = errors.New("embedding service error")
	// ErrGenerationService signals a failed generation call.
	ErrGenerationService = errors.New("generation service error")
	// ErrEmptyCorpus signals a document that produced no chunks.
	ErrEmptyCorpus = errors.New("empty corpus")
	// ErrNoResults signals that no registered corpus returned any chunk.
	ErrNoResults = errors.New("no results")
	// ErrMalformedFlashcards signals a generator reply that is not a flashcard deck.
	ErrMalformedFlashcards = errors.New("malformed flashcards")
)
