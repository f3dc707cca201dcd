// Package core defines the collaborator ports of the soundpipe job system.
// The service layer depends on these interfaces; adapters provide
// implementations. The actual speech-to-text and categorization calls are
// external collaborators and stay behind these boundaries.
package core

import (
	"context"

	"github.com/soundpipe/soundpipe/internal/domain/model"
)

// Transcriber converts an audio payload into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Categorizer derives a categorization from a transcript using the given
// LLM provider.
type Categorizer interface {
	Categorize(ctx context.Context, transcript string, provider model.Provider) (model.CategoryResult, error)
}

// PreferenceSource resolves a user's preferred categorization provider.
// Lookups are expensive; callers are expected to front this with the
// preference cache.
type PreferenceSource interface {
	LookupProvider(ctx context.Context, userID string) (model.Provider, error)
}

// Analyzer bundles the full set of analysis collaborators a processing
// pipeline needs.
type Analyzer interface {
	Transcriber
	Categorizer
	PreferenceSource
}
