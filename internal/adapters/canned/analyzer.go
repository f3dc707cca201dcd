// Package canned provides a built-in analyze collaborator that produces
// canned transcripts and categorizations. It stands in for the real
// speech-to-text and LLM backends in development and tests, simulating their
// latency without their cost.
package canned

import (
	"context"
	"hash/fnv"
	"log/slog"
	"strings"
	"time"

	"github.com/soundpipe/soundpipe/internal/domain/model"
)

// transcripts are the canned outputs; the audio fingerprint picks one, so
// identical payloads always transcribe identically.
var transcripts = []string{
	"I've always been fascinated by cars, especially classic muscle cars from the 60s and 70s. " +
		"The raw power and beautiful design of those vehicles is just incredible.",
	"Bald eagles are such majestic creatures. I love watching them soar through the sky and dive " +
		"down to catch fish. Their white heads against the blue sky is a sight I'll never forget.",
	"Deep sea diving opens up a whole new world of exploration. The mysterious creatures and " +
		"stunning coral reefs you encounter at those depths are unlike anything else on Earth.",
}

// topicsByKeyword maps a distinguishing transcript word to its canned category.
var topicsByKeyword = map[string]model.CategoryResult{
	"cars": {
		PrimaryTopic: "automobiles",
		Sentiment:    model.SentimentPositive,
		Keywords:     []string{"cars", "muscle cars", "design", "power"},
		Confidence:   0.92,
		Summary:      "The speaker expresses enthusiasm for classic muscle cars and their design.",
	},
	"eagles": {
		PrimaryTopic: "wildlife",
		Sentiment:    model.SentimentPositive,
		Keywords:     []string{"bald eagles", "birds", "nature", "fishing"},
		Confidence:   0.9,
		Summary:      "The speaker admires bald eagles and describes watching them hunt.",
	},
	"diving": {
		PrimaryTopic: "ocean exploration",
		Sentiment:    model.SentimentPositive,
		Keywords:     []string{"deep sea", "diving", "coral reefs", "exploration"},
		Confidence:   0.88,
		Summary:      "The speaker describes the wonders encountered while deep sea diving.",
	},
}

// Analyzer implements core.Analyzer with canned results and simulated latency.
type Analyzer struct {
	latency time.Duration
	logger  *slog.Logger
}

// Options groups constructor options for New.
type Options struct {
	// Latency is the simulated duration of each collaborator call. Zero means
	// results return immediately (useful in tests).
	Latency time.Duration
	// Logger is an optional structured logger.
	Logger *slog.Logger
}

// New creates a canned Analyzer.
func New(opts Options) *Analyzer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		latency: opts.Latency,
		logger:  logger.With("component", "canned_analyzer"),
	}
}

// Transcribe returns a canned transcript chosen by the audio content. The
// same bytes always yield the same transcript.
func (a *Analyzer) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if err := a.sleep(ctx); err != nil {
		return "", err
	}
	h := fnv.New32a()
	_, _ = h.Write(audio)
	transcript := transcripts[h.Sum32()%uint32(len(transcripts))]
	a.logger.DebugContext(ctx, "transcribed audio", "bytes", len(audio))
	return transcript, nil
}

// Categorize derives a canned categorization from the transcript content.
func (a *Analyzer) Categorize(
	ctx context.Context,
	transcript string,
	provider model.Provider,
) (model.CategoryResult, error) {
	if err := a.sleep(ctx); err != nil {
		return model.CategoryResult{}, err
	}
	lower := strings.ToLower(transcript)
	for keyword, category := range topicsByKeyword {
		if strings.Contains(lower, keyword) {
			a.logger.DebugContext(ctx, "categorized transcript",
				"provider", provider, "primary_topic", category.PrimaryTopic)
			return category, nil
		}
	}
	return model.CategoryResult{
		PrimaryTopic: "general",
		Sentiment:    model.SentimentNeutral,
		Keywords:     firstWords(transcript, 3),
		Confidence:   0.5,
		Summary:      "A short spoken clip without a distinctive topic.",
	}, nil
}

// LookupProvider simulates the expensive per-user provider lookup. The choice
// is stable per user id.
func (a *Analyzer) LookupProvider(ctx context.Context, userID string) (model.Provider, error) {
	if err := a.sleep(ctx); err != nil {
		return "", err
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	if h.Sum32()%2 == 0 {
		return model.ProviderOpenAI, nil
	}
	return model.ProviderAnthropic, nil
}

func (a *Analyzer) sleep(ctx context.Context) error {
	if a.latency <= 0 {
		return nil
	}
	timer := time.NewTimer(a.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func firstWords(s string, n int) []string {
	words := strings.Fields(strings.ToLower(s))
	if len(words) > n {
		words = words[:n]
	}
	return words
}
