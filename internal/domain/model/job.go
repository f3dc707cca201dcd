// Package model defines the core data types and structures used throughout the soundpipe job system.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobStatus represents the current status of a transcription job.
type JobStatus string

const (
	// JobStatusQueued indicates a job has been accepted but processing has not started.
	JobStatusQueued JobStatus = "queued"
	// JobStatusProcessing indicates a job is currently being analyzed.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted indicates a job has finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusError indicates a job has failed terminally.
	JobStatusError JobStatus = "error"
)

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusQueued || s == JobStatusProcessing || s == JobStatusCompleted ||
		s == JobStatusError
}

// Terminal returns true if no further transitions can occur from this status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusError
}

// rank orders statuses along the job lifecycle. Terminal statuses share a rank
// because neither can follow the other.
func (s JobStatus) rank() int {
	switch s {
	case JobStatusQueued:
		return 0
	case JobStatusProcessing:
		return 1
	case JobStatusCompleted, JobStatusError:
		return 2
	}
	return -1
}

// CanTransitionTo reports whether moving from s to next is a legal forward
// transition. A status may always remain where it is; it may never move
// backward, and terminal statuses admit no successor.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	return next.rank() > s.rank()
}

// Sentiment is the overall sentiment of a transcript.
type Sentiment string

const (
	// SentimentPositive indicates a positive transcript.
	SentimentPositive Sentiment = "positive"
	// SentimentNeutral indicates a neutral transcript.
	SentimentNeutral Sentiment = "neutral"
	// SentimentNegative indicates a negative transcript.
	SentimentNegative Sentiment = "negative"
)

// Valid returns true if the Sentiment is one of the known values.
func (s Sentiment) Valid() bool {
	return s == SentimentPositive || s == SentimentNeutral || s == SentimentNegative
}

// Provider identifies which LLM backend should categorize a transcript.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type Provider string

const (
	// ProviderOpenAI selects the OpenAI categorization backend.
	ProviderOpenAI Provider = "openai"
	// ProviderAnthropic selects the Anthropic categorization backend.
	ProviderAnthropic Provider = "anthropic"
)

// Valid returns true if the Provider is one of the known values.
func (p Provider) Valid() bool {
	return p == ProviderOpenAI || p == ProviderAnthropic
}

// UnmarshalText implements encoding.TextUnmarshaler for Provider to allow env parsing.
func (p *Provider) UnmarshalText(text []byte) error {
	v := Provider(strings.ToLower(strings.TrimSpace(string(text))))
	if v.Valid() {
		*p = v
		return nil
	}
	return fmt.Errorf("invalid Provider: %q", v)
}

// CategoryResult is the LLM-derived categorization of a transcript.
type CategoryResult struct {
	PrimaryTopic string    `json:"primary_topic"`
	Sentiment    Sentiment `json:"sentiment"`
	Keywords     []string  `json:"keywords"`
	Confidence   float64   `json:"confidence"`
	Summary      string    `json:"summary"`
}

// Validate validates the CategoryResult fields.
func (c *CategoryResult) Validate() error {
	if c.PrimaryTopic == "" {
		return errors.New("primary topic is required")
	}
	if !c.Sentiment.Valid() {
		return fmt.Errorf("invalid sentiment: %q", c.Sentiment)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return errors.New("confidence must be between 0 and 1")
	}
	return nil
}

// AnalysisResult bundles the transcript with its categorization. It is the
// value stored in the content cache, keyed by audio fingerprint.
type AnalysisResult struct {
	Transcript string         `json:"transcript"`
	Category   CategoryResult `json:"category"`
}

// Job represents a transcription job with all its metadata and status information.
// Transcript and Category are only set once the job completes; ErrorMessage is
// only set when it fails. The two are mutually exclusive.
type Job struct {
	ID                 string          `json:"id"`
	OwnerID            string          `json:"owner_id"`
	Status             JobStatus       `json:"status"`
	Progress           float64         `json:"progress"`
	Transcript         *string         `json:"transcript,omitempty"`
	Category           *CategoryResult `json:"category,omitempty"`
	ErrorMessage       *string         `json:"error_message,omitempty"`
	ContentFingerprint string          `json:"content_fingerprint"`
	CreatedAt          time.Time       `json:"created_at"`
}

// Clone returns a deep copy of the job so callers can hand out snapshots
// without exposing store-internal state.
func (j *Job) Clone() Job {
	out := *j
	if j.Transcript != nil {
		v := *j.Transcript
		out.Transcript = &v
	}
	if j.ErrorMessage != nil {
		v := *j.ErrorMessage
		out.ErrorMessage = &v
	}
	if j.Category != nil {
		c := *j.Category
		c.Keywords = append([]string(nil), j.Category.Keywords...)
		out.Category = &c
	}
	return out
}

// User represents a known owner of jobs. The id is opaque and stable for the
// lifetime of the process.
type User struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}
