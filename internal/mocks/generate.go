// Package mocks provides mock implementations for testing the soundpipe job system.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for
// the collaborator ports in internal/core. The mocks are generated using
// go:generate directives and provide a fluent API for setting up test
// expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	analyzer := mocks.NewMockAnalyzer(ctrl)
//	analyzer.EXPECT().Transcribe(gomock.Any(), gomock.Any()).Return("hello world", nil)
package mocks

// Generate mock for the Analyzer port (and with it Transcriber, Categorizer
// and PreferenceSource, which it embeds) from the internal/core package.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=analyzer_mock.go github.com/soundpipe/soundpipe/internal/core Analyzer
