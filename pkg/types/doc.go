// Package types provides shared type definitions for askdocs.
//
// This package defines domain types used across the retrieval and routing
// components: document chunks, scored search hits, backend answers and the
// formatted response returned to callers.
//
// # Core Types
//
// Chunk represents one "## " section of a markdown document:
//
//	chunk := types.Chunk{
//	    SourceID: "hr_manual.md",
//	    Header:   "Vacation Policy",
//	    Text:     "## Vacation Policy\nEmployees accrue...",
//	}
//
// Answer is the single output shape of every backend adapter, whether it
// generated text, searched the web or answered from retrieved context.
//
// Response is what callers receive: answer text, attributed sources and the
// strategy that produced the answer.
//
// # Backend Errors
//
// Adapters report failures as *BackendError with a Kind. Only
// KindUnavailable and KindRateLimited allow the router to fall back to
// another strategy:
//
//	if types.IsFallbackEligible(err) {
//	    // try next strategy
//	}
package types
