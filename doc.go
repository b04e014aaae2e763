// Package careerflow is a multi-agent career assistant engine.
//
// A supervisor classifies each user turn and either replies directly or
// hands off to one of three specialists: job search, job-description batch
// analysis, or the CV review/rewrite pipeline. Specialists run as nested
// frames under a central step executor; they return control to the
// supervisor through typed StepOutcome values rather than exceptions, so a
// node two levels deep can end its whole subflow with a single Resume.
//
// Conversation history is compacted with a sliding window: once enough
// unsummarized messages accumulate, the older portion is folded into a
// rolling summary, archived for semantic recall, and mined for user
// profile facts.
//
// Providers, stores, and observability are pluggable. See
// provider/openaicompat for any OpenAI-compatible gateway, store/sqlite
// and store/postgres for persistence, and observer for OTEL wiring.
package careerflow
