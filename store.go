package careerflow

import "context"

// Checkpointer persists thread state. The engine saves after every node
// execution so a crash mid-turn loses at most the node in flight.
type Checkpointer interface {
	// SaveCheckpoint persists the full thread state, replacing any prior
	// checkpoint for the same thread.
	SaveCheckpoint(ctx context.Context, st *ThreadState) error
	// LoadThread returns the latest checkpoint for threadID, or (nil, nil)
	// when the thread has never been seen.
	LoadThread(ctx context.Context, threadID string) (*ThreadState, error)
}

// MemoryStore is long-term per-user memory: the extracted profile and the
// archive of compacted history, searchable by embedding.
type MemoryStore interface {
	SaveProfile(ctx context.Context, userID string, p Profile) error
	// LoadProfile returns the stored profile, zero-valued when absent.
	LoadProfile(ctx context.Context, userID string) (Profile, error)
	// ArchiveMessages stores folded history messages with embeddings.
	ArchiveMessages(ctx context.Context, userID string, msgs []StoredMessage) error
	// SearchArchive returns archived messages whose cosine similarity to
	// the query embedding is at least minScore, best first, at most limit.
	SearchArchive(ctx context.Context, userID string, embedding []float32, limit int, minScore float64) ([]StoredMessage, error)
}

// JobStore is the indexed collection of job postings.
type JobStore interface {
	// GetJobs resolves postings by id. Unknown ids are skipped, not errors.
	GetJobs(ctx context.Context, ids []string) ([]Job, error)
	// SearchJobs runs vector search with optional metadata filters.
	SearchJobs(ctx context.Context, embedding []float32, f JobFilter, k int, minScore float64) ([]ScoredJob, error)
}

// JobFilter narrows vector search by posting metadata. Empty fields match
// everything.
type JobFilter struct {
	JobType  string
	Position string
}
