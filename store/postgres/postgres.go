// Package postgres backs the engine's persistence contracts
// (Checkpointer, MemoryStore, JobStore) with PostgreSQL, using pgvector
// for native vector similarity search over the job index and the
// conversation archive.
//
// The Store accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nevindra/careerflow"
)

// Store implements careerflow.Checkpointer, MemoryStore, and JobStore.
// Vector search uses HNSW indexes with cosine distance.
type Store struct {
	pool *pgxpool.Pool
	cfg  pgConfig
}

// pgConfig holds store configuration set via Option functions.
type pgConfig struct {
	embeddingDimension int // 0 = untyped vector
	hnswM              int // 0 = pgvector default (16)
	hnswEFConstruction int // 0 = pgvector default (64)
}

// Option configures a PostgreSQL Store.
type Option func(*pgConfig)

// WithEmbeddingDimension sets the vector column dimension (e.g. 768,
// 1536). When set, CREATE TABLE uses vector(N) instead of untyped vector,
// catching dimension mismatches at insert time. Only affects new table
// creation.
func WithEmbeddingDimension(dim int) Option {
	return func(c *pgConfig) { c.embeddingDimension = dim }
}

// WithHNSWM sets the HNSW m parameter (max connections per node). Higher
// values improve recall at the cost of memory. Default: pgvector's 16.
func WithHNSWM(m int) Option {
	return func(c *pgConfig) { c.hnswM = m }
}

// WithEFConstruction sets the HNSW ef_construction parameter. Higher
// values improve index quality at the cost of slower builds. Default:
// pgvector's 64.
func WithEFConstruction(ef int) Option {
	return func(c *pgConfig) { c.hnswEFConstruction = ef }
}

var (
	_ careerflow.Checkpointer = (*Store)(nil)
	_ careerflow.MemoryStore  = (*Store)(nil)
	_ careerflow.JobStore     = (*Store)(nil)
)

// New creates a Store using an existing pgxpool.Pool. The caller owns the
// pool and is responsible for closing it.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	var cfg pgConfig
	for _, o := range opts {
		o(&cfg)
	}
	return &Store{pool: pool, cfg: cfg}
}

func (s *Store) vectorType() string {
	if s.cfg.embeddingDimension > 0 {
		return fmt.Sprintf("vector(%d)", s.cfg.embeddingDimension)
	}
	return "vector"
}

func (s *Store) hnswWithClause() string {
	var parts []string
	if s.cfg.hnswM > 0 {
		parts = append(parts, fmt.Sprintf("m = %d", s.cfg.hnswM))
	}
	if s.cfg.hnswEFConstruction > 0 {
		parts = append(parts, fmt.Sprintf("ef_construction = %d", s.cfg.hnswEFConstruction))
	}
	if len(parts) == 0 {
		return ""
	}
	return " WITH (" + strings.Join(parts, ", ") + ")"
}

// Init creates the pgvector extension, all required tables, and indexes.
// Safe to call multiple times (all statements are idempotent).
func (s *Store) Init(ctx context.Context) error {
	vtype := s.vectorType()
	hnswWith := s.hnswWithClause()

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		`CREATE TABLE IF NOT EXISTS threads (
			thread_id TEXT PRIMARY KEY,
			state JSONB NOT NULL,
			updated_at BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS profiles (
			user_id TEXT PRIMARY KEY,
			profile JSONB NOT NULL,
			updated_at BIGINT NOT NULL
		)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS archive (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			thread_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding %s,
			created_at BIGINT NOT NULL
		)`, vtype),

		`CREATE INDEX IF NOT EXISTS idx_archive_user ON archive (user_id)`,

		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_archive_embedding
			ON archive USING hnsw (embedding vector_cosine_ops)%s`, hnswWith),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			company TEXT NOT NULL,
			job_type TEXT NOT NULL DEFAULT '',
			position TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL,
			embedding %s,
			created_at BIGINT NOT NULL
		)`, vtype),

		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_jobs_embedding
			ON jobs USING hnsw (embedding vector_cosine_ops)%s`, hnswWith),
	}
	for _, q := range stmts {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("postgres: init: %w", err)
		}
	}
	return nil
}

// --- Checkpointer ---

func (s *Store) SaveCheckpoint(ctx context.Context, st *careerflow.ThreadState) error {
	blob, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("postgres: marshal state: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO threads (thread_id, state, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (thread_id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		st.ThreadID, blob, careerflow.NowUnix())
	if err != nil {
		return fmt.Errorf("postgres: save checkpoint: %w", err)
	}
	return nil
}

func (s *Store) LoadThread(ctx context.Context, threadID string) (*careerflow.ThreadState, error) {
	var blob []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM threads WHERE thread_id = $1`, threadID).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load thread: %w", err)
	}
	var st careerflow.ThreadState
	if err := json.Unmarshal(blob, &st); err != nil {
		return nil, fmt.Errorf("postgres: decode thread %s: %w", threadID, err)
	}
	return &st, nil
}

// --- MemoryStore ---

func (s *Store) SaveProfile(ctx context.Context, userID string, p careerflow.Profile) error {
	blob, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("postgres: marshal profile: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO profiles (user_id, profile, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET profile = EXCLUDED.profile, updated_at = EXCLUDED.updated_at`,
		userID, blob, careerflow.NowUnix())
	if err != nil {
		return fmt.Errorf("postgres: save profile: %w", err)
	}
	return nil
}

func (s *Store) LoadProfile(ctx context.Context, userID string) (careerflow.Profile, error) {
	var blob []byte
	err := s.pool.QueryRow(ctx,
		`SELECT profile FROM profiles WHERE user_id = $1`, userID).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return careerflow.Profile{}, nil
	}
	if err != nil {
		return careerflow.Profile{}, fmt.Errorf("postgres: load profile: %w", err)
	}
	var p careerflow.Profile
	if err := json.Unmarshal(blob, &p); err != nil {
		return careerflow.Profile{}, fmt.Errorf("postgres: decode profile: %w", err)
	}
	return p, nil
}

func (s *Store) ArchiveMessages(ctx context.Context, userID string, msgs []careerflow.StoredMessage) error {
	batch := &pgx.Batch{}
	for _, m := range msgs {
		batch.Queue(
			`INSERT INTO archive (id, user_id, thread_id, role, content, embedding, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (id) DO NOTHING`,
			m.ID, userID, m.ThreadID, m.Role, m.Content, vecLiteral(m.Embedding), m.CreatedAt)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range msgs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: archive message: %w", err)
		}
	}
	return nil
}

func (s *Store) SearchArchive(ctx context.Context, userID string, embedding []float32, limit int, minScore float64) ([]careerflow.StoredMessage, error) {
	// Cosine similarity = 1 - cosine distance (<=> operator).
	rows, err := s.pool.Query(ctx,
		`SELECT id, thread_id, role, content, created_at
		 FROM archive
		 WHERE user_id = $1 AND embedding IS NOT NULL
		   AND 1 - (embedding <=> $2::vector) >= $3
		 ORDER BY embedding <=> $2::vector
		 LIMIT $4`,
		userID, vecLiteral(embedding), minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: search archive: %w", err)
	}
	defer rows.Close()

	var out []careerflow.StoredMessage
	for rows.Next() {
		var m careerflow.StoredMessage
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan archive row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// --- JobStore ---

// AddJobs inserts or replaces postings in the index. Used for seeding.
func (s *Store) AddJobs(ctx context.Context, jobs []careerflow.Job) error {
	batch := &pgx.Batch{}
	for _, j := range jobs {
		created := j.CreatedAt
		if created == 0 {
			created = careerflow.NowUnix()
		}
		batch.Queue(
			`INSERT INTO jobs (id, title, company, job_type, position, description, embedding, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO UPDATE SET
			   title = EXCLUDED.title, company = EXCLUDED.company,
			   job_type = EXCLUDED.job_type, position = EXCLUDED.position,
			   description = EXCLUDED.description, embedding = EXCLUDED.embedding`,
			j.ID, j.Title, j.Company, j.JobType, j.Position, j.Description, vecLiteral(j.Embedding), created)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range jobs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: add job: %w", err)
		}
	}
	return nil
}

func (s *Store) GetJobs(ctx context.Context, ids []string) ([]careerflow.Job, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, company, job_type, position, description, created_at
		 FROM jobs WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: get jobs: %w", err)
	}
	defer rows.Close()

	byID := map[string]careerflow.Job{}
	for rows.Next() {
		var j careerflow.Job
		if err := rows.Scan(&j.ID, &j.Title, &j.Company, &j.JobType, &j.Position, &j.Description, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan job: %w", err)
		}
		byID[j.ID] = j
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Preserve the requested order; unknown ids are skipped.
	var out []careerflow.Job
	for _, id := range ids {
		if j, ok := byID[id]; ok {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *Store) SearchJobs(ctx context.Context, embedding []float32, f careerflow.JobFilter, k int, minScore float64) ([]careerflow.ScoredJob, error) {
	query := `SELECT id, title, company, job_type, position, description, created_at,
	                 1 - (embedding <=> $1::vector) AS score
	          FROM jobs WHERE embedding IS NOT NULL
	            AND 1 - (embedding <=> $1::vector) >= $2`
	args := []any{vecLiteral(embedding), minScore}
	if f.JobType != "" {
		args = append(args, f.JobType)
		query += fmt.Sprintf(` AND job_type = $%d`, len(args))
	}
	if f.Position != "" {
		args = append(args, f.Position)
		query += fmt.Sprintf(` AND position = $%d`, len(args))
	}
	args = append(args, k)
	query += fmt.Sprintf(` ORDER BY embedding <=> $1::vector LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: search jobs: %w", err)
	}
	defer rows.Close()

	var out []careerflow.ScoredJob
	for rows.Next() {
		var h careerflow.ScoredJob
		if err := rows.Scan(&h.Job.ID, &h.Job.Title, &h.Job.Company, &h.Job.JobType,
			&h.Job.Position, &h.Job.Description, &h.Job.CreatedAt, &h.Score); err != nil {
			return nil, fmt.Errorf("postgres: scan job: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// vecLiteral renders a float32 slice as a pgvector text literal, or nil
// for an empty vector so the column stays NULL.
func vecLiteral(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%g", x)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
