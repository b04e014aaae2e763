// Package sqlite backs the engine's persistence contracts (Checkpointer,
// MemoryStore, JobStore) with a local SQLite file. Pure Go, zero CGO.
// Embeddings are stored as JSON text and vector search runs in-process
// with brute-force cosine similarity.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/nevindra/careerflow"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// StoreOption configures a SQLite Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store. When set, the store
// emits debug logs with timing and row counts. If not set, no logs are
// emitted.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store implements all three persistence contracts on one SQLite file.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var (
	_ careerflow.Checkpointer = (*Store)(nil)
	_ careerflow.MemoryStore  = (*Store)(nil)
	_ careerflow.JobStore     = (*Store)(nil)
)

var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New creates a Store on the SQLite file at dbPath. All goroutines
// serialize through a single connection (SetMaxOpenConns(1)) so
// concurrent writers never hit SQLITE_BUSY.
func New(dbPath string, opts ...StoreOption) *Store {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: store opened", "path", dbPath)
	return s
}

// Init creates all required tables. Idempotent.
func (s *Store) Init(ctx context.Context) error {
	start := time.Now()
	tables := []string{
		`CREATE TABLE IF NOT EXISTS threads (
			thread_id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS profiles (
			user_id TEXT PRIMARY KEY,
			profile TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS archive (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			thread_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_archive_user ON archive(user_id)`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			company TEXT NOT NULL,
			job_type TEXT NOT NULL DEFAULT '',
			position TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL,
			embedding TEXT,
			created_at INTEGER NOT NULL
		)`,
	}
	for _, q := range tables {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("sqlite: init: %w", err)
		}
	}
	s.logger.Debug("sqlite: init done", "duration", time.Since(start))
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// --- Checkpointer ---

func (s *Store) SaveCheckpoint(ctx context.Context, st *careerflow.ThreadState) error {
	blob, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("sqlite: marshal state: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO threads (thread_id, state, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(thread_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		st.ThreadID, string(blob), careerflow.NowUnix())
	if err != nil {
		return fmt.Errorf("sqlite: save checkpoint: %w", err)
	}
	s.logger.Debug("sqlite: checkpoint saved", "thread_id", st.ThreadID, "messages", len(st.Messages))
	return nil
}

func (s *Store) LoadThread(ctx context.Context, threadID string) (*careerflow.ThreadState, error) {
	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM threads WHERE thread_id = ?`, threadID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: load thread: %w", err)
	}
	var st careerflow.ThreadState
	if err := json.Unmarshal([]byte(blob), &st); err != nil {
		return nil, fmt.Errorf("sqlite: decode thread %s: %w", threadID, err)
	}
	return &st, nil
}

// --- MemoryStore ---

func (s *Store) SaveProfile(ctx context.Context, userID string, p careerflow.Profile) error {
	blob, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("sqlite: marshal profile: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, profile, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET profile = excluded.profile, updated_at = excluded.updated_at`,
		userID, string(blob), careerflow.NowUnix())
	if err != nil {
		return fmt.Errorf("sqlite: save profile: %w", err)
	}
	return nil
}

func (s *Store) LoadProfile(ctx context.Context, userID string) (careerflow.Profile, error) {
	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT profile FROM profiles WHERE user_id = ?`, userID).Scan(&blob)
	if err == sql.ErrNoRows {
		return careerflow.Profile{}, nil
	}
	if err != nil {
		return careerflow.Profile{}, fmt.Errorf("sqlite: load profile: %w", err)
	}
	var p careerflow.Profile
	if err := json.Unmarshal([]byte(blob), &p); err != nil {
		return careerflow.Profile{}, fmt.Errorf("sqlite: decode profile: %w", err)
	}
	return p, nil
}

func (s *Store) ArchiveMessages(ctx context.Context, userID string, msgs []careerflow.StoredMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin archive: %w", err)
	}
	defer tx.Rollback()

	for _, m := range msgs {
		emb, err := encodeVec(m.Embedding)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO archive (id, user_id, thread_id, role, content, embedding, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, userID, m.ThreadID, m.Role, m.Content, emb, m.CreatedAt); err != nil {
			return fmt.Errorf("sqlite: archive message: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit archive: %w", err)
	}
	s.logger.Debug("sqlite: messages archived", "user_id", userID, "count", len(msgs))
	return nil
}

func (s *Store) SearchArchive(ctx context.Context, userID string, embedding []float32, limit int, minScore float64) ([]careerflow.StoredMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, thread_id, role, content, embedding, created_at
		 FROM archive WHERE user_id = ? AND embedding IS NOT NULL`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search archive: %w", err)
	}
	defer rows.Close()

	type scored struct {
		msg   careerflow.StoredMessage
		score float64
	}
	var hits []scored
	for rows.Next() {
		var m careerflow.StoredMessage
		var emb sql.NullString
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &emb, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan archive row: %w", err)
		}
		vec, err := decodeVec(emb)
		if err != nil || vec == nil {
			continue
		}
		score := cosine(embedding, vec)
		if score >= minScore {
			hits = append(hits, scored{msg: m, score: score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: archive rows: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]careerflow.StoredMessage, len(hits))
	for i, h := range hits {
		out[i] = h.msg
	}
	return out, nil
}

// --- JobStore ---

// AddJobs inserts or replaces postings in the index. Used for seeding.
func (s *Store) AddJobs(ctx context.Context, jobs []careerflow.Job) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin add jobs: %w", err)
	}
	defer tx.Rollback()

	for _, j := range jobs {
		emb, err := encodeVec(j.Embedding)
		if err != nil {
			return err
		}
		created := j.CreatedAt
		if created == 0 {
			created = careerflow.NowUnix()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO jobs (id, title, company, job_type, position, description, embedding, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			j.ID, j.Title, j.Company, j.JobType, j.Position, j.Description, emb, created); err != nil {
			return fmt.Errorf("sqlite: add job %s: %w", j.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) GetJobs(ctx context.Context, ids []string) ([]careerflow.Job, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, company, job_type, position, description, created_at
		 FROM jobs WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get jobs: %w", err)
	}
	defer rows.Close()

	byID := map[string]careerflow.Job{}
	for rows.Next() {
		var j careerflow.Job
		if err := rows.Scan(&j.ID, &j.Title, &j.Company, &j.JobType, &j.Position, &j.Description, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan job: %w", err)
		}
		byID[j.ID] = j
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: job rows: %w", err)
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
	query := `SELECT id, title, company, job_type, position, description, embedding, created_at
	          FROM jobs WHERE embedding IS NOT NULL`
	var args []any
	if f.JobType != "" {
		query += ` AND job_type = ?`
		args = append(args, f.JobType)
	}
	if f.Position != "" {
		query += ` AND position = ?`
		args = append(args, f.Position)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search jobs: %w", err)
	}
	defer rows.Close()

	var hits []careerflow.ScoredJob
	for rows.Next() {
		var j careerflow.Job
		var emb sql.NullString
		if err := rows.Scan(&j.ID, &j.Title, &j.Company, &j.JobType, &j.Position, &j.Description, &emb, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan job: %w", err)
		}
		vec, err := decodeVec(emb)
		if err != nil || vec == nil {
			continue
		}
		score := cosine(embedding, vec)
		if score >= minScore {
			hits = append(hits, careerflow.ScoredJob{Job: j, Score: score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: job rows: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// --- helpers ---

func encodeVec(v []float32) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	blob, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encode embedding: %w", err)
	}
	return string(blob), nil
}

func decodeVec(s sql.NullString) ([]float32, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var v []float32
	if err := json.Unmarshal([]byte(s.String), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// cosine computes cosine similarity. Mismatched or zero-length vectors
// score 0.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
