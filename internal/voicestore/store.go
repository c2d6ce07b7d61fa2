// Package voicestore persists cloned voices: metadata in SQLite, reference
// samples as files next to the database.
package voicestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/tornado-trebuchet/tts-server/internal/config"
	_ "modernc.org/sqlite"
)

// ErrNotFound reports a lookup for a voice id that is not stored.
var ErrNotFound = errors.New("voicestore: voice not found")

// Voice is a stored cloned voice.
type Voice struct {
	ID          uuid.UUID
	Name        string
	Description string
	Language    string
	CreatedAt   time.Time
	SamplePath  string
	Metadata    map[string]string
}

// Store wraps the SQLite-backed voice repository.
type Store struct {
	db         *sql.DB
	samplesDir string
	log        *slog.Logger
	clock      func() time.Time
}

// Open initializes the store, creating the data directory and schema as
// needed.
func Open(ctx context.Context, cfg config.VoicesConfig, log *slog.Logger) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	samplesDir := filepath.Join(dir, "samples")
	if err := os.MkdirAll(samplesDir, 0o755); err != nil {
		return nil, fmt.Errorf("create samples dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{
		db:         db,
		samplesDir: samplesDir,
		log:        log.With(slog.String("component", "voicestore")),
		clock:      time.Now,
	}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS voices (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    language TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    sample_path TEXT,
    metadata TEXT
);
CREATE INDEX IF NOT EXISTS idx_voices_created ON voices(created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Healthy reports whether the store can serve lookups.
func (s *Store) Healthy() bool {
	return s != nil && s.db != nil && s.db.Ping() == nil
}

// Save persists a voice together with its reference sample. The sample is
// written as <id>.wav under the samples directory and the stored voice's
// SamplePath points at it.
func (s *Store) Save(ctx context.Context, voice Voice, sample []byte) (Voice, error) {
	if voice.ID == uuid.Nil {
		voice.ID = uuid.New()
	}
	if voice.CreatedAt.IsZero() {
		voice.CreatedAt = s.clock()
	}

	samplePath := filepath.Join(s.samplesDir, voice.ID.String()+".wav")
	if err := os.WriteFile(samplePath, sample, 0o644); err != nil {
		return Voice{}, fmt.Errorf("write reference sample: %w", err)
	}
	voice.SamplePath = samplePath

	meta, err := json.Marshal(voice.Metadata)
	if err != nil {
		return Voice{}, fmt.Errorf("encode metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO voices (id, name, description, language, created_at, sample_path, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		voice.ID.String(), voice.Name, voice.Description, voice.Language,
		voice.CreatedAt.UTC(), voice.SamplePath, string(meta))
	if err != nil {
		os.Remove(samplePath)
		return Voice{}, fmt.Errorf("insert voice: %w", err)
	}
	s.log.Info("voice saved", slog.String("voice_id", voice.ID.String()), slog.String("name", voice.Name))
	return voice, nil
}

// Get returns the stored voice for id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Voice, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, language, created_at, sample_path, metadata
		 FROM voices WHERE id = ?`, id.String())
	return scanVoice(row)
}

// List returns all stored voices, newest first.
func (s *Store) List(ctx context.Context) ([]Voice, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, language, created_at, sample_path, metadata
		 FROM voices ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	defer rows.Close()

	var voices []Voice
	for rows.Next() {
		voice, err := scanVoice(rows)
		if err != nil {
			return nil, err
		}
		voices = append(voices, voice)
	}
	return voices, rows.Err()
}

// Delete removes a voice and its reference sample. It reports whether the
// voice existed.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	voice, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM voices WHERE id = ?`, id.String()); err != nil {
		return false, fmt.Errorf("delete voice: %w", err)
	}
	if voice.SamplePath != "" {
		if err := os.Remove(voice.SamplePath); err != nil && !os.IsNotExist(err) {
			s.log.Warn("failed to remove reference sample",
				slog.String("path", voice.SamplePath),
				slog.String("error", err.Error()))
		}
	}
	s.log.Info("voice deleted", slog.String("voice_id", id.String()))
	return true, nil
}

// Exists reports whether a voice id is stored.
func (s *Store) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM voices WHERE id = ?`, id.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVoice(row rowScanner) (Voice, error) {
	var (
		idStr     string
		voice     Voice
		metaJSON  sql.NullString
		samplePth sql.NullString
	)
	err := row.Scan(&idStr, &voice.Name, &voice.Description, &voice.Language,
		&voice.CreatedAt, &samplePth, &metaJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return Voice{}, ErrNotFound
	}
	if err != nil {
		return Voice{}, fmt.Errorf("scan voice: %w", err)
	}
	voice.ID, err = uuid.Parse(idStr)
	if err != nil {
		return Voice{}, fmt.Errorf("parse voice id: %w", err)
	}
	voice.SamplePath = samplePth.String
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &voice.Metadata); err != nil {
			return Voice{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return voice, nil
}
