package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/meridianbi/meridian/internal/observability"
	"github.com/meridianbi/meridian/internal/tracing"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// FileStore persists one JSON file per thread under a checkpoint directory.
// Writes go through a temp file and an atomic rename, so a crash mid-write
// never corrupts an existing checkpoint.
type FileStore struct {
	dir        string
	writeLocks map[string]*sync.Mutex
	locksMu    sync.RWMutex
}

// NewFileStore creates a FileStore rooted at dir, creating it if needed
func NewFileStore(dir string) (*FileStore, error) {
	observability.EnsureRegistered()

	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, ".meridian", "checkpoints")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	fs := &FileStore{
		dir:        dir,
		writeLocks: make(map[string]*sync.Mutex),
	}

	log.Info().Str("dir", dir).Msg("Checkpoint store initialized")

	return fs, nil
}

// validateThreadID validates the thread id for security
func validateThreadID(threadID string) error {
	if threadID == "" {
		return fmt.Errorf("thread id cannot be empty")
	}
	if strings.Contains(threadID, "..") {
		return fmt.Errorf("thread id cannot contain '..'")
	}
	if strings.ContainsAny(threadID, "/\\") {
		return fmt.Errorf("thread id cannot contain path separators")
	}
	if strings.Contains(threadID, "\x00") {
		return fmt.Errorf("thread id cannot contain null bytes")
	}
	return nil
}

func (fs *FileStore) path(threadID string) string {
	return filepath.Join(fs.dir, threadID+".json")
}

// getWriteLock gets or creates a write lock for a thread
func (fs *FileStore) getWriteLock(threadID string) *sync.Mutex {
	fs.locksMu.Lock()
	defer fs.locksMu.Unlock()

	if lock, exists := fs.writeLocks[threadID]; exists {
		return lock
	}

	lock := &sync.Mutex{}
	fs.writeLocks[threadID] = lock
	return lock
}

func (fs *FileStore) releaseWriteLock(threadID string) {
	fs.locksMu.Lock()
	defer fs.locksMu.Unlock()
	delete(fs.writeLocks, threadID)
}

// Save writes the checkpoint for its thread, replacing any prior state
func (fs *FileStore) Save(ctx context.Context, cp *Checkpoint) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = tracing.WithThreadID(ctx, cp.ThreadID)
	ctx, span := tracing.StartSpan(
		ctx,
		"meridian.checkpoint",
		"checkpoint.save",
		attribute.String("thread_id", cp.ThreadID),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger).With().Str("thread_id", cp.ThreadID).Logger()
	start := time.Now()
	defer func() {
		observability.RecordCheckpointSave(time.Since(start))
	}()

	if err := validateThreadID(cp.ThreadID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = time.Now()

	data, err := json.Marshal(cp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	lock := fs.getWriteLock(cp.ThreadID)
	lock.Lock()
	defer lock.Unlock()

	target := fs.path(cp.ThreadID)
	tempPath := target + ".tmp"

	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to sync checkpoint: %w", err)
	}
	file.Close()

	if err := os.Rename(tempPath, target); err != nil {
		os.Remove(tempPath)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	logger.Debug().
		Int("iteration", cp.Iteration).
		Int("turns", len(cp.Turns)).
		Str("status", cp.Status).
		Msg("Checkpoint saved")

	return nil
}

// Load reads the checkpoint for a thread, or (nil, nil) when none exists
func (fs *FileStore) Load(ctx context.Context, threadID string) (*Checkpoint, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = tracing.WithThreadID(ctx, threadID)
	ctx, span := tracing.StartSpan(
		ctx,
		"meridian.checkpoint",
		"checkpoint.load",
		attribute.String("thread_id", threadID),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger).With().Str("thread_id", threadID).Logger()
	start := time.Now()
	defer func() {
		observability.RecordCheckpointLoad(time.Since(start))
	}()

	if err := validateThreadID(threadID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	data, err := os.ReadFile(fs.path(threadID))
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug().Msg("No checkpoint for thread")
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to parse checkpoint: %w", err)
	}

	logger.Debug().
		Int("iteration", cp.Iteration).
		Int("turns", len(cp.Turns)).
		Msg("Checkpoint loaded")

	return &cp, nil
}

// Delete removes the checkpoint for a thread. Missing files are not errors.
func (fs *FileStore) Delete(ctx context.Context, threadID string) error {
	if err := validateThreadID(threadID); err != nil {
		return err
	}

	lock := fs.getWriteLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(fs.path(threadID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	fs.releaseWriteLock(threadID)

	log.Info().Str("thread_id", threadID).Msg("Checkpoint deleted")

	return nil
}

// List returns all thread ids with a stored checkpoint
func (fs *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint directory: %w", err)
	}

	var threads []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}

		threads = append(threads, strings.TrimSuffix(name, ".json"))
	}

	return threads, nil
}
