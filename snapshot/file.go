package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// FileStore persists snapshots as JSON files under a directory, one file per
// snapshot plus an append-only JSONL log per agent for audit/replay. Writes
// go to a temp file first and are renamed into place so a crash never leaves
// a partial snapshot visible.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

// NewFileStore creates a file-backed snapshot store.
func NewFileStore(dir string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{
		dir:    dir,
		logger: logger.With(zap.String("component", "snapshot_file_store")),
	}
}

// Save writes the snapshot file atomically and appends it to the agent's
// JSONL log.
func (s *FileStore) Save(ctx context.Context, snap *AgentSnapshot) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	pretty, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	path := filepath.Join(s.dir, snap.Key()+".json")
	tmp, err := os.CreateTemp(s.dir, snap.Key()+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(pretty); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish snapshot: %w", err)
	}

	if err := s.appendLog(snap); err != nil {
		// The snapshot itself is durable; a broken audit log is logged and
		// not treated as a save failure.
		s.logger.Warn("snapshot log append failed",
			zap.String("snapshot_id", snap.SnapshotID),
			zap.Error(err))
	}

	s.logger.Debug("snapshot saved",
		zap.String("snapshot_id", snap.SnapshotID),
		zap.String("path", path))
	return nil
}

func (s *FileStore) appendLog(snap *AgentSnapshot) error {
	line, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	logPath := filepath.Join(s.dir, snap.AgentName+"_history.jsonl")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(line, '\n'))
	return err
}

// Load returns the snapshot with the given ID, or the most recently written
// one when snapshotID is empty. A missing directory or file reports
// ErrNotFound.
func (s *FileStore) Load(ctx context.Context, snapshotID string) (*AgentSnapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: directory %s", ErrNotFound, s.dir)
		}
		return nil, fmt.Errorf("read snapshot dir: %w", err)
	}

	var path string
	if snapshotID != "" {
		suffix := "_" + snapshotID + ".json"
		for _, entry := range entries {
			if strings.HasSuffix(entry.Name(), suffix) {
				path = filepath.Join(s.dir, entry.Name())
				break
			}
		}
		if path == "" {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, snapshotID)
		}
	} else {
		var newest time.Time
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if path == "" || info.ModTime().After(newest) {
				newest = info.ModTime()
				path = filepath.Join(s.dir, entry.Name())
			}
		}
		if path == "" {
			return nil, fmt.Errorf("%w: no snapshots in %s", ErrNotFound, s.dir)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	var snap AgentSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot %s: %w", path, err)
	}

	s.logger.Debug("snapshot loaded", zap.String("path", path))
	return &snap, nil
}
