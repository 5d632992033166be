package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	tysonErrors "github.com/harunnryd/tyson/internal/errors"
	"github.com/harunnryd/tyson/internal/transcript"

	"github.com/natefinch/atomic"
)

const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Store persists sessions on disk. Layout under basePath:
//
//	store.lock             exclusive-instance lock
//	index.json             session registry (Index)
//	<session-id>.json      full transcript, one file per session
//
// Transcript files hold the whole conversation; every save is a full-file
// replace, never an append.
type Store struct {
	basePath string
	fileLock *FileLock

	mu    sync.RWMutex
	index *Index
}

// NewStore acquires the store lock and loads the session index. A corrupt
// index is logged and replaced with a fresh one rather than failing startup.
func NewStore(basePath string, lockCfg *FileLockConfig) (*Store, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create store dir %s: %w", basePath, err)
	}

	fileLock, err := NewFileLock(basePath, lockCfg)
	if err != nil {
		return nil, fmt.Errorf("acquire store lock: %w", err)
	}

	index := &Index{Sessions: make(map[string]Meta)}
	indexPath := filepath.Join(basePath, "index.json")
	if data, err := os.ReadFile(indexPath); err == nil {
		if err := json.Unmarshal(data, index); err != nil {
			slog.Warn("Failed to parse session index, starting fresh", "path", indexPath, "error", err)
			index = &Index{Sessions: make(map[string]Meta)}
		}
		if index.Sessions == nil {
			index.Sessions = make(map[string]Meta)
		}
	}

	return &Store{
		basePath: basePath,
		fileLock: fileLock,
		index:    index,
	}, nil
}

func (s *Store) Close() {
	if s.fileLock != nil {
		s.fileLock.Unlock()
	}
}

func (s *Store) BasePath() string {
	return s.basePath
}

// CreateSession registers a new session and returns its metadata.
func (s *Store) CreateSession(title string) (Meta, error) {
	now := time.Now().UTC()
	meta := Meta{
		ID:        NewID(),
		Title:     title,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.SaveSession(meta); err != nil {
		return Meta{}, err
	}
	return meta, nil
}

// SaveSession upserts metadata into the index and persists it.
func (s *Store) SaveSession(meta Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta.UpdatedAt = time.Now().UTC()
	s.index.Sessions[meta.ID] = meta
	return s.saveIndexLocked()
}

// GetSession looks up session metadata. Unknown IDs return ErrNotFound.
func (s *Store) GetSession(id string) (Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, ok := s.index.Sessions[id]
	if !ok {
		return Meta{}, tysonErrors.NotFound("session " + id)
	}
	return meta, nil
}

// ListSessions returns all sessions, most recently updated first.
func (s *Store) ListSessions() []Meta {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Meta, 0, len(s.index.Sessions))
	for _, meta := range s.index.Sessions {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// DeleteSession removes a session's index entry and transcript file.
func (s *Store) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index.Sessions[id]; !ok {
		return tysonErrors.NotFound("session " + id)
	}

	path := s.transcriptPath(id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove transcript %s: %w", path, err)
	}

	delete(s.index.Sessions, id)
	return s.saveIndexLocked()
}

// ResetSession drops a session's transcript but keeps its index entry, so the
// next turn starts from an empty conversation.
func (s *Store) ResetSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, ok := s.index.Sessions[id]
	if !ok {
		return tysonErrors.NotFound("session " + id)
	}

	path := s.transcriptPath(id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove transcript %s: %w", path, err)
	}

	meta.UpdatedAt = time.Now().UTC()
	s.index.Sessions[id] = meta
	return s.saveIndexLocked()
}

// SaveTranscript persists a session's full transcript and bumps its index
// entry. Sessions not yet in the index get one, so transcripts written by
// the HTTP surface self-register.
func (s *Store) SaveTranscript(id string, tr *transcript.Transcript) error {
	if err := tr.SaveFile(s.transcriptPath(id)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	meta, ok := s.index.Sessions[id]
	if !ok {
		now := time.Now().UTC()
		meta = Meta{ID: id, Status: StatusActive, CreatedAt: now}
	}
	meta.UpdatedAt = time.Now().UTC()
	s.index.Sessions[id] = meta
	return s.saveIndexLocked()
}

// LoadTranscript reads a session's transcript. A session that exists but has
// no transcript file yet yields an empty transcript.
func (s *Store) LoadTranscript(id string) (*transcript.Transcript, error) {
	s.mu.RLock()
	_, known := s.index.Sessions[id]
	s.mu.RUnlock()

	tr := transcript.New()
	err := tr.LoadFile(s.transcriptPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if known {
				return tr, nil
			}
			return nil, tysonErrors.NotFound("session " + id)
		}
		return nil, err
	}
	return tr, nil
}

func (s *Store) transcriptPath(id string) string {
	return filepath.Join(s.basePath, id+".json")
}

func (s *Store) saveIndexLocked() error {
	data, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session index: %w", err)
	}
	path := filepath.Join(s.basePath, "index.json")
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write session index: %w", err)
	}
	return nil
}
