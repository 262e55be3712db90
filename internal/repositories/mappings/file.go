package mappings

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"

	"github.com/hale-labs/hale-oracle/internal/interfaces"
	"github.com/hale-labs/hale-oracle/internal/lib"
)

const DefaultFilePath = "bridge_mappings.json"

// FileStore keeps all mappings in one json object keyed by attestation id,
// rewritten atomically on every Put
type FileStore struct {
	path   string
	data   map[string]*Mapping
	loaded bool
	mu     sync.Mutex
	log    interfaces.ILogger
}

func NewFileStore(path string, log interfaces.ILogger) *FileStore {
	return &FileStore{path: path, log: log}
}

func (s *FileStore) LoadAll(ctx context.Context) ([]*Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return nil, err
	}
	return sortedCopy(s.data), nil
}

func (s *FileStore) Put(ctx context.Context, m *Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return err
	}

	prev, existed := s.data[m.SourceID]
	s.data[m.SourceID] = m.Copy()

	if err := s.flush(); err != nil {
		if existed {
			s.data[m.SourceID] = prev
		} else {
			delete(s.data, m.SourceID)
		}
		return err
	}
	return nil
}

func (s *FileStore) load() error {
	if s.loaded {
		return nil
	}

	data := make(map[string]*Mapping)
	raw, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.log.Debugf("mapping file %s does not exist, starting empty", s.path)
	case err != nil:
		return lib.WrapError(ErrStore, err)
	default:
		if err := json.Unmarshal(raw, &data); err != nil {
			return lib.WrapError(ErrStore, err)
		}
	}

	for id, m := range data {
		if m.SourceID == "" {
			m.SourceID = id
		}
	}
	s.data = data
	s.loaded = true
	s.log.Infof("loaded %d bridge mappings from %s", len(data), s.path)
	return nil
}

func (s *FileStore) flush() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return lib.WrapError(ErrStore, err)
	}
	if err := lib.WriteFileAtomic(s.path, raw, 0o644); err != nil {
		return lib.WrapError(ErrStore, err)
	}
	return nil
}
