package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mamadbah2/greenconsole/internal/domain/models"
)

const dataFilePerm = 0600

// FileStore keeps records in a JSON object keyed by storage key, the way a browser
// keeps them in local storage.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a file-backed store. The file is created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the record under StorageKey. A missing file or key is not an error.
func (s *FileStore) Load(_ context.Context) (models.Credentials, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readAll()
	if err != nil {
		return models.Credentials{}, false, err
	}

	raw, ok := records[StorageKey]
	if !ok {
		return models.Credentials{}, false, nil
	}

	var creds models.Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return models.Credentials{}, false, fmt.Errorf("decode %s: %w", StorageKey, err)
	}
	return creds, true, nil
}

// Save replaces the record under StorageKey, leaving other keys untouched.
func (s *FileStore) Save(_ context.Context, creds models.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readAll()
	if err != nil {
		// A corrupted file is replaced rather than blocking every later save.
		records = map[string]json.RawMessage{}
	}

	raw, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	records[StorageKey] = raw

	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return fmt.Errorf("encode credential file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, dataFilePerm); err != nil {
		return fmt.Errorf("write credential file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace credential file: %w", err)
	}
	return nil
}

func (s *FileStore) readAll() (map[string]json.RawMessage, error) {
	records := map[string]json.RawMessage{}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return records, nil
		}
		return nil, fmt.Errorf("read credential file: %w", err)
	}

	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode credential file: %w", err)
	}
	return records, nil
}
