package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/noah-isme/serene-scheduler/pkg/storage"
)

// FileRepository keeps each dataset in <dir>/<name>.json.
type FileRepository struct {
	storage *storage.LocalStorage
}

// NewFileRepository wraps a local storage handle.
func NewFileRepository(store *storage.LocalStorage) *FileRepository {
	return &FileRepository{storage: store}
}

func (r *FileRepository) Load(_ context.Context, name string, dest interface{}) (bool, error) {
	raw, err := r.storage.Read(name + ".json")
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load dataset %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode dataset %s: %w", name, err)
	}
	return true, nil
}

func (r *FileRepository) Save(_ context.Context, name string, value interface{}) error {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode dataset %s: %w", name, err)
	}
	if err := r.storage.Save(name+".json", payload); err != nil {
		return fmt.Errorf("save dataset %s: %w", name, err)
	}
	return nil
}
