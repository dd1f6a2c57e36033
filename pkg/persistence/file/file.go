// Package file provides JSON-file persistence for development and tests.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/crewdeck/crewdeck/pkg/persistence"
)

// Persistence implements persistence.Persistence on the file system.
// One JSON file per entity, one directory per entity kind.
type Persistence struct {
	root          string
	workflowRepo  *WorkflowRepository
	reviewRepo    *ReviewRepository
	executionRepo *ExecutionRepository
}

// NewPersistence creates file persistence rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)
	mu := &sync.Mutex{}

	return &Persistence{
		root:          cleanRoot,
		workflowRepo:  &WorkflowRepository{dir: filepath.Join(cleanRoot, "workflows"), mu: mu},
		reviewRepo:    &ReviewRepository{dir: filepath.Join(cleanRoot, "reviews"), mu: mu},
		executionRepo: &ExecutionRepository{dir: filepath.Join(cleanRoot, "executions"), mu: mu},
	}
}

// Close performs any necessary cleanup. Nothing to release for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory is usable.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if err := os.MkdirAll(p.root, 0o755); err != nil {
		return fmt.Errorf("file persistence root %s is not writable: %w", p.root, err)
	}

	return nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) ReviewRepository() persistence.ReviewRepository {
	return p.reviewRepo
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executionRepo
}

func writeEntity(dir, id string, entity any) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entity %s: %w", id, err)
	}

	if err := os.WriteFile(filepath.Join(dir, id+".json"), data, 0o644); err != nil {
		return fmt.Errorf("failed to write entity %s: %w", id, err)
	}

	return nil
}

// readEntity loads one entity; notFound is returned as-is when the file
// does not exist so callers surface their own sentinel.
func readEntity(dir, id string, entity any, notFound error) error {
	data, err := os.ReadFile(filepath.Join(dir, id+".json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return notFound
		}

		return fmt.Errorf("failed to read entity %s: %w", id, err)
	}

	if err := json.Unmarshal(data, entity); err != nil {
		return fmt.Errorf("failed to unmarshal entity %s: %w", id, err)
	}

	return nil
}

func listEntityIDs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list directory %s: %w", dir, err)
	}

	ids := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}

	return ids, nil
}
