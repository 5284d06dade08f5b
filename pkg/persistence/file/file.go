// Package file provides a file-based persistence implementation that stores
// workflows, executions and their logs as JSON documents under a root
// directory.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/nodeflow/pkg/persistence"
)

const (
	dirPerm  = 0750
	filePerm = 0600
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root          string
	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionRepository
	knowledgeRepo *KnowledgeRepository
}

// NewPersistence creates a new instance of Persistence with the specified root
// directory. A "file://" prefix is accepted.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:          cleanRoot,
		workflowRepo:  NewWorkflowRepository(cleanRoot),
		executionRepo: NewExecutionRepository(cleanRoot),
		knowledgeRepo: NewKnowledgeRepository(cleanRoot),
	}
}

// Root returns the directory the store writes to.
func (fp *Persistence) Root() string {
	return fp.root
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); err != nil {
		return fmt.Errorf("%w: %w", persistence.ErrPersistence, err)
	}

	return nil
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return fp.executionRepo
}

func (fp *Persistence) KnowledgeRepository() persistence.KnowledgeRepository {
	return fp.knowledgeRepo
}

// validateID validates that an identifier is safe to use as a file name.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: identifier cannot be empty", persistence.ErrInvalidID)
	}

	// Check for path traversal attempts
	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q contains invalid characters", persistence.ErrInvalidID, id)
	}

	return nil
}

// readJSON decodes the file at path into target. A missing file is reported
// with an error satisfying os.IsNotExist.
func readJSON(path string, target any) error {
	body, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path is built from validated ids
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filepath.Base(path), err)
	}

	return nil
}

// writeJSON replaces the file at path with the JSON encoding of value. The
// document is written to a temporary file first and renamed into place.
func writeJSON(path string, value any) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}

	if err := os.Chmod(tmp.Name(), filePerm); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to set permissions on %s: %w", filepath.Base(path), err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}

	return nil
}

// jsonFiles lists the ids of the documents stored in dir.
func jsonFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(matches))
	for _, match := range matches {
		ids = append(ids, strings.TrimSuffix(filepath.Base(match), ".json"))
	}

	return ids, nil
}
