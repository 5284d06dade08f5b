// Package definition loads workflow definitions and execution inputs from
// JSON or YAML files.
package definition

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/nodeflow/pkg/models"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var ErrEmptyDefinition = errors.New("definition is empty")

// FormatOf picks the format from a file extension. Unknown extensions are
// read as JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// LoadWorkflow reads a workflow definition file. Missing edge types default
// to "default"; the definition is not validated.
func LoadWorkflow(path string) (*models.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file %s: %w", path, err)
	}

	workflow, err := ParseWorkflow(data, FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return workflow, nil
}

func ParseWorkflow(data []byte, format Format) (*models.Workflow, error) {
	var workflow models.Workflow
	if err := decode(data, format, &workflow); err != nil {
		return nil, err
	}

	for _, edge := range workflow.Edges {
		if edge != nil && edge.EdgeType == "" {
			edge.EdgeType = models.EdgeTypeDefault
		}
	}

	return &workflow, nil
}

// ParseInput reads execution input given inline or as a path prefixed with
// "@". Empty input yields an empty map.
func ParseInput(value string) (map[string]any, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return map[string]any{}, nil
	}

	format := FormatJSON
	data := []byte(value)

	if path, ok := strings.CutPrefix(value, "@"); ok {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file %s: %w", path, err)
		}

		format = FormatOf(path)
		data = content
	}

	input := map[string]any{}
	if err := decode(data, format, &input); err != nil {
		return nil, fmt.Errorf("failed to parse input: %w", err)
	}

	return input, nil
}

func decode(data []byte, format Format, target any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return ErrEmptyDefinition
	}

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, target); err != nil {
			return fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, target); err != nil {
			return fmt.Errorf("failed to parse JSON: %w", err)
		}
	}

	return nil
}
