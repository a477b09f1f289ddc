// Package production provides production integrations: persistence, dispatch publishing, visualization.
// Implements the module's Persister, Publisher and Visualizer interfaces.

package production

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/comalice/fractalx"
)

// JSONPersister is a file-based persister using JSON serialization.
type JSONPersister struct {
	dir string
}

// NewJSONPersister creates a JSONPersister, ensuring the directory exists.
func NewJSONPersister(dir string) (*JSONPersister, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &JSONPersister{dir: dir}, nil
}

func (p *JSONPersister) Save(ctx context.Context, snapshot fractalx.Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}

	fn := filepath.Join(p.dir, snapshot.ModuleID+".json")
	if err := os.WriteFile(fn, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", fn, err)
	}
	return nil
}

func (p *JSONPersister) Load(ctx context.Context, moduleID string) (fractalx.Snapshot, error) {
	fn := filepath.Join(p.dir, moduleID+".json")
	data, err := readSnapshotFile(fn, moduleID)
	if err != nil {
		return fractalx.Snapshot{}, err
	}

	var snapshot fractalx.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fractalx.Snapshot{}, fmt.Errorf("json unmarshal: %w", err)
	}
	snapshot.ModuleID = moduleID
	return snapshot, nil
}

// YAMLPersister is a file-based persister using YAML serialization.
type YAMLPersister struct {
	dir string
}

// NewYAMLPersister creates a YAMLPersister, ensuring the directory exists.
func NewYAMLPersister(dir string) (*YAMLPersister, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &YAMLPersister{dir: dir}, nil
}

func (p *YAMLPersister) Save(ctx context.Context, snapshot fractalx.Snapshot) error {
	data, err := yaml.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}

	fn := filepath.Join(p.dir, snapshot.ModuleID+".yaml")
	if err := os.WriteFile(fn, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", fn, err)
	}
	return nil
}

func (p *YAMLPersister) Load(ctx context.Context, moduleID string) (fractalx.Snapshot, error) {
	fn := filepath.Join(p.dir, moduleID+".yaml")
	data, err := readSnapshotFile(fn, moduleID)
	if err != nil {
		return fractalx.Snapshot{}, err
	}

	var snapshot fractalx.Snapshot
	if err := yaml.Unmarshal(data, &snapshot); err != nil {
		return fractalx.Snapshot{}, fmt.Errorf("yaml unmarshal: %w", err)
	}
	snapshot.ModuleID = moduleID
	if snapshot.Root == "" {
		return fractalx.Snapshot{}, fmt.Errorf("module %q: snapshot has no root", moduleID)
	}
	return snapshot, nil
}

func readSnapshotFile(fn, moduleID string) ([]byte, error) {
	data, err := os.ReadFile(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("module %q: %w", moduleID, os.ErrNotExist)
		}
		return nil, fmt.Errorf("read %s: %w", fn, err)
	}
	return data, nil
}
