package fractalx

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

// Persister stores module snapshots.
type Persister interface {
	Save(ctx context.Context, snapshot Snapshot) error
	Load(ctx context.Context, moduleID string) (Snapshot, error)
}

// Publisher receives one record per dispatch cycle.
type Publisher interface {
	Publish(ctx context.Context, record DispatchRecord) error
	Close() error
}

// Visualizer renders an exported tree.
type Visualizer interface {
	ExportDOT(tree TreeNode) string
	ExportJSON(tree TreeNode) ([]byte, error)
}

// Snapshot is the serializable per-id state of a module.
type Snapshot struct {
	ModuleID  string         `json:"moduleID" yaml:"moduleID"`
	Root      string         `json:"root" yaml:"root"`
	Version   string         `json:"version" yaml:"version"`
	States    map[string]any `json:"states" yaml:"states"`
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp"`
}

// DispatchRecord describes one completed dispatch cycle.
type DispatchRecord struct {
	ModuleID  string       `json:"moduleID" yaml:"moduleID"`
	Dispatch  DispatchData `json:"dispatch" yaml:"dispatch"`
	Error     string       `json:"error,omitempty" yaml:"error,omitempty"`
	Timestamp time.Time    `json:"timestamp" yaml:"timestamp"`
}

// TreeNode is one installed component in a tree export.
type TreeNode struct {
	ID         string     `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"`
	State      any        `json:"state,omitempty" yaml:"state,omitempty"`
	Inputs     []string   `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Interfaces []string   `json:"interfaces,omitempty" yaml:"interfaces,omitempty"`
	Children   []TreeNode `json:"children,omitempty" yaml:"children,omitempty"`
}

// convertState shapes a stored state like the live one. A decoded snapshot
// holds generic maps; they are re-encoded into the live state's type.
func convertState(stored, live any) (any, error) {
	if stored == nil || live == nil {
		return stored, nil
	}
	lt := reflect.TypeOf(live)
	if reflect.TypeOf(stored) == lt {
		return stored, nil
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("json marshal: %w", err)
	}
	target := reflect.New(lt)
	if err := json.Unmarshal(data, target.Interface()); err != nil {
		return nil, fmt.Errorf("json unmarshal into %s: %w", lt, err)
	}
	return target.Elem().Interface(), nil
}
