package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"

	"github.com/mcphub/mcphub/pkg/protocol"
)

// parseConfig parses JSON or JSONC bytes into a Config.
// hasComments is true if comments were present and will be lost on write.
func parseConfig(raw []byte) (cfg *protocol.Config, hasComments bool, err error) {
	ast, err := hujson.Parse(raw)
	if err != nil {
		return nil, false, fmt.Errorf("parsing JSON: %w", err)
	}

	hasComments = containsComments(&ast)

	ast.Standardize()
	cfg = &protocol.Config{}
	if err := json.Unmarshal(ast.Pack(), cfg); err != nil {
		return nil, false, fmt.Errorf("unmarshaling JSON: %w", err)
	}
	return cfg, hasComments, nil
}

// containsComments reports whether any whitespace run in the AST holds a
// comment. String literals are never inspected.
func containsComments(root *hujson.Value) bool {
	for v := range root.All() {
		extras := []hujson.Extra{v.BeforeExtra, v.AfterExtra}
		switch comp := v.Value.(type) {
		case *hujson.Object:
			extras = append(extras, comp.AfterExtra)
		case *hujson.Array:
			extras = append(extras, comp.AfterExtra)
		}
		for _, extra := range extras {
			if bytes.Contains(extra, []byte("//")) || bytes.Contains(extra, []byte("/*")) {
				return true
			}
		}
	}
	return false
}

// marshalConfig returns the 2-space indented document with a trailing newline.
func marshalConfig(cfg *protocol.Config) ([]byte, error) {
	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling JSON: %w", err)
	}
	return append(out, '\n'), nil
}

// writeFileAtomic writes data to a temp file beside path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
