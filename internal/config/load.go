package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where drivers look for the rules document when no path is
// given.
const DefaultPath = "config/settings.yaml"

// Format selects the document syntax.
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
)

// FormatFor picks a format from the file extension. Anything that is not
// .json is read as YAML, which also accepts plain JSON documents.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Load reads and parses the rules document at path. I/O errors are wrapped
// and keep their identity (errors.Is(err, fs.ErrNotExist) still holds).
func Load(path string) (Rules, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read config: %w", err)
	}
	r, err := Parse(b, FormatFor(path))
	if err != nil {
		return Rules{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes a rules document. An empty document yields empty Rules.
func Parse(data []byte, format Format) (Rules, error) {
	var r Rules
	if len(bytes.TrimSpace(data)) == 0 {
		return r, nil
	}

	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &r); err != nil {
			return Rules{}, err
		}
	default:
		if err := yaml.Unmarshal(data, &r); err != nil {
			return Rules{}, err
		}
	}
	return r, nil
}

// Marshal encodes r in the given format. Strategy maps keep their order, so
// a document round-trips through Parse unchanged.
func Marshal(r Rules, format Format) ([]byte, error) {
	if format == FormatJSON {
		b, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
