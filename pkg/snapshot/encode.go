package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/planbridge/pkg/errors"
)

// Format is a snapshot serialization format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat parses a format name as given on the command line.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidFormat, "unsupported snapshot format %q (want json or yaml)", s)
	}
}

// FormatFromPath picks the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Encode writes s to w. JSON output is indented; YAML output keeps the JSON
// field order.
func Encode(w io.Writer, s *Snapshot, format Format) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	switch format {
	case FormatJSON, "":
		data = append(data, '\n')
		_, err = w.Write(data)
		return err
	case FormatYAML:
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		blockStyle(&node)
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(&node); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return errors.New(errors.ErrCodeInvalidFormat, "unsupported snapshot format %q", format)
	}
}

// blockStyle clears the flow and quoting styles a JSON document parses with,
// so the encoder emits block YAML and quotes only where needed.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// Decode reads a snapshot document from r and returns it as JSON bytes ready
// for [ValidateExport] or [ValidateImport].
func Decode(r io.Reader, format Format) ([]byte, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	switch format {
	case FormatJSON, "":
		return raw, nil
	case FormatYAML:
		var doc any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "snapshot is not valid YAML")
		}
		out, err := json.Marshal(doc)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "snapshot YAML cannot be represented as JSON")
		}
		return out, nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported snapshot format %q", format)
	}
}

// ReadFile reads a snapshot file and returns its JSON bytes. The format is
// taken from the file extension.
func ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f, FormatFromPath(path))
}

// WriteFile writes s to path in the format implied by its extension.
func WriteFile(path string, s *Snapshot) error {
	var buf bytes.Buffer
	if err := Encode(&buf, s, FormatFromPath(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
