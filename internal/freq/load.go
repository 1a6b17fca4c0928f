package freq

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema/table.schema.json
var tableSchema []byte

const schemaURL = "https://kasiski.local/schema/frequency-table.schema.json"

var (
	compiled     *jsonschema.Schema
	compileErr   error
	compiledOnce sync.Once
)

func schema() (*jsonschema.Schema, error) {
	compiledOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, bytes.NewReader(tableSchema)); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile(schemaURL)
	})
	return compiled, compileErr
}

// Document is the on-disk form of a frequency table.
type Document struct {
	Name        string             `json:"name" yaml:"name" toml:"name"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Frequencies map[string]float64 `json:"frequencies" yaml:"frequencies" toml:"frequencies"`
}

// LoadFile reads a table from a JSON, YAML or TOML file, validates it and
// normalizes it to sum to 1.
func LoadFile(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read table: %w", err)
	}
	return Parse(data, filepath.Ext(path))
}

// Parse decodes table data in the format named by ext (".json", ".yaml",
// ".yml" or ".toml").
func Parse(data []byte, ext string) (Table, error) {
	var raw map[string]any
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return Table{}, fmt.Errorf("%w: parse JSON: %v", ErrInvalidTable, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Table{}, fmt.Errorf("%w: parse YAML: %v", ErrInvalidTable, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return Table{}, fmt.Errorf("%w: parse TOML: %v", ErrInvalidTable, err)
		}
	default:
		return Table{}, fmt.Errorf("%w: unsupported format %q", ErrInvalidTable, ext)
	}

	// The validator expects the encoding/json data model.
	canonical, err := json.Marshal(raw)
	if err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	var instance any
	if err := json.Unmarshal(canonical, &instance); err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}

	s, err := schema()
	if err != nil {
		return Table{}, fmt.Errorf("compile table schema: %w", err)
	}
	if err := s.Validate(instance); err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}

	var doc Document
	if err := json.Unmarshal(canonical, &doc); err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	return doc.Table()
}

// Table converts the document to a normalized Table.
func (d Document) Table() (Table, error) {
	t := Table{Name: d.Name}
	for i := 0; i < AlphabetSize; i++ {
		f, ok := d.Frequencies[string(rune('a'+i))]
		if !ok {
			return Table{}, fmt.Errorf("%w: missing letter %q", ErrInvalidTable, rune('a'+i))
		}
		t.Freqs[i] = f
	}
	return t.Normalized()
}

// DocumentOf returns the on-disk form of t.
func DocumentOf(t Table) Document {
	return Document{Name: t.Name, Frequencies: t.Letters()}
}
