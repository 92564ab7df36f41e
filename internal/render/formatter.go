package render

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatCBOR  = "cbor"
	FormatTable = "table"
)

var formats = []string{FormatJSON, FormatYAML, FormatCBOR, FormatTable}

// Formats lists the supported output formats.
func Formats() []string {
	return append([]string(nil), formats...)
}

// IsFormat reports whether name is a supported output format.
func IsFormat(name string) bool {
	for _, f := range formats {
		if f == name {
			return true
		}
	}
	return false
}

// Formatter defines the interface for output formatting.
type Formatter interface {
	Format(data any) (string, error)
}

// NewFormatter returns a Formatter for the given format string.
func NewFormatter(format string) (Formatter, error) {
	switch strings.ToLower(format) {
	case FormatJSON, "":
		return &JSONFormatter{}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatCBOR:
		return &CBORFormatter{}, nil
	case FormatTable:
		return &TableFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// JSONFormatter formats data as indented JSON. Byte strings are shown as hex.
type JSONFormatter struct{}

func (f *JSONFormatter) Format(data any) (string, error) {
	b, err := json.MarshalIndent(Textual(data), "", "  ")
	if err != nil {
		return "", fmt.Errorf("error formatting JSON: %w", err)
	}
	return string(b) + "\n", nil
}

// YAMLFormatter formats data as YAML. Byte strings are shown as hex.
type YAMLFormatter struct{}

func (f *YAMLFormatter) Format(data any) (string, error) {
	b, err := yaml.Marshal(Textual(data))
	if err != nil {
		return "", fmt.Errorf("error formatting YAML: %w", err)
	}
	return string(b), nil
}

var cborEncMode cbor.EncMode

func init() {
	var err error
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	cborEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}
}

// CBORFormatter formats data as canonical CBOR, printed as hex. Byte strings
// stay CBOR byte strings.
type CBORFormatter struct{}

func (f *CBORFormatter) Format(data any) (string, error) {
	b, err := cborEncMode.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("error formatting CBOR: %w", err)
	}
	return hex.EncodeToString(b) + "\n", nil
}

// Row is one line of a table.
type Row []string

// Table is tabular output with a header.
type Table struct {
	Header Row
	Rows   []Row
}

// TableFormatter formats a Table, a list of strings or a map as aligned text.
type TableFormatter struct{}

func (f *TableFormatter) Format(data any) (string, error) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	switch t := data.(type) {
	case Table:
		if len(t.Rows) == 0 {
			return "No entries found.\n", nil
		}
		fmt.Fprintln(w, strings.Join(t.Header, "\t"))
		for _, row := range t.Rows {
			fmt.Fprintln(w, strings.Join(row, "\t"))
		}
	case []string:
		for _, s := range t {
			fmt.Fprintln(w, s)
		}
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%s:\t%v\n", k, Textual(t[k]))
		}
	default:
		fmt.Fprintln(w, Textual(data))
	}

	if err := w.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Textual returns a copy of v with every []byte replaced by its hex string.
func Textual(v any) any {
	switch t := v.(type) {
	case []byte:
		return hex.EncodeToString(t)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[k] = Textual(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = Textual(item)
		}
		return out
	default:
		return v
	}
}
