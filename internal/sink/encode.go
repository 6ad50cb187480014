// Package sink persists and presents a finished HealthReport: it encodes the
// report, writes it to disk, prints the console summary and maps the outcome
// to a process exit code.
package sink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"github.com/kubeadapt/gpu-health/pkg/model"
)

// Format is a report encoding.
type Format string

// Supported report encodings.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCBOR Format = "cbor"
)

// Formats lists every supported encoding.
var Formats = []Format{FormatJSON, FormatYAML, FormatCBOR}

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("sink: unsupported format %q (want json, yaml or cbor)", s)
}

// cborMode keeps struct field order (no deterministic key sorting) so the
// CBOR form lists fields in the same order as the JSON form.
var cborMode cbor.EncMode

func init() {
	var err error
	cborMode, err = cbor.EncOptions{
		Time: cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic("sink: CBOR encoder initialization failed: " + err.Error())
	}
}

// Encode serializes r in the given format. JSON is indented by two spaces;
// text formats end in a newline.
func Encode(r *model.HealthReport, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("sink: encode json: %w", err)
		}
		return append(data, '\n'), nil

	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("sink: encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("sink: encode yaml: %w", err)
		}
		return buf.Bytes(), nil

	case FormatCBOR:
		data, err := cborMode.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("sink: encode cbor: %w", err)
		}
		return data, nil

	default:
		return nil, fmt.Errorf("sink: unsupported format %q", format)
	}
}

// IsText reports whether the format is safe to echo to a terminal.
func (f Format) IsText() bool {
	return f == FormatJSON || f == FormatYAML
}
