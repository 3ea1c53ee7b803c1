package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/muurk/nodecfg/internal/catalog"
	"github.com/muurk/nodecfg/internal/logging"
)

const (
	keyMetadata  = "metadata"
	keyIRBlaster = "ir_blaster"
)

// Parse decodes a seed document. Top-level key order is preserved; keys that
// are neither sections nor instance ids are carried through unchanged.
func Parse(data []byte, meta *catalog.Metadata, targets *catalog.TargetCatalog) (*Document, error) {
	d := New(meta, targets)

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("failed to parse document: expected object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to parse document: %w", err)
		}
		key, _ := tok.(string)

		var body json.RawMessage
		if err := dec.Decode(&body); err != nil {
			return nil, fmt.Errorf("failed to parse document key %s: %w", key, err)
		}

		switch key {
		case keyMetadata:
			if err := json.Unmarshal(body, &d.metadata); err != nil {
				return nil, fmt.Errorf("failed to parse metadata: %w", err)
			}
		case keyIRBlaster:
			if bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
				continue
			}
			var ir IRBlaster
			if err := json.Unmarshal(body, &ir); err != nil {
				return nil, fmt.Errorf("failed to parse ir_blaster: %w", err)
			}
			if ir.Target == nil {
				ir.Target = []string{}
			}
			d.irBlaster = &ir
		default:
			c, n, ok := instanceNumber(key)
			if !ok {
				d.extras = append(d.extras, extraField{key: key, data: append([]byte(nil), body...)})
				continue
			}
			inst, err := decodeInstance(key, body)
			if err != nil {
				return nil, err
			}
			if _, dup := d.instances[key]; !dup {
				d.ids = append(d.ids, key)
			}
			d.instances[key] = inst
			if n > d.counters[c] {
				d.counters[c] = n
			}
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	d.recomputeDuplicates()
	logging.Debug("Parsed document",
		zap.String("id", d.metadata.ID),
		zap.Int("instances", len(d.ids)))
	return d, nil
}

// Load reads a seed document from a file.
func Load(path string, meta *catalog.Metadata, targets *catalog.TargetCatalog) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return Parse(data, meta, targets)
}

// MarshalJSON emits metadata, instances in display order, the IR section
// when enabled, then any carried-through keys.
func (d *Document) MarshalJSON() ([]byte, error) {
	var obj orderedObject
	write := obj.write

	if err := write(keyMetadata, d.metadata); err != nil {
		return nil, err
	}
	for _, id := range d.ids {
		if err := write(id, d.instances[id]); err != nil {
			return nil, err
		}
	}
	if d.irBlaster != nil {
		if err := write(keyIRBlaster, d.irBlaster); err != nil {
			return nil, err
		}
	}
	for _, extra := range d.extras {
		if err := write(extra.key, json.RawMessage(extra.data)); err != nil {
			return nil, err
		}
	}

	return obj.bytes(), nil
}

// orderedObject builds a JSON object with keys in insertion order.
type orderedObject struct {
	buf bytes.Buffer
}

func (o *orderedObject) write(key string, v any) error {
	val, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if o.buf.Len() == 0 {
		o.buf.WriteByte('{')
	} else {
		o.buf.WriteByte(',')
	}
	k, _ := json.Marshal(key)
	o.buf.Write(k)
	o.buf.WriteByte(':')
	o.buf.Write(val)
	return nil
}

func (o *orderedObject) bytes() []byte {
	if o.buf.Len() == 0 {
		return []byte("{}")
	}
	o.buf.WriteByte('}')
	return o.buf.Bytes()
}

// Snapshot returns the indented submission payload.
func (d *Document) Snapshot() ([]byte, error) {
	data, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return nil, fmt.Errorf("failed to format document: %w", err)
	}
	return out.Bytes(), nil
}
