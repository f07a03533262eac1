package render

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"cellscript/internal/types"
)

// TextWriter prints one line per delivery: "Sheet1!B3 [scalar] 5".
type TextWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTextWriter writes deliveries to w.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: w}
}

func (t *TextWriter) Render(addr types.Address, r types.Result) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintf(t.w, "%s [%s] %s\n", addr, r.Kind(), r)
	return err
}

// JSONWriter prints one JSON object per line:
//
//	{"address":"Sheet1!B3","result":{"kind":"scalar","value":5}}
type JSONWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONWriter writes deliveries to w as JSON lines.
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{enc: json.NewEncoder(w)}
}

type jsonDelivery struct {
	Address string          `json:"address"`
	Result  json.RawMessage `json:"result"`
}

func (j *JSONWriter) Render(addr types.Address, r types.Result) error {
	data, err := types.MarshalResult(r)
	if err != nil {
		return fmt.Errorf("encode %s: %w", addr, err)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.enc.Encode(jsonDelivery{Address: addr.String(), Result: data})
}
