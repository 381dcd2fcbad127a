// internal/mqttctl/codec.go

package mqttctl

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	EncodingJSON    = "json"
	EncodingMsgpack = "msgpack"
)

// Encode serializes v for the state topic. msgpack reuses the json field
// names so both encodings carry the same keys.
func Encode(encoding string, v any) ([]byte, error) {
	switch encoding {
	case "", EncodingJSON:
		return json.Marshal(v)
	case EncodingMsgpack:
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(v); err != nil {
			return nil, fmt.Errorf("msgpack encode: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unknown encoding %q", encoding)
}
