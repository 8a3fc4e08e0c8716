package server

import (
	"bytes"
	"encoding/json"
)

// jsonDecode decodes with UseNumber so numeric property values round-trip
// without float drift.
func jsonDecode(raw []byte, into interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(into)
}
