package types

import (
	"bytes"
	"encoding/json"
)

// DecodeJSON unmarshals data into v. Numbers inside untyped values such as
// node input are kept as json.Number so they survive with every digit.
func DecodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
