package serialize

import "encoding/json"

// Encode marshals v to JSON. BigInt, Date, Timestamp, OrderedMap, and Set
// values anywhere inside v use their own MarshalJSON implementations, so
// big integers stay unquoted and ordered collections keep their order —
// plain encoding/json.Marshal already does the right thing once those
// types implement json.Marshaler; Encode exists so callers only need to
// import one package for the whole encode/decode contract.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}
