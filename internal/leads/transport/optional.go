package transport

import (
	"encoding/json"
)

// OptionalInt64 distinguishes an absent field from an explicit null.
type OptionalInt64 struct {
	Value *int64
	Set   bool
}

func (o OptionalInt64) IsZero() bool {
	return !o.Set
}

func (o *OptionalInt64) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}

	var parsed int64
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}

	o.Value = &parsed
	return nil
}
