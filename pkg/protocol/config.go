package protocol

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DecodeConfig decodes a resolved node configuration into target, a pointer
// to a struct tagged with `json` names. Scalar types are coerced where it is
// lossless in intent (for example "30" into an int field).
func DecodeConfig(config map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return fmt.Errorf("failed to create config decoder: %w", err)
	}

	if err := decoder.Decode(config); err != nil {
		return fmt.Errorf("invalid node configuration: %w", err)
	}

	return nil
}
