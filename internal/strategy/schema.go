package strategy

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

// ToJSONSchema converts a parameter struct to a JSON schema
func ToJSONSchema[T any](t T) (string, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	r.AllowAdditionalProperties = false
	schema := r.Reflect(t)

	jsonSchemaBytes, err := json.Marshal(schema)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeStrategyConfigError, "failed to marshal parameter schema", err)
	}

	return string(jsonSchemaBytes), nil
}
