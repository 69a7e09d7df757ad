package recovery

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

func (MCPRef) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "array", Items: &jsonschema.Schema{Type: "string"}},
		},
	}
}

var (
	payloadSchemaOnce sync.Once
	payloadSchema     []byte
	payloadSchemaErr  error
)

// PayloadSchema returns the JSON schema reflected from Payload.
func PayloadSchema() ([]byte, error) {
	payloadSchemaOnce.Do(func() {
		r := &jsonschema.Reflector{
			Anonymous:                 true,
			DoNotReference:            true,
			AllowAdditionalProperties: true,
		}
		s := r.Reflect(&Payload{})
		s.Version = ""
		payloadSchema, payloadSchemaErr = json.Marshal(s)
	})
	return payloadSchema, payloadSchemaErr
}

// ValidatePayload checks a recovered document against the payload schema and
// returns a description of every violation. Violations are diagnostics only.
func ValidatePayload(doc string) ([]string, error) {
	schema, err := PayloadSchema()
	if err != nil {
		return nil, errors.Wrap(err, "could not build payload schema")
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewStringLoader(doc),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to validate payload")
	}
	if result.Valid() {
		return nil, nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	log.Debug().Strs("violations", violations).Msg("payload does not match schema")
	return violations, nil
}
