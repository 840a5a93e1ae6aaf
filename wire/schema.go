package wire

import (
	"github.com/invopop/jsonschema"
)

// Schema reflects the envelope into a JSON schema, for documenting the
// protocol and validating captured traffic. Message and token payloads are
// game-defined, so they stay open objects.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(Envelope))
	schema.Title = "Stagecraft Wire Protocol"
	schema.Description = "Validates the JSON envelopes exchanged between a game server and its clients"
	return schema
}
