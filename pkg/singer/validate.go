package singer

import (
	"bytes"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/errors"
	jsonpool "github.com/ajitpratap0/nebula-tiktok-ads/pkg/json"
)

// Validator checks records against a compiled JSON Schema
type Validator struct {
	stream string
	schema *jsonschema.Schema
}

// NewValidator compiles schema for stream
func NewValidator(stream string, schema *Schema) (*Validator, error) {
	raw, err := jsonpool.Marshal(schema)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode schema").WithDetail("stream", stream)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to decode schema").WithDetail("stream", stream)
	}

	url := "mem://schemas/" + stream + ".json"
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(url, doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid schema").WithDetail("stream", stream)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid schema").WithDetail("stream", stream)
	}
	return &Validator{stream: stream, schema: compiled}, nil
}

// Validate returns a validation error describing every violation of record
func (v *Validator) Validate(record map[string]interface{}) error {
	raw, err := jsonpool.Marshal(record)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode record").WithDetail("stream", v.stream)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to decode record").WithDetail("stream", v.stream)
	}
	if err := v.schema.Validate(inst); err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, "record failed schema validation").WithDetail("stream", v.stream)
	}
	return nil
}
