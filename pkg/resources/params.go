package resources

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"

	"github.com/openfroyo/qlikcloud/pkg/engine"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Common holds the parameters every module accepts.
type Common struct {
	State     string `json:"state,omitempty"`
	TenantURI string `json:"tenant_uri" validate:"required,url"`
	APIKey    string `json:"api_key" validate:"required"`
}

// TerminalState returns the requested state, defaulting to present.
func (c Common) TerminalState() engine.TerminalState {
	if c.State == "" {
		return engine.StatePresent
	}
	return engine.TerminalState(c.State)
}

// DecodeCommon reads the connection and state parameters, ignoring the rest.
func DecodeCommon(raw map[string]any) (Common, error) {
	var c Common
	if err := decode(raw, &c, false); err != nil {
		return c, err
	}
	if err := validate.Struct(c); err != nil {
		return c, engine.NewValidationError("invalid connection parameters", err)
	}
	return c, nil
}

// decodeParams decodes raw task parameters into a module's params struct and
// validates it. Unknown parameters are rejected. Scalar values are converted
// weakly since templated parameters arrive as strings.
func decodeParams(kind string, raw map[string]any, out any) error {
	if err := decode(raw, out, true); err != nil {
		return engine.NewValidationError(fmt.Sprintf("invalid %s parameters", kind), err).WithResource(kind)
	}
	if err := validate.Struct(out); err != nil {
		return engine.NewValidationError(fmt.Sprintf("invalid %s parameters", kind), err).WithResource(kind)
	}
	return nil
}

func decode(raw map[string]any, out any, strict bool) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Squash:           true,
		ErrorUnused:      strict,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// desiredState projects decoded params through a schema.
func desiredState(schema engine.Schema, params any) (engine.State, error) {
	m, err := engine.ToState(params)
	if err != nil {
		return nil, err
	}
	return schema.Desired(m), nil
}
