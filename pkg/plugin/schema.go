// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package plugin

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/v2xhub/tmxcore/pkg/codec"
	"github.com/v2xhub/tmxcore/pkg/tmxerr"
	"github.com/v2xhub/tmxcore/pkg/value"
)

// ConfigDescriptor is one entry of the plugin's declared configuration
// schema: {key, default, description}.
type ConfigDescriptor struct {
	Key         string
	Default     *value.Value
	Description string
}

// jsonType maps a Value kind to the JSON Schema primitive type backing
// it. The canonical config form stays value.Value, validated at the
// JSON boundary via a schema generated from each descriptor's default
// value's kind.
func jsonType(v *value.Value) string {
	switch v.Kind() {
	case value.KindBool:
		return "boolean"
	case value.KindInt, value.KindUint:
		return "integer"
	case value.KindFloat:
		return "number"
	case value.KindArray:
		return "array"
	case value.KindMap:
		return "object"
	default:
		return "string"
	}
}

// DeclareConfig builds a JSON schema from descs (one property per
// descriptor, typed from its default value's kind) and seeds the
// config cache with each default, validating none is rejected by its
// own schema. Subsequent SetConfig calls for a declared key are
// validated against this schema before being accepted.
func (p *Plugin) DeclareConfig(descs []ConfigDescriptor) *tmxerr.Error {
	props := make(map[string]any, len(descs))
	for _, d := range descs {
		props[d.Key] = map[string]any{
			"type":        jsonType(d.Default),
			"description": d.Description,
		}
	}
	schemaDoc := map[string]any{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"type":       "object",
		"properties": props,
	}
	raw, err := json.Marshal(schemaDoc)
	if err != nil {
		return tmxerr.Wrap(tmxerr.InvalidArgument, err, "plugin: marshal config schema")
	}

	url := fmt.Sprintf("tmx://plugin/%s/config-schema.json", p.ID)
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return tmxerr.Wrap(tmxerr.InvalidArgument, err, "plugin: add config schema resource")
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return tmxerr.Wrap(tmxerr.InvalidArgument, err, "plugin: compile config schema")
	}

	p.configMu.Lock()
	p.configSchema = schema
	p.configMu.Unlock()

	for _, d := range descs {
		if err := p.SetConfig(d.Key, d.Default); err != nil {
			return err
		}
	}
	return nil
}

// validateConfig checks whole against the plugin's declared config
// schema, if one has been set via DeclareConfig; a plugin with no
// declared schema accepts any value; declaring one is optional.
func (p *Plugin) validateConfig(whole *value.Value) *tmxerr.Error {
	if p.configSchema == nil {
		return nil
	}
	raw, err := codec.EncodeJSON(whole)
	if err != nil {
		return err
	}
	var doc any
	if jerr := json.Unmarshal(raw, &doc); jerr != nil {
		return tmxerr.Wrap(tmxerr.MalformedInput, jerr, "plugin: decode config for validation")
	}
	if verr := p.configSchema.Validate(doc); verr != nil {
		return tmxerr.Wrap(tmxerr.InvalidArgument, verr, "plugin: config failed schema validation")
	}
	return nil
}
