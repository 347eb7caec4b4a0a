// SPDX-License-Identifier: MPL-2.0

package cfs

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var configurationSchema string

// ValidateConfigurationPayload checks a raw configuration payload against
// the configuration schema. The payload may come from either CFS API
// version or from a configuration file.
func ValidateConfigurationPayload(data []byte, filename string) error {
	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configurationSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile configuration schema: %w", schemaValue.Err())
	}

	// CUE is a superset of JSON, so the payload compiles directly.
	payloadValue := ctx.CompileBytes(data, cue.Filename(filename))
	if payloadValue.Err() != nil {
		return fmt.Errorf("invalid configuration data in %q: %w", filename, payloadValue.Err())
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Configuration"))
	unified := schema.Unify(payloadValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return fmt.Errorf("configuration data in %q does not match the expected schema: %w", filename, err)
	}

	return nil
}
