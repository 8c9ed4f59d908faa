package config

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// schema is the CUE constraint set a decoded Config must satisfy.
// Structural validation (field shapes, non-negativity, cross-field
// rules) lives here instead of hand-rolled field checks.
const schema = `
engine: {
	"thread-pool-size":              int & >=0 & <=1024
	"gc-high-water":                 int & >=0
	"content-cache-path":            string
	"content-cache-max-age-minutes": int & >=0
}

constraints: {
	"max-execution-steps":        int & >=0
	"max-allocated-nodes":        int & >=0
	"max-opcode-depth":           int & >=0
	"max-contained-entities":     int & >=0
	"max-contained-entity-depth": int & >=0
	"max-entity-id-length":       int & >=0
}

asset: {
	"default-extension": string & =~"^\\.[a-z0-9]+$"
}
`

// Validate checks c against the embedded CUE schema.
func Validate(c *Config) error {
	ctx := cuecontext.New()
	constraint := ctx.CompileString(schema)
	if err := constraint.Err(); err != nil {
		return fmt.Errorf("config: schema: %w", err)
	}
	value := ctx.Encode(map[string]interface{}{
		"engine": map[string]interface{}{
			"thread-pool-size":              c.Engine.ThreadPoolSize,
			"gc-high-water":                 c.Engine.GCHighWater,
			"content-cache-path":            c.Engine.ContentCachePath,
			"content-cache-max-age-minutes": c.Engine.ContentCacheMaxAgeMinutes,
		},
		"constraints": map[string]interface{}{
			"max-execution-steps":        c.Constraints.MaxExecutionSteps,
			"max-allocated-nodes":        c.Constraints.MaxAllocatedNodes,
			"max-opcode-depth":           c.Constraints.MaxOpcodeDepth,
			"max-contained-entities":     c.Constraints.MaxContainedEntities,
			"max-contained-entity-depth": c.Constraints.MaxContainedEntityDepth,
			"max-entity-id-length":       c.Constraints.MaxEntityIDLength,
		},
		"asset": map[string]interface{}{
			"default-extension": c.Asset.DefaultExtension,
		},
	})
	if err := value.Err(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	unified := constraint.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Engine.ContentCachePath != "" && c.Engine.ContentCacheMaxAgeMinutes <= 0 {
		return fmt.Errorf("config: content-cache-path set but content-cache-max-age-minutes is zero")
	}
	return nil
}
