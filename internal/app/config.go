package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	SchemaPath string // hcl schema files
	ValuesPath string // optional hcl value snapshot
	EntityID   string // entity to evaluate; may be empty when the schema defines exactly one

	LogFormat  string
	LogLevel   string
	JSONOutput bool
}

// NewConfig validates a Config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.SchemaPath == "" {
		return nil, errors.New("SchemaPath is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}
