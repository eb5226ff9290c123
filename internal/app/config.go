package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ProgramPath  string // .hcl program files
	SettingsPath string // optional settings file

	Device       string
	LogFormat    string
	LogLevel     string
	ValidateEach bool
	NoValidate   bool
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.ProgramPath == "" {
		return nil, errors.New("ProgramPath is a required configuration field and cannot be empty")
	}

	return &cfg, nil
}
