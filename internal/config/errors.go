package config

import (
	"errors"
)

// Errors returned while loading and validating the engine configuration.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)
