package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses process environment variables into the provided struct.
// The struct should use `env` tags to define mappings.
//
// Example:
//
//	type Config struct {
//	    Port     int    `env:"HTTP_PORT" envDefault:"8080"`
//	    LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
//	}
func Load(cfg any) error {
	return parse(cfg, env.Options{})
}

// LoadFrom parses cfg from environ instead of the process environment.
// Variables absent from environ fall back to their envDefault.
func LoadFrom(cfg any, environ map[string]string) error {
	return parse(cfg, env.Options{Environment: environ})
}

func parse(cfg any, opts env.Options) error {
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
