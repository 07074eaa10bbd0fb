// Package config parses environment variables into typed structs.
//
// The process builds its configuration once at startup and passes the
// resulting values to constructors. Nothing here is cached between calls.
//
//	type DatabaseConfig struct {
//		URL string `env:"DATABASE_URL,required"`
//	}
//
//	var cfg DatabaseConfig
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
package config

import (
	"errors"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Option configures Load.
type Option func(*loader)

type loader struct {
	files    []string
	required bool
	environ  map[string]string
}

// WithDotenv reads the given files before parsing. Missing files are skipped
// unless WithRequiredDotenv is also set. Values already present in the
// process environment are never overwritten.
func WithDotenv(files ...string) Option {
	return func(l *loader) {
		l.files = append(l.files, files...)
	}
}

// WithRequiredDotenv makes a missing dotenv file an error.
func WithRequiredDotenv() Option {
	return func(l *loader) { l.required = true }
}

// WithEnvironment parses from the given map instead of the process
// environment. Used by tests.
func WithEnvironment(vars map[string]string) Option {
	return func(l *loader) { l.environ = vars }
}

// Load populates v from environment variables according to its `env` tags.
// A ".env" file in the working directory is read when present.
func Load[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}

	l := &loader{files: []string{".env"}}
	for _, opt := range opts {
		opt(l)
	}

	if l.environ == nil {
		for _, f := range l.files {
			if err := godotenv.Load(f); err != nil {
				if errors.Is(err, fs.ErrNotExist) && !l.required {
					continue
				}
				return errors.Join(ErrDotenv, err)
			}
		}
	}

	parseOpts := env.Options{}
	if l.environ != nil {
		parseOpts.Environment = l.environ
	}
	if err := env.ParseWithOptions(v, parseOpts); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad works like Load but panics on failure.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(err)
	}
}
