// Package credentials provides the keyed secret lookup used by backend
// configuration. Secrets never appear in backend config files; configs name
// a key and the lookup resolves it.
package credentials

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// ErrNotFound is returned when no source knows the key.
var ErrNotFound = errors.New("credential not found")

// Lookup resolves a secret by name.
type Lookup interface {
	Lookup(key string) (string, error)
}

// Env reads secrets from the process environment.
type Env struct{}

// Lookup implements Lookup.
func (Env) Lookup(key string) (string, error) {
	if v, ok := os.LookupEnv(key); ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, key)
}

// Dotenv holds secrets read from a .env file. The process environment is
// not modified.
type Dotenv struct {
	values map[string]string
}

// LoadDotenv reads the given files. Later files override earlier ones.
func LoadDotenv(paths ...string) (*Dotenv, error) {
	values, err := godotenv.Read(paths...)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}
	return &Dotenv{values: values}, nil
}

// Lookup implements Lookup.
func (d *Dotenv) Lookup(key string) (string, error) {
	if v, ok := d.values[key]; ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, key)
}

// Static is a fixed map, mostly for tests.
type Static map[string]string

// Lookup implements Lookup.
func (s Static) Lookup(key string) (string, error) {
	if v, ok := s[key]; ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, key)
}

// Chain tries each lookup in order and returns the first hit.
type Chain []Lookup

// Lookup implements Lookup.
func (c Chain) Lookup(key string) (string, error) {
	for _, l := range c {
		v, err := l.Lookup(key)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, key)
}
