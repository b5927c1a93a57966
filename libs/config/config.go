// Package config reads process configuration from the environment, optionally layered
// over a config file named by CONFIG_FILE. Keys are the upper-case env names.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	mu sync.Mutex
	v  = newViper()
)

func newViper() *viper.Viper {
	vp := viper.New()
	vp.AutomaticEnv()
	return vp
}

// Load reads the optional config file. Env vars still take precedence over file values.
func Load(path string) error {
	mu.Lock()
	defer mu.Unlock()
	if strings.TrimSpace(path) == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Reset discards any loaded file values. Used by tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	v = newViper()
}

func raw(key string) string {
	mu.Lock()
	defer mu.Unlock()
	return strings.TrimSpace(v.GetString(key))
}

func String(key, fallback string) string {
	s := raw(key)
	if s == "" {
		return fallback
	}
	return s
}

func RequiredString(key string) (string, error) {
	s := raw(key)
	if s == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return s, nil
}

func Port(key, fallback string) (string, error) {
	s := String(key, fallback)
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		return "", fmt.Errorf("%s must be a valid TCP port (got %q)", key, s)
	}
	return s, nil
}

// Int returns fallback when the key is unset and an error when it is set but not an integer.
func Int(key string, fallback int) (int, error) {
	s := raw(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got %q)", key, s)
	}
	return n, nil
}

func Bool(key string, fallback bool) bool {
	switch strings.ToLower(raw(key)) {
	case "":
		return fallback
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// Duration accepts Go duration strings ("90s") or a bare integer in the given unit.
func Duration(key string, unit, fallback time.Duration) (time.Duration, error) {
	s := raw(key)
	if s == "" {
		return fallback, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * unit, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (got %q)", key, s)
	}
	return d, nil
}

// List splits a comma separated value, dropping blanks.
func List(key string) []string {
	var out []string
	for _, part := range strings.Split(raw(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
