// Package config provides configuration loading for spanhygiene.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB
)

// EnvMap maps environment variable names to dotted config keys.
//
//	"OTEL_EXPORTER_OTLP_ENDPOINT": "telemetry.endpoint"
type EnvMap map[string]string

// Load fills dst from an optional YAML file and then from environment
// variables named in envs.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables listed in envs
//  2. YAML config file at configPath (skipped when configPath is empty)
//  3. Whatever dst already holds (callers pass a struct of defaults)
//
// dst must be a pointer to a struct with koanf tags. Keys missing from both
// sources leave the corresponding field of dst untouched.
func Load(configPath string, envs EnvMap, dst any) error {
	k := koanf.New(".")

	if configPath != "" {
		content, err := readConfigFile(configPath)
		if err != nil {
			return err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Unknown variables map to "" and are skipped by the provider.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return envs[strings.ToUpper(s)]
	}), nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := k.Unmarshal("", dst); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// readConfigFile reads a config file, rejecting oversized files.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	// Validate using the already-opened descriptor to avoid a TOCTOU race
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}
