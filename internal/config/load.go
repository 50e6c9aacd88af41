package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "FAIRWAY_"

// Load builds a Config from defaults, the optional file at path, the optional
// .env files and the process environment, then validates it.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the file at path onto c. The format follows the extension.
func (c *Config) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return c.LoadYAML(f)
	case ".toml":
		return c.LoadTOML(f)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func (c *Config) LoadYAML(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode yaml config: %w", err)
	}
	return nil
}

func (c *Config) LoadTOML(r io.Reader) error {
	md, err := toml.NewDecoder(r).Decode(c)
	if err != nil {
		return fmt.Errorf("decode toml config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("%w: unknown toml keys %v", ErrInvalidConfig, undecoded)
	}
	return nil
}

// loadDotEnv loads the given files, or ./.env when none are given. Missing files
// are skipped; variables already set in the environment win.
func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides the settings most often changed per machine.
func (c *Config) ApplyEnv() {
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Encoding = getEnv("LOG_ENCODING", c.Log.Encoding)
	c.Simulation.TickRate = getEnvInt("TICK_RATE", c.Simulation.TickRate)
	c.Bridge.Enabled = getEnvBool("BRIDGE_ENABLED", c.Bridge.Enabled)
	c.Bridge.Addr = getEnv("BRIDGE_ADDR", c.Bridge.Addr)
	c.Bridge.Mode = getEnv("BRIDGE_MODE", c.Bridge.Mode)
	c.DevMode = getEnvBool("DEV_MODE", c.DevMode)
	c.Aero.WindEnabled = getEnvBool("WIND_ENABLED", c.Aero.WindEnabled)
	c.Aero.WindSpeed = getEnvFloat("WIND_SPEED", c.Aero.WindSpeed)
	c.Aero.WindDirection = getEnvVec3("WIND_DIRECTION", c.Aero.WindDirection)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvVec3 parses "x,y,z".
func getEnvVec3(key string, defaultValue mgl64.Vec3) mgl64.Vec3 {
	value := os.Getenv(EnvPrefix + key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	if len(parts) != 3 {
		return defaultValue
	}
	var v mgl64.Vec3
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return defaultValue
		}
		v[i] = f
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
