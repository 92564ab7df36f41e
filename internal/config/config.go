package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/anirudhraja/tlv8/internal/logging"
	"github.com/anirudhraja/tlv8/internal/render"
	"github.com/anirudhraja/tlv8/wire"
)

// Config holds tlv8ctl settings.
type Config struct {
	SchemaPaths      []string
	LogLevel         string
	Output           string
	AllowUnknownEnum bool
}

type fileConfig struct {
	SchemaPaths      []string `toml:"schema_paths"`
	LogLevel         string   `toml:"log_level"`
	Output           string   `toml:"output"`
	AllowUnknownEnum bool     `toml:"allow_unknown_enum"`
}

// Default returns the settings used when no file is given.
// TLV8_ALLOW_UNKNOWN_ENUM_DECODE seeds AllowUnknownEnum.
func Default() Config {
	return Config{
		SchemaPaths:      []string{},
		LogLevel:         "info",
		Output:           render.FormatJSON,
		AllowUnknownEnum: wire.ConfigFromEnv().AllowUnknownEnumNumberDecode,
	}
}

// Load reads a TOML file over the defaults. Keys absent from the file keep
// their default.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load tlv8ctl config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load tlv8ctl config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("schema_paths") {
		cfg.SchemaPaths = normalizePaths(raw.SchemaPaths)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("output") {
		cfg.Output = strings.ToLower(strings.TrimSpace(raw.Output))
	}
	if meta.IsDefined("allow_unknown_enum") {
		cfg.AllowUnknownEnum = raw.AllowUnknownEnum
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings.
func (c Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	if !render.IsFormat(c.Output) {
		return fmt.Errorf("invalid output %q: want one of %s", c.Output, strings.Join(render.Formats(), ", "))
	}
	return nil
}

func normalizePaths(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		v := strings.TrimSpace(p)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
