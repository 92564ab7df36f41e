package wire

import (
	"os"
	"strings"
)

// Config controls optional decoding behaviors. The zero value is the strict
// default.
type Config struct {
	// AllowUnknownEnumNumberDecode: when true, decoding an enum accepts numbers
	// that are not members of the enum and surfaces them as uint64 instead of
	// failing with ErrUnknownEnumValue.
	AllowUnknownEnumNumberDecode bool
}

// DefaultConfig returns the strict configuration.
func DefaultConfig() Config { return Config{} }

// ConfigFromEnv returns the default configuration with toggles read from the
// environment. TLV8_ALLOW_UNKNOWN_ENUM_DECODE accepts "1" or "true".
func ConfigFromEnv() Config {
	c := DefaultConfig()
	if envEnabled("TLV8_ALLOW_UNKNOWN_ENUM_DECODE") {
		c.AllowUnknownEnumNumberDecode = true
	}
	return c
}

func envEnabled(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true"
}
