// Package featureflags describes the feature flags an accessory advertises
// in the "ff" key of its Bonjour TXT record.
package featureflags

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// PairingBit is the only flag with a defined meaning.
const PairingBit = 0x01

// TXTKey is the TXT record key carrying the flags.
const TXTKey = "ff"

// ErrUnknownFeature is returned by Lookup when no description exists. With
// the pairing bit masked every input has one.
var ErrUnknownFeature = errors.New("featureflags: unknown feature")

var descriptions = map[int]string{
	0: "No support for HAP Pairing",
	1: "Supports HAP Pairing",
}

// Lookup returns the description of flags. Only the pairing bit is
// considered; every other bit, and the sign, is ignored.
func Lookup(flags int) (string, error) {
	bit := flags & PairingBit
	if desc, ok := descriptions[bit]; ok {
		return desc, nil
	}
	return "", fmt.Errorf("%w: item %d not found", ErrUnknownFeature, flags)
}

// Describe is Lookup for callers that know it cannot fail.
func Describe(flags int) string {
	desc, err := Lookup(flags)
	if err != nil {
		return err.Error()
	}
	return desc
}

// SupportsPairing reports whether the pairing bit is set.
func SupportsPairing(flags int) bool {
	return flags&PairingBit != 0
}

// ParseTXTValue parses the value of the "ff" TXT key. Accessories publish it
// in decimal; a 0x prefix is accepted too.
func ParseTXTValue(v string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, fmt.Errorf("empty %s value", TXTKey)
	}
	n, err := strconv.ParseInt(v, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", TXTKey, v, err)
	}
	return int(n), nil
}
