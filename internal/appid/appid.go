// Package appid holds the application identity shared by the CLI, config
// paths and HTTP surfaces.
package appid

import "strings"

// Identity names the binary and the locations it reads from.
type Identity struct {
	Vendor      string
	BinaryName  string
	ConfigName  string
	EnvPrefix   string
	Description string
}

var current = Identity{
	Vendor:      "artswap",
	BinaryName:  "artswap",
	ConfigName:  "artswap",
	EnvPrefix:   "ARTSWAP_",
	Description: "Match game card artwork against a replacement image set",
}

// Get returns the application identity.
func Get() Identity {
	return current
}

// EnvPrefixNoUnderscore is the prefix in the form viper.SetEnvPrefix expects.
func (i Identity) EnvPrefixNoUnderscore() string {
	return strings.TrimSuffix(i.EnvPrefix, "_")
}

// TelemetryNamespace prefixes metric names and server log entries.
func (i Identity) TelemetryNamespace() string {
	return strings.ReplaceAll(strings.ToLower(i.ConfigName), "-", "_")
}
