package appid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetIsPopulated(t *testing.T) {
	identity := Get()
	require.NotEmpty(t, identity.Vendor)
	require.NotEmpty(t, identity.BinaryName)
	require.NotEmpty(t, identity.ConfigName)
	require.Equal(t, "ARTSWAP_", identity.EnvPrefix)
	require.Equal(t, "ARTSWAP", identity.EnvPrefixNoUnderscore())
}

func TestTelemetryNamespace(t *testing.T) {
	require.Equal(t, "artswap", Get().TelemetryNamespace())
	require.Equal(t, "card_art", Identity{ConfigName: "Card-Art"}.TelemetryNamespace())
}
