package cmd

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/require"

	"github.com/artswap/artswap/internal/core"
	errwrap "github.com/artswap/artswap/internal/errors"
)

func TestExitCodeFor(t *testing.T) {
	require.Equal(t, foundry.ExitCode(0), ExitCodeFor(nil))
	require.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(errwrap.WrapConfigInvalid(context.Background(), fmt.Errorf("bad"), "bad")))
	require.Equal(t, foundry.ExitExternalServiceUnavailable, ExitCodeFor(core.NewIndexError(core.IndexUnavailable, "search", "", nil)))
	require.Equal(t, foundry.ExitFailure, ExitCodeFor(core.NewIndexError(core.IndexQuery, "search", "", nil)))

	_, err := os.Open("/definitely/not/here")
	require.Equal(t, foundry.ExitFileNotFound, ExitCodeFor(fmt.Errorf("read cards: %w", err)))
	require.Equal(t, foundry.ExitFailure, ExitCodeFor(fmt.Errorf("anything else")))
}
