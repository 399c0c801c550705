package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildBinary compiles cmd/artswap into a temp dir and copies it outside the
// repository so no go.mod or config file next to it is picked up.
func buildBinary(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("standalone binary copy/exec test is unix-focused")
	}
	if testing.Short() {
		t.Skip("builds the binary")
	}

	goMod, err := exec.Command("go", "env", "GOMOD").Output()
	require.NoError(t, err)
	repoRoot := filepath.Dir(strings.TrimSpace(string(goMod)))
	require.NotEqual(t, ".", repoRoot, "go env GOMOD returned empty")

	built := filepath.Join(t.TempDir(), "artswap")
	build := exec.Command("go", "build", "-o", built, "./cmd/artswap")
	build.Dir = repoRoot
	out, err := build.CombinedOutput()
	require.NoError(t, err, "go build:\n%s", out)

	data, err := os.ReadFile(built)
	require.NoError(t, err)
	binary := filepath.Join(t.TempDir(), "artswap")
	require.NoError(t, os.WriteFile(binary, data, 0o755))
	return binary
}

type cli struct {
	t      *testing.T
	binary string
	dir    string
	env    []string
}

func (c cli) run(args ...string) string {
	c.t.Helper()
	cmd := exec.Command(c.binary, args...)
	cmd.Dir = c.dir
	cmd.Env = append(os.Environ(), c.env...)
	out, err := cmd.CombinedOutput()
	require.NoError(c.t, err, "artswap %s:\n%s", strings.Join(args, " "), out)
	return string(out)
}

func TestStandaloneBinaryMatchesOutsideRepo(t *testing.T) {
	binary := buildBinary(t)
	work := t.TempDir()

	c := cli{
		t:      t,
		binary: binary,
		dir:    work,
		env: []string{
			"HOME=" + work,
			"XDG_CONFIG_HOME=" + filepath.Join(work, "config"),
			"XDG_DATA_HOME=" + filepath.Join(work, "data"),
			"ARTSWAP_STORE_DRIVER=sqlite",
			"ARTSWAP_STORE_PATH=" + filepath.Join(work, "cards.db"),
			"ARTSWAP_IMAGES_PLACEHOLDER_PATH=" + filepath.Join(work, "placeholder.png"),
			"ARTSWAP_METRICS_ENABLED=false",
		},
	}

	c.run("version")
	c.run("--help")

	c.run("placeholder")
	_, err := os.Stat(filepath.Join(work, "placeholder.png"))
	require.NoError(t, err)

	cardsFile := filepath.Join(work, "cards.txt")
	require.NoError(t, os.WriteFile(cardsFile, []byte("Blue-Eyes White Dragon\nKuriboh\n"), 0o644))
	assert.Contains(t, c.run("index", "import", cardsFile), "Imported 2 of 2 cards")

	assert.Contains(t, c.run("search", "kuri", "--output-format", "json"), "Kuriboh")

	gameDir := filepath.Join(work, "game")
	replDir := filepath.Join(work, "replacements")
	require.NoError(t, os.MkdirAll(gameDir, 0o755))
	require.NoError(t, os.MkdirAll(replDir, 0o755))
	touchImages(t, gameDir, "Kuriboh.png", "Dark Magician.png")
	touchImages(t, replDir, "Kuriboh.webp")

	report := c.run("match", "Kuriboh", "Dark Magician",
		"--game-dir", gameDir,
		"--replacement-dir", replDir,
		"--output-format", "json")
	assert.Contains(t, report, `"matched"`)
	assert.Contains(t, report, `"unmatched"`)
	assert.Contains(t, report, "Kuriboh.webp")
	assert.Contains(t, report, "placeholder.png")
}
