package controller_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lambda-feedback/respawn/internal/controller"
)

func TestPolicy_SourceExtensionQualifiesForAnyPaths(t *testing.T) {
	pathSets := [][]string{
		{"/app/src"},
		{"/app/horizon.php"},
		{"/other", "/app/config.json"},
	}

	files := []string{
		"/app/src/handler.php",
		"/app/src/Handler.PHP",
		"/somewhere/else/index.php",
		"relative/file.php",
	}

	for _, paths := range pathSets {
		policy := controller.NewPolicy(paths, []string{".php"})

		for _, file := range files {
			assert.True(t, policy.ShouldRestart(file), "paths=%v file=%s", paths, file)
		}
	}
}

func TestPolicy_WatchedPathQualifies(t *testing.T) {
	paths := []string{"/app/.env", "/app/config/queue.yaml", "/app/src"}
	policy := controller.NewPolicy(paths, []string{".php"})

	for _, path := range paths {
		assert.True(t, policy.ShouldRestart(path), path)
	}
}

func TestPolicy_OtherChangesDoNotQualify(t *testing.T) {
	policy := controller.NewPolicy([]string{"/app/src", "/app/.env"}, []string{".php"})

	for _, path := range []string{
		"/app/src/data.log",
		"/app/src/cache/view.html",
		"/app/src/php",
		"/app/.env.backup",
		"/app/src/handler.php~",
		"/app",
		"",
	} {
		assert.False(t, policy.ShouldRestart(path), path)
	}
}

func TestPolicy_NormalizesExtensions(t *testing.T) {
	policy := controller.NewPolicy([]string{"/app"}, []string{"PHP", " .Twig ", ""})

	assert.True(t, policy.ShouldRestart("/app/index.php"))
	assert.True(t, policy.ShouldRestart("/app/views/layout.twig"))
	assert.False(t, policy.ShouldRestart("/app/README"))
}

func TestPolicy_MatchesRelativeWatchPaths(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	policy := controller.NewPolicy([]string{"./config/app.yaml"}, nil)

	assert.True(t, policy.ShouldRestart(filepath.Join(cwd, "config", "app.yaml")))
	assert.True(t, policy.ShouldRestart("./config/app.yaml"))
	assert.False(t, policy.ShouldRestart(filepath.Join(cwd, "config", "other.yaml")))
}

func TestPolicy_WithoutExtensions(t *testing.T) {
	policy := controller.NewPolicy([]string{"/app/src"}, nil)

	assert.False(t, policy.ShouldRestart("/app/src/handler.php"))
	assert.True(t, policy.ShouldRestart("/app/src"))
}
