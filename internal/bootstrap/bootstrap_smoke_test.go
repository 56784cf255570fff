package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	platformconfig "media-caption-server/internal/platform/config"
	platformerrors "media-caption-server/internal/platform/errors"
)

func writeTestConfig(t *testing.T, port int) *platformconfig.Loader {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`server:
  ip: 127.0.0.1
  port: %d
log:
  log_level: INFO
  log_dir: %s
  log_file: server.log
database:
  dsn: "file:bootstrap-%d?mode=memory&cache=shared"
files:
  root: %s
  public_base_url: http://127.0.0.1:%d/files
caption:
  token: test-token
event_log:
  driver: sqlite
`, port, filepath.Join(dir, "logs"), time.Now().UnixNano(), filepath.Join(dir, "files"), port)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return platformconfig.NewLoader().
		WithDotEnv(false).
		WithPath(path).
		WithEnv(func(string) (string, bool) { return "", false })
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestInitGraphOrder(t *testing.T) {
	steps := InitGraph()
	want := []string{
		"config:load",
		"logging:init-provider",
		"observability:setup-hooks",
		"storage:init-database",
		"files:init-store",
		"eventlog:init-store",
		"eventbus:init",
		"media:init-service",
		"caption:init-handler",
		"auth:init-tokens",
	}
	require.Len(t, steps, len(want))
	for i, step := range steps {
		assert.Equal(t, want[i], step.ID, "step %d", i)
		assert.NotNil(t, step.Execute, step.ID)
	}
}

func TestInitGraphDependenciesPrecedeSteps(t *testing.T) {
	seen := map[string]bool{}
	for _, step := range InitGraph() {
		for _, dep := range step.DependsOn {
			assert.True(t, seen[dep], "%s depends on %s which runs later", step.ID, dep)
		}
		seen[step.ID] = true
	}
}

func TestExecuteInitStepsFailures(t *testing.T) {
	t.Run("unsatisfied dependency", func(t *testing.T) {
		steps := []initStep{{
			ID:        "b",
			DependsOn: []string{"a"},
			Execute:   func(context.Context, *appState) error { return nil },
		}}
		err := executeInitSteps(context.Background(), steps, &appState{})
		require.Error(t, err)
		assert.True(t, platformerrors.IsKind(err, platformerrors.KindBootstrap))
		assert.Contains(t, err.Error(), "dependency a not satisfied")
	})

	t.Run("missing execute", func(t *testing.T) {
		err := executeInitSteps(context.Background(), []initStep{{ID: "a"}}, &appState{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing execute function")
	})

	t.Run("plain error takes step kind", func(t *testing.T) {
		steps := []initStep{{
			ID:      "a",
			Kind:    platformerrors.KindStorage,
			Execute: func(context.Context, *appState) error { return errors.New("disk full") },
		}}
		err := executeInitSteps(context.Background(), steps, &appState{})
		require.Error(t, err)
		assert.True(t, platformerrors.IsKind(err, platformerrors.KindStorage))
	})

	t.Run("typed error kept", func(t *testing.T) {
		steps := []initStep{{
			ID:      "a",
			Kind:    platformerrors.KindStorage,
			Execute: func(context.Context, *appState) error { return platformerrors.New(platformerrors.KindConfig, "x", "bad") },
		}}
		err := executeInitSteps(context.Background(), steps, &appState{})
		assert.True(t, platformerrors.IsKind(err, platformerrors.KindConfig))
	})

	t.Run("nil state", func(t *testing.T) {
		assert.Error(t, executeInitSteps(context.Background(), nil, nil))
	})
}

func TestExecuteInitGraph(t *testing.T) {
	state := &appState{opts: Options{Loader: writeTestConfig(t, freePort(t)), Console: io.Discard}}
	t.Cleanup(state.close)

	require.NoError(t, executeInitSteps(context.Background(), InitGraph(), state))

	assert.NotNil(t, state.config)
	assert.NotNil(t, state.logger)
	assert.NotNil(t, state.observabilityShutdown)
	assert.NotNil(t, state.db)
	assert.NotNil(t, state.files)
	assert.NotNil(t, state.events)
	assert.NotNil(t, state.bus)
	assert.NotNil(t, state.mediaService)
	assert.NotNil(t, state.captionHandler)
	assert.Nil(t, state.tokens)
	assert.True(t, state.bus.HasSubscribers("entity:insert"))
	assert.True(t, state.bus.HasSubscribers("entity:update"))

	schema, ok := state.schemas.Lookup("image")
	require.True(t, ok)
	assert.True(t, schema.Image)
	assert.Equal(t, "field_media_image", schema.SourceField)
}

func TestBuildSchemas(t *testing.T) {
	schemas := buildSchemas(platformconfig.MediaConfig{
		Bundles: map[string]platformconfig.BundleConfig{
			"image":    {SourceField: "field_media_image", Fields: []string{"field_ai_caption"}, Image: true},
			"document": {SourceField: "field_media_document"},
		},
	})
	require.Len(t, schemas, 2)
	assert.Equal(t, "image", schemas["image"].Name)
	assert.Equal(t, []string{"field_ai_caption"}, schemas["image"].Fields)
	assert.False(t, schemas["document"].Image)
}

func TestRunServesUntilCancelled(t *testing.T) {
	port := freePort(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{Loader: writeTestConfig(t, port), Console: io.Discard})
	}()

	url := fmt.Sprintf("http://127.0.0.1:%d/healthz", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(20 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	loader := platformconfig.NewLoader().
		WithDotEnv(false).
		WithPath(filepath.Join(t.TempDir(), "missing.yaml")).
		WithEnv(func(string) (string, bool) { return "", false })

	err := Run(context.Background(), Options{Loader: loader, Console: io.Discard})
	require.Error(t, err)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindConfig))
}
