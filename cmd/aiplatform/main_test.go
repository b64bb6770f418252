package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aiplatform/pkg/testutil/backend"
)

func TestRun_EndToEnd(t *testing.T) {
	b := backend.New()
	defer b.Close()
	b.AddUser("ada", "pw", 60)

	sessionPath := filepath.Join(t.TempDir(), "session.json")
	t.Setenv("AIP_API_BASE_URL", b.URL())
	t.Setenv("AIP_SESSION_BACKEND", "file")
	t.Setenv("AIP_SESSION_PATH", sessionPath)
	t.Setenv("AIP_API_RETRY_DELAY", "1ms")
	t.Setenv("AIP_LOG_LEVEL", "error")

	assert.Equal(t, 2, run(nil))
	assert.Equal(t, 2, run([]string{"teleport"}))
	assert.Equal(t, 1, run([]string{"me"}), "signed out")

	require.Equal(t, 0, run([]string{"login", "-username", "ada", "-password", "pw"}))
	_, err := os.Stat(sessionPath)
	require.NoError(t, err, "session persisted between invocations")

	assert.Equal(t, 0, run([]string{"me"}))
	assert.Equal(t, 0, run([]string{"run", "chat", "hello", "there"}))
	assert.Equal(t, 59, b.Points("ada"))
	assert.Equal(t, 0, run([]string{"points", "-costs"}))
	assert.Equal(t, 0, run([]string{"history", "-type", "consume"}))
	assert.Equal(t, 0, run([]string{"dashboard"}))
	assert.Equal(t, 0, run([]string{"status"}))
	assert.Equal(t, 1, run([]string{"run", "teleport", "x"}))
	assert.Equal(t, 2, run([]string{"run"}))

	require.Equal(t, 0, run([]string{"logout"}))
	_, err = os.Stat(sessionPath)
	assert.True(t, os.IsNotExist(err))
}
