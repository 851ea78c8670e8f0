package oauth

import (
	"errors"
	"os/exec"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrowserCommand(t *testing.T) {
	tests := []struct {
		goos    string
		wantCmd string
	}{
		{"linux", "xdg-open"},
		{"darwin", "open"},
		{"windows", "rundll32"},
	}

	for _, tc := range tests {
		t.Run(tc.goos, func(t *testing.T) {
			cmd, err := browserCommand(tc.goos, "https://login.example/authorize")
			require.NoError(t, err)
			assert.Equal(t, tc.wantCmd, cmd.Args[0])
			assert.Equal(t, "https://login.example/authorize", cmd.Args[len(cmd.Args)-1])
		})
	}

	_, err := browserCommand("plan9", "https://example.com")
	assert.Error(t, err)
}

func TestOpenBrowser_UsesLauncher(t *testing.T) {
	original := browserLauncher
	defer func() { browserLauncher = original }()

	var launched *exec.Cmd
	browserLauncher = func(cmd *exec.Cmd) error {
		launched = cmd
		return nil
	}

	err := OpenBrowser("https://login.example/authorize")
	if _, cmdErr := browserCommand(runtime.GOOS, ""); cmdErr != nil {
		assert.Error(t, err)
		return
	}
	require.NoError(t, err)
	require.NotNil(t, launched)

	browserLauncher = func(*exec.Cmd) error { return errors.New("no display") }
	assert.ErrorContains(t, OpenBrowser("https://login.example/authorize"), "failed to open browser")
}
