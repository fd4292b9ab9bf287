package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "poe-router "+Version+"\n", out.String())
}

func TestServeRejectsBadPort(t *testing.T) {
	for _, key := range []string{"POE_ROUTER_CONFIG", "PORT", "LISTEN_PORT", "BASE_URL", "GOST_PROXY", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())

	root := NewRootCmd()
	root.SetArgs([]string{"serve", "--port=-1"})
	assert.ErrorContains(t, root.Execute(), "must be a valid TCP port")
}

func TestUnknownCommand(t *testing.T) {
	root := NewRootCmd()
	root.SetArgs([]string{"bogus"})
	assert.Error(t, root.Execute())
}
