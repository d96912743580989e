package lsp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUriToPath(t *testing.T) {
	path, err := uriToPath("file:///tmp/program.vc")
	require.NoError(t, err)
	require.Equal(t, "/tmp/program.vc", path)
}
