package logger_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ardanlabs/minichain/foundation/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.log")

	log, err := logger.New("TEST", path)
	require.NoError(t, err)

	ev := logger.EvHandler(log, "trace-1")
	ev("database: Append: blk[%d]: SEALED: hash[%s]", 3, "00ab")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, `"msg":"database: Append: blk[3]: SEALED: hash[00ab]"`)
	assert.Contains(t, out, `"traceid":"trace-1"`)
	assert.Contains(t, out, `"service":"TEST"`)
}
