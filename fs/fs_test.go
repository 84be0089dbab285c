package appfs

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS_templates(t *testing.T) {
	for _, name := range []string{
		"templates/email/_base.txt",
		"templates/email/_base.gohtml",
		"templates/email/reconcile_report.txt",
		"templates/email/reconcile_report.gohtml",
	} {
		_, err := fs.Stat(FS, name)
		assert.NoError(t, err, name)
	}
}

func TestFS_balanceFunction(t *testing.T) {
	data, err := fs.ReadFile(FS, "migrations/00002_points_balance_function.sql")
	require.NoError(t, err)

	// the delegated balance is scanned into an int64, like the aggregate sums
	assert.Contains(t, string(data), "RETURNS BIGINT")
	assert.Contains(t, string(data), "::BIGINT")
	assert.NotContains(t, string(data), "INTEGER")
}
