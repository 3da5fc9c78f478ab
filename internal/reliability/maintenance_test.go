package reliability

import (
	"errors"
	"testing"

	"github.com/islandsafe/patrolplan/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestMaintenanceJob_Run(t *testing.T) {
	db := testutil.NewTestDB(t)
	job := NewMaintenanceJob(db, t.TempDir(), zerolog.Nop())
	assert.Equal(t, "maintenance", job.Name())

	job.usage = func(string) (uint64, error) { return 50 * 1000 * 1000 * 1000, nil }
	assert.NoError(t, job.Run())

	job.usage = func(string) (uint64, error) { return 100 * 1000 * 1000, nil }
	assert.Error(t, job.Run())

	job.usage = func(string) (uint64, error) { return 0, errors.New("no such device") }
	assert.Error(t, job.Run())
}
