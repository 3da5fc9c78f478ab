package settings

import (
	"testing"

	"github.com/islandsafe/patrolplan/internal/domain"
	"github.com/islandsafe/patrolplan/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *Repository) {
	db := testutil.NewTestDB(t)
	log := zerolog.New(nil).Level(zerolog.Disabled)
	repo := NewRepository(db.Conn(), log)
	return NewService(repo, log), repo
}

func TestRepository_GetSet(t *testing.T) {
	_, repo := newTestService(t)

	v, err := repo.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, repo.Set("archive_bucket", "models", nil))
	require.NoError(t, repo.Set("archive_bucket", "models-2", nil))

	v, err = repo.Get("archive_bucket")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "models-2", *v)

	require.NoError(t, repo.Delete("archive_bucket"))
	v, err = repo.Get("archive_bucket")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestRepository_GetIntParsesFloatStrings(t *testing.T) {
	_, repo := newTestService(t)
	require.NoError(t, repo.Set(KeyTotalOfficers, "1200.0", nil))

	n, err := repo.GetInt(KeyTotalOfficers, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1200, n)

	require.NoError(t, repo.Set(KeyTotalOfficers, "lots", nil))
	n, err = repo.GetInt(KeyTotalOfficers, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1000, n)
}

func TestService_TotalOfficersFallsBackAndOverrides(t *testing.T) {
	svc, _ := newTestService(t)

	assert.Equal(t, 1000, svc.TotalOfficers(1000))

	require.NoError(t, svc.Set(KeyTotalOfficers, float64(1100)))
	assert.Equal(t, 1100, svc.TotalOfficers(1000))
}

func TestService_SeedDefaultsKeepsExistingValue(t *testing.T) {
	svc, _ := newTestService(t)

	require.NoError(t, svc.SeedDefaults(1000))
	assert.Equal(t, 1000, svc.TotalOfficers(1))

	require.NoError(t, svc.Set(KeyTotalOfficers, "900"))
	require.NoError(t, svc.SeedDefaults(1000))
	assert.Equal(t, 900, svc.TotalOfficers(1))
}

func TestService_SetValidation(t *testing.T) {
	svc, _ := newTestService(t)

	assert.Error(t, svc.Set(KeyTotalOfficers, float64(-5)))
	assert.Error(t, svc.Set(KeyTotalOfficers, 10.5))
	assert.Error(t, svc.Set(KeyArchiveEnabled, "maybe"))
	assert.Error(t, svc.Set("no_such_key", "x"))
	assert.NoError(t, svc.Set(KeyArchiveEnabled, true))
}

func TestService_SetRejectsPoolBelowMinimum(t *testing.T) {
	svc, _ := newTestService(t)
	svc.SetMinimumPool(14 * 30)

	err := svc.Set(KeyTotalOfficers, float64(419))
	require.Error(t, err)
	assert.True(t, domain.IsClientError(err))
	assert.ErrorIs(t, err, domain.ErrInsufficientPool)
	assert.Equal(t, 7, svc.TotalOfficers(7), "rejected value is not stored")

	require.NoError(t, svc.Set(KeyTotalOfficers, float64(420)))
	assert.Equal(t, 420, svc.TotalOfficers(7))
}

func TestService_GetAllMasksSecrets(t *testing.T) {
	svc, _ := newTestService(t)
	require.NoError(t, svc.Set(KeyArchiveSecretAccessKey, "s3cr3t"))
	require.NoError(t, svc.Set(KeyTotalOfficers, "1000"))

	all, err := svc.GetAll()
	require.NoError(t, err)
	assert.Equal(t, "********", all[KeyArchiveSecretAccessKey])
	assert.Equal(t, 1000, all[KeyTotalOfficers])
	assert.Equal(t, "", all[KeyArchiveBucket])
}
