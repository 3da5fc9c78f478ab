package regions

import (
	"context"
	"testing"
	"time"

	"github.com/islandsafe/patrolplan/internal/config"
	"github.com/islandsafe/patrolplan/internal/domain"
	"github.com/islandsafe/patrolplan/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	db := testutil.NewTestDB(t)
	return NewRepository(db.Conn(), zerolog.New(nil).Level(zerolog.Disabled))
}

func TestRepository_SeedIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	cat := config.DefaultRegionCatalog()

	n, err := repo.Seed(ctx, cat.Regions)
	require.NoError(t, err)
	assert.Equal(t, 14, n)

	n, err = repo.Seed(ctx, cat.Regions)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 14)
	assert.Equal(t, "Kingston", list[0].Name)
	assert.InDelta(t, 18.0179, list[0].Coordinates.Lat, 1e-9)
	assert.Nil(t, list[0].CurrentRisk)
}

func TestRepository_GetNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Get(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, repo.SetRisk(context.Background(), 42, 10), domain.ErrNotFound)
}

func TestRepository_SetRiskAndAllocation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.Seed(ctx, config.DefaultRegionCatalog().Regions[:2])
	require.NoError(t, err)

	require.NoError(t, repo.SetRisk(ctx, 1, 64))
	rec := 120
	require.NoError(t, repo.SetAllocation(ctx, 1, 110, &rec))
	require.NoError(t, repo.SetAllocation(ctx, 2, 40, nil))

	r1, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, r1.CurrentRisk)
	assert.Equal(t, 64, *r1.CurrentRisk)
	assert.Equal(t, 110, r1.Allocated)
	assert.Equal(t, 120, r1.Recommended)

	r2, err := repo.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 40, r2.Allocated)
	assert.Equal(t, 0, r2.Recommended)
}

func TestRepository_ListWithStats(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewRepository(db.Conn(), zerolog.Nop())
	testutil.SeedRegions(t, db.Conn(),
		testutil.RegionFixture{ID: 1, Name: "A"},
		testutil.RegionFixture{ID: 2, Name: "B"},
	)
	now := time.Now()
	testutil.SeedEvents(t, db.Conn(),
		testutil.EventFixture{RegionID: 1, Severity: 4, CreatedAt: now},
		testutil.EventFixture{RegionID: 1, Severity: 8, CreatedAt: now.AddDate(0, 0, -10)},
	)

	stats, err := repo.ListWithStats(context.Background(), now.AddDate(0, 0, -7))
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, 2, stats[0].EventCount)
	assert.InDelta(t, 6.0, stats[0].AverageSeverity, 1e-9)
	assert.Equal(t, 1, stats[0].RecentCount)
	assert.Equal(t, 0, stats[1].EventCount)
	assert.Equal(t, 0.0, stats[1].AverageSeverity)
}

func TestService_Patch(t *testing.T) {
	db := testutil.NewTestDB(t)
	log := zerolog.Nop()
	svc := NewService(NewRepository(db.Conn(), log), log)
	testutil.SeedRegions(t, db.Conn(), testutil.RegionFixture{ID: 1, Name: "A", Allocated: 30})
	ctx := context.Background()

	risk := 70
	reg, err := svc.Patch(ctx, 1, domain.RegionPatch{CurrentRisk: &risk})
	require.NoError(t, err)
	require.NotNil(t, reg.CurrentRisk)
	assert.Equal(t, 70, *reg.CurrentRisk)
	assert.Equal(t, 30, reg.Allocated)

	bad := 101
	_, err = svc.Patch(ctx, 1, domain.RegionPatch{CurrentRisk: &bad})
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = svc.Patch(ctx, 9, domain.RegionPatch{CurrentRisk: &risk})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
