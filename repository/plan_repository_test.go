package repository

import (
	"errors"
	"testing"

	"github.com/matchharper/harper-beta-sub001/models"
	"github.com/matchharper/harper-beta-sub001/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanLookupsReturnNilOnNoRow(t *testing.T) {
	gormDB := testutils.SetupSQLiteDB(t)
	repo := NewPlanRepository(gormDB)

	plan, err := repo.ByVariantID("missing")
	require.NoError(t, err)
	assert.Nil(t, plan)

	plan, err = repo.ByPlanID("missing")
	require.NoError(t, err)
	assert.Nil(t, plan)
}

func TestFreePlanResolvedBySentinelVariant(t *testing.T) {
	gormDB := testutils.SetupSQLiteDB(t)
	repo := NewPlanRepository(gormDB)

	require.NoError(t, gormDB.Create(&models.Plan{
		PlanID:      "free",
		Name:        "free",
		DisplayName: "Free",
		LsVariantID: models.FreePlanVariantID,
	}).Error)

	plan, err := repo.FreePlan()
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, "free", plan.PlanID)
}

func TestPlanLookupPropagatesDatabaseError(t *testing.T) {
	gormDB, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()
	repo := NewPlanRepository(gormDB)

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection lost"))

	plan, err := repo.ByVariantID("111111")
	assert.Error(t, err)
	assert.Nil(t, plan)
}
