package repository

import (
	"testing"
	"time"

	"github.com/matchharper/harper-beta-sub001/models"
	"github.com/matchharper/harper-beta-sub001/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func createPayment(t *testing.T, gormDB *gorm.DB, subID string, end time.Time, cancelAtPeriodEnd bool) {
	require.NoError(t, gormDB.Create(&models.Payment{
		UserID:            testUserID,
		PlanID:            "pro_monthly",
		LsSubscriptionID:  subID,
		CurrentPeriodEnd:  &end,
		CancelAtPeriodEnd: cancelAtPeriodEnd,
	}).Error)
}

func TestActiveSubscriptionPicksLatestPeriodEnd(t *testing.T) {
	gormDB := testutils.SetupSQLiteDB(t)
	repo := NewPaymentRepository(gormDB)

	createPayment(t, gormDB, "sub-old", now.AddDate(0, 0, 5), false)
	createPayment(t, gormDB, "sub-new", now.AddDate(0, 1, 0), false)
	createPayment(t, gormDB, "sub-lapsed", now.AddDate(0, -1, 0), false)

	payment, err := repo.ActiveSubscription(testUserID, now)
	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.Equal(t, "sub-new", payment.LsSubscriptionID)
}

func TestActiveSubscriptionNilWhenAllLapsed(t *testing.T) {
	gormDB := testutils.SetupSQLiteDB(t)
	repo := NewPaymentRepository(gormDB)

	createPayment(t, gormDB, "sub-lapsed", now.AddDate(0, -1, 0), false)

	payment, err := repo.ActiveSubscription(testUserID, now)
	require.NoError(t, err)
	assert.Nil(t, payment)
}

func TestActiveExternalSubscriptionSkipsLocalRows(t *testing.T) {
	gormDB := testutils.SetupSQLiteDB(t)
	repo := NewPaymentRepository(gormDB)

	// A row without a provider subscription id cannot be canceled remotely.
	createPayment(t, gormDB, "", now.AddDate(0, 1, 0), false)

	payment, err := repo.ActiveExternalSubscription(testUserID, now)
	require.NoError(t, err)
	assert.Nil(t, payment)
}

func TestLatestPeriodEndIncludesLapsedRows(t *testing.T) {
	gormDB := testutils.SetupSQLiteDB(t)
	repo := NewPaymentRepository(gormDB)

	createPayment(t, gormDB, "sub-a", now.AddDate(0, -2, 0), false)
	createPayment(t, gormDB, "sub-b", now.AddDate(0, -1, 0), true)

	end, err := repo.LatestPeriodEnd(testUserID)
	require.NoError(t, err)
	require.NotNil(t, end)
	assert.Equal(t, now.AddDate(0, -1, 0), end.UTC())
}

func TestOtherActiveSubscriptionsExcludesGivenID(t *testing.T) {
	gormDB := testutils.SetupSQLiteDB(t)
	repo := NewPaymentRepository(gormDB)

	createPayment(t, gormDB, "sub-keep", now.AddDate(0, 1, 0), false)
	createPayment(t, gormDB, "sub-other", now.AddDate(0, 0, 10), false)
	createPayment(t, gormDB, "sub-lapsed", now.AddDate(0, -1, 0), false)

	others, err := repo.OtherActiveSubscriptions(testUserID, "sub-keep", now)
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, "sub-other", others[0].LsSubscriptionID)
}

func TestUpsertUpdatesExistingRow(t *testing.T) {
	gormDB := testutils.SetupSQLiteDB(t)
	repo := NewPaymentRepository(gormDB)

	start := now.AddDate(0, -1, 0)
	end := now.AddDate(0, 0, 1)
	createPayment(t, gormDB, "sub-1", end, false)

	newEnd := now.AddDate(0, 1, 0)
	require.NoError(t, repo.Upsert(PaymentUpsert{
		SubscriptionID:     "sub-1",
		UserID:             testUserID,
		PlanID:             "max_monthly",
		CustomerID:         "cust-1",
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &newEnd,
		CancelAtPeriodEnd:  false,
	}))

	var count int64
	gormDB.Model(&models.Payment{}).Count(&count)
	assert.Equal(t, int64(1), count)

	payment, err := repo.BySubscriptionID("sub-1")
	require.NoError(t, err)
	assert.Equal(t, "max_monthly", payment.PlanID)
	assert.Equal(t, newEnd, payment.CurrentPeriodEnd.UTC())
}

func TestUpsertCreatesMissingRow(t *testing.T) {
	gormDB := testutils.SetupSQLiteDB(t)
	repo := NewPaymentRepository(gormDB)

	end := now.AddDate(0, 1, 0)
	require.NoError(t, repo.Upsert(PaymentUpsert{
		SubscriptionID:   "sub-new",
		UserID:           testUserID,
		PlanID:           "pro_monthly",
		CurrentPeriodEnd: &end,
	}))

	payment, err := repo.BySubscriptionID("sub-new")
	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.NotEmpty(t, payment.ID)
}
