package polar

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/matchharper/harper-beta-sub001/billing"
	"github.com/matchharper/harper-beta-sub001/models"
	"github.com/matchharper/harper-beta-sub001/repository"
	"github.com/matchharper/harper-beta-sub001/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testUserID = "4f9a3b1c-8d2e-4a5f-9c7b-123456789abc"

var (
	testNow    = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	testSecret = "whsec_" + base64.StdEncoding.EncodeToString([]byte("polar-test-key"))
)

func TestMain(m *testing.M) {
	testutils.InitTestMain()
	m.Run()
}

type fakeGateway struct {
	sub            *billing.Subscription
	subErr         error
	updated        *billing.Subscription
	updateErr      error
	updateCalls    int
	revoked        []string
	revokeErr      error
	checkout       *billing.Checkout
	checkoutErr    error
	checkoutParams *billing.CheckoutParams
	cancelled      *billing.Subscription
	cancelErr      error
}

func (f *fakeGateway) Subscription(ctx context.Context, id string) (*billing.Subscription, error) {
	if f.subErr != nil {
		return nil, f.subErr
	}
	return f.sub, nil
}

func (f *fakeGateway) UpdateProduct(ctx context.Context, id, productID string) (*billing.Subscription, error) {
	f.updateCalls++
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.updated, nil
}

func (f *fakeGateway) CancelAtPeriodEnd(ctx context.Context, id string) (*billing.Subscription, error) {
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	return f.cancelled, nil
}

func (f *fakeGateway) Revoke(ctx context.Context, id string) error {
	if f.revokeErr != nil {
		return f.revokeErr
	}
	f.revoked = append(f.revoked, id)
	return nil
}

func (f *fakeGateway) CreateCheckout(ctx context.Context, params billing.CheckoutParams) (*billing.Checkout, error) {
	f.checkoutParams = &params
	if f.checkoutErr != nil {
		return nil, f.checkoutErr
	}
	return f.checkout, nil
}

func newTestWebhook(t *testing.T, gateway billing.SubscriptionGateway) (*WebhookHandler, *gorm.DB) {
	gormDB := testutils.SetupSQLiteDB(t)
	h := NewWebhookHandler(
		repository.NewPlanRepository(gormDB),
		repository.NewPaymentRepository(gormDB),
		repository.NewCreditRepository(gormDB),
		repository.NewWebhookEventRepository(gormDB),
		gateway,
		testSecret,
		map[string]string{},
	)
	h.now = func() time.Time { return testNow }
	return h, gormDB
}

func seedPlan(t *testing.T, gormDB *gorm.DB, planID, name, productID string, credit int64, cycle models.PlanCycle) {
	plan := models.Plan{
		PlanID:      planID,
		Name:        name,
		DisplayName: name,
		Credit:      &credit,
		Cycle:       cycle,
		LsVariantID: productID,
	}
	require.NoError(t, gormDB.Create(&plan).Error)
}

func signDelivery(secret, msgID, timestamp string, body []byte) string {
	key, _ := base64.StdEncoding.DecodeString(secret[len("whsec_"):])
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msgID + "." + timestamp + "." + string(body)))
	return "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func postWebhook(h *WebhookHandler, msgID string, body []byte) *httptest.ResponseRecorder {
	r := testutils.SetupTestRouter()
	r.POST("/polar/webhook", h.Handle)

	timestamp := strconv.FormatInt(testNow.Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/polar/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("webhook-id", msgID)
	req.Header.Set("webhook-timestamp", timestamp)
	req.Header.Set("webhook-signature", signDelivery(testSecret, msgID, timestamp, body))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestVerifyStandardWebhook(t *testing.T) {
	body := []byte(`{"type":"order.paid"}`)
	timestamp := strconv.FormatInt(testNow.Unix(), 10)
	sig := signDelivery(testSecret, "msg-1", timestamp, body)

	assert.True(t, verifyStandardWebhook(testSecret, "msg-1", timestamp, sig, body, testNow))
	assert.False(t, verifyStandardWebhook(testSecret, "msg-2", timestamp, sig, body, testNow))
	assert.False(t, verifyStandardWebhook(testSecret, "msg-1", timestamp, sig, []byte(`{}`), testNow))
	assert.False(t, verifyStandardWebhook(testSecret, "msg-1", timestamp, "v2,"+sig, body, testNow))
}

func TestVerifyStandardWebhookRejectsStaleTimestamp(t *testing.T) {
	body := []byte(`{}`)
	stale := strconv.FormatInt(testNow.Add(-time.Hour).Unix(), 10)
	sig := signDelivery(testSecret, "msg-1", stale, body)

	assert.False(t, verifyStandardWebhook(testSecret, "msg-1", stale, sig, body, testNow))
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h, _ := newTestWebhook(t, nil)

	r := testutils.SetupTestRouter()
	r.POST("/polar/webhook", h.Handle)
	req := httptest.NewRequest(http.MethodPost, "/polar/webhook", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("webhook-id", "msg-1")
	req.Header.Set("webhook-timestamp", strconv.FormatInt(testNow.Unix(), 10))
	req.Header.Set("webhook-signature", "v1,AAAA")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSubscriptionCreatedUpsertsAndSupersedes(t *testing.T) {
	gateway := &fakeGateway{}
	h, gormDB := newTestWebhook(t, gateway)
	seedPlan(t, gormDB, "max_monthly", "max", "prod-max", 300, models.CycleMonthly)

	// An older subscription still running; activation of the new one must
	// revoke it.
	oldEnd := testNow.AddDate(0, 0, 20)
	require.NoError(t, gormDB.Create(&models.Payment{
		UserID:           testUserID,
		PlanID:           "pro_monthly",
		LsSubscriptionID: "polar-sub-old",
		CurrentPeriodEnd: &oldEnd,
	}).Error)

	body := []byte(`{
		"type": "subscription.created",
		"data": {
			"id": "polar-sub-new",
			"status": "active",
			"product_id": "prod-max",
			"customer_id": "cust-1",
			"current_period_start": "2025-06-15T00:00:00Z",
			"current_period_end": "2025-07-15T00:00:00Z",
			"metadata": {"user_id": "` + testUserID + `"}
		}
	}`)

	w := postWebhook(h, "msg-sub-created", body)
	assert.Equal(t, http.StatusOK, w.Code)

	var payment models.Payment
	require.NoError(t, gormDB.Where("ls_subscription_id = ?", "polar-sub-new").First(&payment).Error)
	assert.Equal(t, testUserID, payment.UserID)
	assert.Equal(t, "max_monthly", payment.PlanID)

	assert.Equal(t, []string{"polar-sub-old"}, gateway.revoked)

	// State events never move credits.
	var creditCount int64
	gormDB.Model(&models.Credit{}).Count(&creditCount)
	assert.Equal(t, int64(0), creditCount)
}

func TestSupersedeSkipsLapsingSubscriptions(t *testing.T) {
	gateway := &fakeGateway{}
	h, gormDB := newTestWebhook(t, gateway)
	seedPlan(t, gormDB, "max_monthly", "max", "prod-max", 300, models.CycleMonthly)

	oldEnd := testNow.AddDate(0, 0, 20)
	require.NoError(t, gormDB.Create(&models.Payment{
		UserID:            testUserID,
		PlanID:            "pro_monthly",
		LsSubscriptionID:  "polar-sub-old",
		CurrentPeriodEnd:  &oldEnd,
		CancelAtPeriodEnd: true,
	}).Error)

	body := []byte(`{
		"type": "subscription.active",
		"data": {
			"id": "polar-sub-new",
			"product_id": "prod-max",
			"metadata": {"user_id": "` + testUserID + `"},
			"current_period_end": "2025-07-15T00:00:00Z"
		}
	}`)

	w := postWebhook(h, "msg-sub-active", body)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, gateway.revoked)
}

func TestSubscriptionCreatedHonorsPlanIDHint(t *testing.T) {
	h, gormDB := newTestWebhook(t, &fakeGateway{})
	seedPlan(t, gormDB, "pro_monthly", "pro", "prod-pro", 100, models.CycleMonthly)
	seedPlan(t, gormDB, "max_monthly", "max", "prod-pro", 300, models.CycleMonthly)

	// Both plans share the product id; the checkout metadata disambiguates.
	body := []byte(`{
		"type": "subscription.created",
		"data": {
			"id": "polar-sub-1",
			"product_id": "prod-pro",
			"current_period_end": "2025-07-15T00:00:00Z",
			"metadata": {"user_id": "` + testUserID + `", "plan_id": "max_monthly"}
		}
	}`)

	w := postWebhook(h, "msg-hint", body)
	assert.Equal(t, http.StatusOK, w.Code)

	var payment models.Payment
	require.NoError(t, gormDB.Where("ls_subscription_id = ?", "polar-sub-1").First(&payment).Error)
	assert.Equal(t, "max_monthly", payment.PlanID)
}

func TestSubscriptionUpdatedFallsBackToLedgerPlan(t *testing.T) {
	h, gormDB := newTestWebhook(t, &fakeGateway{})
	seedPlan(t, gormDB, "pro_monthly", "pro", "prod-pro", 100, models.CycleMonthly)

	end := testNow.AddDate(0, 0, 1)
	require.NoError(t, gormDB.Create(&models.Payment{
		UserID:           testUserID,
		PlanID:           "pro_monthly",
		LsSubscriptionID: "polar-sub-1",
		CurrentPeriodEnd: &end,
	}).Error)

	// Update with a product id the catalog does not know; the row written at
	// creation time keeps the event processable.
	body := []byte(`{
		"type": "subscription.updated",
		"data": {
			"id": "polar-sub-1",
			"product_id": "prod-retired",
			"current_period_end": "2025-07-15T00:00:00Z"
		}
	}`)

	w := postWebhook(h, "msg-updated", body)
	assert.Equal(t, http.StatusOK, w.Code)

	var payment models.Payment
	require.NoError(t, gormDB.Where("ls_subscription_id = ?", "polar-sub-1").First(&payment).Error)
	assert.Equal(t, "pro_monthly", payment.PlanID)
	assert.Equal(t, time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC), payment.CurrentPeriodEnd.UTC())
}

func TestOrderPaidGrantsWithEmbeddedSubscription(t *testing.T) {
	h, gormDB := newTestWebhook(t, &fakeGateway{})
	seedPlan(t, gormDB, "pro_monthly", "pro", "prod-pro", 100, models.CycleMonthly)

	body := []byte(`{
		"type": "order.paid",
		"data": {
			"id": "order-1",
			"customer_id": "cust-1",
			"metadata": {"user_id": "` + testUserID + `"},
			"subscription": {
				"id": "polar-sub-1",
				"product_id": "prod-pro",
				"current_period_start": "2025-06-15T00:00:00Z",
				"current_period_end": "2025-07-15T00:00:00Z"
			}
		}
	}`)

	w := postWebhook(h, "msg-order-1", body)
	assert.Equal(t, http.StatusOK, w.Code)

	var payment models.Payment
	require.NoError(t, gormDB.Where("ls_subscription_id = ?", "polar-sub-1").First(&payment).Error)
	assert.Equal(t, "pro_monthly", payment.PlanID)

	var credit models.Credit
	require.NoError(t, gormDB.Where("user_id = ?", testUserID).First(&credit).Error)
	assert.Equal(t, int64(100), credit.RemainCredit)

	var history models.CreditHistory
	require.NoError(t, gormDB.Where("user_id = ?", testUserID).First(&history).Error)
	assert.Equal(t, "pro_subscription", history.EventType)
}

func TestOrderPaidDuplicateDeliveryGrantsOnce(t *testing.T) {
	h, gormDB := newTestWebhook(t, &fakeGateway{})
	seedPlan(t, gormDB, "pro_monthly", "pro", "prod-pro", 100, models.CycleMonthly)

	body := []byte(`{
		"type": "order.paid",
		"data": {
			"id": "order-1",
			"metadata": {"user_id": "` + testUserID + `"},
			"subscription": {"id": "polar-sub-1", "product_id": "prod-pro"}
		}
	}`)

	first := postWebhook(h, "msg-dup", body)
	second := postWebhook(h, "msg-dup", body)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), `"ignored":true`)

	var credit models.Credit
	require.NoError(t, gormDB.Where("user_id = ?", testUserID).First(&credit).Error)
	assert.Equal(t, int64(100), credit.RemainCredit)
}

func TestOrderPaidRenewalResolvesUserFromLedger(t *testing.T) {
	h, gormDB := newTestWebhook(t, &fakeGateway{})
	seedPlan(t, gormDB, "pro_monthly", "pro", "prod-pro", 100, models.CycleMonthly)

	end := testNow.AddDate(0, 0, 1)
	require.NoError(t, gormDB.Create(&models.Payment{
		UserID:           testUserID,
		PlanID:           "pro_monthly",
		LsSubscriptionID: "polar-sub-1",
		CurrentPeriodEnd: &end,
	}).Error)

	// Renewal order: no metadata, the subscription row knows the user.
	body := []byte(`{
		"type": "order.paid",
		"data": {
			"id": "order-2",
			"subscription": {
				"id": "polar-sub-1",
				"product_id": "prod-pro",
				"current_period_end": "2025-07-15T00:00:00Z"
			}
		}
	}`)

	w := postWebhook(h, "msg-renewal", body)
	assert.Equal(t, http.StatusOK, w.Code)

	var credit models.Credit
	require.NoError(t, gormDB.Where("user_id = ?", testUserID).First(&credit).Error)
	assert.Equal(t, int64(100), credit.RemainCredit)
}

func TestSubscriptionRevokedFreezesPeriodEnd(t *testing.T) {
	h, gormDB := newTestWebhook(t, &fakeGateway{})
	seedPlan(t, gormDB, "pro_monthly", "pro", "prod-pro", 100, models.CycleMonthly)

	end := testNow.AddDate(0, 1, 0)
	require.NoError(t, gormDB.Create(&models.Payment{
		UserID:           testUserID,
		PlanID:           "pro_monthly",
		LsSubscriptionID: "polar-sub-1",
		CurrentPeriodEnd: &end,
	}).Error)

	body := []byte(`{
		"type": "subscription.revoked",
		"data": {
			"id": "polar-sub-1",
			"ended_at": "2025-06-15T10:00:00Z"
		}
	}`)

	w := postWebhook(h, "msg-revoked", body)
	assert.Equal(t, http.StatusOK, w.Code)

	var payment models.Payment
	require.NoError(t, gormDB.Where("ls_subscription_id = ?", "polar-sub-1").First(&payment).Error)
	assert.True(t, payment.CancelAtPeriodEnd)
	assert.Equal(t, time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC), payment.CurrentPeriodEnd.UTC())
}

func TestUnknownEventIsIgnored(t *testing.T) {
	h, _ := newTestWebhook(t, nil)

	body := []byte(`{"type": "benefit.granted", "data": {"id": "x"}}`)

	w := postWebhook(h, "msg-unknown", body)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ignored":true`)
}
