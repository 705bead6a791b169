package plans

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matchharper/harper-beta-sub001/models"
	"github.com/matchharper/harper-beta-sub001/repository"
	"github.com/matchharper/harper-beta-sub001/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testUserID = "4f9a3b1c-8d2e-4a5f-9c7b-123456789abc"

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	testutils.InitTestMain()
	m.Run()
}

func newTestHandler(t *testing.T) (*Handler, *gorm.DB) {
	gormDB := testutils.SetupSQLiteDB(t)
	h := NewHandler(
		repository.NewPlanRepository(gormDB),
		repository.NewPaymentRepository(gormDB),
		repository.NewCreditRepository(gormDB),
	)
	h.now = func() time.Time { return testNow }
	return h, gormDB
}

func TestListReturnsCatalog(t *testing.T) {
	h, gormDB := newTestHandler(t)
	credit := int64(100)
	require.NoError(t, gormDB.Create(&models.Plan{
		PlanID: "pro_monthly", Name: "pro", DisplayName: "Pro", Credit: &credit, LsVariantID: "111111",
	}).Error)

	r := testutils.SetupTestRouter()
	r.GET("/plans", h.List)
	req := httptest.NewRequest(http.MethodGet, "/plans", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)
	assert.Contains(t, w.Body.String(), "pro_monthly")
}

func postSummary(h *Handler, body string) *httptest.ResponseRecorder {
	r := testutils.SetupTestRouter()
	r.POST("/billing/summary", h.Summary)
	req := httptest.NewRequest(http.MethodPost, "/billing/summary", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSummaryDefaultsToFreeTier(t *testing.T) {
	h, _ := newTestHandler(t)

	w := postSummary(h, `{"userId": "`+testUserID+`"}`)

	assert.Equal(t, http.StatusOK, w.Code)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "free", out["planKey"])
	assert.Equal(t, "monthly", out["billing"])
	assert.Nil(t, out["subscription"])
}

func TestSummaryWithActiveYearlySubscription(t *testing.T) {
	h, gormDB := newTestHandler(t)
	credit := int64(1200)
	require.NoError(t, gormDB.Create(&models.Plan{
		PlanID: "max_yearly", Name: "max", DisplayName: "Max Annual", Credit: &credit,
		Cycle: models.CycleYearly, LsVariantID: "444444",
	}).Error)

	end := testNow.AddDate(0, 8, 0)
	require.NoError(t, gormDB.Create(&models.Payment{
		UserID:           testUserID,
		PlanID:           "max_yearly",
		LsSubscriptionID: "sub-1",
		CurrentPeriodEnd: &end,
	}).Error)
	require.NoError(t, gormDB.Create(&models.Credit{
		UserID:        testUserID,
		ChargedCredit: 100,
		RemainCredit:  62,
		LastUpdatedAt: testNow.AddDate(0, 0, -3),
	}).Error)

	w := postSummary(h, `{"userId": "`+testUserID+`"}`)

	assert.Equal(t, http.StatusOK, w.Code)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "max", out["planKey"])
	assert.Equal(t, "yearly", out["billing"])

	credits := out["credits"].(map[string]interface{})
	assert.Equal(t, float64(62), credits["remain"])

	subscription := out["subscription"].(map[string]interface{})
	assert.Equal(t, "max_yearly", subscription["planId"])
}

func TestInferPlanKey(t *testing.T) {
	cases := []struct {
		name     string
		display  string
		expected string
	}{
		{"free", "Free", "free"},
		{"pro", "Pro Monthly", "pro"},
		{"max", "MatchHarper Max", "max"},
		{"enterprise", "Enterprise", "enterprise"},
		{"legacy-01", "Unknown Tier", "free"},
	}

	for _, tc := range cases {
		plan := &models.Plan{Name: tc.name, DisplayName: tc.display}
		assert.Equal(t, tc.expected, inferPlanKey(plan), "plan %s", tc.name)
	}
}
