package automation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthtrack/internal/constants"
	"stealthtrack/internal/logger"
	apperrors "stealthtrack/pkg/errors"
)

func newTestService(t *testing.T) (*fakeRuleRepo, *fakeRunRepo, *Service) {
	t.Helper()
	rules := newFakeRuleRepo()
	runs := newFakeRunRepo()
	dispatcher := testDispatcher(2*time.Second, 4096)
	recorder := NewRecorder(rules, runs, logger.NopLogger())
	svc := NewService(rules, runs, dispatcher, recorder, logger.NopLogger())
	return rules, runs, svc
}

func TestCreateRuleValidation(t *testing.T) {
	_, _, svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  CreateRuleRequest
	}{
		{
			name: "missing name",
			req:  CreateRuleRequest{WebhookURL: "https://example.com/hook"},
		},
		{
			name: "missing webhook url",
			req:  CreateRuleRequest{Name: "r"},
		},
		{
			name: "relative webhook url",
			req:  CreateRuleRequest{Name: "r", WebhookURL: "/hook"},
		},
		{
			name: "unknown filter field",
			req: CreateRuleRequest{
				Name: "r", WebhookURL: "https://example.com/hook",
				Filters: []Filter{{Field: "shoe_size", Operator: OperatorExists}},
			},
		},
		{
			name: "unknown operator",
			req: CreateRuleRequest{
				Name: "r", WebhookURL: "https://example.com/hook",
				Filters: []Filter{{Field: "email", Operator: Operator("matches")}},
			},
		},
		{
			name: "equals without value",
			req: CreateRuleRequest{
				Name: "r", WebhookURL: "https://example.com/hook",
				Filters: []Filter{{Field: "email", Operator: OperatorEquals}},
			},
		},
		{
			name: "unknown mapping source",
			req: CreateRuleRequest{
				Name: "r", WebhookURL: "https://example.com/hook",
				FieldMap: []FieldMapping{{Source: "shoe_size", Target: "size"}},
			},
		},
		{
			name: "mapping without target",
			req: CreateRuleRequest{
				Name: "r", WebhookURL: "https://example.com/hook",
				FieldMap: []FieldMapping{{Source: "email"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateRule(ctx, &tt.req)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
		})
	}
}

func TestCreateRuleDefaultsEnabled(t *testing.T) {
	_, _, svc := newTestService(t)

	rule, err := svc.CreateRule(context.Background(), &CreateRuleRequest{
		Name:       "new leads",
		WebhookURL: "https://example.com/hook",
	})
	require.NoError(t, err)
	assert.True(t, rule.Enabled)
	assert.NotEmpty(t, rule.ID)
	assert.NotNil(t, rule.Filters)
	assert.NotNil(t, rule.FieldMap)
	assert.Equal(t, int64(0), rule.TriggerCount)
}

func TestUpdateRulePartialToggle(t *testing.T) {
	_, _, svc := newTestService(t)
	ctx := context.Background()

	rule, err := svc.CreateRule(ctx, &CreateRuleRequest{
		Name:       "new leads",
		WebhookURL: "https://example.com/hook",
		Filters:    []Filter{{Field: "email", Operator: OperatorExists}},
	})
	require.NoError(t, err)

	// A bare enabled toggle must not disturb the rest of the rule.
	disabled := false
	updated, err := svc.UpdateRule(ctx, rule.ID, &UpdateRuleRequest{Enabled: &disabled})
	require.NoError(t, err)
	assert.False(t, updated.Enabled)
	assert.Equal(t, "new leads", updated.Name)
	assert.Equal(t, "https://example.com/hook", updated.WebhookURL)
	assert.Equal(t, rule.Filters, updated.Filters)
}

func TestUpdateRuleNotFound(t *testing.T) {
	_, _, svc := newTestService(t)

	name := "x"
	_, err := svc.UpdateRule(context.Background(), "missing", &UpdateRuleRequest{Name: &name})
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDeleteRuleCascadesRuns(t *testing.T) {
	rules, runs, svc := newTestService(t)
	ctx := context.Background()

	rule := &Rule{Name: "r", Enabled: true, WebhookURL: "https://example.com/hook"}
	require.NoError(t, rules.CreateRule(ctx, rule))
	require.NoError(t, runs.InsertRun(ctx, &Run{ID: "run-1", RuleID: rule.ID, RunType: constants.RunTypeLive, TriggeredAt: time.Now()}))

	require.NoError(t, svc.DeleteRule(ctx, rule.ID))

	assert.Empty(t, runs.all())
	_, err := svc.GetRule(ctx, rule.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestTestFireUnknownRuleRejected(t *testing.T) {
	called := int32(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&called, 1)
	}))
	defer server.Close()

	_, runs, svc := newTestService(t)

	_, err := svc.TestFire(context.Background(), "never-saved")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Empty(t, runs.all(), "no run for a rejected test fire")
	assert.Equal(t, int32(0), atomic.LoadInt32(&called))
}

func TestTestFireRecordsTestRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("received"))
	}))
	defer server.Close()

	rules, runs, svc := newTestService(t)
	ctx := context.Background()

	rule := &Rule{
		Name:       "r",
		Enabled:    false, // test fires ignore the enabled flag
		WebhookURL: server.URL,
		Filters:    []Filter{{Field: "utm_source", Operator: OperatorEquals, Value: "never_matches"}},
		FieldMap:   []FieldMapping{{Source: "email", Target: "contact_email"}},
	}
	require.NoError(t, rules.CreateRule(ctx, rule))

	resp, err := svc.TestFire(ctx, rule.ID)
	require.NoError(t, err)

	// Filters are skipped: the fire is unconditional.
	assert.Equal(t, "ok", resp.Status)
	require.NotNil(t, resp.HTTPStatus)
	assert.Equal(t, http.StatusOK, *resp.HTTPStatus)
	assert.Equal(t, "test@example.com", resp.Payload["contact_email"])
	require.NotNil(t, resp.ResponseBody)
	assert.Equal(t, "received", *resp.ResponseBody)

	recorded := runs.all()
	require.Len(t, recorded, 1)
	run := recorded[0]
	assert.Equal(t, constants.RunTypeTest, run.RunType)
	assert.Nil(t, run.ContactID, "synthetic test fires carry no contact")
	assert.Equal(t, resp.Payload, run.Payload)

	updated, err := rules.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated.TriggerCount, "test runs never touch live statistics")
	assert.Nil(t, updated.LastTriggeredAt)
}

func TestTestFireFailureReported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	rules, runs, svc := newTestService(t)
	ctx := context.Background()

	rule := &Rule{Name: "r", Enabled: true, WebhookURL: server.URL}
	require.NoError(t, rules.CreateRule(ctx, rule))

	resp, err := svc.TestFire(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.HTTPStatus)
	assert.Equal(t, http.StatusBadGateway, *resp.HTTPStatus)

	recorded := runs.all()
	require.Len(t, recorded, 1)
	assert.False(t, recorded[0].Success)
}

func TestListRunsRequiresRule(t *testing.T) {
	_, _, svc := newTestService(t)

	_, err := svc.ListRuns(context.Background(), "missing", 10)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}
