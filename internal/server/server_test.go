package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/chainlink-analytics/shelfgap/internal/exporter"
	"github.com/chainlink-analytics/shelfgap/internal/materializer"
	"github.com/chainlink-analytics/shelfgap/internal/publisher"
	"github.com/chainlink-analytics/shelfgap/internal/server/handlers"
	"github.com/chainlink-analytics/shelfgap/internal/streaks"
	"github.com/chainlink-analytics/shelfgap/internal/testutil"
	"github.com/chainlink-analytics/shelfgap/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeS3 struct{ keys []string }

func (f *fakeS3) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.keys = append(f.keys, *input.Key)
	return &s3.PutObjectOutput{}, nil
}

func testConfig() *types.ProjectConfig {
	return &types.ProjectConfig{
		Warehouse: types.WarehouseConfig{DSN: "postgres://localhost/shelfgap"},
		Tenants: []types.TenantConfig{
			{ID: 42, Name: "Chainlink Beverages"},
			{ID: 7, Name: "Northside Foods"},
		},
	}
}

func setupTestServer(t *testing.T) (*httptest.Server, *testutil.MockWarehouse) {
	t.Helper()
	return setupTestServerWithOpts(t, "", 0)
}

func setupTestServerWithOpts(t *testing.T, apiKey string, maxBody int64) (*httptest.Server, *testutil.MockWarehouse) {
	t.Helper()
	wh := testutil.NewMockWarehouse()

	pub := publisher.New(wh, materializer.New(wh), nil)
	exp, err := exporter.New(wh, types.ExportConfig{Bucket: "shelfgap-exports"},
		exporter.WithS3Client(&fakeS3{}))
	require.NoError(t, err)

	srv := New(types.ServerConfig{Addr: ":0", APIKey: apiKey, MaxRequestBody: maxBody}, handlers.Deps{
		Publisher: pub,
		Streaks:   streaks.NewReader(wh),
		Exporter:  exp,
		Runs:      wh,
		Pinger:    wh,
		Config:    testConfig(),
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		http.DefaultClient.CloseIdleConnections()
	})
	return ts, wh
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestPublishEndpoint(t *testing.T) {
	ts, wh := setupTestServer(t)
	wh.SeedGapRows(42, testutil.SampleGapRows())

	// First publish creates the snapshot.
	resp, err := http.Post(ts.URL+"/api/tenants/42/publish", "application/json",
		strings.NewReader(`{"week":"2025-06-11","triggeredBy":"api-test"}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	result := decode[types.PublishResult](t, resp)
	assert.Equal(t, types.OutcomePublished, result.Outcome)
	assert.Equal(t, 3, result.RowCount)
	assert.Equal(t, "2025-06-09", result.Week.Format("2006-01-02"))

	// Repeat is a no-op.
	resp, err = http.Post(ts.URL+"/api/tenants/42/publish", "application/json",
		strings.NewReader(`{"week":"2025-06-11"}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	result = decode[types.PublishResult](t, resp)
	assert.Equal(t, types.OutcomeAlreadyPublished, result.Outcome)
}

func TestPublishEndpoint_EmptyBody(t *testing.T) {
	ts, wh := setupTestServer(t)
	wh.SeedGapRows(42, testutil.SampleGapRows())

	resp, err := http.Post(ts.URL+"/api/tenants/42/publish", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestPublishEndpoint_AggregationFailure(t *testing.T) {
	ts, wh := setupTestServer(t)
	wh.RefreshErr = assert.AnError

	resp, err := http.Post(ts.URL+"/api/tenants/42/publish", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	result := decode[types.PublishResult](t, resp)
	assert.Equal(t, types.OutcomeFailed, result.Outcome)
	assert.NotEmpty(t, result.Message)
}

func TestPublishEndpoint_UnknownTenant(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := http.Post(ts.URL+"/api/tenants/99/publish", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPublishEndpoint_BadWeek(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := http.Post(ts.URL+"/api/tenants/42/publish", "application/json",
		strings.NewReader(`{"week":"June 9"}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunsEndpoint(t *testing.T) {
	ts, wh := setupTestServer(t)
	wh.SeedGapRows(42, testutil.SampleGapRows())

	resp, err := http.Post(ts.URL+"/api/tenants/42/publish", "application/json",
		strings.NewReader(`{"week":"2025-06-09"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/tenants/42/runs")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		Runs  []types.SnapshotRun `json:"runs"`
		Count int                 `json:"count"`
	}](t, resp)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, 3, body.Runs[0].RowCount)

	// Another tenant sees nothing.
	resp, err = http.Get(ts.URL + "/api/tenants/7/runs")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body = decode[struct {
		Runs  []types.SnapshotRun `json:"runs"`
		Count int                 `json:"count"`
	}](t, resp)
	assert.Zero(t, body.Count)
}

func TestStreaksEndpoint(t *testing.T) {
	ts, wh := setupTestServer(t)
	wh.SeedStreaks(42, []types.StreakRow{
		{TenantID: 42, ChainName: "Food Mart", StoreNumber: "101", UPC: "850017944176", StreakWeeks: 3},
		{TenantID: 42, ChainName: "Quick Stop", StoreNumber: "7", UPC: "850017944177", StreakWeeks: 1},
	})
	wh.SeedAddress(42, types.StoreKey{ChainName: "Food Mart", StoreNumber: "101"}, "2 New Ave")

	resp, err := http.Get(ts.URL + "/api/tenants/42/streaks?minStreakWeeks=2&includeAddress=true")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		Streaks []types.StreakRow `json:"streaks"`
		Count   int               `json:"count"`
	}](t, resp)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "850017944176", body.Streaks[0].UPC)
	assert.Equal(t, "2 New Ave", body.Streaks[0].Address)
}

func TestStreaksEndpoint_BadMinStreak(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/tenants/42/streaks?minStreakWeeks=zero")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportEndpoint(t *testing.T) {
	ts, wh := setupTestServer(t)
	wh.SeedGapRows(42, testutil.SampleGapRows())

	resp, err := http.Post(ts.URL+"/api/tenants/42/publish", "application/json",
		strings.NewReader(`{"week":"2025-06-09"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()

	// Any day of the week resolves to the same snapshot.
	resp, err = http.Post(ts.URL+"/api/tenants/42/exports/2025-06-12", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	receipt := decode[types.ExportReceipt](t, resp)
	assert.Equal(t, "tenant-42/gap-snapshots/2025-06-09.csv", receipt.Key)
	assert.Equal(t, 3, receipt.RowCount)
}

func TestExportEndpoint_NoRun(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := http.Post(ts.URL+"/api/tenants/42/exports/2025-06-09", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIKeyAuth(t *testing.T) {
	ts, _ := setupTestServerWithOpts(t, "secret", 0)

	// Health is exempt.
	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Missing key is rejected.
	resp, err = http.Get(ts.URL + "/api/tenants/42/runs")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Correct key passes.
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/tenants/42/runs", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMaxBodyLimit(t *testing.T) {
	ts, _ := setupTestServerWithOpts(t, "", 16)

	resp, err := http.Post(ts.URL+"/api/tenants/42/publish", "application/json",
		strings.NewReader(`{"week":"2025-06-09","triggeredBy":"a-very-long-actor-name"}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRequestIDPropagation(t *testing.T) {
	ts, _ := setupTestServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "req-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "req-123", resp.Header.Get("X-Request-ID"))
}
