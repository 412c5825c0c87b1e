package http_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/adapter/http"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/observability"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/pipeline"
)

type discardSink struct{}

func (discardSink) Name() string { return "discard" }

func (discardSink) Write(context.Context, string, *domain.Table) error { return nil }

func newTestServer(t *testing.T) (*httpadapter.Server, *pipeline.Pipeline) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := pipeline.New(logger, observability.NewMetricsForTesting())
	return httpadapter.NewServer(":0", p, logger), p
}

func get(srv *httpadapter.Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func exportOneLayer(t *testing.T, p *pipeline.Pipeline) {
	t.Helper()
	tbl := domain.NewTable(domain.Column{Name: "site_number", Kind: domain.KindText})
	tbl.Append(nil, "08156800")
	require.NoError(t, p.Export(context.Background(), "discharge", tbl, discardSink{}))
}

func TestHealthzReturns200(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := get(srv, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzFollowsExports(t *testing.T) {
	srv, p := newTestServer(t)

	rec := get(srv, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.NotEmpty(t, body["error"])

	exportOneLayer(t, p)

	rec = get(srv, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestStatusListsExportedLayers(t *testing.T) {
	srv, p := newTestServer(t)
	exportOneLayer(t, p)

	rec := get(srv, "/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ready":true,"layers":{"discharge":1}}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := get(srv, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
