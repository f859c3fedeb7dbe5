package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"MarketSentry/internal/domain/models"
)

type fakeHotStore struct{ degraded bool }

func (s *fakeHotStore) PutOrderBook(ctx context.Context, snap *models.OrderBookSnapshot) error {
	return nil
}
func (s *fakeHotStore) PutZScoreCurrent(ctx context.Context, venue, instrument, metric string, sample models.MetricSample) error {
	return nil
}
func (s *fakeHotStore) PutAlert(ctx context.Context, alert *models.Alert) error        { return nil }
func (s *fakeHotStore) RemoveActiveAlert(ctx context.Context, alert *models.Alert) error { return nil }
func (s *fakeHotStore) PutHealth(ctx context.Context, snap models.HealthSnapshot) error { return nil }
func (s *fakeHotStore) PutGap(ctx context.Context, gap *models.GapMarker) error         { return nil }
func (s *fakeHotStore) Degraded() bool                                                 { return s.degraded }
func (s *fakeHotStore) Close() error                                                   { return nil }

type fakeColdStore struct{ depth int }

func (s *fakeColdStore) Init(ctx context.Context) error                                { return nil }
func (s *fakeColdStore) WriteSample(ctx context.Context, sample models.MetricSample) error { return nil }
func (s *fakeColdStore) WriteAlertEvent(ctx context.Context, alert *models.Alert) error { return nil }
func (s *fakeColdStore) WriteGap(ctx context.Context, gap *models.GapMarker) error      { return nil }
func (s *fakeColdStore) QueueDepth() int                                               { return s.depth }
func (s *fakeColdStore) Flush(ctx context.Context) error                               { return nil }
func (s *fakeColdStore) Close() error                                                  { return nil }

func newTestContext(method, target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestLiveness_OKWithoutPipeline(t *testing.T) {
	h := NewHealthHandler(nil, nil, nil)
	c, rec := newTestContext(http.MethodGet, "/health")

	if err := h.liveness(c); err != nil {
		t.Fatalf("liveness: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestReadiness_OKWhenHotStoreHealthy(t *testing.T) {
	h := NewHealthHandler(nil, &fakeHotStore{degraded: false}, &fakeColdStore{depth: 3})
	c, rec := newTestContext(http.MethodGet, "/ready")

	if err := h.readiness(c); err != nil {
		t.Fatalf("readiness: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestReadiness_ServiceUnavailableWhenHotStoreDegraded(t *testing.T) {
	h := NewHealthHandler(nil, &fakeHotStore{degraded: true}, &fakeColdStore{})
	c, rec := newTestContext(http.MethodGet, "/ready")

	if err := h.readiness(c); err != nil {
		t.Fatalf("readiness: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRegisterRoutes_RegistersHealthAndReady(t *testing.T) {
	e := echo.New()
	h := NewHealthHandler(nil, &fakeHotStore{}, &fakeColdStore{})
	h.RegisterRoutes(e)

	paths := map[string]bool{}
	for _, r := range e.Routes() {
		paths[r.Method+" "+r.Path] = true
	}
	if !paths["GET /health"] {
		t.Fatal("expected GET /health to be registered")
	}
	if !paths["GET /ready"] {
		t.Fatal("expected GET /ready to be registered")
	}
}
