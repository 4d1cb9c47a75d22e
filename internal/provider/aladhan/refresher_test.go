package aladhan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/achrafouajid/noor-daily/internal/prayer"
	logx "github.com/achrafouajid/noor-daily/pkg/logx"
)

type captureSink struct {
	mu    sync.Mutex
	table *prayer.TimeTable
	swaps int
}

func (c *captureSink) SetTimeTable(tt *prayer.TimeTable) {
	c.mu.Lock()
	c.table = tt
	c.swaps++
	c.mu.Unlock()
}

func TestStaleUsesTableZone(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+14", 14*3600)
	r := NewRefresher(RefresherConfig{Latitude: 1, Longitude: 1}, nil, nil, nil, logx.Nop())
	r.lastDateKey = "2026-08-29"
	r.lastLoc = loc

	// 20:00 UTC on the 28th is already 10:00 on the 29th in the table's
	// zone: the table is current even though the host date differs.
	now := time.Date(2026, 8, 28, 20, 0, 0, 0, time.UTC)
	if r.stale(now) {
		t.Fatal("table judged stale while its zone is still on the fetched day")
	}

	// A day later the table's zone has moved on to the 30th.
	if !r.stale(now.AddDate(0, 0, 1)) {
		t.Fatal("table not judged stale after its zone rolled over")
	}
}

func TestStaleBeforeFirstRefresh(t *testing.T) {
	t.Parallel()
	r := NewRefresher(RefresherConfig{Latitude: 1, Longitude: 1}, nil, nil, nil, logx.Nop())
	if r.stale(time.Now()) {
		t.Fatal("empty refresher must not report stale")
	}
}

func TestRefreshTableNotImmediatelyStale(t *testing.T) {
	t.Parallel()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	sink := &captureSink{}
	client := NewClient(ClientConfig{BaseURL: srv.URL}, logx.Nop())
	r := NewRefresher(RefresherConfig{Latitude: 33.5731, Longitude: -7.5898}, client, sink, nil, logx.Nop())

	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if hits.Load() != 1 || sink.swaps != 1 {
		t.Fatalf("hits = %d, swaps = %d, want 1 and 1", hits.Load(), sink.swaps)
	}
	if r.stale(time.Now()) {
		t.Fatal("freshly refreshed table reported stale")
	}
}

func TestRefreshRejectsMissingFajr(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "code": 200, "status": "OK",
  "data": {
    "timings": {"Fajr": "garbage", "Dhuhr": "12:33", "Asr": "16:05", "Maghrib": "18:54", "Isha": "20:14"},
    "meta": {"timezone": "UTC"}
  }
}`))
	}))
	defer srv.Close()

	sink := &captureSink{}
	client := NewClient(ClientConfig{BaseURL: srv.URL}, logx.Nop())
	r := NewRefresher(RefresherConfig{Latitude: 1, Longitude: 1}, client, sink, nil, logx.Nop())

	if err := r.Refresh(context.Background()); err == nil {
		t.Fatal("want error when Fajr is unusable")
	}
	if sink.swaps != 0 {
		t.Fatal("table swapped despite unusable Fajr")
	}
}
