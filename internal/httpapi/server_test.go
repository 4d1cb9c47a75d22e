package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/achrafouajid/noor-daily/internal/alarm"
	"github.com/achrafouajid/noor-daily/internal/engine"
	"github.com/achrafouajid/noor-daily/internal/prayer"
	logx "github.com/achrafouajid/noor-daily/pkg/logx"
)

func newTestServer(t *testing.T, withTable bool) (*Server, http.Handler) {
	t.Helper()
	eng := engine.New(engine.Config{}, nil, nil, nil, logx.Nop())
	if withTable {
		day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
		tt, _ := prayer.NewTimeTable(day, "test", map[string]string{
			"Fajr": "04:45", "Dhuhr": "12:10", "Asr": "15:30",
			"Maghrib": "18:05", "Isha": "19:30",
		})
		eng.SetTimeTable(tt)
	}
	rules := alarm.NewRules(nil, nil, logx.Nop())
	srv := New(Config{}, eng, rules, logx.Nop())

	gin.SetMode(gin.TestMode)
	r := gin.New()
	srv.registerRoutes(r)
	return srv, r
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestTimetableEndpoint(t *testing.T) {
	t.Parallel()
	_, h := newTestServer(t, true)

	w := doJSON(t, h, http.MethodGet, "/api/timetable", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	var resp struct {
		Locality string            `json:"locality"`
		Times    map[string]string `json:"times"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Locality != "test" || resp.Times["Fajr"] != "04:45" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestTimetableEndpointUnavailable(t *testing.T) {
	t.Parallel()
	_, h := newTestServer(t, false)
	if w := doJSON(t, h, http.MethodGet, "/api/timetable", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestAlarmLifecycle(t *testing.T) {
	t.Parallel()
	_, h := newTestServer(t, true)

	w := doJSON(t, h, http.MethodPost, "/api/alarms", map[string]any{
		"anchor": "fajr", "offsetMinutes": -15, "message": "wake up",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body)
	}
	var created alarm.Rule
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.ID == "" || created.Anchor != prayer.Fajr || !created.Enabled {
		t.Fatalf("created = %+v", created)
	}

	w = doJSON(t, h, http.MethodPut, "/api/alarms/"+created.ID, map[string]any{
		"anchor": "Fajr", "offsetMinutes": -20, "enabled": false,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", w.Code, w.Body)
	}

	w = doJSON(t, h, http.MethodGet, "/api/alarms", nil)
	var list []alarm.Rule
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].OffsetMinutes != -20 || list[0].Enabled {
		t.Fatalf("list = %+v", list)
	}

	if w := doJSON(t, h, http.MethodDelete, "/api/alarms/"+created.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = doJSON(t, h, http.MethodGet, "/api/alarms", nil)
	if body := w.Body.String(); body != "[]" && body != "null" {
		var remaining []alarm.Rule
		_ = json.Unmarshal(w.Body.Bytes(), &remaining)
		if len(remaining) != 0 {
			t.Fatalf("alarms remain after delete: %s", body)
		}
	}
}

func TestAlarmValidation(t *testing.T) {
	t.Parallel()
	_, h := newTestServer(t, true)

	if w := doJSON(t, h, http.MethodPost, "/api/alarms", map[string]any{"anchor": "Brunch"}); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown anchor status = %d", w.Code)
	}
	if w := doJSON(t, h, http.MethodPost, "/api/alarms", map[string]any{"anchor": "Sunrise"}); w.Code != http.StatusBadRequest {
		t.Fatalf("sunrise status = %d", w.Code)
	}
	if w := doJSON(t, h, http.MethodPut, "/api/alarms/nope", map[string]any{"anchor": "Fajr"}); w.Code != http.StatusNotFound {
		t.Fatalf("missing id status = %d", w.Code)
	}
}
