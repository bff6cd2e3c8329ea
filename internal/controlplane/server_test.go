package controlplane

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/betbot/spreadbot/internal/domain"
	"github.com/betbot/spreadbot/internal/store"
)

type fakeStatus struct {
	live bool
	risk domain.RiskState
}

func (f *fakeStatus) FeedLive() bool                 { return f.live }
func (f *fakeStatus) RiskSnapshot() domain.RiskState { return f.risk }

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "cp.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	status := &fakeStatus{live: true, risk: domain.RiskState{BankrollCents: 96129}}
	return NewServer(st, status), st
}

func do(t *testing.T, s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	if w := do(t, s, http.MethodGet, "/healthz", nil); w.Code != http.StatusOK {
		t.Fatalf("healthz = %d", w.Code)
	}
}

func TestStatus(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, http.MethodGet, "/api/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["paused"] != false {
		t.Error("初始不应为 paused")
	}
	if resp["feed_live"] != true {
		t.Error("feed_live 应为 true")
	}
	if resp["bankroll_usd"] != 961.29 {
		t.Errorf("bankroll_usd = %v", resp["bankroll_usd"])
	}
}

func TestPauseResume(t *testing.T) {
	s, st := newTestServer(t)

	if w := do(t, s, http.MethodPost, "/api/pause", nil); w.Code != http.StatusOK {
		t.Fatalf("pause = %d", w.Code)
	}
	if !st.IsPaused() {
		t.Fatal("暂停开关应生效")
	}
	if w := do(t, s, http.MethodPost, "/api/resume", nil); w.Code != http.StatusOK {
		t.Fatalf("resume = %d", w.Code)
	}
	if st.IsPaused() {
		t.Fatal("恢复后不应 paused")
	}
}

func TestTiersRoundTrip(t *testing.T) {
	s, _ := newTestServer(t)

	// 未配置时 404
	if w := do(t, s, http.MethodGet, "/api/tiers/BTC", nil); w.Code != http.StatusNotFound {
		t.Fatalf("未配置应 404, got %d", w.Code)
	}

	tiers := domain.TierTable{
		{Name: "t1", Rank: 1, SpreadThresholdPct: 0.20, EntryNotBeforeSec: 60, EntryBeforeSec: 240, LimitPrice: 0.58},
		{Name: "t2", Rank: 2, SpreadThresholdPct: 0.45, EntryNotBeforeSec: 90, EntryBeforeSec: 270, LimitPrice: 0.62,
			BlocksLower: true, BlockDuration: 90 * time.Second},
	}
	body, _ := json.Marshal(tiers)
	if w := do(t, s, http.MethodPut, "/api/tiers/BTC", body); w.Code != http.StatusOK {
		t.Fatalf("PUT tiers = %d: %s", w.Code, w.Body.String())
	}

	w := do(t, s, http.MethodGet, "/api/tiers/BTC", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET tiers = %d", w.Code)
	}
	var got domain.TierTable
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].Name != "t2" {
		t.Errorf("tiers 往返失败: %+v", got)
	}

	// 非法配置被拒绝
	bad := domain.TierTable{{Name: "x", Rank: 1, SpreadThresholdPct: -1, LimitPrice: 0.5}}
	body, _ = json.Marshal(bad)
	if w := do(t, s, http.MethodPut, "/api/tiers/BTC", body); w.Code != http.StatusBadRequest {
		t.Fatalf("非法配置应 400, got %d", w.Code)
	}
}
