package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"arview/pkg/store"
	"arview/services/api/internal/app"
)

const assetURL = "https://cdn.example.com"

type memObjects struct {
	mu      sync.Mutex
	puts    map[string]string
	deleted []string
}

func (m *memObjects) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts[key] = contentType
	return nil
}

func (m *memObjects) PresignPut(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://s3.example.com/" + key + "?sig=1", nil
}

func (m *memObjects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	return nil
}

type testServer struct {
	srv     *Server
	handler http.Handler
	objects *memObjects
}

func newTestServer(t *testing.T, scanLimit int) *testServer {
	t.Helper()
	redisSrv := miniredis.RunT(t)
	sessions, err := store.NewJWTSessionStore("server-test-secret-123", time.Hour, store.NewMemoryTokenRevoker(), store.JWTOptions{})
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	objects := &memObjects{puts: map[string]string{}}
	a, err := app.New(app.Config{
		Store:          store.NewMemoryStore(),
		Sessions:       sessions,
		Objects:        objects,
		FrontendURL:    "https://ar.example.com",
		PublicAssetURL: assetURL,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	srv, err := New(Config{
		App:                    a,
		RedisAddr:              redisSrv.Addr(),
		CORSOrigins:            []string{"https://ar.example.com"},
		ScanRateLimitPerMinute: scanLimit,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return &testServer{srv: srv, handler: srv.Router(), objects: objects}
}

func (ts *testServer) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) register(t *testing.T, email string) (*http.Cookie, authResponse) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/auth/register", `{"fullName":"Shop Owner","email":"`+email+`","password":"secret123"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d body=%s", rec.Code, rec.Body.String())
	}
	var resp authResponse
	decode(t, rec, &resp)
	for _, c := range rec.Result().Cookies() {
		if c.Name == "user_token" {
			return c, resp
		}
	}
	t.Fatalf("register did not set session cookie")
	return nil, resp
}

func (ts *testServer) createItem(t *testing.T, cookie *http.Cookie, merchantID, name string) map[string]any {
	t.Helper()
	body := `{"name":"` + name + `","modelUrl":"` + assetURL + "/" + merchantID + `/models/a.glb"}`
	rec := ts.do(t, http.MethodPost, "/items", body, cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create item status = %d body=%s", rec.Code, rec.Body.String())
	}
	var item map[string]any
	decode(t, rec, &item)
	return item
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, 0)
	rec := ts.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected security headers")
	}
}

func TestRegisterLoginAndMe(t *testing.T) {
	ts := newTestServer(t, 0)
	cookie, resp := ts.register(t, "owner@example.com")
	if resp.Role != "ADMIN" || resp.Email != "owner@example.com" {
		t.Fatalf("unexpected register response: %+v", resp)
	}
	if !cookie.HttpOnly {
		t.Fatalf("session cookie must be HttpOnly")
	}

	rec := ts.do(t, http.MethodPost, "/auth/login", `{"email":"OWNER@example.com","password":"wrong-pass"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d", rec.Code)
	}
	var errResp errorResponse
	decode(t, rec, &errResp)
	if errResp.Code != "AUTH_INVALID_CREDENTIALS" || errResp.RequestID == "" {
		t.Fatalf("unexpected error envelope: %+v", errResp)
	}

	rec = ts.do(t, http.MethodPost, "/auth/login", `{"email":"owner@example.com","password":"secret123"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d body=%s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/auth/me", "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "passwordHash") || strings.Contains(rec.Body.String(), "$2a$") {
		t.Fatalf("me leaked password hash: %s", rec.Body.String())
	}

	rec = ts.do(t, http.MethodPost, "/auth/register", `{"fullName":"Again","email":"owner@example.com","password":"secret123"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t, 0)
	rec := ts.do(t, http.MethodGet, "/items", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	rec = ts.do(t, http.MethodGet, "/items", "", &http.Cookie{Name: "user_token", Value: "garbage"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token status = %d, want 401", rec.Code)
	}
}

func TestBearerTokenFallback(t *testing.T) {
	ts := newTestServer(t, 0)
	cookie, _ := ts.register(t, "bearer@example.com")
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+cookie.Value)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("bearer status = %d", rec.Code)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	ts := newTestServer(t, 0)
	cookie, _ := ts.register(t, "bye@example.com")
	rec := ts.do(t, http.MethodPost, "/auth/logout", "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}
	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == "user_token" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("logout did not clear cookie")
	}
	if rec := ts.do(t, http.MethodGet, "/auth/me", "", cookie); rec.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token status = %d, want 401", rec.Code)
	}
}

func TestItemLifecycle(t *testing.T) {
	ts := newTestServer(t, 0)
	cookie, owner := ts.register(t, "shop@example.com")
	item := ts.createItem(t, cookie, owner.UserID, "Red Chair")
	id := item["id"].(string)
	if item["slug"] != "red-chair" {
		t.Fatalf("slug = %v", item["slug"])
	}

	second := ts.createItem(t, cookie, owner.UserID, "Red Chair")
	if second["slug"] != "red-chair-1" {
		t.Fatalf("second slug = %v", second["slug"])
	}

	rec := ts.do(t, http.MethodGet, "/items", "", cookie)
	var list itemListResponse
	decode(t, rec, &list)
	if list.Total != 2 || len(list.Items) != 2 {
		t.Fatalf("list = %+v", list)
	}

	if rec := ts.do(t, http.MethodGet, "/items/slug/red-chair", ""); rec.Code != http.StatusOK {
		t.Fatalf("public slug lookup status = %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPatch, "/items/"+id, `{"description":"Comfy"}`, cookie)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Comfy") {
		t.Fatalf("update status = %d body=%s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/items/"+id, "", cookie)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"uniqueScans":0`) {
		t.Fatalf("get status = %d body=%s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodDelete, "/items/"+id, "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/items/"+id, "", cookie); rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted status = %d, want 404", rec.Code)
	}
}

func TestItemOwnership(t *testing.T) {
	ts := newTestServer(t, 0)
	ownerCookie, owner := ts.register(t, "owner@example.com")
	otherCookie, _ := ts.register(t, "other@example.com")
	id := ts.createItem(t, ownerCookie, owner.UserID, "Lamp")["id"].(string)

	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/items/" + id, http.StatusForbidden},
		{http.MethodDelete, "/items/" + id, http.StatusForbidden},
		{http.MethodGet, "/qr/items/" + id, http.StatusForbidden},
		{http.MethodGet, "/analytics/items/" + id, http.StatusNotFound},
		{http.MethodGet, "/items/does-not-exist", http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := ts.do(t, tc.method, tc.path, "", otherCookie)
		if rec.Code != tc.want {
			t.Fatalf("%s %s status = %d, want %d", tc.method, tc.path, rec.Code, tc.want)
		}
	}
}

func TestValidationEnvelope(t *testing.T) {
	ts := newTestServer(t, 0)
	cookie, _ := ts.register(t, "v@example.com")
	rec := ts.do(t, http.MethodPost, "/items", `{"name":"","modelUrl":"not-a-url"}`, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp errorResponse
	decode(t, rec, &resp)
	if resp.Code != "REQUEST_VALIDATION_FAILED" || len(resp.Fields) < 2 {
		t.Fatalf("unexpected envelope: %+v", resp)
	}

	rec = ts.do(t, http.MethodPost, "/items", `{"name":"x","bogus":true}`, cookie)
	decode(t, rec, &resp)
	if rec.Code != http.StatusBadRequest || resp.Code != "REQUEST_INVALID_JSON" {
		t.Fatalf("unknown field: status=%d code=%s", rec.Code, resp.Code)
	}
}

func TestScanFlowAndAnalytics(t *testing.T) {
	ts := newTestServer(t, 0)
	cookie, owner := ts.register(t, "scan@example.com")
	id := ts.createItem(t, cookie, owner.UserID, "Vase")["id"].(string)

	rec := ts.do(t, http.MethodPost, "/analytics/scan", `{"itemId":"`+id+`","deviceType":" iOS ","sessionId":"s1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("scan status = %d body=%s", rec.Code, rec.Body.String())
	}
	var scan scanRecordedResponse
	decode(t, rec, &scan)

	rec = ts.do(t, http.MethodPatch, "/analytics/scan/duration", `{"scanEventId":"`+scan.ID+`","duration":42}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"duration":42`) {
		t.Fatalf("duration status = %d body=%s", rec.Code, rec.Body.String())
	}
	rec = ts.do(t, http.MethodPatch, "/analytics/scan/duration", `{"scanEventId":"missing","duration":1}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing scan status = %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/analytics/items/"+id, "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("item analytics status = %d", rec.Code)
	}
	var stats struct {
		TotalScans      int            `json:"totalScans"`
		AvgDuration     int            `json:"avgDuration"`
		DeviceBreakdown map[string]int `json:"deviceBreakdown"`
	}
	decode(t, rec, &stats)
	if stats.TotalScans != 1 || stats.AvgDuration != 42 || stats.DeviceBreakdown["ios"] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	rec = ts.do(t, http.MethodGet, "/analytics/overview", "", cookie)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"totalItems":1`) {
		t.Fatalf("overview status = %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestScanRateLimit(t *testing.T) {
	ts := newTestServer(t, 2)
	body := `{"itemId":"nope","deviceType":"android","sessionId":"s"}`
	for i := 0; i < 2; i++ {
		if rec := ts.do(t, http.MethodPost, "/analytics/scan", body); rec.Code == http.StatusTooManyRequests {
			t.Fatalf("request %d limited too early", i)
		}
	}
	rec := ts.do(t, http.MethodPost, "/analytics/scan", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" || rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("missing rate limit headers: %v", rec.Header())
	}
}

func TestQRDownloadHeaders(t *testing.T) {
	ts := newTestServer(t, 0)
	cookie, owner := ts.register(t, "qr@example.com")
	id := ts.createItem(t, cookie, owner.UserID, "Desk")["id"].(string)

	rec := ts.do(t, http.MethodGet, "/qr/items/"+id+"?format=svg&size=200&errorCorrectionLevel=h", "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "image/svg+xml" {
		t.Fatalf("content type = %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="desk-qr.svg"` {
		t.Fatalf("content disposition = %q", got)
	}

	if rec := ts.do(t, http.MethodGet, "/qr/items/"+id+"?size=abc", "", cookie); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad size status = %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/qr/items/"+id+"?size=5000", "", cookie); rec.Code != http.StatusBadRequest {
		t.Fatalf("out of range size status = %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/qr/items/"+id+"/preview", "", cookie)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "data:image/png;base64,") {
		t.Fatalf("preview status = %d", rec.Code)
	}
}

func TestUploadEndpoints(t *testing.T) {
	ts := newTestServer(t, 0)
	cookie, owner := ts.register(t, "up@example.com")

	rec := ts.do(t, http.MethodPost, "/upload/presigned-url", `{"fileName":"chair.glb","fileType":"glb"}`, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("presign status = %d body=%s", rec.Code, rec.Body.String())
	}
	var presign app.PresignResult
	decode(t, rec, &presign)
	if !strings.HasPrefix(presign.Key, owner.UserID+"/models/") || !strings.HasPrefix(presign.PublicURL, assetURL+"/") {
		t.Fatalf("unexpected presign: %+v", presign)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("fileType", "glb")
	fw, _ := mw.CreateFormFile("file", "table.glb")
	_, _ = fw.Write([]byte("glTF-binary"))
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/upload/direct", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("direct upload status = %d body=%s", rec.Code, rec.Body.String())
	}
	var uploaded app.UploadResult
	decode(t, rec, &uploaded)
	if _, ok := ts.objects.puts[uploaded.Key]; !ok {
		t.Fatalf("object %q was not stored", uploaded.Key)
	}

	if rec := ts.do(t, http.MethodDelete, "/upload/"+uploaded.Key, "", cookie); rec.Code != http.StatusOK {
		t.Fatalf("delete own upload status = %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodDelete, "/upload/someone-else/models/x.glb", "", cookie); rec.Code != http.StatusForbidden {
		t.Fatalf("delete foreign upload status = %d, want 403", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, 0)
	req := httptest.NewRequest(http.MethodOptions, "/items", nil)
	req.Header.Set("Origin", "https://ar.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://ar.example.com" {
		t.Fatalf("unexpected allow origin %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestRoutesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range Routes() {
		if seen[p] {
			t.Fatalf("duplicate route %q", p)
		}
		seen[p] = true
	}
	if !seen["GET /healthz"] || !seen["DELETE /upload/{key...}"] {
		t.Fatalf("unexpected route table: %v", Routes())
	}
}
