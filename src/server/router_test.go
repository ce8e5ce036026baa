package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gerenciause-netizen/smart-trader/src/config"
	"github.com/gerenciause-netizen/smart-trader/src/database"
	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statement = `Statement,Header,Field Name,Field Value
Summary,Header,Field Name,Field Value
Summary,Data,Starting Cash,5000
Transaction History,Header,Date,Account,Description,Transaction Type,Symbol,Quantity,Price,Price Currency,Gross Amount ,Commission,Net Amount
Transaction History,Data,2024-01-10,U***1234,APPLE INC,Buy,AAPL,10,185.5,USD,-1855,-1,-1856
Transaction History,Data,2024-01-12,U***1234,APPLE INC,Sell,AAPL,-10,190.25,USD,"1,902.50",-1,"1,901.50"
Transaction History,Data,2024-01-15,U***1234,TESLA INC,Buy,TSLA,5,210,USD,-1050,-1,-1051
`

func TestMain(m *testing.M) {
	logger.InitLoggerWithWriter("error", io.Discard)
	config.Cfg = &config.AppConfig{
		Port:                     "0",
		AllowedOrigins:           []string{"http://localhost:3000"},
		JWTSecret:                "router-test-secret",
		CSRFAuthKey:              []byte("router-test-csrf-key-0123456789ab"),
		AccessTokenExpiry:        time.Hour,
		RefreshTokenExpiry:       24 * time.Hour,
		MaxUploadSizeBytes:       1 << 20,
		MaxImageSizeBytes:        1 << 20,
		VerificationTokenExpiry:  time.Hour,
		PasswordResetTokenExpiry: time.Hour,
		FrontendBaseURL:          "http://localhost:3000",
		DefaultDemoCash:          50000,
	}
	os.Exit(m.Run())
}

// recordingEmail keeps the last token mailed to each address.
type recordingEmail struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (e *recordingEmail) record(to, token string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tokens == nil {
		e.tokens = map[string]string{}
	}
	e.tokens[to] = token
	return nil
}

func (e *recordingEmail) SendVerificationEmail(_ context.Context, to, _, token string) error {
	return e.record(to, token)
}

func (e *recordingEmail) SendPasswordResetEmail(_ context.Context, to, _, token string) error {
	return e.record(to, token)
}

func (e *recordingEmail) token(to string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tokens[to]
}

type testServer struct {
	t         *testing.T
	srv       *httptest.Server
	email     *recordingEmail
	storeRoot string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "router.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })

	storeRoot := t.TempDir()
	store, err := storage.NewLocalStore(storeRoot, "http://localhost:8080")
	require.NoError(t, err)

	email := &recordingEmail{}
	handler := NewRouter(config.Cfg, Deps{
		DB:    db,
		Store: store,
		Email: email,
		Clock: func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testServer{t: t, srv: srv, email: email, storeRoot: storeRoot}
}

// do sends a JSON request. Without a bearer token the CSRF pair is attached.
func (s *testServer) do(method, path, bearer string, body interface{}) *http.Response {
	s.t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, rdr)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	} else if method != http.MethodGet {
		token, cookie := s.csrf()
		req.Header.Set("X-CSRF-Token", token)
		req.AddCookie(cookie)
	}
	resp, err := s.srv.Client().Do(req)
	require.NoError(s.t, err)
	s.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *testServer) csrf() (string, *http.Cookie) {
	s.t.Helper()
	resp, err := s.srv.Client().Get(s.srv.URL + "/api/auth/csrf")
	require.NoError(s.t, err)
	defer resp.Body.Close()
	require.Equal(s.t, http.StatusOK, resp.StatusCode)
	cookies := resp.Cookies()
	require.NotEmpty(s.t, cookies)
	return resp.Header.Get("X-CSRF-Token"), cookies[0]
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func (s *testServer) signUp(email, password string) string {
	s.t.Helper()
	resp := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "trader", "email": email, "password": password,
	})
	require.Equal(s.t, http.StatusCreated, resp.StatusCode)

	token := s.email.token(email)
	require.NotEmpty(s.t, token)
	resp = s.do(http.MethodGet, "/api/auth/verify-email?token="+token, "", nil)
	require.Equal(s.t, http.StatusOK, resp.StatusCode)

	resp = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(s.t, http.StatusOK, resp.StatusCode)
	var login struct {
		AccessToken   string `json:"access_token"`
		ActiveAccount string `json:"active_account"`
	}
	decode(s.t, resp, &login)
	require.NotEmpty(s.t, login.AccessToken)
	assert.Equal(s.t, "demo", login.ActiveAccount)
	return login.AccessToken
}

func TestImportThenDashboard(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp("trader@example.com", "correct-horse-9")

	resp := s.do(http.MethodPost, "/api/transactions/import?account=real", token, map[string]string{
		"source": "ibkr", "content": statement, "strategy": "Breakout",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary struct {
		Imported     int      `json:"imported"`
		StartingCash *float64 `json:"starting_cash"`
	}
	decode(t, resp, &summary)
	assert.Equal(t, 3, summary.Imported)
	require.NotNil(t, summary.StartingCash)
	assert.Equal(t, 5000.0, *summary.StartingCash)

	resp = s.do(http.MethodGet, "/api/dashboard?account=real", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("ETag"))
	var dash struct {
		AccountLabel string  `json:"account_label"`
		StartingCash float64 `json:"starting_cash"`
		Trades       []struct {
			Symbol string `json:"symbol"`
			Status string `json:"status"`
		} `json:"trades"`
		Stats *struct {
			ClosedTrades  int `json:"closedTrades"`
			OpenPositions int `json:"openPositions"`
		} `json:"stats"`
	}
	decode(t, resp, &dash)
	assert.Equal(t, "real", dash.AccountLabel)
	assert.Equal(t, 5000.0, dash.StartingCash)
	assert.Len(t, dash.Trades, 2)
	require.NotNil(t, dash.Stats)
	assert.Equal(t, 1, dash.Stats.ClosedTrades)
	assert.Equal(t, 1, dash.Stats.OpenPositions)

	// the demo partition is untouched
	resp = s.do(http.MethodGet, "/api/transactions?account=demo", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var demo []json.RawMessage
	decode(t, resp, &demo)
	assert.Empty(t, demo)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(http.MethodGet, "/api/dashboard", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(http.MethodGet, "/api/dashboard", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthPostsRequireCSRF(t *testing.T) {
	s := newTestServer(t)
	raw, _ := json.Marshal(map[string]string{"email": "x@example.com", "password": "whatever1"})
	resp, err := s.srv.Client().Post(s.srv.URL+"/api/auth/login", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp("confirm@example.com", "correct-horse-9")

	resp := s.do(http.MethodDelete, "/api/transactions/some-id", token, nil)
	assert.Equal(t, http.StatusPreconditionRequired, resp.StatusCode)

	resp = s.do(http.MethodDelete, "/api/transactions/some-id?confirm=true", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLogoutRevokesSession(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp("logout@example.com", "correct-horse-9")

	resp := s.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = s.do(http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestInvalidAccountRejected(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp("account@example.com", "correct-horse-9")
	resp := s.do(http.MethodGet, "/api/trades?account=paper", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAIEndpointsWithoutKey(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp("ai@example.com", "correct-horse-9")
	resp := s.do(http.MethodPost, "/api/insights/performance", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, s.srv.URL+"/api/dashboard", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := s.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "X-Account")

	req, err = http.NewRequest(http.MethodOptions, s.srv.URL+"/api/dashboard", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://evil.example")
	resp2, err := s.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Empty(t, resp2.Header.Get("Access-Control-Allow-Origin"))
}

func TestUnknownAPIRouteIsJSON(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

const oddSymbolStatement = `Transaction History,Header,Date,Account,Description,Transaction Type,Symbol,Quantity,Price,Price Currency,Gross Amount ,Commission,Net Amount
Transaction History,Data,2024-01-10,U***1234,SPDR S&P 500,Buy,spy,1,470,USD,-470,-1,-471
Transaction History,Data,2024-01-11,U***1234,US T-NOTE,Buy,T 4 1/2 11/15/33,1000,0.99,USD,-990,-1,-991
Transaction History,Data,2024-01-12,U***1234,MAHINDRA,Buy,M&M,3,20,USD,-60,-1,-61
`

func TestTradeRoutesUseImportedSymbolVerbatim(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp("symbols@example.com", "correct-horse-9")

	resp := s.do(http.MethodPost, "/api/transactions/import", token, map[string]string{
		"source": "ibkr", "content": oddSymbolStatement,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for _, symbol := range []string{"spy", "T 4 1/2 11/15/33", "M&M"} {
		resp = s.do(http.MethodPut, "/api/trades/"+url.PathEscape(symbol)+"/strategy", token, map[string]string{"strategy": "Swing"})
		require.Equal(t, http.StatusOK, resp.StatusCode, symbol)
		var out struct {
			Updated int64 `json:"updated"`
		}
		decode(t, resp, &out)
		assert.Equal(t, int64(1), out.Updated, symbol)
	}

	// no case folding
	resp = s.do(http.MethodPut, "/api/trades/SPY/strategy", token, map[string]string{"strategy": "Swing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(http.MethodGet, "/api/trades", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var trades []struct {
		Symbol   string `json:"symbol"`
		Strategy string `json:"strategy"`
	}
	decode(t, resp, &trades)
	require.Len(t, trades, 3)
	for _, tr := range trades {
		assert.Equal(t, "Swing", tr.Strategy, tr.Symbol)
	}
}

func (s *testServer) storedObjects() int {
	s.t.Helper()
	n := 0
	err := filepath.WalkDir(s.storeRoot, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return err
	})
	require.NoError(s.t, err)
	return n
}

func TestEvidenceForUnknownSymbolLeavesNoObject(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp("evidence@example.com", "correct-horse-9")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "chart.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/api/trades/NOPE/evidence", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := s.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Zero(t, s.storedObjects())
}
