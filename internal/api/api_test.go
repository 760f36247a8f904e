package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"micropaper/internal/apperr"
	"micropaper/internal/config"
	"micropaper/internal/domain"
	"micropaper/internal/isin"
	"micropaper/internal/issuance"
	"micropaper/internal/middleware"
	"micropaper/internal/registry"
	"micropaper/internal/utils"
	"micropaper/internal/validator"
)

const (
	verifiedWallet   = "0x1234567890123456789012345678901234567890"
	unverifiedWallet = "0x9999999999999999999999999999999999999999"
	walletA          = "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	err     error
}

func (a *recordingAuditor) Audit(_ context.Context, e domain.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return a.err
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type envelope struct {
	Error struct {
		Code    string                  `json:"code"`
		Message string                  `json:"message"`
		Details []apperr.FieldViolation `json:"details"`
	} `json:"error"`
	RequestID string `json:"requestId"`
}

type APISuite struct {
	suite.Suite
	cfg     *config.Config
	reg     *registry.Registry
	auditor *recordingAuditor
	router  *gin.Engine
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	s.cfg = &config.Config{
		Environment:    "test",
		APIKey:         "test-key",
		AllowedOrigins: []string{"http://localhost:3000"},
	}
	s.reg = registry.New(nil)
	s.reg.Seed(context.Background(), []string{verifiedWallet})
	s.auditor = &recordingAuditor{}
	s.router = s.build(nil)
}

func (s *APISuite) build(hc HealthChecker) *gin.Engine {
	return NewRouter(Deps{
		Config:   s.cfg,
		Registry: s.reg,
		Issuer:   issuance.New(s.reg, isin.NewGenerator(nil, 0)),
		Auditor:  s.auditor,
		Health:   hc,
	})
}

func (s *APISuite) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		s.Require().NoError(json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderAPIKey, s.cfg.APIKey)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *APISuite) json(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *APISuite) envelope(w *httptest.ResponseRecorder) envelope {
	var env envelope
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	s.NotEmpty(env.RequestID)
	s.Equal(w.Header().Get(middleware.HeaderRequestID), env.RequestID)
	return env
}

func maturity(days int) string {
	return time.Now().Add(time.Duration(days) * 24 * time.Hour).UTC().Format(time.RFC3339)
}

func (s *APISuite) stats() map[string]any {
	w := s.do(http.MethodGet, "/api/compliance/stats", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	return s.json(w)
}

// Scenario A
func (s *APISuite) TestVerifyIncrementsStats() {
	before := s.stats()["verifiedWallets"].(float64)

	w := s.do(http.MethodPost, "/api/compliance/verify/"+walletA, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	body := s.json(w)
	s.Equal(true, body["success"])
	s.Equal("Wallet "+walletA+" marked as verified", body["message"])
	s.NotEmpty(body["requestId"])

	after := s.stats()
	s.Equal(before+1, after["verifiedWallets"])
	s.Equal(float64(2), after["totalWallets"])
	s.Equal("100.00%", after["verificationRate"])

	w = s.do(http.MethodGet, "/api/compliance/"+strings.ToLower(walletA), nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(true, s.json(w)["isVerified"])
}

func (s *APISuite) TestVerifyIsIdempotent() {
	for range 3 {
		w := s.do(http.MethodPost, "/api/compliance/verify/"+walletA, nil)
		s.Require().Equal(http.StatusOK, w.Code)
	}
	s.Equal(float64(2), s.stats()["verifiedWallets"])
}

// Scenario B
func (s *APISuite) TestIssueToVerifiedWallet() {
	w := s.do(http.MethodPost, "/api/custodian/issue", gin.H{
		"walletAddress": verifiedWallet,
		"amount":        100000,
		"maturityDate":  maturity(90),
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	body := s.json(w)
	id, _ := body["isin"].(string)
	s.Len(id, 12)
	s.True(isin.Valid(id))
	s.Equal("ISSUED", body["status"])
	s.NotEmpty(body["requestId"])
	_, err := time.Parse(time.RFC3339Nano, body["issuedAt"].(string))
	s.NoError(err)

	w = s.do(http.MethodGet, "/api/custodian/notes/"+id, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	note := s.json(w)["note"].(map[string]any)
	s.Equal(verifiedWallet, note["walletAddress"])
	s.Equal(float64(100000), note["amount"])

	w = s.do(http.MethodGet, "/api/custodian/notes?walletAddress="+verifiedWallet, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(float64(1), s.json(w)["count"])
}

// Scenario C
func (s *APISuite) TestIssueRejectsNonMultipleAmount() {
	w := s.do(http.MethodPost, "/api/custodian/issue", gin.H{
		"walletAddress": verifiedWallet,
		"amount":        15000,
		"maturityDate":  maturity(90),
	})
	s.Require().Equal(http.StatusBadRequest, w.Code)
	env := s.envelope(w)
	s.Equal(apperr.CodeValidation, env.Error.Code)
	s.Require().Len(env.Error.Details, 1)
	s.Equal(validator.FieldAmount, env.Error.Details[0].Field)
	s.Contains(env.Error.Details[0].Message, "not a multiple of 10000")
}

// Scenario D
func (s *APISuite) TestIssueToUnverifiedWallet() {
	w := s.do(http.MethodPost, "/api/custodian/issue", gin.H{
		"walletAddress": unverifiedWallet,
		"amount":        50000,
		"maturityDate":  maturity(30),
	})
	s.Require().Equal(http.StatusBadRequest, w.Code)
	env := s.envelope(w)
	s.Equal(apperr.CodeWalletNotVerified, env.Error.Code)
	s.Empty(s.reg.Issuances(""))
	s.False(s.reg.GetStatus(unverifiedWallet).IsVerified)
}

// Scenario E
func (s *APISuite) TestIssueRejectsMaturityBeyondHorizon() {
	w := s.do(http.MethodPost, "/api/custodian/issue", gin.H{
		"walletAddress": verifiedWallet,
		"amount":        100000,
		"maturityDate":  maturity(300),
	})
	s.Require().Equal(http.StatusBadRequest, w.Code)
	env := s.envelope(w)
	s.Require().Len(env.Error.Details, 1)
	s.Equal(validator.FieldMaturityDate, env.Error.Details[0].Field)
	s.Equal(validator.IssueBeyondHorizon, env.Error.Details[0].Issue)
	s.Contains(env.Error.Details[0].Message, "horizon")
}

func (s *APISuite) TestIssueMalformedBody() {
	w := s.do(http.MethodPost, "/api/custodian/issue", "{not json")
	s.Require().Equal(http.StatusBadRequest, w.Code)
	env := s.envelope(w)
	s.Require().Len(env.Error.Details, 1)
	s.Equal(validator.FieldBody, env.Error.Details[0].Field)
	s.Equal(validator.IssueMalformedBody, env.Error.Details[0].Issue)
}

func (s *APISuite) TestIssueReportsEveryViolation() {
	w := s.do(http.MethodPost, "/api/custodian/issue", gin.H{
		"walletAddress": "not-a-wallet",
		"amount":        5000,
		"maturityDate":  "yesterday",
	})
	s.Require().Equal(http.StatusBadRequest, w.Code)
	fields := map[string]bool{}
	for _, d := range s.envelope(w).Error.Details {
		fields[d.Field] = true
	}
	s.Equal(map[string]bool{
		validator.FieldWalletAddress: true,
		validator.FieldAmount:        true,
		validator.FieldMaturityDate:  true,
	}, fields)
}

func (s *APISuite) TestIssueWrongJSONTypesReportPerField() {
	w := s.do(http.MethodPost, "/api/custodian/issue", `{"walletAddress":123,"amount":15000,"maturityDate":"x"}`)
	s.Require().Equal(http.StatusBadRequest, w.Code)
	env := s.envelope(w)
	s.Equal(apperr.CodeValidation, env.Error.Code)
	issues := map[string]string{}
	for _, d := range env.Error.Details {
		issues[d.Field] = d.Issue
	}
	s.Equal(map[string]string{
		validator.FieldWalletAddress: validator.IssueInvalidFormat,
		validator.FieldAmount:        validator.IssueNotMultiple,
		validator.FieldMaturityDate:  validator.IssueInvalidFormat,
	}, issues)
	s.Empty(s.reg.Issuances(""))
}

func (s *APISuite) TestUnknownRouteUsesEnvelope() {
	w := s.do(http.MethodGet, "/api/nope", nil)
	s.Require().Equal(http.StatusNotFound, w.Code)
	env := s.envelope(w)
	s.Equal(apperr.CodeNotFound, env.Error.Code)
	s.Contains(env.Error.Message, "/api/nope")
}

func (s *APISuite) TestUnknownMethodUsesEnvelope() {
	w := s.do(http.MethodPut, "/api/custodian/issue", nil)
	s.Require().Equal(http.StatusMethodNotAllowed, w.Code)
	env := s.envelope(w)
	s.Equal(apperr.CodeMethodNotAllowed, env.Error.Code)
	s.Contains(env.Error.Message, http.MethodPut)
}

func (s *APISuite) TestVerifyWithProfileGatesIssuance() {
	w := s.do(http.MethodPost, "/api/compliance/verify/"+walletA, gin.H{
		"investorTier": "Retail",
		"jurisdiction": "us",
	})
	s.Require().Equal(http.StatusOK, w.Code)

	body := s.json(s.do(http.MethodGet, "/api/compliance/"+walletA, nil))
	s.Equal(true, body["isVerified"])
	s.Equal("retail", body["investorTier"])
	s.Equal("US", body["jurisdiction"])

	w = s.do(http.MethodPost, "/api/custodian/issue", gin.H{
		"walletAddress": walletA,
		"amount":        100000,
		"maturityDate":  maturity(90),
	})
	s.Require().Equal(http.StatusBadRequest, w.Code)
	s.Equal(apperr.CodeInvestorIneligible, s.envelope(w).Error.Code)
	s.Empty(s.reg.Issuances(walletA))

	w = s.do(http.MethodPost, "/api/compliance/verify/"+walletA, gin.H{"investorTier": "institutional"})
	s.Require().Equal(http.StatusOK, w.Code)
	w = s.do(http.MethodPost, "/api/custodian/issue", gin.H{
		"walletAddress": walletA,
		"amount":        100000,
		"maturityDate":  maturity(90),
	})
	s.Equal(http.StatusOK, w.Code)
}

func (s *APISuite) TestVerifyRejectsInvalidProfile() {
	w := s.do(http.MethodPost, "/api/compliance/verify/"+walletA, gin.H{
		"investorTier": "whale",
		"jurisdiction": "U$",
	})
	s.Require().Equal(http.StatusBadRequest, w.Code)
	fields := map[string]bool{}
	for _, d := range s.envelope(w).Error.Details {
		fields[d.Field] = true
	}
	s.Equal(map[string]bool{validator.FieldInvestorTier: true, validator.FieldJurisdiction: true}, fields)
	s.False(s.reg.GetStatus(walletA).IsVerified)

	w = s.do(http.MethodPost, "/api/compliance/verify/"+walletA, "{oops")
	s.Require().Equal(http.StatusBadRequest, w.Code)
	s.Equal(validator.IssueMalformedBody, s.envelope(w).Error.Details[0].Issue)
	s.False(s.reg.GetStatus(walletA).IsVerified)
}

func (s *APISuite) TestStatusOfUnseenWalletHasNoSideEffect() {
	w := s.do(http.MethodGet, "/api/compliance/"+unverifiedWallet, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	body := s.json(w)
	s.Equal(false, body["isVerified"])
	s.Equal(w.Header().Get(middleware.HeaderRequestID), body["requestId"])
	s.Equal(float64(1), s.stats()["totalWallets"])
}

func (s *APISuite) TestInvalidAddress() {
	w := s.do(http.MethodGet, "/api/compliance/0x123", nil)
	s.Require().Equal(http.StatusBadRequest, w.Code)
	s.Equal(validator.FieldWalletAddress, s.envelope(w).Error.Details[0].Field)

	w = s.do(http.MethodPost, "/api/compliance/verify/bogus", nil)
	s.Require().Equal(http.StatusBadRequest, w.Code)
	s.Equal(float64(1), s.stats()["totalWallets"])
}

func (s *APISuite) TestAuditTrail() {
	s.do(http.MethodGet, "/api/compliance/"+walletA, nil, middleware.HeaderRequestID, "req-1")
	s.do(http.MethodPost, "/api/compliance/verify/"+walletA, nil, middleware.HeaderRequestID, "req-2")

	s.Require().Len(s.auditor.entries, 2)
	s.Equal(domain.AuditCheckStatus, s.auditor.entries[0].Action)
	s.Equal("req-1", s.auditor.entries[0].RequestID)
	s.Equal(strings.ToLower(walletA), s.auditor.entries[0].WalletAddress)
	s.Equal(domain.AuditVerify, s.auditor.entries[1].Action)
	s.Equal(registry.VerifiedByAdmin, s.auditor.entries[1].PerformedBy)
}

func (s *APISuite) TestAuditFailureDoesNotFailRequest() {
	s.auditor.err = errors.New("journal down")
	w := s.do(http.MethodPost, "/api/compliance/verify/"+walletA, nil)
	s.Equal(http.StatusOK, w.Code)
}

func (s *APISuite) TestVerifiedList() {
	s.do(http.MethodPost, "/api/compliance/verify/"+walletA, nil)
	w := s.do(http.MethodGet, "/api/compliance/verified", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	body := s.json(w)
	s.Equal(float64(2), body["count"])
	s.Equal([]any{verifiedWallet, strings.ToLower(walletA)}, body["verifiedWallets"])
}

func (s *APISuite) TestNoteNotFound() {
	w := s.do(http.MethodGet, "/api/custodian/notes/USMOCK123455", nil)
	s.Require().Equal(http.StatusNotFound, w.Code)
	s.Equal(apperr.CodeNotFound, s.envelope(w).Error.Code)
}

func (s *APISuite) TestMissingAPIKey() {
	req := httptest.NewRequest(http.MethodGet, "/api/compliance/stats", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Require().Equal(http.StatusUnauthorized, w.Code)
	s.Equal(apperr.CodeUnauthorized, s.envelope(w).Error.Code)
}

func (s *APISuite) TestAdminKeyGuardsVerify() {
	s.cfg.AdminKey = "admin-key"
	s.router = s.build(nil)

	w := s.do(http.MethodPost, "/api/compliance/verify/"+walletA, nil)
	s.Require().Equal(http.StatusForbidden, w.Code)
	s.Equal(apperr.CodeForbidden, s.envelope(w).Error.Code)
	s.False(s.reg.GetStatus(walletA).IsVerified)

	w = s.do(http.MethodPost, "/api/compliance/verify/"+walletA, nil, middleware.HeaderAdminKey, "admin-key")
	s.Equal(http.StatusOK, w.Code)
}

func (s *APISuite) TestMockPrefixAliases() {
	w := s.do(http.MethodGet, "/api/mock/compliance/"+verifiedWallet, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(true, s.json(w)["isVerified"])

	w = s.do(http.MethodGet, "/api/mock/custodian/health", nil)
	s.Equal(http.StatusOK, w.Code)
}

func (s *APISuite) TestHealth() {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Require().Equal(http.StatusOK, w.Code)
	body := s.json(w)
	s.Equal("healthy", body["status"])
	s.Equal(ServiceName, body["service"])
	s.Equal(ServiceVersion, body["version"])
	s.Equal(DatabaseDisconnected, body["database"])

	s.router = s.build(pingFunc(func(context.Context) error { return errors.New("refused") }))
	w = s.do(http.MethodGet, "/health", nil)
	s.Equal(DatabaseError, s.json(w)["database"])

	s.router = s.build(pingFunc(func(context.Context) error { return nil }))
	w = s.do(http.MethodGet, "/health", nil)
	s.Equal(DatabaseConnected, s.json(w)["database"])
}

func (s *APISuite) TestInfoEndpoints() {
	for _, path := range []string{"/", "/api/custodian/info", "/api/compliance/info", "/api/compliance/health"} {
		w := s.do(http.MethodGet, path, nil)
		s.Equal(http.StatusOK, w.Code, path)
	}
}

func (s *APISuite) TestMetricsEndpoint() {
	s.do(http.MethodGet, "/api/compliance/stats", nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "micropaper_http_request_duration_seconds")
}

func TestConcurrentIssuanceOverHTTP(t *testing.T) {
	reg := registry.New(nil)
	reg.Seed(context.Background(), []string{verifiedWallet})
	r := NewRouter(Deps{
		Config:   &config.Config{Environment: "test"},
		Registry: reg,
		Issuer:   issuance.New(reg, isin.NewGenerator(nil, 0)),
	})

	const n = 32
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload, _ := json.Marshal(gin.H{"walletAddress": verifiedWallet, "amount": 20000, "maturityDate": maturity(10)})
			req := httptest.NewRequest(http.MethodPost, "/api/custodian/issue", bytes.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			var body map[string]any
			if w.Code == http.StatusOK && json.Unmarshal(w.Body.Bytes(), &body) == nil {
				ids <- body["isin"].(string)
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		require.False(t, seen[id], "duplicate isin %s", id)
		seen[id] = true
	}
	require.Len(t, seen, n)
	require.Len(t, reg.Issuances(verifiedWallet), n)
}

func newCachedRouter(t *testing.T) (*gin.Engine, *registry.Registry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	reg := registry.New(nil)
	reg.Seed(context.Background(), []string{verifiedWallet})
	r := NewRouter(Deps{
		Config:   &config.Config{Environment: "test"},
		Registry: reg,
		Issuer:   issuance.New(reg, isin.NewGenerator(nil, 0)),
		Cache:    utils.NewReadCache(rdb, time.Minute),
	})
	return r, reg, mr
}

func get(t *testing.T, r http.Handler, path string) map[string]any {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestComplianceStatsCache(t *testing.T) {
	r, reg, mr := newCachedRouter(t)
	statsKey := "micropaper:" + utils.GenerationKey(utils.KeyComplianceStats, reg.Generation())

	t.Run("miss computes and stores", func(t *testing.T) {
		body := get(t, r, "/api/compliance/stats")
		assert.Equal(t, float64(1), body["totalWallets"])
		assert.True(t, mr.Exists(statsKey))
		assert.Equal(t, time.Minute, mr.TTL(statsKey))
	})

	t.Run("hit is served from redis", func(t *testing.T) {
		require.NoError(t, mr.Set(statsKey, `{"totalWallets":42,"verifiedWallets":41,"unverifiedWallets":1,"verificationRate":"97.62%"}`))
		body := get(t, r, "/api/compliance/stats")
		assert.Equal(t, float64(42), body["totalWallets"])
		assert.Equal(t, "97.62%", body["verificationRate"])
	})

	t.Run("verify moves readers off the old entry", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/compliance/verify/"+walletA, nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.False(t, mr.Exists(statsKey), "superseded entry is deleted")

		body := get(t, r, "/api/compliance/stats")
		assert.Equal(t, float64(2), body["totalWallets"])
		assert.Equal(t, float64(2), body["verifiedWallets"])
	})

	t.Run("stale entry for an old generation is never served", func(t *testing.T) {
		require.NoError(t, mr.Set(statsKey, `{"totalWallets":42}`))
		body := get(t, r, "/api/compliance/stats")
		assert.Equal(t, float64(2), body["totalWallets"])
	})
}

func TestVerifiedWalletsCache(t *testing.T) {
	r, reg, mr := newCachedRouter(t)
	key := "micropaper:" + utils.GenerationKey(utils.KeyComplianceVerified, reg.Generation())

	body := get(t, r, "/api/compliance/verified")
	assert.Equal(t, float64(1), body["count"])
	assert.True(t, mr.Exists(key))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/compliance/verify/"+walletA, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, mr.Exists(key))
	assert.Equal(t, float64(2), get(t, r, "/api/compliance/verified")["count"])
}

func TestComplianceCacheOutageFallsBackToRegistry(t *testing.T) {
	r, _, mr := newCachedRouter(t)
	mr.Close()
	assert.Equal(t, float64(1), get(t, r, "/api/compliance/stats")["totalWallets"])
	assert.Equal(t, float64(1), get(t, r, "/api/compliance/verified")["count"])
}
