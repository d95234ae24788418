package itest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/httpapi"
	memcatalog "github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/memory/catalog"
	memclock "github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/memory/clock"
	memidempotency "github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/memory/idempotency"
	memsessionrepo "github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/memory/sessionrepo"
	memstepservice "github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/memory/stepservice"
	pgidempotency "github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/postgres/idempotency"
	pgsessionrepo "github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/postgres/sessionrepo"
	postgres_testutil "github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/postgres/testutil"
	redissessionrepo "github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/redis/sessionrepo"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/app/onboarding"
	idempotencyport "github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/idempotency"
	sessionrepoport "github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/sessionrepo"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendPostgres backend = "postgres"
	backendRedis    backend = "redis"
)

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "postgres":
		return []backend{backendPostgres}
	case "redis":
		return []backend{backendRedis}
	case "all":
		return []backend{backendMemory, backendPostgres, backendRedis}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|postgres|redis|all)")
		return nil
	}
}

type testServer struct {
	baseURL string
	client  *http.Client
	clock   *memclock.ManualClock
}

func newTestServer(t *testing.T, b backend) *testServer {
	t.Helper()

	clk := memclock.NewManualClock(time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC))

	var (
		sessions  sessionrepoport.Repository
		idemStore idempotencyport.Store
	)

	switch b {
	case backendPostgres:
		pool := postgres_testutil.OpenMigratedPool(t)
		sessions = pgsessionrepo.NewRepo(pool)
		idemStore = pgidempotency.NewStore(pool, idempotencyport.DefaultRetention)
	case backendRedis:
		mr := miniredis.RunT(t)
		client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		sessions = redissessionrepo.NewRepo(client, time.Hour)
		idemStore = memidempotency.NewStore(idempotencyport.DefaultRetention)
	case backendMemory:
		sessions = memsessionrepo.NewRepo()
		idemStore = memidempotency.NewStore(idempotencyport.DefaultRetention)
	default:
		t.Fatalf("unknown backend: %s", b)
	}

	steps := memstepservice.NewSimulator(clk, memcatalog.DefaultCoverages)
	svc := onboarding.NewService(sessions, steps, clk, onboarding.ControllerOptions{})
	catalog := onboarding.NewCoverageCatalog(memcatalog.NewSource(memcatalog.DefaultCoverages), onboarding.CatalogOptions{})
	handler := httpapi.NewRouter(httpapi.NewServer(svc, catalog, idemStore, nil))

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		baseURL: srv.URL,
		client:  srv.Client(),
		clock:   clk,
	}
}

func (s *testServer) url(path string) string {
	if strings.HasPrefix(path, "/") {
		return s.baseURL + path
	}
	return s.baseURL + "/" + path
}

func (s *testServer) doJSON(t *testing.T, method string, path string, body any, headers ...string) (int, []byte, http.Header) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.url(path), r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, resp.Header
}

type errorResponse struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestId string `json:"requestId"`
	} `json:"error"`
}

type sessionResponse struct {
	Outcome string `json:"outcome"`
	Session struct {
		SessionId    string         `json:"sessionId"`
		ClientType   *string        `json:"clientType"`
		CurrentStep  string         `json:"currentStep"`
		Steps        []string       `json:"steps"`
		IsFirstStep  bool           `json:"isFirstStep"`
		IsLastStep   bool           `json:"isLastStep"`
		ErrorMessage *string        `json:"errorMessage"`
		Record       map[string]any `json:"record"`
		Rows         []struct {
			ID      string  `json:"id"`
			Name    string  `json:"name"`
			Premium float64 `json:"premium"`
		} `json:"coveragePremiumRows"`
		CompletedAt *time.Time `json:"completedAt"`
	} `json:"session"`
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireStatus(t *testing.T, status int, body []byte, want int) {
	t.Helper()
	if status != want {
		t.Fatalf("status=%d want=%d body=%s", status, want, string(body))
	}
}

func requireErrorCode(t *testing.T, status int, body []byte, wantStatus int, wantCode string) {
	t.Helper()
	requireStatus(t, status, body, wantStatus)
	got := mustUnmarshal[errorResponse](t, body)
	if got.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", got.Error.Code, wantCode, string(body))
	}
}

func requireHeaderPresent(t *testing.T, h http.Header, key string) {
	t.Helper()
	if strings.TrimSpace(h.Get(key)) == "" {
		t.Fatalf("expected header %q to be present", key)
	}
}
