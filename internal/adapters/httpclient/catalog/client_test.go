package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/contracttest"
	portcatalog "github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/catalog"
)

func serve(t *testing.T, status int, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestParseCoverages_Shapes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		want int
	}{
		{"bare array", `[{"id":"A","name":"Alpha"},{"id":"B","name":"Beta"}]`, 2},
		{"capitalized keys", `[{"Id":"A","Name":"Alpha"}]`, 1},
		{"wrapped", `{"coverages":[{"id":"A","name":"Alpha"}]}`, 1},
		{"skips items without id", `[{"name":"Nameless"},{"id":"B","name":"Beta"}]`, 1},
		{"empty", `[]`, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseCoverages([]byte(tc.body))
			if err != nil {
				t.Fatalf("ParseCoverages err=%v", err)
			}
			if len(got) != tc.want {
				t.Fatalf("got=%+v, want %d items", got, tc.want)
			}
			if tc.want > 0 && got[len(got)-1].Name == "" {
				t.Fatalf("name not parsed: %+v", got)
			}
		})
	}
}

func TestParseCoverages_Rejects(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`not json`, `{"items":[]}`} {
		if _, err := ParseCoverages([]byte(body)); err == nil {
			t.Fatalf("ParseCoverages(%q) expected error", body)
		}
	}
}

func TestClient_HTTPError(t *testing.T) {
	t.Parallel()

	url := serve(t, 503, `{"message":"down"}`)
	if _, err := NewClient(url, time.Second, nil).ListCoverages(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestContract_HTTPCoverageSource(t *testing.T) {
	url := serve(t, 200, `[{"id":"CASCO","name":"Casco"},{"Id":"GLASS","Name":"Glass Breakage"},{"id":"THEFT","name":"Theft"}]`)

	contracttest.RunCoverageSource(t, func(t *testing.T) (portcatalog.Source, func()) {
		t.Helper()
		return NewClient(url, time.Second, nil), nil
	})
}
