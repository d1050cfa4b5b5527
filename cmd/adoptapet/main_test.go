package main

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/adoptapet/internal/config"
	"github.com/kailas-cloud/adoptapet/internal/domain/pet"
	"github.com/kailas-cloud/adoptapet/internal/domain/search/kind"
	"github.com/kailas-cloud/adoptapet/internal/domain/search/request"
	"github.com/kailas-cloud/adoptapet/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/adoptapet/internal/logger"
)

func TestSearchConfig(t *testing.T) {
	sc := config.SearchConfig{
		PrimaryPartition: "petfinder",
		Partitions: []config.PartitionConfig{
			{Name: "petfinder", Proportion: 0.6},
			{Name: "oxford_iiit", Proportion: 0.4},
		},
		Oversample:      3,
		OversampleFloor: 5,
		EmbedTimeoutMs:  10000,
		FetchTimeoutMs:  2000,
		Retry:           config.RetryConfig{MaxAttempts: 3, BaseDelayMs: 50},
	}

	got, err := searchConfig(sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Primary != pet.PetFinder {
		t.Errorf("primary = %q", got.Primary)
	}
	if len(got.Shares) != 2 || got.Shares[1].Partition != pet.OxfordIIIT || got.Shares[1].Proportion != 0.4 {
		t.Errorf("shares = %+v", got.Shares)
	}
	if got.FetchTimeout != 2*time.Second || got.EmbedTimeout != 10*time.Second {
		t.Errorf("timeouts = %v / %v", got.FetchTimeout, got.EmbedTimeout)
	}
	if got.RetryAttempts != 3 || got.RetryBaseDelay != 50*time.Millisecond {
		t.Errorf("retry = %d / %v", got.RetryAttempts, got.RetryBaseDelay)
	}
}

func TestSearchConfig_UnknownPartition(t *testing.T) {
	sc := config.SearchConfig{
		PrimaryPartition: "petfinder",
		Partitions:       []config.PartitionConfig{{Name: "shelter_x", Proportion: 1}},
	}
	if _, err := searchConfig(sc); err == nil {
		t.Fatal("expected error for unknown partition")
	}
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	if _, err := openStore(config.DatabaseConfig{Driver: "mongo"}); err == nil {
		t.Fatal("expected error")
	}
}

func newSearchFlags(t *testing.T, image string, topK int) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{}
	cmd.Flags().String("image", image, "")
	cmd.Flags().Int("top-k", topK, "")
	return cmd
}

func TestQueryFromFlags(t *testing.T) {
	imgPath := filepath.Join(t.TempDir(), "beagle.jpg")
	if err := os.WriteFile(imgPath, []byte("jpeg bytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Run("text", func(t *testing.T) {
		q, err := queryFromFlags(newSearchFlags(t, "", 5), []string{"  fluffy cat "})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if q.Kind() != kind.Text || q.Text() != "fluffy cat" || q.TopK() != 5 {
			t.Errorf("got kind=%s text=%q top_k=%d", q.Kind(), q.Text(), q.TopK())
		}
	})

	t.Run("image", func(t *testing.T) {
		q, err := queryFromFlags(newSearchFlags(t, imgPath, 20), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if q.Kind() != kind.Image || q.Filename() != "beagle.jpg" {
			t.Errorf("got kind=%s filename=%q", q.Kind(), q.Filename())
		}
	})

	errCases := []struct {
		name  string
		image string
		topK  int
		args  []string
	}{
		{name: "both", image: imgPath, topK: 20, args: []string{"cat"}},
		{name: "empty", topK: 20, args: []string{"   "}},
		{name: "none", topK: 20},
		{name: "top_k zero", topK: 0, args: []string{"cat"}},
		{name: "top_k too large", topK: request.MaxTopK + 1, args: []string{"cat"}},
		{name: "missing image", image: filepath.Join(t.TempDir(), "nope.jpg"), topK: 20},
	}
	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := queryFromFlags(newSearchFlags(t, tc.image, tc.topK), tc.args); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRender(t *testing.T) {
	age := 14
	resp := &result.Response{
		SearchID: "abc",
		Query:    "orange tabby",
		Kind:     kind.Text,
		Listings: []result.ScoredItem{{
			Pet:       pet.Pet{ID: "pf-1", Name: "Milo", Species: pet.Cat, Breed: "Tabby", AgeMonths: &age},
			Score:     2.1,
			Partition: pet.PetFinder,
		}},
		TotalCandidates:  7,
		Elapsed:          42 * time.Millisecond,
		Degraded:         true,
		FailedPartitions: []pet.Partition{pet.OxfordIIIT},
	}

	var buf bytes.Buffer
	if err := render(&buf, resp); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"orange tabby", "Listings (1)", "Images (0)", "no matches",
		"Milo", "2.100", "14mo", "pf-1", "unavailable: oxford_iiit", "7 candidates",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWideEventMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	var ctxLogger *zap.Logger
	handler := chiMiddleware.RequestID(wideEventMiddleware(logger)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctxLogger = logpkg.FromContext(r.Context())
			w.WriteHeader(http.StatusTeapot)
		}),
	))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=cat", nil))

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
	if ctxLogger == nil || ctxLogger == logger {
		t.Error("expected a request-scoped logger in context")
	}
	entries := logs.FilterMessage("http_request").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 canonical line, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["status"]; got != int64(http.StatusTeapot) {
		t.Errorf("status field = %v", got)
	}
}

func TestJSONRecoverer(t *testing.T) {
	handler := jsonRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(errors.New("boom"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"internal_error"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}
