package api

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"article-scraper/internal/scraper/fetch"
	"article-scraper/internal/scraper/model"
	"article-scraper/internal/scraper/scrape"
)

type stubRules struct {
	rule *model.Rule
}

func (s *stubRules) Get(_ context.Context, id string) (*model.Rule, error) {
	if s.rule == nil || s.rule.ID != id {
		return nil, scrape.ErrRuleNotFound
	}
	return s.rule, nil
}

type stubArticles struct{}

func (stubArticles) Insert(_ context.Context, _ *model.Article) (string, error) {
	return "article-1", nil
}

type stubRecorder struct{}

func (stubRecorder) Begin(_ context.Context, _, _ string) (string, error) { return "h1", nil }
func (stubRecorder) Complete(_ context.Context, _, _ string, _ *model.ScrapedArticle, _ int) error {
	return nil
}
func (stubRecorder) Fail(_ context.Context, _, _ string) error     { return nil }
func (stubRecorder) BumpSuccess(_ context.Context, _ string) error { return nil }
func (stubRecorder) BumpFail(_ context.Context, _ string) error    { return nil }

type stubGovernor struct {
	allow bool
}

func (g *stubGovernor) CanProceed(_ context.Context, _ *model.Rule) (bool, error) {
	return g.allow, nil
}
func (g *stubGovernor) RecordRequest(_ context.Context, _ string) error { return nil }
func (g *stubGovernor) Release(_ context.Context, _ string)             {}

func newTestServer(t *testing.T, gov *stubGovernor) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<h1 class="title">T</h1><div class="body">content here</div>`))
	}))
	t.Cleanup(site.Close)

	rule := &model.Rule{
		ID:              "rule-1",
		SourceURL:       site.URL,
		TitleSelector:   "h1.title",
		ContentSelector: "div.body",
		AntiScraping:    model.AntiScrapingConfig{UserAgent: "ua", DelayMinMS: 1, DelayMaxMS: 1},
	}

	runner := &scrape.Runner{
		Rules:    &stubRules{rule: rule},
		Articles: stubArticles{},
		Recorder: stubRecorder{},
		Governor: gov,
		Log:      zap.NewNop(),
		NewFetcher: func(r *model.Rule) *fetch.Fetcher {
			return &fetch.Fetcher{
				Client: site.Client(),
				Log:    zap.NewNop(),
				Sleep:  func(time.Duration) {},
				Rand:   rand.New(rand.NewSource(1)),
			}
		},
	}
	return &Server{Runner: runner, Log: zap.NewNop()}
}

// TestRunScrape_Success verifies the success envelope.
func TestRunScrape_Success(t *testing.T) {
	srv := newTestServer(t, &stubGovernor{allow: true})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/scrape", strings.NewReader(`{"ruleId":"rule-1"}`))
	req.Header.Set("Content-Type", "application/json")

	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"success":true`)
	assert.Contains(t, body, `"article_id":"article-1"`)
	assert.Contains(t, body, `"images_downloaded":0`)
}

// TestRunScrape_MissingRuleID verifies the binding failure response.
func TestRunScrape_MissingRuleID(t *testing.T) {
	srv := newTestServer(t, &stubGovernor{allow: true})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/scrape", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "ruleId is required")
}

// TestRunScrape_UnknownRule maps the sentinel to 404.
func TestRunScrape_UnknownRule(t *testing.T) {
	srv := newTestServer(t, &stubGovernor{allow: true})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/scrape", strings.NewReader(`{"ruleId":"ghost"}`))
	req.Header.Set("Content-Type", "application/json")

	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestRunScrape_RateLimited maps the sentinel to 429.
func TestRunScrape_RateLimited(t *testing.T) {
	srv := newTestServer(t, &stubGovernor{allow: false})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/scrape", strings.NewReader(`{"ruleId":"rule-1"}`))
	req.Header.Set("Content-Type", "application/json")

	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "rate limit")
}

// TestPaging verifies defaults and the upper bound.
func TestPaging(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		query     string
		wantPage  int
		wantLimit int
	}{
		{"", 1, 20},
		{"?page=3&limit=50", 3, 50},
		{"?page=0&limit=0", 1, 20},
		{"?page=-1&limit=9999", 1, 20},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/history"+tc.query, nil)
		page, limit := paging(c)
		assert.Equal(t, tc.wantPage, page, tc.query)
		assert.Equal(t, tc.wantLimit, limit, tc.query)
	}
}
