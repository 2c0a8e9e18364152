package fetch

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"article-scraper/internal/scraper/model"
)

// Telemetry receives one callback per resolved HTTP attempt. Implementations
// must never fail the run; errors are swallowed on their side.
type Telemetry interface {
	LogRequest(ctx context.Context, ruleID, url string, statusCode *int, elapsed time.Duration, userAgent string, success bool, errMsg string)
}

// Result is the outcome of a page fetch.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       string
	UserAgent  string
	Elapsed    time.Duration
}

// Fetcher issues browser-like requests for one rule. Sleep and Rand are
// injection points so tests can run without real delays.
type Fetcher struct {
	Client    *http.Client
	Log       *zap.Logger
	RuleID    string
	Telemetry Telemetry
	Sleep     func(time.Duration)
	Rand      *rand.Rand
}

// New builds a Fetcher from the rule's anti-scraping and proxy configuration.
// The per-request timeout and proxy routing live on the HTTP client.
func New(rule *model.Rule, log *zap.Logger, sink Telemetry) *Fetcher {
	transport := &http.Transport{}
	if rule.Proxy.Enabled && rule.Proxy.ProxyURL != "" {
		if proxyURL, err := url.Parse(rule.Proxy.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		} else {
			log.Warn("Invalid proxy URL, fetching directly",
				zap.String("ruleId", rule.ID),
				zap.String("proxyUrl", rule.Proxy.ProxyURL),
				zap.Error(err),
			)
		}
	}
	return &Fetcher{
		Client: &http.Client{
			Transport: transport,
			Timeout:   rule.AntiScraping.Timeout(),
		},
		Log:       log,
		RuleID:    rule.ID,
		Telemetry: sink,
		Sleep:     time.Sleep,
		Rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// BuildHeaders assembles a browser-like header set per the rule config.
// Custom headers are merged last so they can override any default.
func (f *Fetcher) BuildHeaders(rawURL string, cfg model.AntiScrapingConfig) http.Header {
	h := http.Header{}
	ua := cfg.UserAgent
	if ua == "" || strings.EqualFold(ua, "random") {
		ua = PickUserAgent(UserAgentPool, f.Rand)
	}
	h.Set("User-Agent", ua)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	h.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	// Accept-Encoding is left to the transport so gzip bodies come back
	// decompressed.
	h.Set("Connection", "keep-alive")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "none")
	h.Set("Sec-Fetch-User", "?1")
	h.Set("Cache-Control", "max-age=0")

	if cfg.UseReferer {
		if u, err := url.Parse(rawURL); err == nil {
			h.Set("Referer", u.Scheme+"://"+u.Host)
		}
	}
	for k, v := range cfg.CustomHeaders {
		h.Set(k, v)
	}
	return h
}

// RandomDelay sleeps a uniform duration between min and max milliseconds.
func (f *Fetcher) RandomDelay(minMS, maxMS int) {
	d := time.Duration(minMS) * time.Millisecond
	if maxMS > minMS {
		d += time.Duration(f.Rand.Intn(maxMS-minMS+1)) * time.Millisecond
	}
	f.Sleep(d)
}

// Cookie-challenge handling is a small state machine so the single-retry
// guarantee stays auditable.
type cookieState int

const (
	noCookie cookieState = iota
	challengeDetected
	retried
)

var cookieAssignRe = regexp.MustCompile(`document\.cookie\s*=\s*"([^"]+)"`)

// looksLikeChallenge reports whether the body is the known anti-bot page that
// sets a cookie from script and reloads itself.
func looksLikeChallenge(body string) bool {
	return strings.Contains(body, "document.cookie") && strings.Contains(body, "window.location.reload")
}

// extractChallengeCookie pulls the name=value pair out of the challenge
// script, dropping any attributes after the first semicolon.
func extractChallengeCookie(body string) (string, bool) {
	m := cookieAssignRe.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return strings.SplitN(m[1], ";", 2)[0], true
}

// FetchWithRetry retrieves rawURL with up to retryTimes attempts. 429
// responses wait an escalating multiple of retryDelay, 5xx responses and
// network errors wait retryDelay plus jitter. When the body carries the
// cookie challenge, the extracted cookie is replayed in exactly one
// additional request and that response wins regardless of its content.
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string, headers http.Header, retryTimes int, retryDelay time.Duration, cookies []string) (*Result, error) {
	if retryTimes <= 0 {
		retryTimes = model.DefaultRetryTimes
	}
	currentCookies := append([]string(nil), cookies...)
	state := noCookie

	var lastErr error
	for i := 0; i < retryTimes; i++ {
		res, err := f.doRequest(ctx, rawURL, headers, currentCookies)
		if err != nil {
			lastErr = err
			f.Log.Warn("Fetch attempt failed",
				zap.String("url", rawURL),
				zap.Int("attempt", i+1),
				zap.Error(err),
			)
			if i < retryTimes-1 {
				f.sleepWithJitter(retryDelay)
			}
			continue
		}

		if state == noCookie && looksLikeChallenge(res.Body) {
			if cookie, ok := extractChallengeCookie(res.Body); ok {
				state = challengeDetected
				currentCookies = append(currentCookies, cookie)
				f.Log.Info("Cookie challenge detected, replaying with cookie",
					zap.String("url", rawURL),
					zap.String("cookie", cookie),
				)
				f.RandomDelay(2000, 3000)
				retryRes, retryErr := f.doRequest(ctx, rawURL, headers, currentCookies)
				state = retried
				if retryErr != nil {
					return nil, retryErr
				}
				return retryRes, nil
			}
		}

		if res.StatusCode == http.StatusTooManyRequests {
			wait := retryDelay * time.Duration(i+1) * 2
			f.Log.Warn("Rate limited by remote, backing off",
				zap.String("url", rawURL),
				zap.Int("attempt", i+1),
				zap.Duration("wait", wait),
			)
			f.Sleep(wait + time.Duration(f.Rand.Intn(2001))*time.Millisecond)
			continue
		}
		if res.StatusCode >= http.StatusInternalServerError {
			f.Log.Warn("Server error from remote, retrying",
				zap.String("url", rawURL),
				zap.Int("status", res.StatusCode),
				zap.Int("attempt", i+1),
			)
			f.sleepWithJitter(retryDelay)
			continue
		}
		return res, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("fetch %s: retries exhausted", rawURL)
	}
	return nil, lastErr
}

// FetchImage retrieves raw image bytes with a short fixed retry budget and
// the referer of the page that embedded it.
func (f *Fetcher) FetchImage(ctx context.Context, rawURL, userAgent, referer string) ([]byte, string, error) {
	headers := http.Header{}
	headers.Set("User-Agent", userAgent)
	headers.Set("Referer", referer)

	const attempts = 2
	const delay = 3000 * time.Millisecond

	var lastErr error
	for i := 0; i < attempts; i++ {
		res, err := f.doRaw(ctx, rawURL, headers, nil)
		if err == nil && res.statusCode < 400 {
			return res.body, res.contentType, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("fetch image %s: HTTP %d", rawURL, res.statusCode)
		}
		if i < attempts-1 {
			f.Sleep(delay)
		}
	}
	return nil, "", lastErr
}

func (f *Fetcher) sleepWithJitter(base time.Duration) {
	f.Sleep(base + time.Duration(f.Rand.Intn(2001))*time.Millisecond)
}

// doRequest performs one attempt and decodes the body to UTF-8 based on the
// response charset. Every resolved attempt is reported to the telemetry sink.
func (f *Fetcher) doRequest(ctx context.Context, rawURL string, headers http.Header, cookies []string) (*Result, error) {
	start := time.Now()
	res, err := f.doRaw(ctx, rawURL, headers, cookies)
	elapsed := time.Since(start)

	userAgent := headers.Get("User-Agent")
	if f.Telemetry != nil {
		if err != nil {
			f.Telemetry.LogRequest(ctx, f.RuleID, rawURL, nil, elapsed, userAgent, false, err.Error())
		} else {
			code := res.statusCode
			ok := code < 400
			msg := ""
			if !ok {
				msg = fmt.Sprintf("HTTP %d", code)
			}
			f.Telemetry.LogRequest(ctx, f.RuleID, rawURL, &code, elapsed, userAgent, ok, msg)
		}
	}
	if err != nil {
		return nil, err
	}

	bodyText, decErr := decodeBody(res.body, res.contentType)
	if decErr != nil {
		bodyText = string(res.body)
	}
	return &Result{
		StatusCode: res.statusCode,
		Header:     res.header,
		Body:       bodyText,
		UserAgent:  userAgent,
		Elapsed:    elapsed,
	}, nil
}

type rawResponse struct {
	statusCode  int
	header      http.Header
	contentType string
	body        []byte
}

func (f *Fetcher) doRaw(ctx context.Context, rawURL string, headers http.Header, cookies []string) (*rawResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header = headers.Clone()
	if len(cookies) > 0 {
		req.Header.Set("Cookie", strings.Join(cookies, "; "))
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			f.Log.Warn("Failed to close response body", zap.Error(cerr))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &rawResponse{
		statusCode:  resp.StatusCode,
		header:      resp.Header,
		contentType: resp.Header.Get("Content-Type"),
		body:        body,
	}, nil
}

func decodeBody(body []byte, contentType string) (string, error) {
	reader, err := charset.NewReader(strings.NewReader(string(body)), contentType)
	if err != nil {
		return "", err
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
