package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// Response is the raw result of one HTTP attempt, before any retry or
// tombstone decision is made.
type Response struct {
	URL         string
	StatusCode  int
	Headers     http.Header
	Body        []byte
	ContentType string
	Duration    time.Duration
}

// Client issues a single HTTP GET. The Fetcher layers rate limiting and
// retries on top of it.
type Client interface {
	Get(ctx context.Context, url string) (Response, error)
}

// CollyClientConfig controls collector behavior.
type CollyClientConfig struct {
	UserAgent     string
	Timeout       time.Duration
	RespectRobots bool
}

// CollyClient implements Client using the Colly collector.
type CollyClient struct {
	cfg  CollyClientConfig
	base *colly.Collector
}

// NewCollyClient builds a CollyClient with a pooled transport.
func NewCollyClient(cfg CollyClientConfig) *CollyClient {
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	c.AllowURLRevisit = true
	return &CollyClient{cfg: cfg, base: c}
}

// Get executes a single HTTP GET using Colly. Non-2xx responses come back
// with the status code populated and a nil error; the caller decides whether
// they are permanent or transient.
func (c *CollyClient) Get(ctx context.Context, url string) (Response, error) {
	collector := c.base.Clone()
	if c.cfg.UserAgent != "" {
		collector.UserAgent = c.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !c.cfg.RespectRobots
	timeout := c.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	start := time.Now()
	var (
		result   Response
		respErr  error
		received bool
	)
	collector.OnResponse(func(r *colly.Response) {
		result = Response{
			URL:         r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			Headers:     r.Headers.Clone(),
			Body:        append([]byte(nil), r.Body...),
			ContentType: r.Headers.Get("Content-Type"),
			Duration:    time.Since(start),
		}
		received = true
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			result = Response{
				URL:        url,
				StatusCode: r.StatusCode,
				Body:       append([]byte(nil), r.Body...),
				Duration:   time.Since(start),
			}
			if r.Headers != nil {
				result.Headers = r.Headers.Clone()
				result.ContentType = r.Headers.Get("Content-Type")
			}
			received = true
			return
		}
		respErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return Response{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if received {
			return result, nil
		}
		if respErr != nil {
			return Response{}, fmt.Errorf("http get %s: %w", url, respErr)
		}
		if err != nil {
			return Response{}, fmt.Errorf("http get %s: %w", url, err)
		}
		return Response{}, fmt.Errorf("http get %s: no response", url)
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
