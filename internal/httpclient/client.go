// Package httpclient holds the HTTP client shared by the EDGAR and
// Yahoo fetchers.
package httpclient

import (
	"net/http"
	"time"
)

// Default is tuned for the scanner's two upstreams. Both EDGAR and
// Yahoo sit behind CDNs that reuse connections well, and a daily batch
// never needs a large pool. EDGAR's fair-access throttling is handled
// by the caller's rate limiter, not with retries here; a slow response
// past the header timeout is treated as a per-filing failure.
var Default = &http.Client{
	Timeout: 20 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       60 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ForceAttemptHTTP2:     true,
	},
}
