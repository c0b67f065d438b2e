// Package edgar fetches Form 4 filings from SEC EDGAR: the current-events
// atom feed for discovery, then the filing index for the primary XML
// document. All requests carry the declared User-Agent and go through a
// shared rate limiter per SEC fair-access guidance.
package edgar

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/bighogz/form4-scanner/internal/config"
	"github.com/bighogz/form4-scanner/internal/httpclient"
)

const (
	baseURL = "https://www.sec.gov"
	feedURL = baseURL + "/cgi-bin/browse-edgar?action=getcurrent&type=4&company=&dateb=&owner=only&count=%d&output=atom"
)

// Filing is one entry discovered in the current-events feed.
type Filing struct {
	AccessionNumber string
	CIK             string
	Title           string
	Updated         string
	IndexURL        string
}

// Client talks to EDGAR.
type Client struct {
	http      *http.Client
	userAgent string
	feedCount int
	limiter   *rate.Limiter
	log       zerolog.Logger
}

// New returns an EDGAR client configured per SEC fair-access rules.
func New(cfg config.EdgarConfig, log zerolog.Logger) *Client {
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 6
	}
	count := cfg.FeedCount
	if count <= 0 {
		count = 100
	}
	return &Client{
		http:      httpclient.Default,
		userAgent: cfg.UserAgent,
		feedCount: count,
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		log:       log.With().Str("component", "edgar").Logger(),
	}
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title   string   `xml:"title"`
	Updated string   `xml:"updated"`
	Link    atomLink `xml:"link"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
}

// Filing index URLs look like
// /Archives/edgar/data/320193/000032019324000001/0000320193-24-000001-index.htm
var indexLinkRe = regexp.MustCompile(`/Archives/edgar/data/(\d+)/\d+/(\d{10}-\d{2}-\d{6})-index`)

// RecentFilings returns the newest Form 4 entries from the current-events
// feed. Entries whose link doesn't carry a recognizable accession number
// are dropped.
func (c *Client) RecentFilings(ctx context.Context) ([]Filing, error) {
	body, err := c.get(ctx, fmt.Sprintf(feedURL, c.feedCount))
	if err != nil {
		return nil, fmt.Errorf("fetch filing feed: %w", err)
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parse filing feed: %w", err)
	}

	filings := make([]Filing, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		m := indexLinkRe.FindStringSubmatch(e.Link.Href)
		if m == nil {
			c.log.Debug().Str("href", e.Link.Href).Msg("feed entry without accession link")
			continue
		}
		filings = append(filings, Filing{
			AccessionNumber: m[2],
			CIK:             m[1],
			Title:           e.Title,
			Updated:         e.Updated,
			IndexURL:        e.Link.Href,
		})
	}
	c.log.Debug().Int("entries", len(feed.Entries)).Int("filings", len(filings)).Msg("fetched feed")
	return filings, nil
}

type filingIndex struct {
	Directory struct {
		Items []struct {
			Name string `json:"name"`
		} `json:"item"`
	} `json:"directory"`
}

// FetchForm4 downloads the primary Form 4 XML document for a filing.
// It reads the filing's index.json to find the document; when the index
// is unhelpful it falls back to the conventional primary_doc.xml name.
func (c *Client) FetchForm4(ctx context.Context, f Filing) ([]byte, error) {
	dir := fmt.Sprintf("%s/Archives/edgar/data/%s/%s",
		baseURL, f.CIK, strings.ReplaceAll(f.AccessionNumber, "-", ""))

	docName := "primary_doc.xml"
	if body, err := c.get(ctx, dir+"/index.json"); err == nil {
		var idx filingIndex
		if err := json.Unmarshal(body, &idx); err == nil {
			if name := pickForm4Doc(idx); name != "" {
				docName = name
			}
		}
	} else {
		c.log.Debug().Str("accession", f.AccessionNumber).Err(err).Msg("index.json unavailable, trying primary_doc.xml")
	}

	body, err := c.get(ctx, dir+"/"+docName)
	if err != nil {
		return nil, fmt.Errorf("fetch form4 document %s: %w", docName, err)
	}
	return body, nil
}

// pickForm4Doc chooses the form XML from an index listing: any .xml
// that isn't the full-text submission wrapper.
func pickForm4Doc(idx filingIndex) string {
	for _, item := range idx.Directory.Items {
		name := strings.ToLower(item.Name)
		if strings.HasSuffix(name, ".xml") && !strings.HasPrefix(name, "0") {
			return item.Name
		}
	}
	return ""
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
