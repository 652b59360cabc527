// Package courtlistener is a client for the CourtListener v4 case-law
// search API. Raw hits arrive as loosely shaped JSON objects; the client
// normalizes them into Case records before the pipeline sees them.
package courtlistener

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://www.courtlistener.com"
	searchPath     = "/api/rest/v4/search/"

	// DefaultSearchTimeout bounds one search round trip.
	DefaultSearchTimeout = 20 * time.Second

	DefaultPage     = 1
	DefaultPageSize = 10
)

// Query carries the search text plus optional filters. The zero values of
// the optional fields mean "not set".
type Query struct {
	Text      string
	Page      int
	PageSize  int
	Court     string
	CourtID   string
	// StartDate and EndDate bound the decision date, ISO format.
	StartDate string
	EndDate   string
	// Extra is merged verbatim into the outbound query parameters.
	Extra map[string]string
}

// Case is one normalized search hit. RelevanceScore and RelevanceReason are
// filled by the scoring step, not by the search.
type Case struct {
	Title           string `json:"title"`
	Citation        string `json:"citation"`
	Snippet         string `json:"snippet"`
	PDFLink         string `json:"pdf_link"`
	DecisionDate    string `json:"decision_date"`
	RelevanceScore  int    `json:"relevance_score"`
	RelevanceReason string `json:"relevance_reason"`
}

// TransportError reports a failed search round trip.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("courtlistener status code: %d", e.Status)
	}
	return fmt.Sprintf("courtlistener request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type Client struct {
	baseURL    string
	origin     string
	token      string
	httpClient *http.Client
}

type Config struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewClient(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	origin := base
	if u, err := url.Parse(base); err == nil && u.Scheme != "" {
		origin = u.Scheme + "://" + u.Host
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultSearchTimeout}
	}
	return &Client{baseURL: base, origin: origin, token: strings.TrimSpace(cfg.Token), httpClient: hc}
}

type searchResponse struct {
	Results []map[string]any `json:"results"`
}

// Search executes the query and returns normalized cases. Transport
// failures, timeouts, and non-2xx statuses surface as *TransportError.
func (c *Client) Search(ctx context.Context, q Query) ([]Case, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+searchPath, nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.URL.RawQuery = buildParams(q).Encode()
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &TransportError{Status: res.StatusCode, Err: fmt.Errorf("body=%s", string(body))}
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &TransportError{Err: err}
	}

	cases := make([]Case, 0, len(parsed.Results))
	for _, raw := range parsed.Results {
		cases = append(cases, c.normalizeHit(raw))
	}
	log.Printf("casepilot search q=%q results=%d elapsed_ms=%d", q.Text, len(cases), time.Since(start).Milliseconds())
	return cases, nil
}

func buildParams(q Query) url.Values {
	page := q.Page
	if page <= 0 {
		page = DefaultPage
	}
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	params := url.Values{}
	params.Set("q", q.Text)
	params.Set("page", strconv.Itoa(page))
	params.Set("page_size", strconv.Itoa(pageSize))
	if q.Court != "" {
		params.Set("court", q.Court)
	}
	if q.CourtID != "" {
		params.Set("court__id", q.CourtID)
	}
	if q.StartDate != "" {
		params.Set("decision_date__gte", q.StartDate)
	}
	if q.EndDate != "" {
		params.Set("decision_date__lte", q.EndDate)
	}
	for k, v := range q.Extra {
		params.Set(k, v)
	}
	return params
}

func (c *Client) normalizeHit(raw map[string]any) Case {
	title := strings.TrimSpace(str(raw["caseName"]))
	if title == "" {
		title = strings.TrimSpace(str(raw["name"]))
	}
	if title == "" {
		title = "Untitled"
	}
	link := str(raw["absolute_url"])
	if strings.HasPrefix(link, "/") {
		link = c.origin + link
	}
	return Case{
		Title:        title,
		Citation:     str(raw["citation"]),
		Snippet:      str(raw["snippet"]),
		PDFLink:      link,
		DecisionDate: str(raw["decision_date"]),
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
