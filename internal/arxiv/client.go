// Package arxiv is a minimal client for the arXiv Atom query API.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultBaseURL = "http://export.arxiv.org/api/query"

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Entry is one paper as returned by the query API. ArxivID has its version
// suffix stripped so it can serve as a stable key.
type Entry struct {
	ArxivID    string
	Title      string
	Summary    string
	Authors    []string
	Categories []string
	Published  time.Time
	Updated    time.Time
	PDFURL     string
}

// Search runs a relevance-sorted full-text query.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Entry, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("start", "0")
	params.Set("max_results", fmt.Sprintf("%d", maxResults))
	params.Set("sortBy", "relevance")
	return c.query(ctx, params)
}

// FetchByID resolves a single paper by its arXiv identifier.
func (c *Client) FetchByID(ctx context.Context, arxivID string) (Entry, error) {
	params := url.Values{}
	params.Set("id_list", arxivID)
	params.Set("max_results", "1")
	entries, err := c.query(ctx, params)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, fmt.Errorf("arxiv: no entry for id %q", arxivID)
	}
	return entries[0], nil
}

func (c *Client) query(ctx context.Context, params url.Values) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("arxiv: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv: query: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("arxiv: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv: query returned status %d", resp.StatusCode)
	}
	return ParseFeed(body)
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
	Links []struct {
		Href  string `xml:"href,attr"`
		Title string `xml:"title,attr"`
		Type  string `xml:"type,attr"`
	} `xml:"link"`
}

// ParseFeed decodes an Atom feed into entries. Whitespace runs inside titles
// and summaries are collapsed, since the API hard-wraps them.
func ParseFeed(data []byte) ([]Entry, error) {
	var feed atomFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("arxiv: parse feed: %w", err)
	}
	entries := make([]Entry, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		entry := Entry{
			ArxivID: StripVersion(e.ID),
			Title:   collapseWhitespace(e.Title),
			Summary: collapseWhitespace(e.Summary),
		}
		for _, a := range e.Authors {
			entry.Authors = append(entry.Authors, strings.TrimSpace(a.Name))
		}
		for _, cat := range e.Categories {
			if cat.Term != "" {
				entry.Categories = append(entry.Categories, cat.Term)
			}
		}
		for _, l := range e.Links {
			if l.Title == "pdf" || l.Type == "application/pdf" {
				entry.PDFURL = l.Href
				break
			}
		}
		if t, err := time.Parse(time.RFC3339, e.Published); err == nil {
			entry.Published = t
		}
		if t, err := time.Parse(time.RFC3339, e.Updated); err == nil {
			entry.Updated = t
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// StripVersion turns an Atom entry id like
// "http://arxiv.org/abs/1706.03762v5" into "1706.03762".
func StripVersion(entryID string) string {
	id := entryID
	if i := strings.LastIndex(id, "/"); i >= 0 {
		id = id[i+1:]
	}
	if i := strings.LastIndex(id, "v"); i > 0 {
		suffix := id[i+1:]
		if suffix != "" && strings.IndexFunc(suffix, func(r rune) bool { return r < '0' || r > '9' }) < 0 {
			id = id[:i]
		}
	}
	return id
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
