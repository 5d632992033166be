package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	defaultWebSearchBaseURL    = "https://www.bing.com/search"
	defaultWebSearchMaxResults = 5
	defaultWebSearchTimeout    = 10 * time.Second
	maxWebSearchResultsHardCap = 10
)

var (
	searchResultRe = regexp.MustCompile(`(?is)<li[^>]*class="[^"]*\bb_algo\b[^"]*"[^>]*>.*?<h2[^>]*>\s*<a[^>]*href="([^"]+)"[^>]*>(.*?)</a>`)
	htmlTagRe      = regexp.MustCompile(`(?is)<[^>]+>`)
)

// WebSearchTool fetches top result links for a query.
type WebSearchTool struct {
	Client     *http.Client
	BaseURL    string
	MaxResults int
}

func NewWebSearchTool(baseURL string, timeout time.Duration, maxResults int) *WebSearchTool {
	if baseURL == "" {
		baseURL = defaultWebSearchBaseURL
	}
	if timeout <= 0 {
		timeout = defaultWebSearchTimeout
	}
	if maxResults <= 0 {
		maxResults = defaultWebSearchMaxResults
	}
	if maxResults > maxWebSearchResultsHardCap {
		maxResults = maxWebSearchResultsHardCap
	}

	return &WebSearchTool{
		Client:     &http.Client{Timeout: timeout},
		BaseURL:    baseURL,
		MaxResults: maxResults,
	}
}

func (t *WebSearchTool) Name() string {
	return "search_web"
}

func (t *WebSearchTool) Description() string {
	return "Search the web for information and return top result links."
}

func (t *WebSearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "The search query",
			},
		},
		"required": []string{"query"},
	}
}

type searchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

func (t *WebSearchTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	query := strings.TrimSpace(args.Query)
	if query == "" {
		return nil, fmt.Errorf("query is empty")
	}

	results, err := t.search(ctx, query)
	if err != nil {
		return nil, err
	}

	return json.Marshal(map[string]interface{}{
		"query":   query,
		"results": results,
	})
}

func (t *WebSearchTool) search(ctx context.Context, query string) ([]searchResult, error) {
	reqURL := fmt.Sprintf("%s?q=%s", t.BaseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; tyson-agent)")

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	matches := searchResultRe.FindAllStringSubmatch(string(body), t.MaxResults)
	results := make([]searchResult, 0, len(matches))
	for _, m := range matches {
		title := html.UnescapeString(strings.TrimSpace(htmlTagRe.ReplaceAllString(m[2], "")))
		link := html.UnescapeString(m[1])
		if title == "" || !strings.HasPrefix(link, "http") {
			continue
		}
		results = append(results, searchResult{Title: title, URL: link})
	}

	return results, nil
}
