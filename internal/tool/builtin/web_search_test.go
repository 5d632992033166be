package builtin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const searchFixture = `
<html><body><ol id="b_results">
<li class="b_algo"><h2><a href="https://example.com/one">First &amp; Best</a></h2></li>
<li class="b_algo"><h2><a href="https://example.com/two"><strong>Second</strong> Result</a></h2></li>
</ol></body></html>`

func TestWebSearchTool_Execute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "golang agents", r.URL.Query().Get("q"))
		w.Write([]byte(searchFixture))
	}))
	defer srv.Close()

	tool := NewWebSearchTool(srv.URL, time.Second, 5)

	raw, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"golang agents"}`))
	require.NoError(t, err)

	var resp struct {
		Query   string `json:"query"`
		Results []struct {
			Title string `json:"title"`
			URL   string `json:"url"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.Len(t, resp.Results, 2)
	require.Equal(t, "First & Best", resp.Results[0].Title)
	require.Equal(t, "https://example.com/one", resp.Results[0].URL)
	require.Equal(t, "Second Result", resp.Results[1].Title)
}

func TestWebSearchTool_EmptyQuery(t *testing.T) {
	tool := NewWebSearchTool("", time.Second, 5)

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"query":""}`))
	require.Error(t, err)
}

func TestWebSearchTool_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tool := NewWebSearchTool(srv.URL, time.Second, 5)

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"x"}`))
	require.Error(t, err)
}
