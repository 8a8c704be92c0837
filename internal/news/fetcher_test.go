package news

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"metalpulse/internal/config"
	"metalpulse/internal/domain"
)

const rssTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Google News</title>%s</channel></rss>`

func rssItem(title, link, pubDate, desc string) string {
	return fmt.Sprintf(`<item><title>%s</title><link>%s</link><pubDate>%s</pubDate><description><![CDATA[%s]]></description></item>`,
		title, link, pubDate, desc)
}

func testConfig(baseURL string) config.News {
	cfg := config.Default().News
	cfg.BaseURL = baseURL
	cfg.TermDelay = 0
	cfg.InstrumentDelay = 0
	return cfg
}

func TestFetchForInstrument(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		queries = append(queries, q)
		require.Equal(t, "en-IN", r.URL.Query().Get("hl"))
		require.Equal(t, "IN:en", r.URL.Query().Get("ceid"))

		var body string
		switch q {
		case "Tata Steel stock India":
			body = rssItem("Tata Steel output rises - Reuters", "https://ex.com/a", "Mon, 10 Jun 2024 08:00:00 GMT", "<b>Output</b> up&nbsp;5% &amp; more") +
				rssItem("Shared story", "https://ex.com/shared", "Tue, 11 Jun 2024 08:00:00 GMT", "first copy")
		case "TATASTEEL stock India":
			w.WriteHeader(http.StatusInternalServerError)
			return
		default:
			body = rssItem("Shared story - Mint", "https://ex.com/shared", "Tue, 11 Jun 2024 08:00:00 GMT", "second copy") +
				rssItem("Older story - ET", "https://ex.com/old", "Sat, 01 Jun 2024 08:00:00 GMT", "")
		}
		fmt.Fprintf(w, rssTemplate, body)
	}))
	defer srv.Close()

	f := NewFetcher(testConfig(srv.URL), nil)
	inst := domain.Instrument{
		Symbol:      "TATASTEEL",
		SearchTerms: []string{"Tata Steel", "TATASTEEL", "Tata Steel India"},
	}

	items, err := f.FetchForInstrument(context.Background(), inst)
	require.NoError(t, err)
	require.Equal(t, []string{"Tata Steel stock India", "TATASTEEL stock India", "Tata Steel India stock India"}, queries)

	// The failing term is skipped and the shared story collapses to one item.
	require.Len(t, items, 3)

	require.Equal(t, "Shared story", items[0].Title)
	require.Equal(t, "second copy", items[0].Description, "last-seen duplicate wins")
	require.Equal(t, "Mint", items[0].Source)

	require.Equal(t, "Tata Steel output rises", items[1].Title)
	require.Equal(t, "Reuters", items[1].Source)
	require.Equal(t, "Output up 5% & more", items[1].Description)
	require.Equal(t, "TATASTEEL", items[1].StockSymbol)
	require.Equal(t, newsID("https://ex.com/a", "Mon, 10 Jun 2024 08:00:00 GMT"), items[1].ID)

	require.Equal(t, "Older story", items[2].Title)
	for i := 1; i < len(items); i++ {
		require.False(t, items[i].PubDate.After(items[i-1].PubDate), "items must be sorted newest first")
	}
}

func TestFetchAllDegradesToEmpty(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if strings.HasPrefix(r.URL.Query().Get("q"), "Broken") {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprintf(w, rssTemplate, rssItem("Story - Src", "https://ex.com/"+r.URL.Query().Get("q"), "Mon, 10 Jun 2024 08:00:00 GMT", "d"))
	}))
	defer srv.Close()

	f := NewFetcher(testConfig(srv.URL), nil)
	out := f.FetchAll(context.Background(), []domain.Instrument{
		{Symbol: "OK", SearchTerms: []string{"Good"}},
		{Symbol: "BAD", SearchTerms: []string{"Broken"}},
	})

	require.Len(t, out, 2)
	require.Len(t, out["OK"], 1)
	require.NotNil(t, out["BAD"])
	require.Empty(t, out["BAD"])
	require.Equal(t, int32(2), hits.Load())
}

func TestFetchForInstrumentCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, rssTemplate, "")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFetcher(testConfig(srv.URL), nil)
	_, err := f.FetchForInstrument(ctx, domain.Instrument{Symbol: "X", SearchTerms: []string{"a"}})
	require.ErrorIs(t, err, context.Canceled)
}

func TestFilterRecent(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	items := []domain.NewsItem{
		{ID: "new", PubDate: now.Add(-time.Hour)},
		{ID: "edge", PubDate: now.AddDate(0, 0, -7)},
		{ID: "old", PubDate: now.AddDate(0, 0, -8)},
	}

	got := FilterRecent(items, 7, now)
	require.Len(t, got, 2)
	require.Equal(t, "new", got[0].ID)
	require.Equal(t, "edge", got[1].ID)
}

func TestSplitSource(t *testing.T) {
	cases := []struct {
		in, title, source string
	}{
		{"Steel prices climb - Economic Times", "Steel prices climb", "Economic Times"},
		{"Q1 - results beat - Mint", "Q1 - results beat", "Mint"},
		{"No publisher here", "No publisher here", "Unknown"},
		{"Trailing dash - ", "Trailing dash", "Unknown"},
	}
	for _, c := range cases {
		title, source := splitSource(c.in)
		require.Equal(t, c.title, title, c.in)
		require.Equal(t, c.source, source, c.in)
	}
}

func TestCleanDescription(t *testing.T) {
	require.Equal(t, `He said "up" & it's fine`, cleanDescription(`<p>He said &quot;up&quot; &amp; it&#39;s fine</p>`))

	long := strings.Repeat("é", 600)
	require.Equal(t, 500, len([]rune(cleanDescription(long))))
}
