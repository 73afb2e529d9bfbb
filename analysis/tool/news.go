package tool

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cloudwego/eino/schema"
	"github.com/go-resty/resty/v2"

	contractx "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/contract"
)

const (
	googleNewsBaseURL  = "https://news.google.com"
	defaultNewsLimit   = 10
	newsRequestTimeout = 30 * time.Second
)

func newsSearchInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: contractx.ToolNewsSearch,
		Desc: "Search recent news articles for a free-text query.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {Type: schema.String, Desc: "Free-text search query", Required: true},
			"limit": {Type: schema.Integer, Desc: "Maximum number of articles", Required: false},
		}),
	}
}

type newsClient struct {
	http *resty.Client
}

func newNewsClient() *newsClient {
	client := resty.New()
	client.SetTimeout(newsRequestTimeout)
	client.SetHeader("User-Agent", "Mozilla/5.0 (compatible; Finsight/1.0)")
	return &newsClient{http: client}
}

func (c *newsClient) search(ctx context.Context, args map[string]any) (any, error) {
	query := stringArg(args, "query")
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", contractx.ErrValidation)
	}
	limit := intArg(args, "limit", defaultNewsLimit)
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be >= 1, got %d", contractx.ErrValidation, limit)
	}

	resp, err := c.http.R().SetContext(ctx).Get(c.searchURL(query))
	if err != nil {
		return nil, fmt.Errorf("%w: fetch news: %v", contractx.ErrUnavailable, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("%w: news search http status=%d", contractx.ErrUnavailable, resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return nil, fmt.Errorf("%w: parse news html: %v", contractx.ErrUnavailable, err)
	}

	items := parseArticles(doc)
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (c *newsClient) searchURL(query string) string {
	return fmt.Sprintf("%s/search?q=%s&hl=en&gl=US&ceid=US:en",
		googleNewsBaseURL, url.QueryEscape(query))
}

// parseArticles walks the Google News result markup. The structure drifts
// over time, so extraction stays permissive: anything without a title is
// skipped.
func parseArticles(doc *goquery.Document) []contractx.NewsItem {
	items := make([]contractx.NewsItem, 0, defaultNewsLimit)

	doc.Find("article").Each(func(_ int, s *goquery.Selection) {
		title := strings.TrimSpace(s.Find("h3").Text())
		if title == "" {
			title = strings.TrimSpace(s.Find("h4").Text())
		}
		if title == "" {
			title = strings.TrimSpace(s.Find("a").First().Text())
		}
		if title == "" {
			return
		}

		item := contractx.NewsItem{Title: title}

		if href, ok := s.Find("a").First().Attr("href"); ok {
			item.URL = resolveArticleURL(href)
		}
		if src := strings.TrimSpace(s.Find("div[data-n-tid]").First().Text()); src != "" {
			item.Source = src
		}
		if ts, ok := s.Find("time").First().Attr("datetime"); ok {
			if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
				item.PublishedAt = parsed
			}
		}

		items = append(items, item)
	})

	return items
}

func resolveArticleURL(href string) string {
	href = strings.TrimSpace(href)
	switch {
	case href == "":
		return ""
	case strings.HasPrefix(href, "./"):
		return googleNewsBaseURL + strings.TrimPrefix(href, ".")
	case strings.HasPrefix(href, "/"):
		return googleNewsBaseURL + href
	default:
		return href
	}
}
