package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang-sentiment-panel/internal/entity"
	"golang-sentiment-panel/internal/pipeline/config"
	"golang-sentiment-panel/pkg/logger"
	"golang-sentiment-panel/pkg/utils"

	"github.com/PuerkitoBio/goquery"
	"github.com/mauidude/go-readability"
	"github.com/mmcdole/gofeed"
	"github.com/patrickmn/go-cache"
)

// NewsSource fetches raw articles for the tracked tickers. Records may be
// duplicated across queries; deduplication is the article store's job.
type NewsSource interface {
	Fetch(ctx context.Context, tickers []string) ([]entity.RawArticle, error)
}

// googleNewsSource pulls Google News RSS feeds per ticker plus the
// configured macro queries, and extracts article bodies from the linked
// pages.
type googleNewsSource struct {
	cfg           *config.Config
	logger        *logger.Logger
	client        *http.Client
	contentCache  *cache.Cache
	maxConcurrent int
}

// NewGoogleNewsSource creates a new Google News RSS source.
func NewGoogleNewsSource(cfg *config.Config, log *logger.Logger) NewsSource {
	return &googleNewsSource{
		cfg:           cfg,
		logger:        log,
		client:        &http.Client{Timeout: 30 * time.Second},
		contentCache:  cache.New(30*time.Minute, 10*time.Minute),
		maxConcurrent: cfg.News.MaxConcurrent,
	}
}

type feedQuery struct {
	query  string
	ticker string
}

func (s *googleNewsSource) Fetch(ctx context.Context, tickers []string) ([]entity.RawArticle, error) {
	var queries []feedQuery
	for _, ticker := range tickers {
		queries = append(queries, feedQuery{
			query:  fmt.Sprintf("cổ phiếu %s", ticker),
			ticker: ticker,
		})
	}
	for _, q := range s.cfg.News.MacroQueries {
		if q == "" {
			continue
		}
		queries = append(queries, feedQuery{query: q})
	}

	var (
		articles []entity.RawArticle
		wg       sync.WaitGroup
		mu       sync.Mutex
	)
	semaphore := make(chan struct{}, s.maxConcurrent)

	for _, fq := range queries {
		if !utils.ShouldContinue(ctx, s.logger) {
			break
		}
		fq := fq
		wg.Add(1)
		utils.GoSafe(func() {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			items, err := s.fetchFeed(ctx, fq)
			if err != nil {
				s.logger.Error("Failed to fetch RSS feed",
					logger.ErrorField(err),
					logger.StringField("query", fq.query),
				)
				return
			}
			mu.Lock()
			articles = append(articles, items...)
			mu.Unlock()
		})
	}

	wg.Wait()

	s.logger.Info("Fetched raw articles",
		logger.IntField("count", len(articles)),
		logger.IntField("queries", len(queries)),
	)
	return articles, nil
}

func (s *googleNewsSource) fetchFeed(ctx context.Context, fq feedQuery) ([]entity.RawArticle, error) {
	feedURL := fmt.Sprintf("https://news.google.com/rss/search?q=%s&hl=vi&gl=VN&ceid=VN:vi",
		url.QueryEscape(fq.query))

	fp := gofeed.NewParser()
	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSS feed: %w", err)
	}

	maxAge := time.Duration(s.cfg.News.MaxAgeDays*24) * time.Hour
	cutoff := utils.TimeNowVN().Add(-maxAge)

	var articles []entity.RawArticle
	for _, item := range feed.Items {
		if !utils.ShouldContinue(ctx, s.logger) {
			break
		}
		if item.PublishedParsed == nil {
			s.logger.Debug("Skipping item without published date", logger.StringField("link", item.Link))
			continue
		}
		if item.PublishedParsed.In(utils.GetVNTimeLocation()).Before(cutoff) {
			continue
		}

		parsedURL, err := url.Parse(item.Link)
		if err != nil {
			s.logger.Warn("Could not parse item link", logger.StringField("link", item.Link), logger.ErrorField(err))
			continue
		}

		body, err := s.fetchContent(ctx, item.Link)
		if err != nil {
			// Per-item failure: the headline alone is still scoreable.
			s.logger.Warn("Failed to extract article body",
				logger.ErrorField(err),
				logger.StringField("link", item.Link),
			)
		}

		published := *item.PublishedParsed
		raw := entity.RawArticle{
			URL:          item.Link,
			Headline:     item.Title,
			Body:         body,
			PublishedAt:  &published,
			SourcePortal: parsedURL.Hostname(),
		}
		if fq.ticker != "" {
			raw.TickerTags = []string{fq.ticker}
		}
		articles = append(articles, raw)

		if s.cfg.News.DelaySeconds > 0 {
			time.Sleep(time.Duration(s.cfg.News.DelaySeconds) * time.Second)
		}
	}

	return articles, nil
}

func (s *googleNewsSource) fetchContent(ctx context.Context, link string) (string, error) {
	if cached, found := s.contentCache.Get(link); found {
		return cached.(string), nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", link, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch article page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch article page, status code: %d", resp.StatusCode)
	}

	htmlBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	doc, err := readability.NewDocument(string(htmlBody))
	if err != nil {
		return "", fmt.Errorf("failed to parse article content: %w", err)
	}

	content := doc.Content()
	docHTML, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(content)))
	if err != nil {
		return "", fmt.Errorf("failed to parse extracted content: %w", err)
	}

	text := utils.SafeText(strings.TrimSpace(docHTML.Text()))
	s.contentCache.Set(link, text, cache.DefaultExpiration)
	return text, nil
}
