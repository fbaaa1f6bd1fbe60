package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"golang-sentiment-panel/internal/entity"
	"golang-sentiment-panel/internal/pipeline/dto"
	"golang-sentiment-panel/internal/pipeline/errs"
	"golang-sentiment-panel/internal/pipeline/repository"
	"golang-sentiment-panel/pkg/logger"
	"golang-sentiment-panel/pkg/utils"
)

// IngestionService is the write path of the article ledger. Ingesting the
// same raw feed any number of times yields the same store contents.
type IngestionService interface {
	Ingest(ctx context.Context, raws []entity.RawArticle) (*dto.IngestResult, error)
}

// NewIngestionService creates a new IngestionService.
func NewIngestionService(articleRepo repository.ArticleRepository, log *logger.Logger) IngestionService {
	return &ingestionService{
		articleRepo: articleRepo,
		logger:      log,
	}
}

type ingestionService struct {
	articleRepo repository.ArticleRepository
	logger      *logger.Logger
}

// Ingest validates, deduplicates and appends raw articles. Malformed items
// are rejected per-item and never abort the batch.
func (s *ingestionService) Ingest(ctx context.Context, raws []entity.RawArticle) (*dto.IngestResult, error) {
	result := &dto.IngestResult{}

	var (
		candidates []entity.Article
		keys       []string
	)
	seen := make(map[string]bool, len(raws))

	for _, raw := range raws {
		if err := validateRawArticle(raw); err != nil {
			s.logger.Warn("Rejected malformed raw article", logger.ErrorField(err))
			result.RejectedCount++
			continue
		}

		key := CanonicalKey(raw.URL, raw.Headline)
		if seen[key] {
			result.DuplicateCount++
			continue
		}
		seen[key] = true
		keys = append(keys, key)

		candidates = append(candidates, entity.Article{
			CanonicalKey: key,
			TickerTags:   raw.TickerTags,
			PublishedAt:  raw.PublishedAt,
			Headline:     utils.CleanToValidUTF8(raw.Headline),
			Body:         utils.CleanToValidUTF8(raw.Body),
			URL:          raw.URL,
			SourcePortal: raw.SourcePortal,
		})
	}

	existing, err := s.articleRepo.FilterExistingKeys(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing canonical keys: %w", err)
	}

	var newArticles []entity.Article
	for _, article := range candidates {
		if existing[article.CanonicalKey] {
			result.DuplicateCount++
			continue
		}
		newArticles = append(newArticles, article)
	}

	inserted, err := s.articleRepo.CreateIgnoreConflict(ctx, newArticles)
	if err != nil {
		return nil, fmt.Errorf("failed to insert articles: %w", err)
	}

	result.NewCount = int(inserted)
	// A concurrent writer may have claimed a key between the filter and the
	// insert; those rows conflict away and count as duplicates.
	result.DuplicateCount += len(newArticles) - int(inserted)

	s.logger.Info("Ingestion batch complete",
		logger.IntField("new", result.NewCount),
		logger.IntField("duplicate", result.DuplicateCount),
		logger.IntField("rejected", result.RejectedCount),
	)
	return result, nil
}

func validateRawArticle(raw entity.RawArticle) error {
	if strings.TrimSpace(raw.URL) == "" {
		return &errs.IngestionError{URL: raw.URL, Reason: "missing url"}
	}
	if strings.TrimSpace(raw.Headline) == "" {
		return &errs.IngestionError{URL: raw.URL, Reason: "missing headline"}
	}
	if raw.PublishedAt == nil {
		return &errs.IngestionError{URL: raw.URL, Reason: "missing published_at"}
	}
	return nil
}

// CanonicalKey derives the deduplication identity of an article from its
// normalized URL and headline. The same article fetched twice, or reached
// through URLs differing only in query string or casing of the host, maps
// to the same key.
func CanonicalKey(rawURL, headline string) string {
	normalized := normalizeURL(rawURL)
	sum := md5.Sum([]byte(normalized + "|" + strings.TrimSpace(headline)))
	return hex.EncodeToString(sum[:])
}

func normalizeURL(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return strings.TrimSpace(rawURL)
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.RawQuery = ""
	parsed.Fragment = ""
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	return parsed.String()
}
