// Package fetcher resolves each link or local path attached to a signal
// into content the AI gateway can consume: an uploadable document or capped
// inline text. One source failing never aborts the others.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"golang-signal-relay/internal/relay/config"
	"golang-signal-relay/internal/relay/dto"
	"golang-signal-relay/pkg/logger"
	"golang-signal-relay/pkg/utils"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

var seq atomic.Int64

func fileSeq() int64 {
	return seq.Add(1)
}

// Resolver normalizes a source for the AI gateway.
type Resolver interface {
	Resolve(ctx context.Context, source, workDir string) (*dto.NormalizedSource, error)
}

type fetcher struct {
	cfg         *config.Config
	logger      *logger.Logger
	client      *http.Client
	probeClient *http.Client
	probeCache  *cache.Cache
}

// New creates a new Resolver.
func New(cfg *config.Config, log *logger.Logger) Resolver {
	return &fetcher{
		cfg:         cfg,
		logger:      log,
		client:      &http.Client{Timeout: cfg.Fetcher.HTTPTimeout},
		probeClient: &http.Client{Timeout: cfg.Fetcher.ProbeTimeout},
		probeCache:  cache.New(5*time.Minute, 10*time.Minute),
	}
}

// Resolve classifies and fetches one source. All temporary files are
// created under workDir, which the caller deletes when the signal is done.
func (f *fetcher) Resolve(ctx context.Context, source, workDir string) (*dto.NormalizedSource, error) {
	if isURL(source) {
		return f.resolveURL(ctx, source, workDir)
	}
	return f.resolveLocal(source, workDir)
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (f *fetcher) resolveLocal(path, workDir string) (*dto.NormalizedSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("local source not found: %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return &dto.NormalizedSource{
			Origin:   path,
			Kind:     dto.SourceKindDocument,
			FilePath: path,
			MIMEType: "application/pdf",
		}, nil
	case ".html", ".htm":
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read local html %s: %w", path, err)
		}
		return f.normalizeMarkup(string(raw), path, workDir), nil
	default:
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read local file %s: %w", path, err)
		}
		return f.inlineText(path, string(raw), dto.SourceKindText), nil
	}
}

func (f *fetcher) resolveURL(ctx context.Context, source, workDir string) (*dto.NormalizedSource, error) {
	contentType := f.probeContentType(ctx, source)

	switch {
	case looksLikePDF(source, contentType):
		return f.downloadDocument(ctx, source, workDir)
	case looksLikeHTML(source, contentType):
		body, _, err := f.download(ctx, source)
		if err != nil {
			return nil, err
		}
		return f.normalizeMarkup(string(body), source, workDir), nil
	}

	// neither suffix nor declared type was conclusive: download once and
	// reclassify by what actually came back
	body, downloadedType, err := f.download(ctx, source)
	if err != nil {
		return nil, err
	}
	switch {
	case looksLikePDF(source, downloadedType):
		return f.writeDocument(source, body, workDir)
	case looksLikeHTML(source, downloadedType):
		return f.normalizeMarkup(string(body), source, workDir), nil
	default:
		return f.inlineText(source, string(body), dto.SourceKindText), nil
	}
}

// probeContentType issues a HEAD request for the declared content type.
// Results are memoized briefly since posts often repeat links.
func (f *fetcher) probeContentType(ctx context.Context, source string) string {
	if ct, ok := f.probeCache.Get(source); ok {
		return ct.(string)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, source, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.probeClient.Do(req)
	if err != nil {
		f.logger.Warn("content type probe failed", logger.StringField("url", source), logger.ErrorField(err))
		return ""
	}
	defer resp.Body.Close()

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	f.probeCache.SetDefault(source, ct)
	return ct
}

func (f *fetcher) download(ctx context.Context, source string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request for %s: %w", source, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download of %s returned status %d", source, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read body of %s: %w", source, err)
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	f.logger.Debug("downloaded source",
		logger.StringField("url", source),
		logger.StringField("content_type", ct),
		logger.IntField("size", len(body)),
	)
	return body, ct, nil
}

func (f *fetcher) downloadDocument(ctx context.Context, source, workDir string) (*dto.NormalizedSource, error) {
	body, _, err := f.download(ctx, source)
	if err != nil {
		return nil, err
	}
	return f.writeDocument(source, body, workDir)
}

func (f *fetcher) writeDocument(source string, body []byte, workDir string) (*dto.NormalizedSource, error) {
	path := filepath.Join(workDir, fmt.Sprintf("source-%d.pdf", fileSeq()))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write document for %s: %w", source, err)
	}
	return &dto.NormalizedSource{
		Origin:   source,
		Kind:     dto.SourceKindDocument,
		FilePath: path,
		MIMEType: "application/pdf",
	}, nil
}

// normalizeMarkup runs the document conversion chain and degrades to
// capped plain text when no converter succeeds.
func (f *fetcher) normalizeMarkup(html, origin, workDir string) *dto.NormalizedSource {
	path, mimeType, err := convertMarkupToDocument(html, origin, workDir)
	if err == nil {
		return &dto.NormalizedSource{
			Origin:   origin,
			Kind:     dto.SourceKindMarkup,
			FilePath: path,
			MIMEType: mimeType,
		}
	}
	f.logger.Warn("markup conversion failed, falling back to plain text",
		logger.StringField("origin", origin), logger.ErrorField(err))

	text, err := extractPlainText(html)
	if err != nil {
		f.logger.Warn("plain text extraction failed, sending raw markup",
			logger.StringField("origin", origin), logger.ErrorField(err))
		text = html
	}
	return f.inlineText(origin, text, dto.SourceKindMarkup)
}

func (f *fetcher) inlineText(origin, text string, kind dto.SourceKind) *dto.NormalizedSource {
	return &dto.NormalizedSource{
		Origin:     origin,
		Kind:       kind,
		InlineText: utils.Truncate(utils.SafeText(text), f.cfg.Fetcher.MaxInlineChars),
	}
}

func looksLikePDF(source, contentType string) bool {
	return strings.HasSuffix(strings.ToLower(source), ".pdf") || strings.Contains(contentType, "application/pdf")
}

func looksLikeHTML(source, contentType string) bool {
	lower := strings.ToLower(source)
	return strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm") || strings.Contains(contentType, "text/html")
}
