package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/kklimas/pk-schedule-sync/config"
	pkgerrors "github.com/kklimas/pk-schedule-sync/pkg/errors"
)

// ── 课表来源 ──────────────────────────────────────────────
//
// 职责：抓取 PK 发布页，定位表格文件链接，下载文件字节。
// 链接匹配规则：href 大写后包含配置的子串（与来源页的命名约定一致）。
// ─────────────────────────────────────────────────────────────

const sheetMaxFileSize = 20 * 1024 * 1024 // 20MB

// SourceService 课表来源访问接口
type SourceService interface {
	// ResolveSheetLink 抓取发布页并返回表格文件的绝对链接
	ResolveSheetLink(ctx context.Context) (string, error)
	// DownloadSheet 下载表格文件内容
	DownloadSheet(ctx context.Context, sheetURL string) ([]byte, error)
}

type sourceService struct {
	pageURL string
	pattern string // 已转大写
	client  *http.Client
	logger  *zap.Logger
}

// NewSourceService 创建 SourceService 实例
func NewSourceService(cfg *config.SourceConfig, logger *zap.Logger) SourceService {
	return &sourceService{
		pageURL: cfg.PageURL,
		pattern: strings.ToUpper(cfg.SheetLinkPattern),
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

func (s *sourceService) ResolveSheetLink(ctx context.Context) (string, error) {
	s.logger.Info("抓取课表发布页", zap.String("url", s.pageURL))

	body, err := s.fetch(ctx, s.pageURL)
	if err != nil {
		return "", fmt.Errorf("%w: 发布页抓取失败: %v", pkgerrors.ErrSourceUnavailable, err)
	}

	link, found := findSheetLink(body, s.pattern)
	if !found {
		s.logger.Warn("发布页中没有匹配的链接", zap.String("pattern", s.pattern))
		return "", pkgerrors.ErrSourceLinkNotFound
	}

	// 相对链接解析为绝对链接
	resolved, err := resolveURL(s.pageURL, link)
	if err != nil {
		return "", fmt.Errorf("%w: 链接解析失败: %v", pkgerrors.ErrSourceUnavailable, err)
	}

	s.logger.Info("找到课表链接", zap.String("sheet_url", resolved))
	return resolved, nil
}

func (s *sourceService) DownloadSheet(ctx context.Context, sheetURL string) ([]byte, error) {
	s.logger.Info("下载课表文件", zap.String("sheet_url", sheetURL))

	content, err := s.fetch(ctx, sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%w: 课表文件下载失败: %v", pkgerrors.ErrSourceUnavailable, err)
	}
	return content, nil
}

// fetch 发起 GET 请求并读取响应体（限制大小防 OOM）
func (s *sourceService) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, sheetMaxFileSize))
}

// findSheetLink 在 HTML 中查找第一个 href 包含 pattern 的 <a> 标签
func findSheetLink(page []byte, pattern string) (string, bool) {
	tokenizer := html.NewTokenizer(strings.NewReader(string(page)))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return "", false
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			if token.Data != "a" {
				continue
			}
			for _, attr := range token.Attr {
				if attr.Key != "href" {
					continue
				}
				if strings.Contains(strings.ToUpper(attr.Val), pattern) {
					return attr.Val, true
				}
			}
		}
	}
}

// resolveURL 以 base 为基准解析可能的相对链接
func resolveURL(base, link string) (string, error) {
	if strings.HasPrefix(link, "http") {
		return link, nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(ref).String(), nil
}
