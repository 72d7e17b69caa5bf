package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/RecoveryAshes/webcrawler/internal/models"
	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultFetchTimeout 页面请求超时
	DefaultFetchTimeout = 10 * time.Second

	// colly上下文中保存抓取结果的键
	fetchResultKey = "fetch_result"
)

// RawLink 页面中未解析的超链接
type RawLink struct {
	Text string
	Href string
}

// FetchResult 单次成功抓取的结果
type FetchResult struct {
	URL         string
	StatusCode  int
	ContentType string
	Bytes       int // 解码后的响应体长度
	Title       string
	Links       []RawLink
}

// FetchError 抓取失败(传输错误或非2xx状态)
type FetchError struct {
	URL        string
	StatusCode int // 传输错误时为0
	Err        error
}

// Error 实现error接口
func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("抓取失败 [%s] 状态码 %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("抓取失败 [%s]: %v", e.URL, e.Err)
}

// Unwrap 支持errors.Unwrap
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher 页面抓取接口
// proxy为nil时直连
type Fetcher interface {
	Fetch(ctx context.Context, url string, proxy *models.ProxyEntry) (*FetchResult, error)
}

// FetcherOptions 抓取器配置
type FetcherOptions struct {
	UserAgent          string
	Headers            http.Header // 合并后的自定义头部,User-Agent以UserAgent为准
	Timeout            time.Duration
	InsecureSkipVerify bool
	MaxBodySize        int // 0表示使用colly默认值(10MB)
}

// CollyFetcher 基于Colly的页面抓取器
// 每个代理地址对应一个独立的collector,直连使用键""
type CollyFetcher struct {
	opts FetcherOptions

	mu         sync.Mutex
	collectors map[string]*colly.Collector
}

// NewCollyFetcher 创建抓取器
func NewCollyFetcher(opts FetcherOptions) (*CollyFetcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultFetchTimeout
	}

	f := &CollyFetcher{
		opts:       opts,
		collectors: make(map[string]*colly.Collector),
	}

	// 预先创建直连collector,尽早暴露配置错误
	if _, err := f.collector(""); err != nil {
		return nil, err
	}
	return f, nil
}

// Fetch 抓取页面并提取标题和链接
func (f *CollyFetcher) Fetch(ctx context.Context, target string, proxy *models.ProxyEntry) (*FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}

	proxyURI := ""
	if proxy != nil {
		proxyURI = proxy.URI
	}

	c, err := f.collector(proxyURI)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}

	result := &FetchResult{URL: target}
	cctx := colly.NewContext()
	cctx.Put(fetchResultKey, result)

	if err := c.Request(http.MethodGet, target, nil, cctx, f.requestHeaders()); err != nil {
		return nil, &FetchError{URL: target, StatusCode: result.StatusCode, Err: err}
	}

	if result.StatusCode < 200 || result.StatusCode > 299 {
		return nil, &FetchError{
			URL:        target,
			StatusCode: result.StatusCode,
			Err:        fmt.Errorf("HTTP %d %s", result.StatusCode, http.StatusText(result.StatusCode)),
		}
	}

	return result, nil
}

// requestHeaders 构造单次请求的头部副本
func (f *CollyFetcher) requestHeaders() http.Header {
	hdr := make(http.Header, len(f.opts.Headers)+2)
	for name, values := range f.opts.Headers {
		hdr[name] = append([]string(nil), values...)
	}
	if f.opts.UserAgent != "" {
		hdr.Set("User-Agent", f.opts.UserAgent)
	}
	if hdr.Get("Accept-Encoding") == "" {
		hdr.Set("Accept-Encoding", "gzip, deflate, br")
	}
	return hdr
}

// collector 返回代理对应的collector,不存在时创建
func (f *CollyFetcher) collector(proxyURI string) (*colly.Collector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.collectors[proxyURI]; ok {
		return c, nil
	}

	c, err := f.newCollector(proxyURI)
	if err != nil {
		return nil, err
	}
	f.collectors[proxyURI] = c
	return c, nil
}

func (f *CollyFetcher) newCollector(proxyURI string) (*colly.Collector, error) {
	// 去重由Frontier负责,robots由RobotsCache负责
	options := []colly.CollectorOption{
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.ParseHTTPErrorResponse(),
	}
	if f.opts.UserAgent != "" {
		options = append(options, colly.UserAgent(f.opts.UserAgent))
	}
	if f.opts.MaxBodySize > 0 {
		options = append(options, colly.MaxBodySize(f.opts.MaxBodySize))
	}
	c := colly.NewCollector(options...)

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: f.opts.InsecureSkipVerify}
	c.WithTransport(transport)
	c.SetRequestTimeout(f.opts.Timeout)

	if proxyURI != "" {
		if err := c.SetProxy(proxyURI); err != nil {
			return nil, fmt.Errorf("设置代理失败: %w", err)
		}
	}

	c.OnResponse(func(r *colly.Response) {
		result := resultFrom(r.Ctx)
		if result == nil {
			return
		}

		if encoding := r.Headers.Get("Content-Encoding"); encoding != "" {
			decoded, err := decompressResponse(encoding, r.Body)
			if err != nil {
				log.Warn().Err(err).Str("url", r.Request.URL.String()).Str("encoding", encoding).Msg("解压响应失败,使用原始内容")
			} else {
				r.Body = decoded
			}
		}

		result.StatusCode = r.StatusCode
		result.ContentType = r.Headers.Get("Content-Type")
		result.Bytes = len(r.Body)
	})

	c.OnHTML("title", func(e *colly.HTMLElement) {
		result := resultFrom(e.Request.Ctx)
		if result != nil && result.Title == "" {
			result.Title = strings.TrimSpace(e.Text)
		}
	})

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		result := resultFrom(e.Request.Ctx)
		if result == nil {
			return
		}
		href := e.Attr("href")
		if strings.TrimSpace(href) == "" {
			return
		}
		result.Links = append(result.Links, RawLink{
			Text: strings.TrimSpace(e.Text),
			Href: href,
		})
	})

	c.OnError(func(r *colly.Response, err error) {
		if r == nil {
			return
		}
		if result := resultFrom(r.Ctx); result != nil {
			result.StatusCode = r.StatusCode
		}
	})

	return c, nil
}

func resultFrom(ctx *colly.Context) *FetchResult {
	if ctx == nil {
		return nil
	}
	result, _ := ctx.GetAny(fetchResultKey).(*FetchResult)
	return result
}

// decompressResponse 根据Content-Encoding头部解压响应体
// 支持 gzip, deflate, br (Brotli) 三种压缩格式
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip", "x-gzip":
		// Colly可能已自动解压gzip,只处理仍带gzip魔数的内容
		if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
			return body, nil
		}
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		reader := brotli.NewReader(bytes.NewReader(body))
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "", "identity":
		return body, nil

	default:
		log.Warn().Str("encoding", contentEncoding).Msg("未知的Content-Encoding")
		return body, nil
	}
}
