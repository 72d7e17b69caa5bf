package crawlers

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultRobotsTimeout robots.txt 请求超时
	DefaultRobotsTimeout = 10 * time.Second

	// robots.txt 最大读取字节数
	maxRobotsBodySize = 512 * 1024
)

// ErrNoPolicy 域名没有可用的robots策略(视为全部允许)
var ErrNoPolicy = errors.New("没有robots策略")

// RobotsChecker robots策略查询接口
type RobotsChecker interface {
	CanFetch(ctx context.Context, rawURL string) bool
	CrawlDelay(ctx context.Context, rawURL string) time.Duration
}

// RobotsOptions robots缓存配置
type RobotsOptions struct {
	UserAgent          string
	Timeout            time.Duration
	InsecureSkipVerify bool
	Client             *http.Client // 为nil时按Timeout/InsecureSkipVerify创建
}

// robotsPolicy 单个域名的缓存结果,group为nil表示"无策略"
type robotsPolicy struct {
	group *robotstxt.Group
}

// RobotsCache 按域名缓存robots.txt策略
// 首次遇到域名时同步抓取 https://{host}/robots.txt,之后在会话内不再失效
// 抓取失败、非200状态或解析失败一律缓存为"无策略",即放行
type RobotsCache struct {
	userAgent string
	client    *http.Client
	policies  *cache.Cache
	inflight  singleflight.Group
}

// NewRobotsCache 创建robots缓存
func NewRobotsCache(opts RobotsOptions) *RobotsCache {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRobotsTimeout
	}

	client := opts.Client
	if client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify}
		client = &http.Client{Transport: transport, Timeout: opts.Timeout}
	}

	return &RobotsCache{
		userAgent: opts.UserAgent,
		client:    client,
		policies:  cache.New(cache.NoExpiration, 0),
	}
}

// CanFetch 判断当前User-Agent是否允许抓取该URL
// URL无法解析或缺少主机时返回false
func (rc *RobotsCache) CanFetch(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		log.Warn().Str("url", rawURL).Msg("URL格式无效,robots检查拒绝")
		return false
	}

	policy := rc.policy(ctx, strings.ToLower(parsed.Host))
	if policy.group == nil {
		return true
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}

	allowed := policy.group.Test(path)
	log.Debug().Str("url", rawURL).Bool("allowed", allowed).Msg("robots判定")
	return allowed
}

// CrawlDelay 返回robots声明的抓取间隔,无策略或未声明时为0
func (rc *RobotsCache) CrawlDelay(ctx context.Context, rawURL string) time.Duration {
	host, err := hostKey(rawURL)
	if err != nil {
		return 0
	}

	policy := rc.policy(ctx, host)
	if policy.group == nil {
		return 0
	}
	return policy.group.CrawlDelay
}

// Len 返回已缓存的域名数量
func (rc *RobotsCache) Len() int {
	return rc.policies.ItemCount()
}

// Reset 清空缓存
func (rc *RobotsCache) Reset() {
	rc.policies.Flush()
}

// policy 返回域名的缓存策略,未缓存时抓取
// 同一域名的并发首次查询共享一次抓取
func (rc *RobotsCache) policy(ctx context.Context, host string) robotsPolicy {
	key := host
	if v, ok := rc.policies.Get(key); ok {
		return v.(robotsPolicy)
	}

	v, _, _ := rc.inflight.Do(key, func() (interface{}, error) {
		if v, ok := rc.policies.Get(key); ok {
			return v, nil
		}

		group, err := rc.fetch(ctx, host)
		if err != nil {
			// 调用方取消时不缓存,下次重新抓取
			if ctx.Err() != nil {
				return robotsPolicy{}, nil
			}
			if !errors.Is(err, ErrNoPolicy) {
				log.Info().Err(err).Str("host", host).Msg("robots.txt不可用,默认放行")
			}
		}

		policy := robotsPolicy{group: group}
		rc.policies.Set(key, policy, cache.NoExpiration)
		return policy, nil
	})

	return v.(robotsPolicy)
}

// fetch 抓取并解析robots.txt
func (rc *RobotsCache) fetch(ctx context.Context, host string) (*robotstxt.Group, error) {
	robotsURL := "https://" + host + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("创建robots请求失败: %w", err)
	}
	if rc.userAgent != "" {
		req.Header.Set("User-Agent", rc.userAgent)
	}

	resp, err := rc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求robots.txt失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Debug().Str("host", host).Int("status", resp.StatusCode).Msg("未找到robots.txt")
		return nil, ErrNoPolicy
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBodySize))
	if err != nil {
		return nil, fmt.Errorf("读取robots.txt失败: %w", err)
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, fmt.Errorf("解析robots.txt失败: %w", err)
	}

	log.Debug().Str("host", host).Msg("已加载robots.txt")
	return data.FindGroup(rc.userAgent), nil
}
