package crawlers

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/RecoveryAshes/webcrawler/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultProxyCheckURL 代理健康检查的目标地址
	DefaultProxyCheckURL = "http://www.google.com"

	// DefaultProxyCheckTimeout 代理健康检查超时
	DefaultProxyCheckTimeout = 10 * time.Second
)

// ErrEmptyPool 代理池为空
var ErrEmptyPool = errors.New("代理池为空")

// ProxyProvider 管道使用的代理借还接口
type ProxyProvider interface {
	Acquire() *models.ProxyEntry
	Release(entry models.ProxyEntry)
}

// ProxyPoolOptions 代理池配置
type ProxyPoolOptions struct {
	CheckURL           string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// ProxyPool 轮转代理池
// 职责: 维护主列表、可用队列和借出计数,保证可用队列中的代理都在主列表内
type ProxyPool struct {
	mu sync.Mutex

	// 主列表(配置阶段添加,仅在健康检查失败时移除)
	master []models.ProxyEntry

	// 可用队列
	queue []models.ProxyEntry

	// 借出计数 URI -> 次数
	checkedOut map[string]int

	// 全部借出时的轮询位置
	next int

	opts ProxyPoolOptions
}

// NewProxyPool 创建代理池
func NewProxyPool(opts ProxyPoolOptions) *ProxyPool {
	if opts.CheckURL == "" {
		opts.CheckURL = DefaultProxyCheckURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultProxyCheckTimeout
	}
	return &ProxyPool{
		checkedOut: make(map[string]int),
		opts:       opts,
	}
}

// Add 添加代理,重复添加会被忽略
// 只应在爬取开始前调用
func (p *ProxyPool) Add(entry models.ProxyEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.indexOf(entry.URI) >= 0 {
		return
	}
	p.master = append(p.master, entry)
	p.queue = append(p.queue, entry)
}

// Acquire 借出一个代理,池为空时返回nil(直连)
// 队列耗尽时从主列表中补充未借出的代理;全部已借出时按轮询复用
func (p *ProxyPool) Acquire() *models.ProxyEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.master) == 0 {
		return nil
	}

	if len(p.queue) == 0 {
		p.refill()
	}

	var entry models.ProxyEntry
	if len(p.queue) > 0 {
		entry = p.queue[0]
		p.queue = p.queue[1:]
	} else {
		entry = p.master[p.next%len(p.master)]
		p.next++
		log.Debug().Str("proxy", entry.Redacted()).Msg("代理全部借出,复用已借出的代理")
	}

	p.checkedOut[entry.URI]++
	return &entry
}

// refill 把未借出且不在队列中的主列表代理放回队列
func (p *ProxyPool) refill() {
	queued := make(map[string]bool, len(p.queue))
	for _, e := range p.queue {
		queued[e.URI] = true
	}
	for _, e := range p.master {
		if p.checkedOut[e.URI] > 0 || queued[e.URI] {
			continue
		}
		p.queue = append(p.queue, e)
	}
}

// Release 归还代理到队列末尾
// 已被移除的代理不会重新入队
func (p *ProxyPool) Release(entry models.ProxyEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := p.checkedOut[entry.URI]; n > 1 {
		p.checkedOut[entry.URI] = n - 1
	} else {
		delete(p.checkedOut, entry.URI)
	}

	if p.indexOf(entry.URI) < 0 {
		return
	}
	for _, e := range p.queue {
		if e.URI == entry.URI {
			return
		}
	}
	p.queue = append(p.queue, entry)
}

// Remove 从主列表中移除代理,同时清除队列中的副本
func (p *ProxyPool) Remove(entry models.ProxyEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.indexOf(entry.URI)
	if idx < 0 {
		return
	}
	p.master = append(p.master[:idx], p.master[idx+1:]...)

	kept := p.queue[:0]
	for _, e := range p.queue {
		if e.URI != entry.URI {
			kept = append(kept, e)
		}
	}
	p.queue = kept

	log.Info().Str("proxy", entry.Redacted()).Msg("代理已从池中移除")
}

// HealthCheck 通过代理请求检查地址,10秒内返回200视为健康
func (p *ProxyPool) HealthCheck(ctx context.Context, entry models.ProxyEntry) bool {
	client, err := p.clientFor(entry)
	if err != nil {
		log.Warn().Err(err).Str("proxy", entry.Redacted()).Msg("代理地址无效")
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.opts.CheckURL, nil)
	if err != nil {
		log.Warn().Err(err).Str("check_url", p.opts.CheckURL).Msg("创建健康检查请求失败")
		return false
	}

	resp, err := client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("proxy", entry.Redacted()).Msg("代理健康检查失败")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Str("proxy", entry.Redacted()).Msg("代理健康检查状态码异常")
		return false
	}
	return true
}

// CheckAll 并发检查主列表中的所有代理并移除失败的代理
// 返回被移除的代理
func (p *ProxyPool) CheckAll(ctx context.Context, limit int) []models.ProxyEntry {
	entries := p.Entries()
	if len(entries) == 0 {
		return nil
	}
	if limit < 1 {
		limit = 1
	}

	healthy := make([]bool, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			healthy[i] = p.HealthCheck(gctx, entry)
			return nil
		})
	}
	_ = g.Wait()

	var removed []models.ProxyEntry
	for i, entry := range entries {
		if !healthy[i] {
			p.Remove(entry)
			removed = append(removed, entry)
		}
	}

	log.Info().Int("total", len(entries)).Int("removed", len(removed)).Msg("代理健康检查完成")
	return removed
}

// Entries 返回主列表副本
func (p *ProxyPool) Entries() []models.ProxyEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]models.ProxyEntry, len(p.master))
	copy(out, p.master)
	return out
}

// Len 返回主列表长度
func (p *ProxyPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.master)
}

// Available 返回可用队列长度
func (p *ProxyPool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *ProxyPool) indexOf(uri string) int {
	for i, e := range p.master {
		if e.URI == uri {
			return i
		}
	}
	return -1
}

// clientFor 创建经过指定代理的HTTP客户端
// http/https/socks5 代理均由net/http的Transport.Proxy处理
func (p *ProxyPool) clientFor(entry models.ProxyEntry) (*http.Client, error) {
	proxyURL, err := entry.URL()
	if err != nil {
		return nil, fmt.Errorf("解析代理地址失败: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = http.ProxyURL(proxyURL)
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: p.opts.InsecureSkipVerify}

	return &http.Client{Transport: transport, Timeout: p.opts.Timeout}, nil
}
