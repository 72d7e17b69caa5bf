package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/RecoveryAshes/webcrawler/internal/crawlers"
	"github.com/RecoveryAshes/webcrawler/internal/models"
	"github.com/RecoveryAshes/webcrawler/internal/utils"
)

// DefaultPausePollInterval 暂停状态下检查恢复/停止信号的间隔
const DefaultPausePollInterval = time.Second

var (
	// ErrSessionRunning 已有会话在运行
	ErrSessionRunning = errors.New("已有爬取会话在运行")

	// ErrNoSession 尚未开始任何会话
	ErrNoSession = errors.New("没有爬取会话")
)

// EngineOptions 爬取引擎配置
type EngineOptions struct {
	// Filter 准入过滤器,为nil时放行所有URL
	Filter *crawlers.URLFilter

	// Proxies 代理提供者,为nil时直连
	Proxies crawlers.ProxyProvider

	// Headers 合并后的自定义头部
	Headers http.Header

	RequestTimeout     time.Duration
	InsecureSkipVerify bool
	MaxBodySize        int

	// DisableRobots 不检查robots.txt
	DisableRobots bool
	RobotsTimeout time.Duration
	// RobotsClient 用于抓取robots.txt的客户端,为nil时自动创建
	RobotsClient *http.Client

	PausePollInterval time.Duration

	// Stats 统计聚合器配置(时钟、采样间隔、内存采样器)
	Stats crawlers.StatsOptions
}

// Engine 爬取会话控制器
// 职责: 管理会话生命周期(开始/暂停/恢复/停止),驱动顺序的广度优先编排循环
type Engine struct {
	opts EngineOptions

	frontier *crawlers.Frontier
	stats    *crawlers.StatsAggregator
	records  *crawlers.RecordStore
	filter   *crawlers.URLFilter

	mu      sync.Mutex
	state   models.SessionState
	session *Session

	// 会话开始时创建抓取器和robots检查器
	newFetcher func(models.CrawlParams) (crawlers.Fetcher, error)
	newRobots  func(models.CrawlParams) crawlers.RobotsChecker
}

// NewEngine 创建爬取引擎
func NewEngine(opts EngineOptions) *Engine {
	if opts.PausePollInterval <= 0 {
		opts.PausePollInterval = DefaultPausePollInterval
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = crawlers.DefaultFetchTimeout
	}

	filter := opts.Filter
	if filter == nil {
		filter = crawlers.NewURLFilter()
	}

	e := &Engine{
		opts:     opts,
		frontier: crawlers.NewFrontier(),
		stats:    crawlers.NewStatsAggregator(opts.Stats),
		records:  crawlers.NewRecordStore(),
		filter:   filter,
		state:    models.SessionIdle,
	}
	e.newFetcher = e.defaultFetcher
	e.newRobots = e.defaultRobots
	return e
}

func (e *Engine) defaultFetcher(params models.CrawlParams) (crawlers.Fetcher, error) {
	return crawlers.NewCollyFetcher(crawlers.FetcherOptions{
		UserAgent:          params.UserAgent,
		Headers:            e.opts.Headers,
		Timeout:            e.opts.RequestTimeout,
		InsecureSkipVerify: e.opts.InsecureSkipVerify,
		MaxBodySize:        e.opts.MaxBodySize,
	})
}

func (e *Engine) defaultRobots(params models.CrawlParams) crawlers.RobotsChecker {
	if e.opts.DisableRobots {
		return nil
	}
	return crawlers.NewRobotsCache(crawlers.RobotsOptions{
		UserAgent:          params.UserAgent,
		Timeout:            e.opts.RobotsTimeout,
		InsecureSkipVerify: e.opts.InsecureSkipVerify,
		Client:             e.opts.RobotsClient,
	})
}

// StartCrawl 开始一个爬取会话
// 参数无效或已有会话在运行时记录日志并返回false,状态保持不变
func (e *Engine) StartCrawl(params models.CrawlParams) bool {
	if _, err := e.Start(params); err != nil {
		utils.Warnf("无法开始爬取: %v", err)
		return false
	}
	return true
}

// Start 开始一个爬取会话并返回会话上下文
func (e *Engine) Start(params models.CrawlParams) (*Session, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if params.UserAgent == "" {
		params.UserAgent = DefaultCrawlerUserAgent
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case models.SessionRunning, models.SessionPaused, models.SessionStopping:
		return nil, ErrSessionRunning
	}

	s := newSession(params)
	e.session = s
	e.state = models.SessionRunning

	e.frontier.Reset()
	e.records.Reset()
	e.frontier.Enqueue(params.SeedURL, 0)
	e.stats.StartSession()

	utils.Infof("🚀 开始爬取会话 %s", s.ID)
	utils.Infof("种子URL: %s", params.SeedURL)
	utils.Infof("最大深度: %d, 速率限制: %.2f秒", params.MaxDepth, params.RateLimitSeconds)

	go e.run(s)
	return s, nil
}

// Pause 暂停爬取,在当前URL处理完成后生效
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != models.SessionRunning {
		return
	}
	e.session.paused.Store(true)
	e.state = models.SessionPaused
	utils.Info("⏸️  爬取已暂停")
}

// Resume 恢复已暂停的爬取
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != models.SessionPaused {
		return
	}
	e.session.paused.Store(false)
	e.state = models.SessionRunning
	utils.Info("▶️  爬取已恢复")
}

// TogglePause 在暂停和运行之间切换
func (e *Engine) TogglePause() {
	if e.State() == models.SessionPaused {
		e.Resume()
		return
	}
	e.Pause()
}

// Stop 请求停止爬取,在当前URL处理完成后生效
// 会话已结束时调用无任何效果
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case models.SessionRunning, models.SessionPaused:
	default:
		return
	}
	e.session.requestStop()
	e.state = models.SessionStopping
	utils.Info("⏹️  正在停止爬取...")
}

// State 返回当前会话状态
func (e *Engine) State() models.SessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Session 返回当前(或最近一次)会话,未开始时为nil
func (e *Engine) Session() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// Snapshot 返回统计快照,任何时候都可调用
func (e *Engine) Snapshot() models.StatsSnapshot {
	return e.stats.Snapshot()
}

// Records 返回已抓取页面记录的副本,会话进行中返回部分结果
func (e *Engine) Records() []models.PageRecord {
	return e.records.Records()
}

// Done 返回当前会话的终止事件通道,每个会话恰好发送一次
// 尚未开始会话时返回nil
func (e *Engine) Done() <-chan models.SessionResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	return e.session.done
}

// Wait 等待当前会话结束并返回结果
// 与Done互不影响,可在任意goroutine中多次调用
func (e *Engine) Wait(ctx context.Context) (models.SessionResult, error) {
	s := e.Session()
	if s == nil {
		return models.SessionResult{}, ErrNoSession
	}

	select {
	case <-s.finished:
		return s.result, nil
	case <-ctx.Done():
		return models.SessionResult{}, ctx.Err()
	}
}

// run 会话主循环,逃逸出循环的panic作为会话失败上报
func (e *Engine) run(s *Session) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("爬取线程异常: %v", r)
			utils.Error(err, "爬取会话失败")
			e.finish(s, err)
		}
	}()

	err := e.loop(s)
	e.finish(s, err)
}

// loop 顺序编排: 出队 → 深度检查 → 管道处理 → 等待 → 重复
// 队列为空、达到页面上限或收到停止信号时结束
func (e *Engine) loop(s *Session) error {
	fetcher, err := e.newFetcher(s.Params)
	if err != nil {
		return fmt.Errorf("创建抓取器失败: %w", err)
	}
	robots := e.newRobots(s.Params)

	s.pipeline = &crawlers.Pipeline{
		Frontier: e.frontier,
		Filter:   e.filter,
		Robots:   robots,
		Proxies:  e.opts.Proxies,
		Fetcher:  fetcher,
		Stats:    e.stats,
		Records:  e.records,
	}
	delay := s.Params.Delay()

	for {
		if s.StopRequested() {
			utils.Info("收到停止信号,结束爬取")
			return nil
		}

		if s.Paused() {
			s.sleep(e.opts.PausePollInterval)
			continue
		}

		if s.Params.MaxPages > 0 && e.stats.Snapshot().PagesCrawled >= int64(s.Params.MaxPages) {
			utils.Infof("已达到页面上限 %d,结束爬取", s.Params.MaxPages)
			return nil
		}

		item, ok := e.frontier.Dequeue()
		if !ok {
			return nil
		}
		e.stats.SetQueueSize(e.frontier.Len())

		if item.Depth > s.Params.MaxDepth {
			continue
		}

		// 只对即将真正抓取的URL限速;等待被停止信号打断时不再抓取
		if s.Params.RespectCrawlDelay && !e.frontier.IsVisited(item.URL) && e.filter.ShouldCrawl(item.URL) {
			s.throttle(s.runCtx, robots, item.URL)
			if s.StopRequested() {
				continue
			}
		}

		res := s.pipeline.Process(s.runCtx, item)
		if res.Outcome == crawlers.OutcomeSkipped {
			continue
		}
		s.sleep(delay)
	}
}

// finish 停止统计并发出终止事件
func (e *Engine) finish(s *Session, err error) {
	e.stats.StopSession()

	result := models.SessionResult{
		SessionID:  s.ID,
		Success:    err == nil,
		Stopped:    s.StopRequested(),
		Pages:      e.records.Len(),
		StartedAt:  s.StartedAt,
		FinishedAt: time.Now(),
		Stats:      e.stats.Snapshot(),
	}
	if err != nil {
		result.Err = err.Error()
	}

	e.mu.Lock()
	if err != nil {
		e.state = models.SessionFailed
	} else {
		e.state = models.SessionCompleted
	}
	e.mu.Unlock()

	if err != nil {
		utils.Errorf("❌ 爬取会话 %s 失败: %v", s.ID, err)
	} else {
		utils.Infof("✅ 爬取会话 %s 完成: 页面 %d, 错误 %d, 耗时 %.2f秒",
			s.ID, result.Stats.PagesCrawled, result.Stats.Errors, result.Stats.ElapsedSeconds)
	}

	s.close(result)
}

// parseHost 返回URL的小写主机名(含端口)
func parseHost(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL缺少主机名: %s", rawURL)
	}
	return strings.ToLower(u.Host), nil
}
