package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RecoveryAshes/webcrawler/internal/crawlers"
	"github.com/RecoveryAshes/webcrawler/internal/models"
	"golang.org/x/time/rate"
)

// Session 单次爬取会话的上下文
// 会话内所有可变状态都挂在这里,由Engine在开始时创建并传给编排循环
type Session struct {
	ID        string
	Params    models.CrawlParams
	StartedAt time.Time

	pipeline *crawlers.Pipeline

	paused        atomic.Bool
	stopRequested atomic.Bool

	// stopCtx 在Stop时取消,用于打断等待;管道使用独立的runCtx,进行中的请求不受影响
	stopCtx  context.Context
	stop     context.CancelFunc
	runCtx   context.Context
	finishFn context.CancelFunc

	// 按域名的Crawl-delay限速器
	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter

	done     chan models.SessionResult
	finished chan struct{}
	result   models.SessionResult
}

func newSession(params models.CrawlParams) *Session {
	stopCtx, stop := context.WithCancel(context.Background())
	runCtx, finish := context.WithCancel(context.Background())
	return &Session{
		ID:        models.NewSessionID(),
		Params:    params,
		StartedAt: time.Now(),
		stopCtx:   stopCtx,
		stop:      stop,
		runCtx:    runCtx,
		finishFn:  finish,
		limiters:  make(map[string]*rate.Limiter),
		done:      make(chan models.SessionResult, 1),
		finished:  make(chan struct{}),
	}
}

// Paused 是否处于暂停状态
func (s *Session) Paused() bool {
	return s.paused.Load()
}

// StopRequested 是否已收到停止信号
func (s *Session) StopRequested() bool {
	return s.stopRequested.Load()
}

func (s *Session) requestStop() {
	if s.stopRequested.CompareAndSwap(false, true) {
		s.stop()
	}
}

// sleep 等待指定时长,收到停止信号时提前返回
func (s *Session) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-s.stopCtx.Done():
	}
}

// throttle 按robots声明的Crawl-delay对同一域名限速
func (s *Session) throttle(ctx context.Context, robots crawlers.RobotsChecker, rawURL string) {
	if robots == nil {
		return
	}
	delay := robots.CrawlDelay(ctx, rawURL)
	if delay <= 0 {
		return
	}

	host, err := parseHost(rawURL)
	if err != nil {
		return
	}

	s.limitersMu.Lock()
	limiter, ok := s.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
		s.limiters[host] = limiter
	}
	s.limitersMu.Unlock()

	// 停止信号会打断等待,进行中的URL继续完成
	_ = limiter.Wait(s.stopCtx)
}

// close 记录结果并发出唯一的终止事件
func (s *Session) close(result models.SessionResult) {
	s.result = result
	s.done <- result
	close(s.finished)
	s.stop()
	s.finishFn()
}
