package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidParams 爬取参数无效
var ErrInvalidParams = errors.New("爬取参数无效")

// SessionState 会话状态
type SessionState string

const (
	SessionIdle      SessionState = "idle"      // 空闲
	SessionRunning   SessionState = "running"   // 执行中
	SessionPaused    SessionState = "paused"    // 已暂停
	SessionStopping  SessionState = "stopping"  // 停止中
	SessionCompleted SessionState = "completed" // 已完成
	SessionFailed    SessionState = "failed"    // 失败
)

// Terminal 是否为终止状态
func (s SessionState) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed
}

// CrawlParams 一次爬取会话的启动参数
type CrawlParams struct {
	SeedURL           string  `json:"seed_url" yaml:"seed_url"`
	MaxDepth          int     `json:"max_depth" yaml:"max_depth"`
	MaxWorkers        int     `json:"max_workers" yaml:"max_workers"`
	RateLimitSeconds  float64 `json:"rate_limit" yaml:"rate_limit"` // 每处理一个URL后的全局等待(秒)
	UserAgent         string  `json:"user_agent" yaml:"user_agent"`
	MaxPages          int     `json:"max_pages,omitempty" yaml:"max_pages"`                     // 0表示不限制
	RespectCrawlDelay bool    `json:"respect_crawl_delay,omitempty" yaml:"respect_crawl_delay"` // 额外遵守robots的Crawl-delay
}

// Validate 验证参数
// 种子为空、深度<1、并发<1、速率限制<0 均视为无效
func (p CrawlParams) Validate() error {
	if strings.TrimSpace(p.SeedURL) == "" {
		return fmt.Errorf("%w: 种子URL不能为空", ErrInvalidParams)
	}
	if p.MaxDepth < 1 {
		return fmt.Errorf("%w: 最大深度必须>=1,当前值: %d", ErrInvalidParams, p.MaxDepth)
	}
	if p.MaxWorkers < 1 {
		return fmt.Errorf("%w: 并发数必须>=1,当前值: %d", ErrInvalidParams, p.MaxWorkers)
	}
	if p.RateLimitSeconds < 0 {
		return fmt.Errorf("%w: 速率限制不能为负数,当前值: %.2f", ErrInvalidParams, p.RateLimitSeconds)
	}
	if p.MaxPages < 0 {
		return fmt.Errorf("%w: 最大页面数不能为负数,当前值: %d", ErrInvalidParams, p.MaxPages)
	}
	return nil
}

// Delay 返回每个URL处理后的等待时长
func (p CrawlParams) Delay() time.Duration {
	return time.Duration(p.RateLimitSeconds * float64(time.Second))
}

// SessionResult 会话终止事件
// 每个会话恰好产生一次
type SessionResult struct {
	SessionID  string        `json:"session_id"`
	Success    bool          `json:"success"`
	Stopped    bool          `json:"stopped"` // 由外部stop信号提前结束
	Err        string        `json:"error,omitempty"`
	Pages      int           `json:"pages"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Stats      StatsSnapshot `json:"stats"`
}

// Error 返回会话失败原因(成功时为nil)
func (r SessionResult) Error() error {
	if r.Success {
		return nil
	}
	return errors.New(r.Err)
}

// Duration 会话总耗时
func (r SessionResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
