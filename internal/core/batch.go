package core

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/webcrawler/internal/models"
	"github.com/RecoveryAshes/webcrawler/internal/utils"
)

// BatchCrawler 批量爬取器
// 依次为每个种子URL创建独立的Engine,会话之间互不共享队列和统计
type BatchCrawler struct {
	config *Config
	opts   EngineOptions

	batchDelay    time.Duration
	continueOnErr bool

	// OnStart 会话开始后回调(仪表盘、信号处理)
	OnStart func(seed string, engine *Engine)
	// OnFinish 会话结束后回调(导出报告)
	OnFinish func(seed string, engine *Engine, result models.SessionResult)
}

// BatchResult 单个种子的爬取结果
type BatchResult struct {
	URL         string
	SessionID   string
	Success     bool
	Stopped     bool
	Error       error
	Pages       int
	Stats       models.StatsSnapshot
	ProcessedAt time.Time
	Duration    float64
}

// BatchSummary 批量爬取摘要
type BatchSummary struct {
	TotalURLs     int
	SuccessCount  int
	FailCount     int
	TotalPages    int
	TotalBytes    int64
	TotalDuration float64
	Results       []BatchResult
}

// NewBatchCrawler 创建批量爬取器
// opts为基础引擎配置,每个种子的过滤器由配置单独构建
func NewBatchCrawler(cfg *Config, opts EngineOptions) *BatchCrawler {
	return &BatchCrawler{
		config:        cfg,
		opts:          opts,
		batchDelay:    cfg.Batch.Delay,
		continueOnErr: cfg.Batch.ContinueOnError,
	}
}

// CrawlBatch 批量爬取URL列表
// ctx取消时停止当前会话并中止剩余URL
func (bc *BatchCrawler) CrawlBatch(ctx context.Context, urls []string) (*BatchSummary, error) {
	utils.Infof("🚀 开始批量爬取: %d个URL", len(urls))

	summary := &BatchSummary{
		TotalURLs: len(urls),
		Results:   make([]BatchResult, 0, len(urls)),
	}

	startTime := time.Now()

	for i, targetURL := range urls {
		if ctx.Err() != nil {
			utils.Warn("批量爬取已取消")
			break
		}

		utils.Infof("==================== [%d/%d] ====================", i+1, len(urls))
		utils.Infof("目标URL: %s", targetURL)

		result := bc.CrawlOne(ctx, targetURL)
		summary.Results = append(summary.Results, result)

		if result.Success {
			summary.SuccessCount++
			summary.TotalPages += result.Pages
			summary.TotalBytes += result.Stats.BytesDownloaded
		} else {
			summary.FailCount++
			utils.Errorf("❌ 爬取失败: %v", result.Error)

			if !bc.continueOnErr {
				utils.Warn("批量爬取中止 (--continue-on-error=false)")
				break
			}
		}

		if result.Stopped {
			utils.Warn("会话被停止,中止剩余URL")
			break
		}

		// 最后一个URL不需要延迟
		if i < len(urls)-1 && bc.batchDelay > 0 {
			utils.Debugf("等待 %.0f 秒后处理下一个URL...", bc.batchDelay.Seconds())
			select {
			case <-time.After(bc.batchDelay):
			case <-ctx.Done():
			}
		}
	}

	summary.TotalDuration = time.Since(startTime).Seconds()
	bc.printSummary(summary)

	return summary, nil
}

// CrawlOne 爬取单个URL并等待会话结束
// ctx取消时停止会话,已抓取的数据仍通过OnFinish交给调用方
func (bc *BatchCrawler) CrawlOne(ctx context.Context, targetURL string) BatchResult {
	result := BatchResult{
		URL:         targetURL,
		ProcessedAt: time.Now(),
	}
	startTime := time.Now()

	opts := bc.opts
	opts.Filter = bc.config.BuildFilter(targetURL)
	engine := NewEngine(opts)

	if _, err := engine.Start(bc.config.CrawlParams(targetURL)); err != nil {
		result.Error = fmt.Errorf("启动爬取失败: %w", err)
		result.Duration = time.Since(startTime).Seconds()
		return result
	}
	if bc.OnStart != nil {
		bc.OnStart(targetURL, engine)
	}

	var session models.SessionResult
	select {
	case session = <-engine.Done():
	case <-ctx.Done():
		engine.Stop()
		session = <-engine.Done()
	}

	if bc.OnFinish != nil {
		bc.OnFinish(targetURL, engine, session)
	}

	result.SessionID = session.SessionID
	result.Success = session.Success
	result.Stopped = session.Stopped
	result.Error = session.Error()
	result.Pages = session.Pages
	result.Stats = session.Stats
	result.Duration = time.Since(startTime).Seconds()
	return result
}

// printSummary 打印批量爬取摘要
func (bc *BatchCrawler) printSummary(summary *BatchSummary) {
	utils.Info("==================================================")
	utils.Info("📊 批量爬取摘要")
	utils.Info("==================================================")
	utils.Infof("总URL数: %d", summary.TotalURLs)
	utils.Infof("✅ 成功: %d", summary.SuccessCount)
	utils.Infof("❌ 失败: %d", summary.FailCount)
	utils.Infof("📄 总页面数: %d", summary.TotalPages)
	utils.Infof("📦 总下载量: %s", utils.FormatBytes(summary.TotalBytes))
	utils.Infof("⏱️  总耗时: %.2f秒", summary.TotalDuration)
	utils.Info("==================================================")

	if summary.FailCount > 0 {
		utils.Warn("失败的URL:")
		for _, result := range summary.Results {
			if !result.Success {
				utils.Warnf("  - %s: %v", result.URL, result.Error)
			}
		}
	}
}
