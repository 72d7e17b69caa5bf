package main

import (
	"fmt"

	"github.com/RecoveryAshes/webcrawler/internal/core"
	"github.com/RecoveryAshes/webcrawler/internal/models"
	"github.com/RecoveryAshes/webcrawler/internal/report"
)

// ValidateConfig 验证合并后的配置,返回解析后的导出格式
func ValidateConfig(targetURL string, cfg *core.Config) ([]report.Format, error) {
	if targetURL != "" {
		if err := models.ValidateURL(targetURL); err != nil {
			return nil, fmt.Errorf("无效的目标URL: %w", err)
		}
	}

	if cfg.Crawl.MaxDepth < 1 {
		return nil, fmt.Errorf("爬取深度必须>=1,当前值: %d", cfg.Crawl.MaxDepth)
	}
	if cfg.Crawl.MaxWorkers < 1 || cfg.Crawl.MaxWorkers > 100 {
		return nil, fmt.Errorf("并发数必须在1-100之间,当前值: %d", cfg.Crawl.MaxWorkers)
	}
	if cfg.Crawl.RateLimit < 0 {
		return nil, fmt.Errorf("速率限制不能为负数,当前值: %.2f", cfg.Crawl.RateLimit)
	}
	if cfg.Crawl.MaxPages < 0 {
		return nil, fmt.Errorf("最大页面数不能为负数,当前值: %d", cfg.Crawl.MaxPages)
	}
	if cfg.Crawl.Timeout <= 0 {
		return nil, fmt.Errorf("请求超时必须大于0,当前值: %v", cfg.Crawl.Timeout)
	}
	if cfg.Batch.Delay < 0 {
		return nil, fmt.Errorf("批量延迟不能为负数,当前值: %v", cfg.Batch.Delay)
	}

	formats, err := report.ParseFormats(cfg.Output.Formats)
	if err != nil {
		return nil, err
	}
	return formats, nil
}
