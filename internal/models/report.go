package models

import "time"

// CrawlReport 爬取摘要报告
// 与导出的页面数据分开保存为 crawl_summary.json
type CrawlReport struct {
	// 会话信息
	SessionID string `json:"session_id"`
	SeedURL   string `json:"seed_url"`
	Domain    string `json:"domain"`

	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒

	// 结果
	Success bool          `json:"success"`
	Stopped bool          `json:"stopped"`
	Error   string        `json:"error,omitempty"`
	Stats   StatsSnapshot `json:"stats"`

	// 导出文件
	ExportedFiles []string `json:"exported_files"`

	// 配置快照
	Params CrawlParams `json:"params"`
}
