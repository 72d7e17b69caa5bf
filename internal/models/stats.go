package models

import "time"

// StatsSnapshot 爬取统计的时间点快照
// 由StatsAggregator在单个临界区内复制生成
type StatsSnapshot struct {
	PagesCrawled    int64     `json:"pages_crawled"`
	BytesDownloaded int64     `json:"bytes_downloaded"`
	Errors          int64     `json:"errors"`
	CurrentDepth    int       `json:"current_depth"`
	QueueSize       int       `json:"urls_in_queue"`
	ElapsedSeconds  float64   `json:"elapsed_time"`
	CrawlSpeed      float64   `json:"crawl_speed"`  // 页/分钟,最近10次采样的平均值
	MemoryMB        float64   `json:"memory_usage"` // 最近一次常驻内存采样(MB)
	StartTime       time.Time `json:"start_time"`
}

// Elapsed 返回已用时间
func (s StatsSnapshot) Elapsed() time.Duration {
	return time.Duration(s.ElapsedSeconds * float64(time.Second))
}
