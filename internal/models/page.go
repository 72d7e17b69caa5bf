package models

import "time"

// Link 页面中的一个超链接
type Link struct {
	Text string `json:"text"` // 锚文本(已去除首尾空白)
	Href string `json:"href"` // 相对页面URL解析后的绝对地址
}

// PageRecord 单个成功抓取页面的结构化记录
// 每次成功抓取创建一次,创建后不再修改
type PageRecord struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
	Depth     int       `json:"depth"`
	Links     []Link    `json:"links"`
}

// NewPageRecord 创建页面记录
// links会被复制,调用方后续修改切片不影响记录
func NewPageRecord(url, title string, depth int, links []Link, at time.Time) PageRecord {
	copied := make([]Link, len(links))
	copy(copied, links)
	return PageRecord{
		URL:       url,
		Title:     title,
		Timestamp: at,
		Depth:     depth,
		Links:     copied,
	}
}

// LinkCount 返回页面链接数量
func (p PageRecord) LinkCount() int {
	return len(p.Links)
}
