package models

// FrontierItem 表示待爬队列中的一个工作项
// 用途:
//   - 爬取开始时以深度0创建种子项
//   - 页面中发现的链接以 depth+1 入队
//   - 出队处理后即丢弃
type FrontierItem struct {
	// URL 完整的URL字符串(未规范化,保持链接解析后的原样)
	URL string

	// Depth URL的深度层级
	//   - 0: 种子URL
	//   - 1: 从种子页面发现的链接
	//   - 以此类推...
	Depth int

	// SourceURL 发现此URL的源页面(可选,用于调试)
	SourceURL string
}
