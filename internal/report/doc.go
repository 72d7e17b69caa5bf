// Package report 导出爬取结果
//
// 支持的格式:
//   - json: 页面记录数组,原样输出
//   - csv: 每页一行 url,title,timestamp,depth,num_links
//   - html: 带统计信息的可读报告,每页最多列出10个链接
//   - md: Markdown 报告
//   - db: SQLite 数据库,pages 与 links 两张表
//
// 文件名带时间戳: crawl_report_YYYYmmdd_HHMMSS.html、crawl_data_YYYYmmdd_HHMMSS.{json,csv,md,db}
package report
