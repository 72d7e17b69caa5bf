package report

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/RecoveryAshes/webcrawler/internal/models"
)

// Format 导出格式
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "md"
	FormatSQLite   Format = "db"
)

// ErrUnsupportedFormat 不支持的导出格式
var ErrUnsupportedFormat = errors.New("不支持的导出格式")

// MaxLinksPerPage HTML/Markdown报告中每个页面最多列出的链接数
const MaxLinksPerPage = 10

// filenameTimeLayout 文件名中的时间格式
const filenameTimeLayout = "20060102_150405"

// ParseFormat 解析格式名称(不区分大小写),markdown/sqlite作为别名
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "html":
		return FormatHTML, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "db", "sqlite":
		return FormatSQLite, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
}

// Filename 返回指定格式的导出文件名
func (f Format) Filename(at time.Time) string {
	stamp := at.Format(filenameTimeLayout)
	if f == FormatHTML {
		return "crawl_report_" + stamp + ".html"
	}
	return "crawl_data_" + stamp + "." + string(f)
}

// Report 一次导出的输入
type Report struct {
	SeedURL     string
	Records     []models.PageRecord
	Stats       models.StatsSnapshot
	GeneratedAt time.Time
}

// Writer 流式导出器
// SQLite需要文件路径,不实现此接口
type Writer interface {
	Write(w io.Writer, r *Report) error
}

// NewWriter 返回格式对应的流式导出器
func NewWriter(f Format) (Writer, error) {
	switch f {
	case FormatJSON:
		return &JSONWriter{}, nil
	case FormatCSV:
		return &CSVWriter{}, nil
	case FormatHTML:
		return &HTMLWriter{}, nil
	case FormatMarkdown:
		return &MarkdownWriter{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
}

// visibleLinks 返回前MaxLinksPerPage个链接和剩余数量
func visibleLinks(links []models.Link) ([]models.Link, int) {
	if len(links) <= MaxLinksPerPage {
		return links, 0
	}
	return links[:MaxLinksPerPage], len(links) - MaxLinksPerPage
}

// linkLabel 链接文本为空时使用地址
func linkLabel(l models.Link) string {
	if l.Text != "" {
		return l.Text
	}
	return l.Href
}
