package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
)

// MarkdownWriter 输出Markdown报告
type MarkdownWriter struct{}

// Write 实现Writer接口
func (mw *MarkdownWriter) Write(w io.Writer, r *Report) error {
	md := markdown.NewMarkdown(w)

	md.H1("爬取报告")
	md.PlainText("")

	startTime := "-"
	if !r.Stats.StartTime.IsZero() {
		startTime = r.Stats.StartTime.Format("2006-01-02 15:04:05")
	}
	seed := r.SeedURL
	if seed == "" {
		seed = "-"
	}
	md.Table(markdown.TableSet{
		Header: []string{"项目", "值"},
		Rows: [][]string{
			{"种子URL", seed},
			{"已抓取页面", strconv.Itoa(len(r.Records))},
			{"开始时间", startTime},
			{"总耗时", fmt.Sprintf("%.2f 秒", r.Stats.ElapsedSeconds)},
			{"错误数", strconv.FormatInt(r.Stats.Errors, 10)},
		},
	})
	md.PlainText("")

	md.H2("已抓取页面")
	md.PlainText("")

	if len(r.Records) == 0 {
		md.PlainText("没有抓取到页面。")
		return md.Build()
	}

	rows := make([][]string, 0, len(r.Records))
	for _, rec := range r.Records {
		rows = append(rows, []string{
			escapeCell(rec.URL),
			escapeCell(rec.Title),
			strconv.Itoa(rec.Depth),
			strconv.Itoa(rec.LinkCount()),
			rec.Timestamp.Format("2006-01-02 15:04:05"),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "标题", "深度", "链接数", "抓取时间"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, rec := range r.Records {
		if rec.LinkCount() == 0 {
			continue
		}
		shown, more := visibleLinks(rec.Links)

		items := make([]string, 0, len(shown)+1)
		for _, l := range shown {
			items = append(items, fmt.Sprintf("[%s](%s)", escapeLinkText(linkLabel(l)), l.Href))
		}
		if more > 0 {
			items = append(items, fmt.Sprintf("... 以及另外 %d 个链接", more))
		}

		md.H3(rec.URL)
		md.PlainText("")
		md.BulletList(items...)
		md.PlainText("")
	}

	return md.Build()
}

// escapeCell 转义表格单元格中的竖线和换行
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

func escapeLinkText(s string) string {
	r := strings.NewReplacer("[", "\\[", "]", "\\]", "\n", " ")
	return r.Replace(s)
}
