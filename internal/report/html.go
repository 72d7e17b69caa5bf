package report

import (
	"fmt"
	"html/template"
	"io"

	"github.com/RecoveryAshes/webcrawler/internal/models"
)

const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>爬取报告 - {{.GeneratedAt.Format "2006-01-02 15:04:05"}}</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .stats { background: #f5f5f5; padding: 15px; border-radius: 5px; }
        .page { margin: 15px 0; padding: 10px; border: 1px solid #ddd; }
        .links { margin-left: 20px; }
    </style>
</head>
<body>
    <h1>爬取报告</h1>

    <div class="stats">
        <h2>爬取统计</h2>
        {{- if .SeedURL}}
        <p>种子URL: {{.SeedURL}}</p>
        {{- end}}
        <p>已抓取页面: {{len .Pages}}</p>
        <p>开始时间: {{.StartTime}}</p>
        <p>总耗时: {{printf "%.2f" .Stats.ElapsedSeconds}} 秒</p>
        <p>错误数: {{.Stats.Errors}}</p>
    </div>

    <h2>已抓取页面</h2>
{{- range .Pages}}
    <div class="page">
        <h3><a href="{{.URL}}">{{if .Title}}{{.Title}}{{else}}{{.URL}}{{end}}</a></h3>
        <p>深度: {{.Depth}}</p>
        <p>抓取时间: {{.Timestamp.Format "2006-01-02 15:04:05"}}</p>

        <div class="links">
            <h4>发现链接 ({{.Total}})</h4>
            <ul>
            {{- range .Links}}
                <li><a href="{{.Href}}">{{.Label}}</a></li>
            {{- end}}
            {{- if .More}}
                <li>... 以及另外 {{.More}} 个链接</li>
            {{- end}}
            </ul>
        </div>
    </div>
{{- end}}
</body>
</html>
`

var reportTemplate = template.Must(template.New("report").Parse(htmlTemplate))

type htmlLink struct {
	Href  string
	Label string
}

type htmlPage struct {
	models.PageRecord
	Links []htmlLink
	Total int
	More  int
}

type htmlData struct {
	*Report
	Pages     []htmlPage
	StartTime string
}

// HTMLWriter 输出可读的HTML报告
type HTMLWriter struct{}

// Write 实现Writer接口
func (hw *HTMLWriter) Write(w io.Writer, r *Report) error {
	data := htmlData{
		Report:    r,
		Pages:     make([]htmlPage, 0, len(r.Records)),
		StartTime: "-",
	}
	if !r.Stats.StartTime.IsZero() {
		data.StartTime = r.Stats.StartTime.Format("2006-01-02 15:04:05")
	}

	for _, rec := range r.Records {
		shown, more := visibleLinks(rec.Links)
		page := htmlPage{
			PageRecord: rec,
			Links:      make([]htmlLink, 0, len(shown)),
			Total:      rec.LinkCount(),
			More:       more,
		}
		for _, l := range shown {
			page.Links = append(page.Links, htmlLink{Href: l.Href, Label: linkLabel(l)})
		}
		data.Pages = append(data.Pages, page)
	}

	if err := reportTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("生成HTML报告失败: %w", err)
	}
	return nil
}
