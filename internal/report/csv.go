package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// csvHeader CSV表头
var csvHeader = []string{"url", "title", "timestamp", "depth", "num_links"}

// CSVWriter 每个页面输出一行
type CSVWriter struct{}

// Write 实现Writer接口
func (cw *CSVWriter) Write(w io.Writer, r *Report) error {
	out := csv.NewWriter(w)

	if err := out.Write(csvHeader); err != nil {
		return fmt.Errorf("写入CSV表头失败: %w", err)
	}
	for _, rec := range r.Records {
		row := []string{
			rec.URL,
			rec.Title,
			rec.Timestamp.Format(time.RFC3339),
			strconv.Itoa(rec.Depth),
			strconv.Itoa(rec.LinkCount()),
		}
		if err := out.Write(row); err != nil {
			return fmt.Errorf("写入CSV失败: %w", err)
		}
	}

	out.Flush()
	return out.Error()
}
