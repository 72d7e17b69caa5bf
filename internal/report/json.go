package report

import (
	"fmt"
	"io"

	"github.com/RecoveryAshes/webcrawler/internal/models"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONWriter 以缩进JSON数组输出页面记录
type JSONWriter struct{}

// Write 实现Writer接口
func (jw *JSONWriter) Write(w io.Writer, r *Report) error {
	records := r.Records
	if records == nil {
		records = []models.PageRecord{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("写入JSON失败: %w", err)
	}
	return nil
}
