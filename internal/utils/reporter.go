package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/webcrawler/internal/models"
	jsoniter "github.com/json-iterator/go"
	"github.com/schollz/progressbar/v3"
)

// SummaryFileName 爬取摘要文件名
const SummaryFileName = "crawl_summary.json"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Reporter 摘要报告生成器
type Reporter struct {
	outputDir string
}

// NewReporter 创建报告生成器
func NewReporter(outputDir string) *Reporter {
	return &Reporter{outputDir: outputDir}
}

// GenerateSummary 写入 crawl_summary.json,返回文件路径
func (r *Reporter) GenerateSummary(report models.CrawlReport) (string, error) {
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	path := filepath.Join(r.outputDir, SummaryFileName)
	if err := SaveJSON(path, report); err != nil {
		return "", err
	}

	Infof("✅ 摘要报告已生成: %s", path)
	return path, nil
}

// LoadSummary 读取已生成的摘要报告
func LoadSummary(path string) (*models.CrawlReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取摘要报告失败: %w", err)
	}
	var report models.CrawlReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("解析摘要报告失败: %w", err)
	}
	return &report, nil
}

// SaveJSON 以缩进格式保存JSON文件
func SaveJSON(path string, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", path)
	return nil
}

// NewSpinner 创建总量未知的进度指示器(用于实时爬取面板)
func NewSpinner(w io.Writer, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowCount(),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionClearOnFinish(),
	)
}
