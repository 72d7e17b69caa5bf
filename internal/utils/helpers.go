package utils

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/RecoveryAshes/webcrawler/internal/models"
)

// ReadURLsFromFile 从文件中读取种子URL列表
// 跳过空行、#注释行和无效URL
func ReadURLsFromFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开URL文件失败: %w", err)
	}
	defer file.Close()

	lines, err := ReadLines(file)
	if err != nil {
		return nil, fmt.Errorf("读取URL文件失败: %w", err)
	}

	urls := make([]string, 0, len(lines))
	for _, line := range lines {
		if err := models.ValidateURL(line.Text); err != nil {
			Warnf("跳过无效URL (行 %d): %s - %v", line.Number, line.Text, err)
			continue
		}
		urls = append(urls, line.Text)
	}

	if len(urls) == 0 {
		return nil, fmt.Errorf("URL文件中没有有效的URL")
	}

	Infof("从文件加载了 %d 个URL", len(urls))
	return urls, nil
}

// Line 带行号的文本行
type Line struct {
	Number int
	Text   string
}

// ReadLines 读取所有非空、非#注释行(已去除首尾空白)
func ReadLines(r io.Reader) ([]Line, error) {
	var lines []Line
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		lines = append(lines, Line{Number: lineNum, Text: text})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// ExtractDomain 提取URL的主机部分(含端口),失败时返回空字符串
func ExtractDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Host)
}

// FormatBytes 将字节数格式化为易读字符串
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
