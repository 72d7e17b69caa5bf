package config

import (
	"fmt"
	"os"

	"github.com/RecoveryAshes/webcrawler/internal/models"
	"github.com/RecoveryAshes/webcrawler/internal/utils"
)

// MaxProxyFileSize 代理列表文件最大大小 (1MB)
const MaxProxyFileSize = 1 * 1024 * 1024

// ProxyListLoader 代理列表加载器
// 文件格式: 每行一个代理,支持 host:port 和 scheme://host:port,#开头为注释
type ProxyListLoader struct {
	path          string
	defaultScheme string
}

// NewProxyListLoader 创建代理列表加载器
func NewProxyListLoader(path, defaultScheme string) *ProxyListLoader {
	if defaultScheme == "" {
		defaultScheme = models.ProxySchemeHTTP
	}
	return &ProxyListLoader{
		path:          path,
		defaultScheme: defaultScheme,
	}
}

// ValidateFileSize 验证文件大小是否在限制内
func (l *ProxyListLoader) ValidateFileSize() error {
	info, err := os.Stat(l.path)
	if err != nil {
		return &models.ConfigError{
			FilePath: l.path,
			Cause:    fmt.Errorf("无法读取文件信息: %w", err),
		}
	}

	if info.Size() > MaxProxyFileSize {
		return &models.ConfigError{
			FilePath: l.path,
			Cause: fmt.Errorf("代理文件过大: %d 字节 (最大 %d 字节)",
				info.Size(), MaxProxyFileSize),
		}
	}
	return nil
}

// Load 读取并解析代理列表
// 无效行记录警告后跳过,重复代理只保留第一次出现
func (l *ProxyListLoader) Load() ([]models.ProxyEntry, error) {
	if err := l.ValidateFileSize(); err != nil {
		return nil, err
	}

	file, err := os.Open(l.path)
	if err != nil {
		return nil, &models.ConfigError{FilePath: l.path, Cause: err}
	}
	defer file.Close()

	lines, err := utils.ReadLines(file)
	if err != nil {
		return nil, &models.ConfigError{
			FilePath: l.path,
			Cause:    fmt.Errorf("读取代理文件失败: %w", err),
		}
	}

	seen := make(map[string]bool, len(lines))
	entries := make([]models.ProxyEntry, 0, len(lines))
	for _, line := range lines {
		entry, err := models.ParseProxyEntry(line.Text, l.defaultScheme)
		if err != nil {
			utils.Warnf("跳过无效代理 (行 %d): %s - %v", line.Number, line.Text, err)
			continue
		}
		if seen[entry.URI] {
			continue
		}
		seen[entry.URI] = true
		entries = append(entries, entry)
	}

	utils.Infof("从 %s 加载了 %d 个代理", l.path, len(entries))
	return entries, nil
}

// ParseProxyList 解析命令行或配置文件中的代理列表
// 与文件加载不同,任何一项无效都会返回错误
func ParseProxyList(raws []string, defaultScheme string) ([]models.ProxyEntry, error) {
	seen := make(map[string]bool, len(raws))
	entries := make([]models.ProxyEntry, 0, len(raws))
	for _, raw := range raws {
		entry, err := models.ParseProxyEntry(raw, defaultScheme)
		if err != nil {
			return nil, fmt.Errorf("代理 %q 无效: %w", raw, err)
		}
		if seen[entry.URI] {
			continue
		}
		seen[entry.URI] = true
		entries = append(entries, entry)
	}
	return entries, nil
}
