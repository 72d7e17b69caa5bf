package core

import (
	"net/http"

	"github.com/RecoveryAshes/webcrawler/internal/models"
	"github.com/RecoveryAshes/webcrawler/internal/utils"
)

const (
	// DefaultUserAgent 自定义头部中的默认User-Agent
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/120.0.0.0 Safari/537.36"

	// DefaultCrawlerUserAgent 爬取参数的默认User-Agent,实际请求以它为准
	DefaultCrawlerUserAgent = "EnhancedWebCrawler/1.0"
)

// HeaderManager 管理HTTP请求头部的生命周期
type HeaderManager struct {
	// defaults 系统默认头部 (硬编码)
	defaults http.Header

	// config 配置文件 headers 段
	config http.Header

	// cli 从命令行参数解析的头部
	cli http.Header

	policy *utils.HeaderPolicy
}

// NewHeaderManager 创建头部管理器
// 参数:
//   - configHeaders: 配置文件 headers 段 (可为nil)
//   - cliHeaders: 命令行 -H 传递的头部字符串列表
//
// 命令行参数格式错误时返回错误
func NewHeaderManager(configHeaders map[string]string, cliHeaders []string) (*HeaderManager, error) {
	hm := &HeaderManager{
		defaults: getDefaultHeaders(),
		config:   make(http.Header),
		policy:   utils.NewHeaderPolicy(),
	}

	for name, value := range configHeaders {
		hm.config.Set(name, value)
	}
	if len(hm.config) > 0 {
		utils.Debugf("加载%d个配置文件头部: %s", len(hm.config), hm.policy.Summary(hm.config))
	}

	cli, err := models.CliHeaders(cliHeaders).Parse()
	if err != nil {
		return nil, err
	}
	hm.cli = cli

	return hm, nil
}

// getDefaultHeaders 返回系统默认头部
func getDefaultHeaders() http.Header {
	return http.Header{
		"User-Agent":      []string{DefaultUserAgent},
		"Accept":          []string{"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
		"Accept-Encoding": []string{"gzip, deflate, br"},
	}
}

// Validate 验证所有头部的合法性
// 验证顺序: 默认 → 配置 → 命令行
func (hm *HeaderManager) Validate() error {
	if err := hm.policy.CheckAll(hm.defaults); err != nil {
		utils.Errorf("默认头部验证失败: %v", err)
		return err
	}

	if err := hm.policy.CheckAll(hm.config); err != nil {
		utils.Errorf("配置文件头部验证失败: %v", err)
		return err
	}

	if err := hm.policy.CheckAll(hm.cli); err != nil {
		utils.Errorf("命令行头部验证失败: %v", err)
		return err
	}

	utils.Debugf("所有HTTP头部验证通过")
	return nil
}

// GetMergedHeaders 按优先级合并头部 (default < config < cli)
func (hm *HeaderManager) GetMergedHeaders() http.Header {
	result := make(http.Header)

	for _, layer := range []http.Header{hm.defaults, hm.config, hm.cli} {
		for name, values := range layer {
			result[name] = append([]string(nil), values...)
		}
	}

	return result
}

// ExplicitUserAgent 返回命令行或配置文件显式指定的User-Agent,未指定时为空
func (hm *HeaderManager) ExplicitUserAgent() string {
	if ua := hm.cli.Get("User-Agent"); ua != "" {
		return ua
	}
	return hm.config.Get("User-Agent")
}

// GetSafeHeaders 返回脱敏后的头部 (用于日志)
func (hm *HeaderManager) GetSafeHeaders() map[string]string {
	return hm.policy.MaskAll(hm.GetMergedHeaders())
}

// GetHeaders 返回验证并合并后的HTTP请求头部
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	if err := hm.Validate(); err != nil {
		return nil, err
	}
	return hm.GetMergedHeaders(), nil
}
