package core

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RecoveryAshes/webcrawler/internal/models"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("写入配置文件失败: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfigFile(t, "headers: {}\n"))
	if err != nil {
		t.Fatalf("LoadConfig失败: %v", err)
	}

	if cfg.Crawl.MaxDepth != 3 {
		t.Errorf("MaxDepth = %d, 期望 3", cfg.Crawl.MaxDepth)
	}
	if cfg.Crawl.MaxWorkers != 5 {
		t.Errorf("MaxWorkers = %d, 期望 5", cfg.Crawl.MaxWorkers)
	}
	if cfg.Crawl.RateLimit != 1.0 {
		t.Errorf("RateLimit = %v, 期望 1.0", cfg.Crawl.RateLimit)
	}
	if cfg.Crawl.UserAgent != DefaultCrawlerUserAgent {
		t.Errorf("UserAgent = %q", cfg.Crawl.UserAgent)
	}
	if cfg.Crawl.PausePollInterval != DefaultPausePollInterval {
		t.Errorf("PausePollInterval = %v", cfg.Crawl.PausePollInterval)
	}
	if !cfg.Robots.Enabled || cfg.Robots.RespectCrawlDelay {
		t.Errorf("robots默认值错误: %+v", cfg.Robots)
	}
	if !cfg.Filter.AllowCrossDomain {
		t.Error("默认应允许跨域")
	}
	if len(cfg.Output.Formats) != 3 {
		t.Errorf("默认输出格式错误: %v", cfg.Output.Formats)
	}
	if cfg.Headers == nil {
		t.Error("Headers不应为nil")
	}
	if cfg.File() == "" {
		t.Error("File()应返回加载的配置文件")
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfigFile(t, `
crawl:
  max_depth: 5
  rate_limit: 0.5
  timeout: 20s
batch:
  delay: 3s
filter:
  allow_cross_domain: false
  exclude:
    - "\\.pdf$"
proxy:
  list:
    - 127.0.0.1:8080
headers:
  X-Custom: abc
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig失败: %v", err)
	}

	if cfg.Crawl.MaxDepth != 5 || cfg.Crawl.RateLimit != 0.5 {
		t.Errorf("爬取配置错误: %+v", cfg.Crawl)
	}
	if cfg.Crawl.Timeout != 20*time.Second {
		t.Errorf("Timeout = %v, 期望 20s", cfg.Crawl.Timeout)
	}
	if cfg.Batch.Delay != 3*time.Second {
		t.Errorf("Batch.Delay = %v, 期望 3s", cfg.Batch.Delay)
	}
	if cfg.Filter.AllowCrossDomain {
		t.Error("AllowCrossDomain应为false")
	}
	if len(cfg.Filter.Exclude) != 1 || cfg.Filter.Exclude[0] != `\.pdf$` {
		t.Errorf("Exclude错误: %v", cfg.Filter.Exclude)
	}
	// viper的键不区分大小写,统一为小写
	if cfg.Headers["x-custom"] != "abc" {
		t.Errorf("Headers错误: %v", cfg.Headers)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("WEBCRAWLER_CRAWL_MAX_DEPTH", "7")
	t.Setenv("WEBCRAWLER_CRAWL_TIMEOUT", "45s")

	cfg, err := LoadConfig(writeConfigFile(t, "crawl:\n  max_depth: 2\n"))
	if err != nil {
		t.Fatalf("LoadConfig失败: %v", err)
	}

	if cfg.Crawl.MaxDepth != 7 {
		t.Errorf("环境变量应覆盖配置文件, MaxDepth = %d", cfg.Crawl.MaxDepth)
	}
	if cfg.Crawl.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, 期望 45s", cfg.Crawl.Timeout)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := LoadConfig(writeConfigFile(t, "crawl: [unclosed\n"))
	if err == nil {
		t.Fatal("期望YAML语法错误")
	}

	var cfgErr *models.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("期望ConfigError, 实际: %T", err)
	}
}

func TestConfig_MergeCLIFlags(t *testing.T) {
	cfg, err := LoadConfig(writeConfigFile(t, "filter:\n  exclude: [\"a\"]\n"))
	if err != nil {
		t.Fatalf("LoadConfig失败: %v", err)
	}

	depth := 9
	rate := 0.0
	ignoreRobots := true
	level := "debug"
	cfg.MergeCLIFlags(CLIFlags{
		MaxDepth:     &depth,
		RateLimit:    &rate,
		IgnoreRobots: &ignoreRobots,
		Exclude:      []string{"b"},
		Proxies:      []string{"socks5://127.0.0.1:1080"},
		LogLevel:     &level,
	})

	if cfg.Crawl.MaxDepth != 9 || cfg.Crawl.RateLimit != 0 {
		t.Errorf("命令行参数未生效: %+v", cfg.Crawl)
	}
	if cfg.Crawl.MaxWorkers != 5 {
		t.Error("未设置的参数不应被修改")
	}
	if cfg.Robots.Enabled {
		t.Error("--ignore-robots应禁用robots")
	}
	if strings.Join(cfg.Filter.Exclude, ",") != "a,b" {
		t.Errorf("列表参数应追加: %v", cfg.Filter.Exclude)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("日志级别 = %s", cfg.Logging.Level)
	}

	params := cfg.CrawlParams("https://example.com")
	if params.SeedURL != "https://example.com" || params.MaxDepth != 9 || params.MaxWorkers != 5 {
		t.Errorf("CrawlParams错误: %+v", params)
	}
	if err := params.Validate(); err != nil {
		t.Errorf("参数应有效: %v", err)
	}

	opts := cfg.EngineOptions(nil, nil)
	if !opts.DisableRobots {
		t.Error("EngineOptions应禁用robots")
	}
	if opts.Proxies != nil {
		t.Error("未提供代理时应为nil")
	}
}

func TestConfig_BuildFilter(t *testing.T) {
	t.Run("禁止跨域", func(t *testing.T) {
		cfg, err := LoadConfig(writeConfigFile(t, "filter:\n  allow_cross_domain: false\n"))
		if err != nil {
			t.Fatalf("LoadConfig失败: %v", err)
		}

		filter := cfg.BuildFilter("https://Example.com/start")
		if !filter.ShouldCrawl("https://example.com/page") {
			t.Error("种子域名应被允许")
		}
		if filter.ShouldCrawl("https://other.com/page") {
			t.Error("其它域名应被拒绝")
		}
	})

	t.Run("允许跨域并排除", func(t *testing.T) {
		cfg, err := LoadConfig(writeConfigFile(t, "filter:\n  exclude: [\"\\\\.pdf$\", \"[\"]\n"))
		if err != nil {
			t.Fatalf("LoadConfig失败: %v", err)
		}

		filter := cfg.BuildFilter("https://example.com")
		if !filter.ShouldCrawl("https://other.com/page") {
			t.Error("允许跨域时其它域名应被允许")
		}
		if filter.ShouldCrawl("https://other.com/file.pdf") {
			t.Error("pdf应被排除")
		}

		include, exclude, domains := filter.RuleCount()
		if include != 0 || exclude != 1 || domains != 0 {
			t.Errorf("无效正则应被忽略: %d %d %d", include, exclude, domains)
		}
	})
}

func TestConfig_LoadProxies(t *testing.T) {
	dir := t.TempDir()
	proxyFile := filepath.Join(dir, "proxies.txt")
	content := "# 注释\n127.0.0.1:8080\nsocks5://10.0.0.1:1080\n"
	if err := os.WriteFile(proxyFile, []byte(content), 0644); err != nil {
		t.Fatalf("写入代理文件失败: %v", err)
	}

	cfg, err := LoadConfig(writeConfigFile(t, "proxy:\n  list: [\"http://10.0.0.2:3128\"]\n"))
	if err != nil {
		t.Fatalf("LoadConfig失败: %v", err)
	}
	cfg.MergeCLIFlags(CLIFlags{ProxyFile: &proxyFile})

	entries, err := cfg.LoadProxies()
	if err != nil {
		t.Fatalf("LoadProxies失败: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("期望3个代理, 实际%d: %v", len(entries), entries)
	}
	if entries[0].URI != "http://127.0.0.1:8080" {
		t.Errorf("默认协议错误: %s", entries[0].URI)
	}

	pool := cfg.NewProxyPool(entries)
	if pool.Len() != 3 {
		t.Errorf("代理池大小 = %d, 期望 3", pool.Len())
	}

	cfg.Proxy.List = []string{"://bad"}
	if _, err := cfg.LoadProxies(); err == nil {
		t.Error("配置列表中的无效代理应返回错误")
	}
}

func TestConfig_YAML(t *testing.T) {
	cfg, err := LoadConfig(writeConfigFile(t, "crawl:\n  max_depth: 4\n"))
	if err != nil {
		t.Fatalf("LoadConfig失败: %v", err)
	}

	out, err := cfg.YAML()
	if err != nil {
		t.Fatalf("YAML失败: %v", err)
	}

	text := string(out)
	for _, want := range []string{"max_depth: 4", "user_agent: EnhancedWebCrawler/1.0", "timeout: 10s"} {
		if !strings.Contains(text, want) {
			t.Errorf("YAML输出缺少 %q:\n%s", want, text)
		}
	}
}
