package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RecoveryAshes/webcrawler/internal/core"
	"github.com/RecoveryAshes/webcrawler/internal/models"
	"github.com/RecoveryAshes/webcrawler/internal/report"
)

func loadTestConfig(t *testing.T) *core.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("headers: {}\n"), 0644); err != nil {
		t.Fatalf("写入配置文件失败: %v", err)
	}
	cfg, err := core.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig失败: %v", err)
	}
	return cfg
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		modify  func(cfg *core.Config)
		wantErr bool
	}{
		{"默认配置", "https://example.com", nil, false},
		{"批量模式无URL", "", nil, false},
		{"无效URL", "ftp://example.com", nil, true},
		{"深度为0", "https://example.com", func(c *core.Config) { c.Crawl.MaxDepth = 0 }, true},
		{"并发过大", "https://example.com", func(c *core.Config) { c.Crawl.MaxWorkers = 101 }, true},
		{"负速率", "https://example.com", func(c *core.Config) { c.Crawl.RateLimit = -1 }, true},
		{"零速率", "https://example.com", func(c *core.Config) { c.Crawl.RateLimit = 0 }, false},
		{"负页面上限", "https://example.com", func(c *core.Config) { c.Crawl.MaxPages = -1 }, true},
		{"超时为0", "https://example.com", func(c *core.Config) { c.Crawl.Timeout = 0 }, true},
		{"未知格式", "https://example.com", func(c *core.Config) { c.Output.Formats = []string{"xml"} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadTestConfig(t)
			if tt.modify != nil {
				tt.modify(cfg)
			}

			_, err := ValidateConfig(tt.url, cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateConfig_Formats(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.Output.Formats = []string{"json", "markdown", "sqlite"}

	formats, err := ValidateConfig("https://example.com", cfg)
	if err != nil {
		t.Fatalf("ValidateConfig失败: %v", err)
	}
	want := []report.Format{report.FormatJSON, report.FormatMarkdown, report.FormatSQLite}
	if len(formats) != len(want) {
		t.Fatalf("formats = %v, 期望 %v", formats, want)
	}
	for i := range want {
		if formats[i] != want[i] {
			t.Errorf("formats[%d] = %s, 期望 %s", i, formats[i], want[i])
		}
	}

	cfg.Output.Formats = []string{"pdf"}
	if _, err := ValidateConfig("", cfg); !errors.Is(err, report.ErrUnsupportedFormat) {
		t.Errorf("期望ErrUnsupportedFormat, 实际: %v", err)
	}
}

func TestOutputDirName(t *testing.T) {
	tests := map[string]string{
		"https://Example.com/path":    "example.com",
		"http://127.0.0.1:8080/":      "127.0.0.1_8080",
		"not a url with no host":      "unknown",
		"https://sub.example.org:443": "sub.example.org_443",
	}
	for seed, want := range tests {
		if got := outputDirName(seed); got != want {
			t.Errorf("outputDirName(%q) = %q, 期望 %q", seed, got, want)
		}
	}
}

func TestDescribe(t *testing.T) {
	snap := models.StatsSnapshot{Errors: 2, QueueSize: 7, CurrentDepth: 1, CrawlSpeed: 3.5, MemoryMB: 12.25}

	running := describe(models.SessionRunning, snap)
	if !strings.Contains(running, "爬取中") || !strings.Contains(running, "队列 7") || !strings.Contains(running, "3.5 页/分") {
		t.Errorf("面板描述错误: %s", running)
	}

	paused := describe(models.SessionPaused, snap)
	if !strings.Contains(paused, "已暂停") {
		t.Errorf("暂停状态描述错误: %s", paused)
	}
}

func TestSessionControl(t *testing.T) {
	var sc sessionControl
	if sc.current() != nil {
		t.Error("初始应为nil")
	}

	e := core.NewEngine(core.EngineOptions{})
	sc.set(e)
	if sc.current() != e {
		t.Error("current()应返回设置的引擎")
	}
}
