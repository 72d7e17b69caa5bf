package utils

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestLogConfig(t *testing.T, level string) LogConfig {
	t.Helper()
	return LogConfig{
		Level:      level,
		LogDir:     t.TempDir(),
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   false,
		Console:    &bytes.Buffer{},
		NoColor:    true,
	}
}

func TestInitLogger(t *testing.T) {
	config := newTestLogConfig(t, "debug")

	if err := InitLogger(config); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	Info("测试信息日志")
	Warn("测试警告日志")
	Debug("测试调试日志")

	mainLogPath := filepath.Join(config.LogDir, MainLogFile)
	content, err := os.ReadFile(mainLogPath)
	if err != nil {
		t.Fatalf("主日志文件未创建: %v", err)
	}
	for _, want := range []string{"测试信息日志", "测试警告日志", "测试调试日志"} {
		if !strings.Contains(string(content), want) {
			t.Errorf("主日志缺少内容 %q", want)
		}
	}
}

func TestLogLevels(t *testing.T) {
	config := newTestLogConfig(t, "info")

	if err := InitLogger(config); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	Infof("格式化信息日志: %s", "测试")
	Warnf("格式化警告日志: %d", 123)
	Debugf("格式化调试日志: %v", true)

	content, err := os.ReadFile(filepath.Join(config.LogDir, MainLogFile))
	if err != nil {
		t.Fatalf("读取日志文件失败: %v", err)
	}

	if !strings.Contains(string(content), "格式化警告日志: 123") {
		t.Error("警告日志未写入")
	}
	if strings.Contains(string(content), "格式化调试日志") {
		t.Error("info级别下不应写入调试日志")
	}
}

func TestErrorLogFiltering(t *testing.T) {
	config := newTestLogConfig(t, "debug")

	if err := InitLogger(config); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	Warn("只出现在主日志")
	Error(errors.New("连接被拒绝"), "抓取失败")

	content, err := os.ReadFile(filepath.Join(config.LogDir, ErrorLogFile))
	if err != nil {
		t.Fatalf("读取错误日志失败: %v", err)
	}

	if strings.Contains(string(content), "只出现在主日志") {
		t.Error("错误日志不应包含warn级别日志")
	}
	if !strings.Contains(string(content), "抓取失败") {
		t.Error("错误日志缺少error级别日志")
	}
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	config := newTestLogConfig(t, "verbose")

	if err := InitLogger(config); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	Debug("不应写入")
	Info("应当写入")

	content, err := os.ReadFile(filepath.Join(config.LogDir, MainLogFile))
	if err != nil {
		t.Fatalf("读取日志文件失败: %v", err)
	}
	if strings.Contains(string(content), "不应写入") {
		t.Error("无效级别应回退为info")
	}
	if !strings.Contains(string(content), "应当写入") {
		t.Error("info日志未写入")
	}
}

func TestDefaultLogConfig(t *testing.T) {
	config := DefaultLogConfig()

	if config.Level != "info" {
		t.Errorf("默认日志级别错误: 期望 'info', 得到 '%s'", config.Level)
	}
	if config.LogDir != "logs" {
		t.Errorf("默认日志目录错误: 期望 'logs', 得到 '%s'", config.LogDir)
	}
	if config.MaxSize != 10 || config.MaxBackups != 3 || config.MaxAge != 28 {
		t.Errorf("默认轮转参数错误: %+v", config)
	}
	if !config.Compress {
		t.Error("默认应该启用压缩")
	}
}
