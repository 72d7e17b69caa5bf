package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigFile 默认配置文件路径
const DefaultConfigFile = "configs/config.yaml"

//go:embed config_template.yaml
var defaultConfigTemplate string

// Template 返回带注释的默认配置模板
func Template() string {
	return defaultConfigTemplate
}

// EnsureConfigExists 确保配置文件存在,不存在时写入默认模板
// 返回是否新建了文件
func EnsureConfigExists(path string) (bool, error) {
	if path == "" {
		path = DefaultConfigFile
	}

	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("无法读取配置文件信息 [%s]: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, fmt.Errorf("无法创建配置目录 [%s]: %w", dir, err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0644); err != nil {
		return false, fmt.Errorf("无法生成配置文件 [%s]: %w", path, err)
	}
	return true, nil
}
