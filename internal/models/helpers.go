package models

import (
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

// ValidateURL 检查种子URL: 必须是带主机名的http/https地址
// 命令行参数和URL文件共用这一规则
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	switch {
	case err != nil:
		return fmt.Errorf("URL格式无效: %w", err)
	case u.Scheme == "":
		return fmt.Errorf("URL缺少协议(http/https): %s", rawURL)
	case u.Scheme != "http" && u.Scheme != "https":
		return fmt.Errorf("不支持的协议 %q,仅支持http/https", u.Scheme)
	case u.Host == "":
		return fmt.Errorf("URL缺少主机名: %s", rawURL)
	}
	return nil
}

// NewSessionID 生成会话唯一ID
func NewSessionID() string {
	return uuid.New().String()
}
