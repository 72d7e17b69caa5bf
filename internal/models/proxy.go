package models

import (
	"fmt"
	"net/url"
	"strings"
)

// 支持的代理协议
const (
	ProxySchemeHTTP   = "http"
	ProxySchemeHTTPS  = "https"
	ProxySchemeSOCKS5 = "socks5"
)

// ProxyEntry 出站代理
type ProxyEntry struct {
	URI    string `json:"uri" yaml:"uri"`       // 完整代理地址,如 http://10.0.0.1:8080
	Scheme string `json:"scheme" yaml:"scheme"` // http / https / socks5
}

// ParseProxyEntry 解析代理字符串
// 支持 "host:port"(使用defaultScheme) 和 "scheme://host:port" 两种写法
func ParseProxyEntry(raw string, defaultScheme string) (ProxyEntry, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ProxyEntry{}, fmt.Errorf("代理地址不能为空")
	}
	if defaultScheme == "" {
		defaultScheme = ProxySchemeHTTP
	}
	if !strings.Contains(raw, "://") {
		raw = defaultScheme + "://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return ProxyEntry{}, fmt.Errorf("代理地址格式无效: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	switch scheme {
	case ProxySchemeHTTP, ProxySchemeHTTPS, ProxySchemeSOCKS5:
	default:
		return ProxyEntry{}, fmt.Errorf("不支持的代理协议: %s", parsed.Scheme)
	}
	if parsed.Host == "" {
		return ProxyEntry{}, fmt.Errorf("代理地址缺少主机名: %s", raw)
	}

	parsed.Scheme = scheme
	return ProxyEntry{URI: parsed.String(), Scheme: scheme}, nil
}

// URL 返回解析后的代理URL
func (p ProxyEntry) URL() (*url.URL, error) {
	return url.Parse(p.URI)
}

// String 实现fmt.Stringer
func (p ProxyEntry) String() string {
	return p.URI
}

// Redacted 返回隐藏密码后的代理地址(用于日志)
func (p ProxyEntry) Redacted() string {
	u, err := url.Parse(p.URI)
	if err != nil {
		return p.URI
	}
	return u.Redacted()
}
