package crawlers

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// CanonicalURL 返回用于去重的规范化URL
// 规则: 协议小写、主机IDNA转换并小写、去除默认端口、空路径补"/"、去除片段
// 无法解析或没有主机的URL原样返回,作为独立的键
func CanonicalURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	scheme := strings.ToLower(u.Scheme)
	host := u.Hostname()
	port := u.Port()

	if ascii, err := idna.Lookup.ToASCII(host); err == nil && ascii != "" {
		host = ascii
	}
	host = strings.ToLower(host)

	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}

	switch {
	case port != "":
		host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		host = "[" + host + "]"
	}

	u.Scheme = scheme
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" && u.Opaque == "" {
		u.Path = "/"
		u.RawPath = ""
	}

	return u.String()
}

// ResolveLink 将href相对页面URL解析为绝对地址
func ResolveLink(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("解析链接失败: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// IsCrawlableURL 判断URL是否为可抓取的http/https地址
func IsCrawlableURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// hostKey 返回URL的小写主机键(含非默认端口),用于按域名缓存
func hostKey(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("URL格式无效: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL缺少主机名: %s", raw)
	}
	return strings.ToLower(u.Host), nil
}
