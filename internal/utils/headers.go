package utils

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/RecoveryAshes/webcrawler/internal/models"
	"golang.org/x/net/http/httpguts"
)

// MaxHeaderValueLength 自定义头部值的最大长度 (8KB)
const MaxHeaderValueLength = 8192

// HeaderPolicy 自定义请求头的校验和日志脱敏规则
// 名称和值的合法性按net/http客户端实际接受的字符集判断
type HeaderPolicy struct {
	MaxValueLength int

	// managed 由HTTP客户端自己维护的头部,用户设置会被忽略或导致请求出错
	managed map[string]bool
	// secrets 名称包含这些关键字的头部在日志中脱敏
	secrets []string
}

// NewHeaderPolicy 创建默认规则
func NewHeaderPolicy() *HeaderPolicy {
	return &HeaderPolicy{
		MaxValueLength: MaxHeaderValueLength,
		managed: map[string]bool{
			"Host":              true,
			"Content-Length":    true,
			"Transfer-Encoding": true,
			"Connection":        true,
		},
		secrets: []string{"authorization", "cookie", "token", "key", "secret", "password", "credential"},
	}
}

// Check 校验单个头部: 客户端管理的头部 → 名称 → 值
func (p *HeaderPolicy) Check(name, value string) error {
	if p.managed[http.CanonicalHeaderKey(name)] {
		return &models.HeaderError{Header: name, Reason: "由HTTP客户端自动设置,不能自定义"}
	}
	if !httpguts.ValidHeaderFieldName(name) {
		return &models.HeaderError{Header: name, Reason: "名称必须是非空的HTTP token"}
	}
	if len(value) > p.MaxValueLength {
		return &models.HeaderError{
			Header:  name,
			InValue: true,
			Reason:  fmt.Sprintf("长度 %d 字节超过上限 %d", len(value), p.MaxValueLength),
		}
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return &models.HeaderError{Header: name, InValue: true, Reason: "包含控制字符"}
	}
	return nil
}

// CheckAll 按名称顺序校验全部头部,返回第一个错误
func (p *HeaderPolicy) CheckAll(h http.Header) error {
	for _, name := range sortedNames(h) {
		for _, value := range h[name] {
			if err := p.Check(name, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// Mask 返回适合写入日志的头部值
// Bearer令牌只保留前缀,较长的密钥保留首尾各4个字符
func (p *HeaderPolicy) Mask(name, value string) string {
	lower := strings.ToLower(name)
	secret := false
	for _, kw := range p.secrets {
		if strings.Contains(lower, kw) {
			secret = true
			break
		}
	}

	switch {
	case !secret:
		return value
	case strings.HasPrefix(value, "Bearer "):
		return "Bearer ***"
	case len(value) > 8:
		return value[:4] + "***" + value[len(value)-4:]
	default:
		return "***"
	}
}

// MaskAll 脱敏整组头部,多值头部只取第一个值
func (p *HeaderPolicy) MaskAll(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) > 0 {
			out[name] = p.Mask(name, values[0])
		}
	}
	return out
}

// Summary 脱敏后格式化为 "A: 1, B: 2"
func (p *HeaderPolicy) Summary(h http.Header) string {
	parts := make([]string, 0, len(h))
	for _, name := range sortedNames(h) {
		if len(h[name]) > 0 {
			parts = append(parts, name+": "+p.Mask(name, h[name][0]))
		}
	}
	return strings.Join(parts, ", ")
}

func sortedNames(h http.Header) []string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
