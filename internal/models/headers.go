package models

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrHeaderSyntax -H 参数不是 "Name: Value" 形式
var ErrHeaderSyntax = errors.New("头部应写成 'Name: Value'")

// CliHeaders 命令行 -H 传入的原始头部
type CliHeaders []string

// Parse 按第一个冒号切分名称和值,同名头部以最后一次出现为准
func (ch CliHeaders) Parse() (http.Header, error) {
	h := make(http.Header, len(ch))
	for i, raw := range ch {
		name, value, ok := strings.Cut(raw, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("--header 第%d项 %q: %w", i+1, raw, ErrHeaderSyntax)
		}
		h.Set(name, strings.TrimSpace(value))
	}
	return h, nil
}

// HeaderError 自定义请求头未通过校验
type HeaderError struct {
	Header string
	// InValue 为true时问题出在值上,否则是名称非法或头部不允许自定义
	InValue bool
	Reason  string
}

func (e *HeaderError) Error() string {
	part := "名称"
	if e.InValue {
		part = "值"
	}
	return fmt.Sprintf("请求头 %s 的%s无效: %s", e.Header, part, e.Reason)
}
