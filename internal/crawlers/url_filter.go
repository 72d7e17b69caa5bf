package crawlers

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// URLFilter URL准入过滤器
// 判定顺序: 域名白名单 → 排除规则 → 包含规则,逐级短路
type URLFilter struct {
	mu sync.RWMutex

	include []*regexp.Regexp
	exclude []*regexp.Regexp

	// 允许的域名(精确匹配netloc,小写)
	domains map[string]struct{}
}

// NewURLFilter 创建空过滤器,空过滤器放行所有可解析的URL
func NewURLFilter() *URLFilter {
	return &URLFilter{
		domains: make(map[string]struct{}),
	}
}

// AddIncludePattern 添加包含规则
// 规则编译失败时记录错误并忽略该规则
func (f *URLFilter) AddIncludePattern(pattern string) error {
	re, err := compilePattern(pattern)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.include = append(f.include, re)
	f.mu.Unlock()
	return nil
}

// AddExcludePattern 添加排除规则
func (f *URLFilter) AddExcludePattern(pattern string) error {
	re, err := compilePattern(pattern)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.exclude = append(f.exclude, re)
	f.mu.Unlock()
	return nil
}

// AddAllowedDomain 添加允许的域名(不区分大小写)
func (f *URLFilter) AddAllowedDomain(domain string) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return
	}

	f.mu.Lock()
	f.domains[domain] = struct{}{}
	f.mu.Unlock()
}

// ShouldCrawl 判断URL是否允许抓取
func (f *URLFilter) ShouldCrawl(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		log.Warn().Err(err).Str("url", rawURL).Msg("URL格式无效,已拒绝")
		return false
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.domains) > 0 {
		if _, ok := f.domains[strings.ToLower(parsed.Host)]; !ok {
			return false
		}
	}

	for _, re := range f.exclude {
		if re.MatchString(rawURL) {
			return false
		}
	}

	if len(f.include) == 0 {
		return true
	}
	for _, re := range f.include {
		if re.MatchString(rawURL) {
			return true
		}
	}
	return false
}

// Clear 清空所有规则
func (f *URLFilter) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.include = nil
	f.exclude = nil
	f.domains = make(map[string]struct{})
}

// RuleCount 返回 包含/排除/域名 规则数量
func (f *URLFilter) RuleCount() (include, exclude, domains int) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.include), len(f.exclude), len(f.domains)
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		log.Error().Err(err).Str("pattern", pattern).Msg("过滤规则编译失败,已忽略")
		return nil, fmt.Errorf("无效的过滤规则 %q: %w", pattern, err)
	}
	return re, nil
}
