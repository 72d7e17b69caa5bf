package core

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/webcrawler/internal/config"
	"github.com/RecoveryAshes/webcrawler/internal/crawlers"
	"github.com/RecoveryAshes/webcrawler/internal/models"
	"github.com/RecoveryAshes/webcrawler/internal/utils"
	"github.com/adrg/xdg"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix 环境变量前缀,例如 WEBCRAWLER_CRAWL_MAX_DEPTH
	EnvPrefix = "WEBCRAWLER"

	// AppName 配置目录名
	AppName = "webcrawler"
)

// Config 应用程序配置
type Config struct {
	Crawl   CrawlConfig       `mapstructure:"crawl"`
	Batch   BatchConfig       `mapstructure:"batch"`
	Filter  FilterConfig      `mapstructure:"filter"`
	Proxy   ProxyConfig       `mapstructure:"proxy"`
	Robots  RobotsConfig      `mapstructure:"robots"`
	Logging LoggingConfig     `mapstructure:"logging"`
	Output  OutputConfig      `mapstructure:"output"`
	Headers map[string]string `mapstructure:"headers"`

	// 实际使用的配置文件,未找到时为空
	file     string
	settings map[string]interface{}
}

// CrawlConfig 爬取配置
type CrawlConfig struct {
	MaxDepth           int           `mapstructure:"max_depth"`
	MaxWorkers         int           `mapstructure:"max_workers"`
	RateLimit          float64       `mapstructure:"rate_limit"`
	UserAgent          string        `mapstructure:"user_agent"`
	MaxPages           int           `mapstructure:"max_pages"`
	Timeout            time.Duration `mapstructure:"timeout"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	PausePollInterval  time.Duration `mapstructure:"pause_poll_interval"`
	MaxBodySize        int           `mapstructure:"max_body_size"`
}

// BatchConfig 批量爬取配置
type BatchConfig struct {
	Delay           time.Duration `mapstructure:"delay"`
	ContinueOnError bool          `mapstructure:"continue_on_error"`
}

// FilterConfig URL准入规则
type FilterConfig struct {
	AllowCrossDomain bool     `mapstructure:"allow_cross_domain"`
	AllowedDomains   []string `mapstructure:"allowed_domains"`
	Include          []string `mapstructure:"include"`
	Exclude          []string `mapstructure:"exclude"`
}

// ProxyConfig 代理配置
type ProxyConfig struct {
	File             string        `mapstructure:"file"`
	List             []string      `mapstructure:"list"`
	DefaultScheme    string        `mapstructure:"default_scheme"`
	CheckBeforeCrawl bool          `mapstructure:"check_before_crawl"`
	CheckURL         string        `mapstructure:"check_url"`
	CheckTimeout     time.Duration `mapstructure:"check_timeout"`
}

// RobotsConfig robots.txt配置
type RobotsConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RespectCrawlDelay bool          `mapstructure:"respect_crawl_delay"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	BaseDir string   `mapstructure:"base_dir"`
	Formats []string `mapstructure:"formats"`
	Summary bool     `mapstructure:"summary"`
}

// LoadConfig 加载配置文件
// configPath为空时依次搜索 ./configs、当前目录、$XDG_CONFIG_HOME/webcrawler、~/.webcrawler
// 找不到配置文件时使用默认值
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, AppName))

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, "."+AppName))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &models.ConfigError{FilePath: configPath, Cause: err}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &models.ConfigError{
			FilePath: v.ConfigFileUsed(),
			Cause:    fmt.Errorf("配置绑定失败: %w", err),
		}
	}
	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string)
	}

	cfg.file = v.ConfigFileUsed()
	cfg.settings = v.AllSettings()
	return &cfg, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 爬取配置默认值
	v.SetDefault("crawl.max_depth", 3)
	v.SetDefault("crawl.max_workers", 5)
	v.SetDefault("crawl.rate_limit", 1.0)
	v.SetDefault("crawl.user_agent", DefaultCrawlerUserAgent)
	v.SetDefault("crawl.max_pages", 0)
	v.SetDefault("crawl.timeout", crawlers.DefaultFetchTimeout)
	v.SetDefault("crawl.insecure_skip_verify", false)
	v.SetDefault("crawl.pause_poll_interval", DefaultPausePollInterval)
	v.SetDefault("crawl.max_body_size", 10*1024*1024)

	// 批量配置默认值
	v.SetDefault("batch.delay", time.Duration(0))
	v.SetDefault("batch.continue_on_error", true)

	// 过滤配置默认值
	v.SetDefault("filter.allow_cross_domain", true)
	v.SetDefault("filter.allowed_domains", []string{})
	v.SetDefault("filter.include", []string{})
	v.SetDefault("filter.exclude", []string{})

	// 代理配置默认值
	v.SetDefault("proxy.file", "")
	v.SetDefault("proxy.list", []string{})
	v.SetDefault("proxy.default_scheme", models.ProxySchemeHTTP)
	v.SetDefault("proxy.check_before_crawl", false)
	v.SetDefault("proxy.check_url", crawlers.DefaultProxyCheckURL)
	v.SetDefault("proxy.check_timeout", crawlers.DefaultProxyCheckTimeout)

	// robots配置默认值
	v.SetDefault("robots.enabled", true)
	v.SetDefault("robots.timeout", crawlers.DefaultRobotsTimeout)
	v.SetDefault("robots.respect_crawl_delay", false)

	// 日志配置默认值
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	// 输出配置默认值
	v.SetDefault("output.base_dir", "output")
	v.SetDefault("output.formats", []string{"json", "csv", "html"})
	v.SetDefault("output.summary", true)
}

// File 返回实际加载的配置文件路径
func (c *Config) File() string {
	return c.file
}

// YAML 以YAML格式输出生效的配置(含默认值和环境变量覆盖)
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c.settings)
	if err != nil {
		return nil, fmt.Errorf("序列化配置失败: %w", err)
	}
	return out, nil
}

// CLIFlags 命令行显式设置的参数,nil表示未设置
type CLIFlags struct {
	MaxDepth           *int
	MaxWorkers         *int
	RateLimit          *float64
	UserAgent          *string
	MaxPages           *int
	Timeout            *time.Duration
	InsecureSkipVerify *bool
	RespectCrawlDelay  *bool
	IgnoreRobots       *bool
	AllowCrossDomain   *bool
	AllowedDomains     []string
	Include            []string
	Exclude            []string
	ProxyFile          *string
	Proxies            []string
	CheckProxies       *bool
	BatchDelay         *time.Duration
	ContinueOnError    *bool
	OutputDir          *string
	Formats            []string
	LogLevel           *string
}

// MergeCLIFlags 合并命令行参数到配置
// 命令行参数优先于配置文件,列表类参数追加到配置文件的列表之后
func (c *Config) MergeCLIFlags(f CLIFlags) {
	if f.MaxDepth != nil {
		c.Crawl.MaxDepth = *f.MaxDepth
	}
	if f.MaxWorkers != nil {
		c.Crawl.MaxWorkers = *f.MaxWorkers
	}
	if f.RateLimit != nil {
		c.Crawl.RateLimit = *f.RateLimit
	}
	if f.UserAgent != nil {
		c.Crawl.UserAgent = *f.UserAgent
	}
	if f.MaxPages != nil {
		c.Crawl.MaxPages = *f.MaxPages
	}
	if f.Timeout != nil {
		c.Crawl.Timeout = *f.Timeout
	}
	if f.InsecureSkipVerify != nil {
		c.Crawl.InsecureSkipVerify = *f.InsecureSkipVerify
	}
	if f.RespectCrawlDelay != nil {
		c.Robots.RespectCrawlDelay = *f.RespectCrawlDelay
	}
	if f.IgnoreRobots != nil {
		c.Robots.Enabled = !*f.IgnoreRobots
	}
	if f.AllowCrossDomain != nil {
		c.Filter.AllowCrossDomain = *f.AllowCrossDomain
	}
	c.Filter.AllowedDomains = append(c.Filter.AllowedDomains, f.AllowedDomains...)
	c.Filter.Include = append(c.Filter.Include, f.Include...)
	c.Filter.Exclude = append(c.Filter.Exclude, f.Exclude...)
	if f.ProxyFile != nil {
		c.Proxy.File = *f.ProxyFile
	}
	c.Proxy.List = append(c.Proxy.List, f.Proxies...)
	if f.CheckProxies != nil {
		c.Proxy.CheckBeforeCrawl = *f.CheckProxies
	}
	if f.BatchDelay != nil {
		c.Batch.Delay = *f.BatchDelay
	}
	if f.ContinueOnError != nil {
		c.Batch.ContinueOnError = *f.ContinueOnError
	}
	if f.OutputDir != nil {
		c.Output.BaseDir = *f.OutputDir
	}
	if len(f.Formats) > 0 {
		c.Output.Formats = f.Formats
	}
	if f.LogLevel != nil {
		c.Logging.Level = *f.LogLevel
	}
}

// CrawlParams 生成指定种子的会话参数
func (c *Config) CrawlParams(seed string) models.CrawlParams {
	return models.CrawlParams{
		SeedURL:           seed,
		MaxDepth:          c.Crawl.MaxDepth,
		MaxWorkers:        c.Crawl.MaxWorkers,
		RateLimitSeconds:  c.Crawl.RateLimit,
		UserAgent:         c.Crawl.UserAgent,
		MaxPages:          c.Crawl.MaxPages,
		RespectCrawlDelay: c.Robots.RespectCrawlDelay,
	}
}

// EngineOptions 生成引擎配置
// proxies为nil时直连,过滤器由BuildFilter按种子单独构建
func (c *Config) EngineOptions(headers http.Header, proxies crawlers.ProxyProvider) EngineOptions {
	return EngineOptions{
		Proxies:            proxies,
		Headers:            headers,
		RequestTimeout:     c.Crawl.Timeout,
		InsecureSkipVerify: c.Crawl.InsecureSkipVerify,
		MaxBodySize:        c.Crawl.MaxBodySize,
		DisableRobots:      !c.Robots.Enabled,
		RobotsTimeout:      c.Robots.Timeout,
		PausePollInterval:  c.Crawl.PausePollInterval,
	}
}

// LogConfig 转换为日志配置
func (c *Config) LogConfig() utils.LogConfig {
	lc := utils.DefaultLogConfig()
	lc.Level = c.Logging.Level
	if c.Logging.LogDir != "" {
		lc.LogDir = c.Logging.LogDir
	}
	if c.Logging.Rotation.MaxSize > 0 {
		lc.MaxSize = c.Logging.Rotation.MaxSize
	}
	if c.Logging.Rotation.MaxBackups > 0 {
		lc.MaxBackups = c.Logging.Rotation.MaxBackups
	}
	if c.Logging.Rotation.MaxAge > 0 {
		lc.MaxAge = c.Logging.Rotation.MaxAge
	}
	lc.Compress = c.Logging.Rotation.Compress
	return lc
}

// BuildFilter 为种子构建准入过滤器
// 不允许跨域时自动把种子域名加入白名单;无效的正则被记录并忽略
func (c *Config) BuildFilter(seed string) *crawlers.URLFilter {
	filter := crawlers.NewURLFilter()

	for _, domain := range c.Filter.AllowedDomains {
		filter.AddAllowedDomain(domain)
	}
	if !c.Filter.AllowCrossDomain {
		filter.AddAllowedDomain(utils.ExtractDomain(seed))
	}

	for _, pattern := range c.Filter.Include {
		_ = filter.AddIncludePattern(pattern)
	}
	for _, pattern := range c.Filter.Exclude {
		_ = filter.AddExcludePattern(pattern)
	}

	include, exclude, domains := filter.RuleCount()
	utils.Debugf("过滤规则: 包含 %d, 排除 %d, 域名 %d", include, exclude, domains)
	return filter
}

// LoadProxies 汇总代理文件和配置列表中的代理
func (c *Config) LoadProxies() ([]models.ProxyEntry, error) {
	var entries []models.ProxyEntry

	if c.Proxy.File != "" {
		fromFile, err := config.NewProxyListLoader(c.Proxy.File, c.Proxy.DefaultScheme).Load()
		if err != nil {
			return nil, err
		}
		entries = append(entries, fromFile...)
	}

	fromList, err := config.ParseProxyList(c.Proxy.List, c.Proxy.DefaultScheme)
	if err != nil {
		return nil, err
	}
	return append(entries, fromList...), nil
}

// NewProxyPool 根据配置创建代理池并加入所有代理
func (c *Config) NewProxyPool(entries []models.ProxyEntry) *crawlers.ProxyPool {
	pool := crawlers.NewProxyPool(crawlers.ProxyPoolOptions{
		CheckURL:           c.Proxy.CheckURL,
		Timeout:            c.Proxy.CheckTimeout,
		InsecureSkipVerify: c.Crawl.InsecureSkipVerify,
	})
	for _, entry := range entries {
		pool.Add(entry)
	}
	return pool
}
