package main

import (
	"fmt"
	"os"
	"time"

	"github.com/RecoveryAshes/webcrawler/internal/core"
	"github.com/RecoveryAshes/webcrawler/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string

	// HTTP头部参数
	headers        []string
	validateConfig bool

	// 爬取参数
	targetURL         string
	urlFile           string
	depth             int
	maxWorkers        int
	rateLimit         float64
	userAgent         string
	maxPages          int
	timeout           time.Duration
	insecure          bool
	respectCrawlDelay bool
	ignoreRobots      bool
	allowCrossDomain  bool
	allowedDomains    []string
	includePatterns   []string
	excludePatterns   []string
	outputDir         string
	formats           []string

	// 代理参数
	proxies      []string
	proxyFile    string
	checkProxies bool

	// 批量处理参数
	batchDelay      time.Duration
	continueOnError bool
)

// appConfig 加载并合并命令行参数后的配置
var appConfig *core.Config

var rootCmd = &cobra.Command{
	Use:   "webcrawler",
	Short: "广度优先网页爬取工具",
	Long: `webcrawler - 广度优先网页爬取工具

从种子URL开始按层抓取页面,提取标题和链接,支持:
  • 深度限制和页面数量上限
  • robots.txt 规则与 Crawl-delay
  • 域名白名单和包含/排除正则
  • HTTP/HTTPS/SOCKS5 代理轮转
  • 暂停/恢复 (kill -USR1) 和优雅停止 (Ctrl+C)
  • 导出 JSON/CSV/HTML/Markdown/SQLite
  • 批量URL处理

示例:
  webcrawler -u https://example.com -d 2
  webcrawler -u https://example.com --exclude '\.pdf$' --format json,html
  webcrawler -f urls.txt --proxy-file proxies.txt --check-proxies
  webcrawler -u https://example.com -H "Authorization: Bearer token"

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		config.MergeCLIFlags(collectCLIFlags(cmd))
		appConfig = config

		logConfig := config.LogConfig()
		if verbose {
			logConfig.Level = "debug"
		}
		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		if verbose {
			utils.Info("详细模式已启用")
		}
		if config.File() != "" {
			utils.Debugf("使用配置文件: %s", config.File())
		}
		return nil
	},
	RunE: runCrawl,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("webcrawler %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

// changed 判断命令上是否显式设置了该参数
func changed(cmd *cobra.Command, name string) bool {
	flag := cmd.Flags().Lookup(name)
	return flag != nil && flag.Changed
}

// collectCLIFlags 只收集显式设置的参数,未设置的保留配置文件的值
func collectCLIFlags(cmd *cobra.Command) core.CLIFlags {
	var f core.CLIFlags

	if changed(cmd, "depth") {
		f.MaxDepth = &depth
	}
	if changed(cmd, "workers") {
		f.MaxWorkers = &maxWorkers
	}
	if changed(cmd, "rate-limit") {
		f.RateLimit = &rateLimit
	}
	if changed(cmd, "user-agent") {
		f.UserAgent = &userAgent
	}
	if changed(cmd, "max-pages") {
		f.MaxPages = &maxPages
	}
	if changed(cmd, "timeout") {
		f.Timeout = &timeout
	}
	if changed(cmd, "insecure") {
		f.InsecureSkipVerify = &insecure
	}
	if changed(cmd, "respect-crawl-delay") {
		f.RespectCrawlDelay = &respectCrawlDelay
	}
	if changed(cmd, "ignore-robots") {
		f.IgnoreRobots = &ignoreRobots
	}
	if changed(cmd, "allow-cross-domain") {
		f.AllowCrossDomain = &allowCrossDomain
	}
	if changed(cmd, "proxy-file") {
		f.ProxyFile = &proxyFile
	}
	if changed(cmd, "check-proxies") {
		f.CheckProxies = &checkProxies
	}
	if changed(cmd, "batch-delay") {
		f.BatchDelay = &batchDelay
	}
	if changed(cmd, "continue-on-error") {
		f.ContinueOnError = &continueOnError
	}
	if changed(cmd, "output") {
		f.OutputDir = &outputDir
	}
	if changed(cmd, "log-level") {
		f.LogLevel = &logLevel
	}

	f.AllowedDomains = allowedDomains
	f.Include = includePatterns
	f.Exclude = excludePatterns
	f.Proxies = proxies
	f.Formats = formats
	return f
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// HTTP头部参数
	rootCmd.Flags().StringArrayVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.Flags().BoolVar(&validateConfig, "validate-config", false, "验证HTTP头部配置后退出")

	// 爬取参数
	rootCmd.Flags().StringVarP(&targetURL, "url", "u", "", "种子URL (必需,除非使用 --url-file)")
	rootCmd.Flags().StringVarP(&urlFile, "url-file", "f", "", "包含URL列表的文件路径")
	rootCmd.Flags().IntVarP(&depth, "depth", "d", 3, "最大爬取深度 (>=1)")
	rootCmd.Flags().IntVarP(&maxWorkers, "workers", "w", 5, "并发数 (用于代理检查)")
	rootCmd.Flags().Float64VarP(&rateLimit, "rate-limit", "r", 1.0, "每个URL处理后的等待时间(秒)")
	rootCmd.Flags().StringVar(&userAgent, "user-agent", core.DefaultCrawlerUserAgent, "请求使用的User-Agent")
	rootCmd.Flags().IntVar(&maxPages, "max-pages", 0, "最大抓取页面数 (0表示不限制)")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "单个请求超时")
	rootCmd.Flags().BoolVar(&insecure, "insecure", false, "跳过TLS证书验证")
	rootCmd.Flags().BoolVar(&respectCrawlDelay, "respect-crawl-delay", false, "遵守robots.txt中的Crawl-delay")
	rootCmd.Flags().BoolVar(&ignoreRobots, "ignore-robots", false, "不检查robots.txt")
	rootCmd.Flags().BoolVar(&allowCrossDomain, "allow-cross-domain", true, "允许抓取种子以外的域名")
	rootCmd.Flags().StringSliceVar(&allowedDomains, "allowed-domain", nil, "允许的域名,可多次指定")
	rootCmd.Flags().StringArrayVar(&includePatterns, "include", nil, "包含规则(正则),可多次指定")
	rootCmd.Flags().StringArrayVar(&excludePatterns, "exclude", nil, "排除规则(正则),可多次指定")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "output", "输出目录")
	rootCmd.Flags().StringSliceVar(&formats, "format", nil, "导出格式 (json|csv|html|md|db),默认取配置文件")

	// 代理参数
	rootCmd.Flags().StringArrayVar(&proxies, "proxy", nil, "代理地址 (http|https|socks5),可多次指定")
	rootCmd.Flags().StringVar(&proxyFile, "proxy-file", "", "代理列表文件,每行一个")
	rootCmd.Flags().BoolVar(&checkProxies, "check-proxies", false, "爬取前检查代理可用性")

	// 批量处理参数
	rootCmd.Flags().DurationVar(&batchDelay, "batch-delay", 0, "批量处理URL间延迟")
	rootCmd.Flags().BoolVar(&continueOnError, "continue-on-error", true, "遇到错误继续处理")

	// 添加子命令
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newProxyCmd())
	rootCmd.AddCommand(newConfigCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
