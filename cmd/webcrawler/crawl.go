package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/RecoveryAshes/webcrawler/internal/core"
	"github.com/RecoveryAshes/webcrawler/internal/crawlers"
	"github.com/RecoveryAshes/webcrawler/internal/models"
	"github.com/RecoveryAshes/webcrawler/internal/report"
	"github.com/RecoveryAshes/webcrawler/internal/utils"
	"github.com/spf13/cobra"
)

// sessionControl 保存当前正在运行的引擎,供信号处理使用
type sessionControl struct {
	mu     sync.Mutex
	engine *core.Engine
}

func (sc *sessionControl) set(e *core.Engine) {
	sc.mu.Lock()
	sc.engine = e
	sc.mu.Unlock()
}

func (sc *sessionControl) current() *core.Engine {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.engine
}

func runCrawl(cmd *cobra.Command, args []string) error {
	headerManager, err := core.NewHeaderManager(appConfig.Headers, headers)
	if err != nil {
		return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
	}

	if validateConfig {
		return printHeaderValidation(headerManager)
	}

	if targetURL == "" && urlFile == "" {
		return cmd.Help()
	}

	exportFormats, err := ValidateConfig(targetURL, appConfig)
	if err != nil {
		return err
	}

	requestHeaders, err := headerManager.GetHeaders()
	if err != nil {
		return fmt.Errorf("HTTP头部验证失败: %w", err)
	}
	utils.Debugf("HTTP头部: %v", headerManager.GetSafeHeaders())

	// 配置文件或-H显式指定的User-Agent在未使用--user-agent时生效
	if ua := headerManager.ExplicitUserAgent(); ua != "" && !changed(cmd, "user-agent") {
		appConfig.Crawl.UserAgent = ua
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	proxyProvider, err := buildProxyProvider(ctx)
	if err != nil {
		return err
	}

	seeds := []string{targetURL}
	if urlFile != "" {
		seeds, err = utils.ReadURLsFromFile(urlFile)
		if err != nil {
			return fmt.Errorf("读取URL文件失败: %w", err)
		}
		if len(seeds) == 0 {
			return fmt.Errorf("URL文件中没有有效的URL: %s", urlFile)
		}
	}

	control := &sessionControl{}
	watchPauseSignal(ctx, control)

	var dash *dashboard
	batch := core.NewBatchCrawler(appConfig, appConfig.EngineOptions(requestHeaders, proxyProvider))
	batch.OnStart = func(seed string, engine *core.Engine) {
		control.set(engine)
		dash = startDashboard(engine, time.Second)
	}
	batch.OnFinish = func(seed string, engine *core.Engine, result models.SessionResult) {
		dash.Stop()
		printStats(seed, result)
		exportSession(seed, engine, result, exportFormats)
	}

	if len(seeds) == 1 {
		return crawlSingle(ctx, batch, seeds[0])
	}

	summary, err := batch.CrawlBatch(ctx, seeds)
	if err != nil {
		return fmt.Errorf("批量爬取失败: %w", err)
	}
	if summary.FailCount > 0 && summary.SuccessCount == 0 {
		return fmt.Errorf("所有URL爬取失败")
	}

	utils.Info("✨ 批量爬取任务完成!")
	return nil
}

// crawlSingle 单URL爬取,复用批量爬取器的会话流程但不打印批量摘要
func crawlSingle(ctx context.Context, batch *core.BatchCrawler, seed string) error {
	result := batch.CrawlOne(ctx, seed)
	if !result.Success {
		return fmt.Errorf("爬取失败: %w", result.Error)
	}

	utils.Info("✨ 爬取任务完成!")
	return nil
}

// buildProxyProvider 加载代理列表,没有代理时返回nil(直连)
func buildProxyProvider(ctx context.Context) (crawlers.ProxyProvider, error) {
	entries, err := appConfig.LoadProxies()
	if err != nil {
		return nil, fmt.Errorf("加载代理失败: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	pool := appConfig.NewProxyPool(entries)
	utils.Infof("🔌 已加载 %d 个代理", pool.Len())

	if appConfig.Proxy.CheckBeforeCrawl {
		utils.Info("🔍 检查代理可用性...")
		removed := pool.CheckAll(ctx, appConfig.Crawl.MaxWorkers)
		utils.Infof("可用代理: %d, 移除: %d", pool.Len(), len(removed))
		if pool.Len() == 0 {
			return nil, fmt.Errorf("没有可用的代理")
		}
	}
	return pool, nil
}

// printHeaderValidation 验证头部配置并打印脱敏后的结果
func printHeaderValidation(hm *core.HeaderManager) error {
	utils.Info("🔍 验证HTTP头部配置...")
	if err := hm.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	safeHeaders := hm.GetSafeHeaders()
	utils.Info("✅ 配置验证通过!")
	utils.Infof("当前有效的HTTP头部 (%d个):", len(safeHeaders))
	for name, value := range safeHeaders {
		utils.Infof("  %s: %s", name, value)
	}
	return nil
}

// exportSession 导出会话数据和摘要报告,失败只记录日志
func exportSession(seed string, engine *core.Engine, result models.SessionResult, formats []report.Format) {
	dir := filepath.Join(appConfig.Output.BaseDir, outputDirName(seed))

	records := engine.Records()
	var paths []string
	if len(records) > 0 && len(formats) > 0 {
		exporter := report.NewExporter(dir)
		exported, err := exporter.Export(context.Background(), &report.Report{
			SeedURL: seed,
			Records: records,
			Stats:   result.Stats,
		}, formats)
		if err != nil {
			utils.Error(err, "导出数据失败")
		}
		paths = exported
	}

	if !appConfig.Output.Summary {
		return
	}

	summary := models.CrawlReport{
		SessionID:     result.SessionID,
		SeedURL:       seed,
		Domain:        utils.ExtractDomain(seed),
		StartTime:     result.StartedAt,
		EndTime:       result.FinishedAt,
		Duration:      result.Duration().Seconds(),
		Success:       result.Success,
		Stopped:       result.Stopped,
		Error:         result.Err,
		Stats:         result.Stats,
		ExportedFiles: paths,
		Params:        appConfig.CrawlParams(seed),
	}
	if _, err := utils.NewReporter(dir).GenerateSummary(summary); err != nil {
		utils.Error(err, "生成摘要报告失败")
	}
}

// outputDirName 以种子域名作为输出子目录,端口中的冒号替换为下划线
func outputDirName(seed string) string {
	domain := utils.ExtractDomain(seed)
	if domain == "" {
		return "unknown"
	}
	return strings.ReplaceAll(domain, ":", "_")
}
