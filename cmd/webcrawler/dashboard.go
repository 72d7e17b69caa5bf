package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/RecoveryAshes/webcrawler/internal/core"
	"github.com/RecoveryAshes/webcrawler/internal/crawlers"
	"github.com/RecoveryAshes/webcrawler/internal/models"
	"github.com/RecoveryAshes/webcrawler/internal/utils"
	"github.com/schollz/progressbar/v3"
)

// dashboard 终端实时面板,定期轮询引擎快照
type dashboard struct {
	engine *core.Engine
	bar    *progressbar.ProgressBar

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// startDashboard 启动面板,每interval刷新一次
func startDashboard(engine *core.Engine, interval time.Duration) *dashboard {
	d := &dashboard{
		engine: engine,
		bar:    utils.NewSpinner(os.Stderr, "🕷️  爬取中"),
		stop:   make(chan struct{}),
	}

	d.wg.Add(1)
	go d.loop(interval)
	return d
}

func (d *dashboard) loop(interval time.Duration) {
	defer d.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last int64
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			snap := d.engine.Snapshot()
			d.bar.Describe(describe(d.engine.State(), snap))
			if delta := snap.PagesCrawled - last; delta > 0 {
				_ = d.bar.Add64(delta)
				last = snap.PagesCrawled
			} else {
				_ = d.bar.RenderBlank()
			}
		}
	}
}

// Stop 停止刷新并清除面板
func (d *dashboard) Stop() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		close(d.stop)
		d.wg.Wait()
		_ = d.bar.Finish()
	})
}

func describe(state models.SessionState, s models.StatsSnapshot) string {
	prefix := "🕷️  爬取中"
	if state == models.SessionPaused {
		prefix = "⏸️  已暂停"
	}
	return fmt.Sprintf("%s | 错误 %d | 队列 %d | 深度 %d | %.1f 页/分 | %.1f MB",
		prefix, s.Errors, s.QueueSize, s.CurrentDepth, s.CrawlSpeed, s.MemoryMB)
}

// printStats 打印会话最终统计
func printStats(seed string, result models.SessionResult) {
	s := result.Stats

	status := "✅ 完成"
	switch {
	case !result.Success:
		status = "❌ 失败: " + result.Err
	case result.Stopped:
		status = "⏹️  已停止"
	}

	fmt.Println("\n==================================================")
	fmt.Println("📊 爬取统计")
	fmt.Println("==================================================")
	fmt.Printf("🌐 种子URL: %s\n", seed)
	fmt.Printf("🆔 会话ID: %s\n", result.SessionID)
	fmt.Printf("📌 状态: %s\n", status)
	fmt.Printf("✅ 已抓取页面: %d\n", s.PagesCrawled)
	fmt.Printf("❌ 错误数: %d\n", s.Errors)
	fmt.Printf("📏 最大深度: %d\n", s.CurrentDepth)
	fmt.Printf("📦 下载量: %s\n", utils.FormatBytes(s.BytesDownloaded))
	fmt.Printf("🚀 爬取速度: %.2f 页/分钟\n", s.CrawlSpeed)
	fmt.Printf("💾 内存占用: %.2f MB\n", s.MemoryMB)
	if mem := crawlers.NewResourceMonitor().GetMemoryStatus(); mem.TotalMemory > 0 {
		fmt.Printf("🖥️  系统内存: 可用 %s / 共 %s (%s)\n",
			utils.FormatBytes(int64(mem.AvailableMemory)), utils.FormatBytes(int64(mem.TotalMemory)), mem.MemoryPressure)
	}
	fmt.Printf("⏱️  总耗时: %.2f秒\n", s.ElapsedSeconds)
	fmt.Println("==================================================")
}
