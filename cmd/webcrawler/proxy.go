package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newProxyCmd() *cobra.Command {
	proxyCmd := &cobra.Command{
		Use:   "proxy",
		Short: "代理管理",
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "检查代理可用性",
		Long: `检查 --proxy、--proxy-file 和配置文件中的所有代理,
通过代理请求 proxy.check_url,返回200视为可用。`,
		RunE: runProxyCheck,
	}
	checkCmd.Flags().StringArrayVar(&proxies, "proxy", nil, "代理地址,可多次指定")
	checkCmd.Flags().StringVar(&proxyFile, "proxy-file", "", "代理列表文件")
	checkCmd.Flags().IntVarP(&maxWorkers, "workers", "w", 5, "并发检查数")
	checkCmd.Flags().BoolVar(&insecure, "insecure", false, "跳过TLS证书验证")

	proxyCmd.AddCommand(checkCmd)
	return proxyCmd
}

func runProxyCheck(cmd *cobra.Command, args []string) error {
	entries, err := appConfig.LoadProxies()
	if err != nil {
		return fmt.Errorf("加载代理失败: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("没有配置代理,请使用 --proxy 或 --proxy-file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool := appConfig.NewProxyPool(entries)
	fmt.Printf("🔍 检查 %d 个代理 (目标: %s)...\n", len(entries), appConfig.Proxy.CheckURL)

	removed := pool.CheckAll(ctx, appConfig.Crawl.MaxWorkers)
	failed := make(map[string]bool, len(removed))
	for _, entry := range removed {
		failed[entry.URI] = true
	}

	for _, entry := range entries {
		status := "✅ 可用"
		if failed[entry.URI] {
			status = "❌ 不可用"
		}
		fmt.Printf("  %s  %s\n", status, entry.Redacted())
	}
	fmt.Printf("\n可用: %d / %d\n", pool.Len(), len(entries))

	if pool.Len() == 0 {
		return fmt.Errorf("没有可用的代理")
	}
	return nil
}
