//go:build !windows

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/RecoveryAshes/webcrawler/internal/utils"
)

// watchPauseSignal SIGUSR1 切换当前会话的暂停/恢复
func watchPauseSignal(ctx context.Context, control *sessionControl) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGUSR1)

	go func() {
		defer signal.Stop(sigChan)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigChan:
				engine := control.current()
				if engine == nil {
					continue
				}
				utils.Debug("收到SIGUSR1,切换暂停状态")
				engine.TogglePause()
			}
		}
	}()
}
