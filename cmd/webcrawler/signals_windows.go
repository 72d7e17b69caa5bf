//go:build windows

package main

import "context"

// watchPauseSignal Windows不支持SIGUSR1,不提供信号暂停
func watchPauseSignal(ctx context.Context, control *sessionControl) {}
