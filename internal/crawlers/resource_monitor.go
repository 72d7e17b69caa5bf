package crawlers

import (
	"fmt"
	"os"
	"runtime"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// MemorySampler 常驻内存采样接口
type MemorySampler interface {
	ResidentMemoryMB() (float64, error)
}

// MemoryStatus 内存状态信息
type MemoryStatus struct {
	ProcessRSSMB    float64 // 当前进程常驻内存(MB)
	TotalMemory     uint64  // 系统总内存(字节)
	AvailableMemory uint64  // 系统可用内存(字节)
	MemoryPressure  string  // 内存压力等级: normal / warning / critical / emergency
}

// ResourceMonitor 进程资源监控器
// 使用gopsutil读取当前进程的常驻内存(RSS)和系统内存
type ResourceMonitor struct {
	proc        *process.Process
	totalMemory uint64
}

// NewResourceMonitor 创建资源监控器实例
func NewResourceMonitor() *ResourceMonitor {
	rm := &ResourceMonitor{}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn().Err(err).Msg("获取进程信息失败,内存采样将使用Go运行时统计")
	} else {
		rm.proc = proc
	}

	vmStat, err := mem.VirtualMemory()
	if err != nil {
		log.Warn().Err(err).Msg("获取系统内存失败")
	} else {
		rm.totalMemory = vmStat.Total
		log.Debug().Msgf("系统总内存: %.2f GB", float64(rm.totalMemory)/(1024*1024*1024))
	}

	return rm
}

// ResidentMemoryMB 返回当前进程常驻内存(MB)
// gopsutil不可用时回退为Go运行时向系统申请的内存
func (rm *ResourceMonitor) ResidentMemoryMB() (float64, error) {
	if rm.proc != nil {
		info, err := rm.proc.MemoryInfo()
		if err == nil {
			return float64(info.RSS) / 1024 / 1024, nil
		}
		log.Debug().Err(err).Msg("读取进程RSS失败,回退到运行时统计")
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	if ms.Sys == 0 {
		return 0, fmt.Errorf("无法获取内存信息")
	}
	return float64(ms.Sys) / 1024 / 1024, nil
}

// GetMemoryStatus 获取当前内存状态
func (rm *ResourceMonitor) GetMemoryStatus() MemoryStatus {
	status := MemoryStatus{
		TotalMemory:    rm.totalMemory,
		MemoryPressure: "normal",
	}

	if rss, err := rm.ResidentMemoryMB(); err == nil {
		status.ProcessRSSMB = rss
	}

	vmStat, err := mem.VirtualMemory()
	if err != nil {
		return status
	}
	status.AvailableMemory = vmStat.Available
	status.MemoryPressure = memoryPressure(vmStat.Available)
	return status
}

// memoryPressure 根据系统可用内存判断压力等级
func memoryPressure(available uint64) string {
	availableMB := available / (1024 * 1024)
	switch {
	case availableMB < 200:
		return "emergency"
	case availableMB < 300:
		return "critical"
	case availableMB < 500:
		return "warning"
	default:
		return "normal"
	}
}
