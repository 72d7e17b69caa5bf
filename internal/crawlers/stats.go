package crawlers

import (
	"sync"
	"time"

	"github.com/RecoveryAshes/webcrawler/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultSampleInterval 后台采样间隔
	DefaultSampleInterval = time.Second

	memoryWindow = 100 // 内存采样窗口
	speedWindow  = 10  // 速度采样窗口
)

// StatsOptions 统计聚合器配置
type StatsOptions struct {
	Clock          func() time.Time
	SampleInterval time.Duration
	Sampler        MemorySampler
}

// StatsAggregator 线程安全的爬取统计
// 管道递增计数器,后台采样器每个间隔追加内存和速度采样
type StatsAggregator struct {
	mu sync.Mutex

	pages  int64
	bytes  int64
	errors int64
	depth  int
	queue  int

	start  time.Time
	end    time.Time
	active bool

	// 每次StartSession递增,旧采样器发现代数变化后退出
	generation uint64

	memory []float64
	speed  []float64

	clock    func() time.Time
	interval time.Duration
	sampler  MemorySampler
}

// NewStatsAggregator 创建统计聚合器
func NewStatsAggregator(opts StatsOptions) *StatsAggregator {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = DefaultSampleInterval
	}
	if opts.Sampler == nil {
		opts.Sampler = NewResourceMonitor()
	}
	return &StatsAggregator{
		clock:    opts.Clock,
		interval: opts.SampleInterval,
		sampler:  opts.Sampler,
	}
}

// StartSession 重置所有计数器,记录开始时间并启动后台采样
func (s *StatsAggregator) StartSession() {
	s.mu.Lock()
	s.pages, s.bytes, s.errors = 0, 0, 0
	s.depth, s.queue = 0, 0
	s.memory = s.memory[:0]
	s.speed = s.speed[:0]
	s.start = s.clock()
	s.end = time.Time{}
	s.active = true
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	go s.sampleLoop(gen)
}

// StopSession 停止会话,采样器在下一次采样时退出
// 重复调用无副作用
func (s *StatsAggregator) StopSession() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return
	}
	s.active = false
	s.end = s.clock()
}

// Active 会话是否在进行中
func (s *StatsAggregator) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// IncrementPages 成功抓取页面数+1
func (s *StatsAggregator) IncrementPages() {
	s.mu.Lock()
	s.pages++
	s.mu.Unlock()
}

// AddBytes 累加下载字节数
func (s *StatsAggregator) AddBytes(n int) {
	s.mu.Lock()
	s.bytes += int64(n)
	s.mu.Unlock()
}

// IncrementErrors 错误数+1
func (s *StatsAggregator) IncrementErrors() {
	s.mu.Lock()
	s.errors++
	s.mu.Unlock()
}

// SetQueueSize 更新队列长度
func (s *StatsAggregator) SetQueueSize(n int) {
	s.mu.Lock()
	s.queue = n
	s.mu.Unlock()
}

// SetDepth 更新当前深度
func (s *StatsAggregator) SetDepth(depth int) {
	s.mu.Lock()
	s.depth = depth
	s.mu.Unlock()
}

// Snapshot 在单个临界区内复制所有统计字段
func (s *StatsAggregator) Snapshot() models.StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var elapsed time.Duration
	switch {
	case s.start.IsZero():
	case !s.active && !s.end.IsZero():
		elapsed = s.end.Sub(s.start)
	default:
		elapsed = s.clock().Sub(s.start)
	}

	snap := models.StatsSnapshot{
		PagesCrawled:    s.pages,
		BytesDownloaded: s.bytes,
		Errors:          s.errors,
		CurrentDepth:    s.depth,
		QueueSize:       s.queue,
		ElapsedSeconds:  elapsed.Seconds(),
		StartTime:       s.start,
	}

	if elapsed > 0 && len(s.speed) > 0 {
		var sum float64
		for _, v := range s.speed {
			sum += v
		}
		snap.CrawlSpeed = sum / float64(len(s.speed))
	}
	if n := len(s.memory); n > 0 {
		snap.MemoryMB = s.memory[n-1]
	}

	return snap
}

func (s *StatsAggregator) sampleLoop(gen uint64) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for range ticker.C {
		if !s.sample(gen) {
			return
		}
	}
}

// sample 采集一次内存和速度,会话已结束或已被新会话替换时返回false
func (s *StatsAggregator) sample(gen uint64) bool {
	if !s.current(gen) {
		return false
	}

	memMB, err := s.sampler.ResidentMemoryMB()
	if err != nil {
		log.Debug().Err(err).Msg("内存采样失败")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active || s.generation != gen {
		return false
	}

	if err == nil {
		s.memory = appendWindow(s.memory, memMB, memoryWindow)
	}

	if s.pages > 0 {
		if minutes := s.clock().Sub(s.start).Minutes(); minutes > 0 {
			s.speed = appendWindow(s.speed, float64(s.pages)/minutes, speedWindow)
		}
	}
	return true
}

func (s *StatsAggregator) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active && s.generation == gen
}

// appendWindow 追加采样并保留最近size个
func appendWindow(window []float64, v float64, size int) []float64 {
	window = append(window, v)
	if len(window) > size {
		window = append(window[:0], window[len(window)-size:]...)
	}
	return window
}
