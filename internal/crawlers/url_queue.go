package crawlers

import (
	"sync"

	"github.com/RecoveryAshes/webcrawler/internal/models"
)

// Frontier 待爬队列与已访问集合
// 职责: 严格FIFO地保存(URL, 深度)工作项,并以规范化URL记录已派发的地址
type Frontier struct {
	mu sync.Mutex

	// 待处理工作项,head之前的元素已出队
	pending []models.FrontierItem
	head    int

	// 已访问URL集合(键为规范化URL)
	visited map[string]struct{}
}

// NewFrontier 创建空队列
func NewFrontier() *Frontier {
	return &Frontier{
		visited: make(map[string]struct{}),
	}
}

// Enqueue 无条件追加工作项
// 入队时不做去重,重复URL在处理前由MarkVisited拦截
func (f *Frontier) Enqueue(url string, depth int) {
	f.EnqueueItem(models.FrontierItem{URL: url, Depth: depth})
}

// EnqueueItem 追加带来源信息的工作项
func (f *Frontier) EnqueueItem(item models.FrontierItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, item)
}

// Dequeue 取出最早入队的工作项,队列为空时返回false
func (f *Frontier) Dequeue() (models.FrontierItem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.head >= len(f.pending) {
		return models.FrontierItem{}, false
	}

	item := f.pending[f.head]
	f.pending[f.head] = models.FrontierItem{}
	f.head++

	// 已出队部分超过一半时压缩底层数组
	if f.head > 64 && f.head*2 >= len(f.pending) {
		remaining := copy(f.pending, f.pending[f.head:])
		f.pending = f.pending[:remaining]
		f.head = 0
	}

	return item, true
}

// MarkVisited 原子地检查并记录URL
// 首次出现返回true,已访问返回false
func (f *Frontier) MarkVisited(url string) bool {
	key := CanonicalURL(url)

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.visited[key]; ok {
		return false
	}
	f.visited[key] = struct{}{}
	return true
}

// IsVisited 检查URL是否已访问
func (f *Frontier) IsVisited(url string) bool {
	key := CanonicalURL(url)

	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[key]
	return ok
}

// Len 返回待处理工作项数量
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending) - f.head
}

// VisitedCount 返回已访问URL数量
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// Reset 清空队列和已访问集合,为下一个会话准备全新状态
func (f *Frontier) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pending = nil
	f.head = 0
	f.visited = make(map[string]struct{})
}
