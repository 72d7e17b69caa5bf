package crawlers

import (
	"sync"

	"github.com/RecoveryAshes/webcrawler/internal/models"
)

// RecordStore 会话结果累加器
type RecordStore struct {
	mu      sync.RWMutex
	records []models.PageRecord
}

// NewRecordStore 创建空累加器
func NewRecordStore() *RecordStore {
	return &RecordStore{}
}

// Append 追加页面记录
func (rs *RecordStore) Append(rec models.PageRecord) {
	rs.mu.Lock()
	rs.records = append(rs.records, rec)
	rs.mu.Unlock()
}

// Records 返回按抓取顺序排列的记录副本,链接切片也逐条复制
func (rs *RecordStore) Records() []models.PageRecord {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	out := make([]models.PageRecord, len(rs.records))
	for i, rec := range rs.records {
		if rec.Links != nil {
			links := make([]models.Link, len(rec.Links))
			copy(links, rec.Links)
			rec.Links = links
		}
		out[i] = rec
	}
	return out
}

// Len 返回记录数量
func (rs *RecordStore) Len() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.records)
}

// Reset 清空记录
func (rs *RecordStore) Reset() {
	rs.mu.Lock()
	rs.records = nil
	rs.mu.Unlock()
}
