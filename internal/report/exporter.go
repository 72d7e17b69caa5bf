package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/webcrawler/internal/utils"
)

// Exporter 将报告按多种格式写入目录
type Exporter struct {
	dir   string
	clock func() time.Time
}

// NewExporter 创建导出器
func NewExporter(dir string) *Exporter {
	return &Exporter{dir: dir, clock: time.Now}
}

// ParseFormats 解析格式列表并去重,任一格式不支持时返回ErrUnsupportedFormat
func ParseFormats(names []string) ([]Format, error) {
	formats := make([]Format, 0, len(names))
	seen := make(map[Format]bool, len(names))
	for _, name := range names {
		f, err := ParseFormat(name)
		if err != nil {
			return nil, err
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		formats = append(formats, f)
	}
	return formats, nil
}

// Export 按顺序导出所有格式,返回生成的文件路径
// 同一次调用的所有文件共用一个时间戳
func (e *Exporter) Export(ctx context.Context, r *Report, formats []Format) ([]string, error) {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	now := e.clock()
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = now
	}

	paths := make([]string, 0, len(formats))
	for _, f := range formats {
		path := filepath.Join(e.dir, f.Filename(now))
		if err := e.exportOne(ctx, path, f, r); err != nil {
			return paths, err
		}
		utils.Infof("📄 数据已导出: %s", path)
		paths = append(paths, path)
	}
	return paths, nil
}

func (e *Exporter) exportOne(ctx context.Context, path string, f Format, r *Report) (err error) {
	if f == FormatSQLite {
		return (&SQLiteWriter{}).WriteFile(ctx, path, r)
	}

	w, err := NewWriter(f)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建导出文件失败: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("关闭导出文件失败: %w", cerr)
		}
	}()

	return w.Write(file, r)
}
