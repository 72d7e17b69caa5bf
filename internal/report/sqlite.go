package report

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite驱动
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS pages (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    url       TEXT NOT NULL,
    title     TEXT,
    timestamp DATETIME NOT NULL,
    depth     INTEGER NOT NULL,
    num_links INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS links (
    page_id INTEGER NOT NULL REFERENCES pages(id),
    text    TEXT,
    href    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_links_page ON links(page_id);

CREATE TABLE IF NOT EXISTS session (
    seed_url         TEXT,
    generated_at     DATETIME,
    start_time       DATETIME,
    elapsed_seconds  REAL,
    pages_crawled    INTEGER,
    bytes_downloaded INTEGER,
    errors           INTEGER
);
`

// SQLiteWriter 将页面记录写入SQLite数据库
type SQLiteWriter struct{}

// WriteFile 创建数据库文件并写入记录,已存在的文件会被覆盖
func (sw *SQLiteWriter) WriteFile(ctx context.Context, path string, r *Report) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除旧数据库失败: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return fmt.Errorf("打开数据库失败: %w", err)
	}
	defer func() {
		if cerr := db.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("关闭数据库失败: %w", cerr)
		}
	}()
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("创建表失败: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	if err := insertReport(ctx, tx, r); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

func insertReport(ctx context.Context, tx *sql.Tx, r *Report) error {
	pageStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO pages (url, title, timestamp, depth, num_links) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("准备语句失败: %w", err)
	}
	defer pageStmt.Close()

	linkStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO links (page_id, text, href) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("准备语句失败: %w", err)
	}
	defer linkStmt.Close()

	for _, rec := range r.Records {
		res, err := pageStmt.ExecContext(ctx,
			rec.URL, rec.Title, rec.Timestamp.UTC().Format(time.RFC3339Nano), rec.Depth, rec.LinkCount())
		if err != nil {
			return fmt.Errorf("写入页面失败 %s: %w", rec.URL, err)
		}
		pageID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("读取页面ID失败: %w", err)
		}

		for _, l := range rec.Links {
			if _, err := linkStmt.ExecContext(ctx, pageID, l.Text, l.Href); err != nil {
				return fmt.Errorf("写入链接失败 %s: %w", l.Href, err)
			}
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO session (seed_url, generated_at, start_time, elapsed_seconds, pages_crawled, bytes_downloaded, errors)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.SeedURL,
		r.GeneratedAt.UTC().Format(time.RFC3339Nano),
		r.Stats.StartTime.UTC().Format(time.RFC3339Nano),
		r.Stats.ElapsedSeconds,
		r.Stats.PagesCrawled,
		r.Stats.BytesDownloaded,
		r.Stats.Errors,
	)
	if err != nil {
		return fmt.Errorf("写入会话统计失败: %w", err)
	}
	return nil
}
