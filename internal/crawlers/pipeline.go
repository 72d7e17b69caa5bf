package crawlers

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/RecoveryAshes/webcrawler/internal/models"
	"github.com/rs/zerolog/log"
)

// Outcome 单个工作项的处理结果
type Outcome int

const (
	OutcomeSkipped    Outcome = iota // 已访问或被过滤,不计入速率限制
	OutcomeDisallowed                // robots禁止
	OutcomeFailed                    // 抓取或处理失败
	OutcomeFetched                   // 成功抓取
)

// String 实现fmt.Stringer
func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeDisallowed:
		return "disallowed"
	case OutcomeFailed:
		return "failed"
	case OutcomeFetched:
		return "fetched"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ProcessResult 管道处理结果
type ProcessResult struct {
	Outcome  Outcome
	Reason   string
	Record   *models.PageRecord
	Enqueued int
	Err      error
}

// Pipeline 单URL处理管道
// 顺序: 去重 → 准入过滤 → robots → 借代理抓取 → 解析链接 → 过滤入队
type Pipeline struct {
	Frontier *Frontier
	Filter   *URLFilter
	Robots   RobotsChecker
	Proxies  ProxyProvider
	Fetcher  Fetcher
	Stats    *StatsAggregator
	Records  *RecordStore

	// Clock 生成记录时间戳,为nil时使用time.Now
	Clock func() time.Time
}

// Process 处理一个已通过深度检查的工作项
// 任何单项失败都只在本地记录,不会中止爬取
func (p *Pipeline) Process(ctx context.Context, item models.FrontierItem) (res ProcessResult) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("处理URL时发生panic: %v", r)
			log.Error().Err(err).Str("url", item.URL).Msg("处理URL失败")
			p.Stats.IncrementErrors()
			res = ProcessResult{Outcome: OutcomeFailed, Reason: "panic", Err: err}
		}
	}()

	if !p.Frontier.MarkVisited(item.URL) {
		return ProcessResult{Outcome: OutcomeSkipped, Reason: "visited"}
	}

	if p.Filter != nil && !p.Filter.ShouldCrawl(item.URL) {
		log.Debug().Str("url", item.URL).Msg("URL被过滤规则拒绝")
		return ProcessResult{Outcome: OutcomeSkipped, Reason: "filtered"}
	}

	log.Info().Str("url", item.URL).Int("depth", item.Depth).Msg("开始处理URL")

	if p.Robots != nil && !p.Robots.CanFetch(ctx, item.URL) {
		log.Info().Str("url", item.URL).Msg("robots.txt禁止抓取,跳过")
		return ProcessResult{Outcome: OutcomeDisallowed, Reason: "robots"}
	}

	base, err := url.Parse(item.URL)
	if err != nil {
		p.Stats.IncrementErrors()
		log.Info().Err(err).Str("url", item.URL).Msg("URL无法解析")
		return ProcessResult{Outcome: OutcomeFailed, Reason: "invalid_url", Err: err}
	}

	result, err := p.fetch(ctx, item.URL)
	if err != nil {
		p.Stats.IncrementErrors()
		log.Info().Err(err).Str("url", item.URL).Msg("抓取失败")
		return ProcessResult{Outcome: OutcomeFailed, Reason: "fetch", Err: err}
	}

	p.Stats.IncrementPages()
	p.Stats.AddBytes(result.Bytes)
	p.Stats.SetDepth(item.Depth)

	links := p.resolveLinks(base, result.Links)
	now := time.Now
	if p.Clock != nil {
		now = p.Clock
	}
	record := models.NewPageRecord(item.URL, result.Title, item.Depth, links, now())
	if p.Records != nil {
		p.Records.Append(record)
	}

	enqueued := 0
	for _, link := range links {
		// 非http(s)链接只保留在记录中,不入队也不计错误
		if !IsCrawlableURL(link.Href) {
			continue
		}
		if p.Filter != nil && !p.Filter.ShouldCrawl(link.Href) {
			continue
		}
		p.Frontier.EnqueueItem(models.FrontierItem{
			URL:       link.Href,
			Depth:     item.Depth + 1,
			SourceURL: item.URL,
		})
		enqueued++
	}

	p.Stats.SetQueueSize(p.Frontier.Len())

	log.Info().
		Str("url", item.URL).
		Int("status", result.StatusCode).
		Int("links", len(links)).
		Int("enqueued", enqueued).
		Msg("页面抓取成功")

	return ProcessResult{Outcome: OutcomeFetched, Record: &record, Enqueued: enqueued}
}

// fetch 借出代理执行抓取,结束后归还
func (p *Pipeline) fetch(ctx context.Context, target string) (*FetchResult, error) {
	var proxy *models.ProxyEntry
	if p.Proxies != nil {
		proxy = p.Proxies.Acquire()
	}
	if proxy != nil {
		defer p.Proxies.Release(*proxy)
		log.Debug().Str("url", target).Str("proxy", proxy.Redacted()).Msg("使用代理")
	}
	return p.Fetcher.Fetch(ctx, target, proxy)
}

// resolveLinks 将原始链接解析为绝对地址,单个链接失败只丢弃该链接
func (p *Pipeline) resolveLinks(base *url.URL, raw []RawLink) []models.Link {
	links := make([]models.Link, 0, len(raw))
	for _, l := range raw {
		href, err := ResolveLink(base, l.Href)
		if err != nil {
			log.Debug().Err(err).Str("href", l.Href).Str("page", base.String()).Msg("链接解析失败,已丢弃")
			continue
		}
		links = append(links, models.Link{Text: l.Text, Href: href})
	}
	return links
}
