package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RecoveryAshes/webcrawler/internal/crawlers"
	"github.com/RecoveryAshes/webcrawler/internal/models"
)

// sitePages 测试站点: 路径 → 页面内链接
var sitePages = map[string][]string{
	"/":  {"/a", "/b", "/a"},
	"/a": {"/c", "/"},
	"/b": {"/c"},
	"/c": {"/d"},
	"/d": nil,
}

func newSiteHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		links, ok := sitePages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}

		var b strings.Builder
		fmt.Fprintf(&b, "<html><head><title>页面 %s</title></head><body>", r.URL.Path)
		for _, link := range links {
			fmt.Fprintf(&b, `<a href="%s">%s</a>`, link, link)
		}
		b.WriteString("</body></html>")

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(b.String()))
	})
}

func testEngineOptions() EngineOptions {
	return EngineOptions{
		DisableRobots:     true,
		PausePollInterval: 10 * time.Millisecond,
		RequestTimeout:    5 * time.Second,
		Stats:             crawlers.StatsOptions{SampleInterval: time.Hour},
	}
}

func testParams(seed string, depth int) models.CrawlParams {
	return models.CrawlParams{
		SeedURL:          seed,
		MaxDepth:         depth,
		MaxWorkers:       1,
		RateLimitSeconds: 0,
		UserAgent:        "TestBot/1.0",
	}
}

func waitResult(t *testing.T, e *Engine) models.SessionResult {
	t.Helper()
	select {
	case result := <-e.Done():
		return result
	case <-time.After(10 * time.Second):
		t.Fatal("等待会话结束超时")
	}
	return models.SessionResult{}
}

func recordPaths(records []models.PageRecord, base string) []string {
	paths := make([]string, 0, len(records))
	for _, rec := range records {
		paths = append(paths, strings.TrimPrefix(rec.URL, base))
	}
	return paths
}

// stubFetcher 按固定站点返回结果,可选在每次抓取前阻塞
type stubFetcher struct {
	mu    sync.Mutex
	site  map[string][]string
	errs  map[string]error
	calls []string
	times []time.Time

	called chan string
	gate   chan struct{}
}

func newStubFetcher(site map[string][]string) *stubFetcher {
	return &stubFetcher{
		site:   site,
		errs:   make(map[string]error),
		called: make(chan string, 100),
	}
}

func (f *stubFetcher) Fetch(ctx context.Context, url string, proxy *models.ProxyEntry) (*crawlers.FetchResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.times = append(f.times, time.Now())
	f.mu.Unlock()

	f.called <- url
	if f.gate != nil {
		<-f.gate
	}

	if err := f.errs[url]; err != nil {
		return nil, err
	}

	result := &crawlers.FetchResult{URL: url, StatusCode: http.StatusOK, Bytes: 100, Title: url}
	for _, href := range f.site[url] {
		result.Links = append(result.Links, crawlers.RawLink{Href: href})
	}
	return result, nil
}

func (f *stubFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *stubFetcher) Times() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.times...)
}

func newStubEngine(f crawlers.Fetcher) *Engine {
	e := NewEngine(testEngineOptions())
	e.newFetcher = func(models.CrawlParams) (crawlers.Fetcher, error) {
		return f, nil
	}
	return e
}

var stubSite = map[string][]string{
	"https://example.com/":  {"https://example.com/a", "https://example.com/b"},
	"https://example.com/a": {"https://example.com/c"},
	"https://example.com/b": nil,
	"https://example.com/c": nil,
}

func TestEngine_CrawlSite(t *testing.T) {
	srv := httptest.NewServer(newSiteHandler())
	defer srv.Close()

	e := NewEngine(testEngineOptions())
	if !e.StartCrawl(testParams(srv.URL+"/", 3)) {
		t.Fatal("StartCrawl返回false")
	}

	result := waitResult(t, e)
	if !result.Success || result.Stopped {
		t.Fatalf("会话结果错误: %+v", result)
	}
	if e.State() != models.SessionCompleted {
		t.Errorf("State = %s, 期望 completed", e.State())
	}

	got := strings.Join(recordPaths(e.Records(), srv.URL), ",")
	if got != "/,/a,/b,/c,/d" {
		t.Errorf("广度优先顺序错误: %s", got)
	}
	if result.Pages != 5 {
		t.Errorf("Pages = %d, 期望 5", result.Pages)
	}

	snap := e.Snapshot()
	if snap.PagesCrawled != 5 || snap.Errors != 0 {
		t.Errorf("统计错误: %+v", snap)
	}
	if snap.BytesDownloaded <= 0 {
		t.Error("下载字节数应大于0")
	}
	if snap.CurrentDepth != 3 {
		t.Errorf("CurrentDepth = %d, 期望 3", snap.CurrentDepth)
	}

	root := e.Records()[0]
	if root.Title != "页面 /" {
		t.Errorf("标题错误: %q", root.Title)
	}
	if root.LinkCount() != 3 {
		t.Errorf("链接数 = %d, 期望 3", root.LinkCount())
	}
}

func TestEngine_DepthLimit(t *testing.T) {
	srv := httptest.NewServer(newSiteHandler())
	defer srv.Close()

	e := NewEngine(testEngineOptions())
	if !e.StartCrawl(testParams(srv.URL+"/", 1)) {
		t.Fatal("StartCrawl返回false")
	}
	waitResult(t, e)

	for _, rec := range e.Records() {
		if rec.Depth > 1 {
			t.Errorf("记录深度超过上限: %s depth=%d", rec.URL, rec.Depth)
		}
	}
	got := strings.Join(recordPaths(e.Records(), srv.URL), ",")
	if got != "/,/a,/b" {
		t.Errorf("深度1应只抓取3个页面, 实际: %s", got)
	}
}

func TestEngine_MaxPages(t *testing.T) {
	f := newStubFetcher(stubSite)
	e := newStubEngine(f)

	params := testParams("https://example.com/", 3)
	params.MaxPages = 2
	if !e.StartCrawl(params) {
		t.Fatal("StartCrawl返回false")
	}

	result := waitResult(t, e)
	if result.Pages != 2 || len(f.Calls()) != 2 {
		t.Errorf("页面上限未生效: pages=%d calls=%v", result.Pages, f.Calls())
	}
}

func TestEngine_FetchErrorsDoNotAbort(t *testing.T) {
	f := newStubFetcher(stubSite)
	f.errs["https://example.com/a"] = &crawlers.FetchError{URL: "https://example.com/a", StatusCode: 500, Err: errors.New("HTTP 500")}
	e := newStubEngine(f)

	if !e.StartCrawl(testParams("https://example.com/", 3)) {
		t.Fatal("StartCrawl返回false")
	}

	result := waitResult(t, e)
	if !result.Success {
		t.Fatalf("单个URL失败不应导致会话失败: %+v", result)
	}
	if result.Stats.Errors != 1 {
		t.Errorf("Errors = %d, 期望 1", result.Stats.Errors)
	}
	// /a失败,其链接/c不会被发现
	if result.Pages != 2 {
		t.Errorf("Pages = %d, 期望 2", result.Pages)
	}
}

func TestEngine_PauseResume(t *testing.T) {
	f := newStubFetcher(stubSite)
	f.gate = make(chan struct{})
	e := newStubEngine(f)

	if !e.StartCrawl(testParams("https://example.com/", 3)) {
		t.Fatal("StartCrawl返回false")
	}

	<-f.called
	e.Pause()
	if e.State() != models.SessionPaused {
		t.Fatalf("State = %s, 期望 paused", e.State())
	}
	f.gate <- struct{}{}

	select {
	case url := <-f.called:
		t.Fatalf("暂停期间不应处理新URL: %s", url)
	case <-time.After(100 * time.Millisecond):
	}
	if n := len(e.Records()); n != 1 {
		t.Errorf("暂停前进行中的URL应完成, records=%d", n)
	}

	e.Resume()
	if e.State() != models.SessionRunning {
		t.Fatalf("State = %s, 期望 running", e.State())
	}
	close(f.gate)

	result := waitResult(t, e)
	if !result.Success || result.Pages != 4 {
		t.Errorf("恢复后应完成全部页面: %+v", result)
	}
}

func TestEngine_TogglePause(t *testing.T) {
	f := newStubFetcher(stubSite)
	f.gate = make(chan struct{})
	e := newStubEngine(f)

	if !e.StartCrawl(testParams("https://example.com/", 3)) {
		t.Fatal("StartCrawl返回false")
	}
	<-f.called

	e.TogglePause()
	if e.State() != models.SessionPaused {
		t.Errorf("第一次切换后 State = %s", e.State())
	}
	e.TogglePause()
	if e.State() != models.SessionRunning {
		t.Errorf("第二次切换后 State = %s", e.State())
	}

	close(f.gate)
	waitResult(t, e)
}

func TestEngine_Stop(t *testing.T) {
	f := newStubFetcher(stubSite)
	f.gate = make(chan struct{})
	e := newStubEngine(f)

	if !e.StartCrawl(testParams("https://example.com/", 3)) {
		t.Fatal("StartCrawl返回false")
	}

	<-f.called
	e.Stop()
	if e.State() != models.SessionStopping {
		t.Errorf("State = %s, 期望 stopping", e.State())
	}
	close(f.gate)

	result := waitResult(t, e)
	if !result.Success || !result.Stopped {
		t.Errorf("停止应产生成功且已停止的结果: %+v", result)
	}
	if result.Pages != 1 || len(f.Calls()) != 1 {
		t.Errorf("进行中的URL应完成且不再处理新URL: pages=%d calls=%v", result.Pages, f.Calls())
	}
	if e.State() != models.SessionCompleted {
		t.Errorf("State = %s, 期望 completed", e.State())
	}

	// 结束后再次停止无任何效果,终止事件只发送一次
	e.Stop()
	if e.State() != models.SessionCompleted {
		t.Errorf("重复Stop改变了状态: %s", e.State())
	}
	select {
	case extra := <-e.Done():
		t.Errorf("终止事件重复发送: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEngine_StopWhilePaused(t *testing.T) {
	f := newStubFetcher(stubSite)
	e := newStubEngine(f)

	params := testParams("https://example.com/", 3)
	params.RateLimitSeconds = 60
	if !e.StartCrawl(params) {
		t.Fatal("StartCrawl返回false")
	}
	<-f.called

	e.Pause()
	e.Stop()

	// 速率等待和暂停等待都应被停止信号打断
	result := waitResult(t, e)
	if !result.Stopped {
		t.Errorf("期望Stopped=true: %+v", result)
	}
}

func TestEngine_Wait(t *testing.T) {
	e := newStubEngine(newStubFetcher(stubSite))

	if _, err := e.Wait(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Errorf("未开始会话时期望ErrNoSession, 实际: %v", err)
	}

	if !e.StartCrawl(testParams("https://example.com/", 3)) {
		t.Fatal("StartCrawl返回false")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	first, err := e.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait失败: %v", err)
	}
	second, err := e.Wait(ctx)
	if err != nil || second.SessionID != first.SessionID {
		t.Errorf("多次Wait应返回同一结果: %v %+v", err, second)
	}

	// Wait不消费终止事件
	if result := waitResult(t, e); result.SessionID != first.SessionID {
		t.Errorf("Done结果与Wait不一致: %s != %s", result.SessionID, first.SessionID)
	}
}

func TestEngine_FatalErrors(t *testing.T) {
	t.Run("抓取器创建失败", func(t *testing.T) {
		e := NewEngine(testEngineOptions())
		e.newFetcher = func(models.CrawlParams) (crawlers.Fetcher, error) {
			return nil, errors.New("transport broken")
		}

		if !e.StartCrawl(testParams("https://example.com/", 3)) {
			t.Fatal("StartCrawl返回false")
		}

		result := waitResult(t, e)
		if result.Success {
			t.Fatal("期望会话失败")
		}
		if !strings.Contains(result.Err, "transport broken") {
			t.Errorf("错误信息错误: %s", result.Err)
		}
		if result.Error() == nil {
			t.Error("Error()应返回非nil")
		}
		if e.State() != models.SessionFailed {
			t.Errorf("State = %s, 期望 failed", e.State())
		}
	})

	t.Run("循环panic", func(t *testing.T) {
		e := NewEngine(testEngineOptions())
		e.newFetcher = func(models.CrawlParams) (crawlers.Fetcher, error) {
			panic("boom")
		}

		if !e.StartCrawl(testParams("https://example.com/", 3)) {
			t.Fatal("StartCrawl返回false")
		}

		result := waitResult(t, e)
		if result.Success || !strings.Contains(result.Err, "boom") {
			t.Errorf("panic应作为会话失败上报: %+v", result)
		}
		if e.State() != models.SessionFailed {
			t.Errorf("State = %s, 期望 failed", e.State())
		}
	})
}

func TestEngine_StartRejected(t *testing.T) {
	t.Run("无效参数", func(t *testing.T) {
		e := NewEngine(testEngineOptions())

		tests := []models.CrawlParams{
			testParams("", 3),
			testParams("https://example.com/", 0),
			{SeedURL: "https://example.com/", MaxDepth: 1, MaxWorkers: 0},
			{SeedURL: "https://example.com/", MaxDepth: 1, MaxWorkers: 1, RateLimitSeconds: -1},
		}
		for _, params := range tests {
			if e.StartCrawl(params) {
				t.Errorf("无效参数应被拒绝: %+v", params)
			}
		}

		if e.State() != models.SessionIdle {
			t.Errorf("State = %s, 期望 idle", e.State())
		}
		if e.Done() != nil {
			t.Error("未开始会话时Done应为nil")
		}
		if _, err := e.Start(testParams("", 3)); !errors.Is(err, models.ErrInvalidParams) {
			t.Errorf("期望ErrInvalidParams, 实际: %v", err)
		}
	})

	t.Run("已有会话运行", func(t *testing.T) {
		f := newStubFetcher(stubSite)
		f.gate = make(chan struct{})
		e := newStubEngine(f)

		first, err := e.Start(testParams("https://example.com/", 3))
		if err != nil {
			t.Fatalf("Start失败: %v", err)
		}
		<-f.called

		if _, err := e.Start(testParams("https://other.com/", 3)); !errors.Is(err, ErrSessionRunning) {
			t.Errorf("期望ErrSessionRunning, 实际: %v", err)
		}
		if e.StartCrawl(testParams("https://other.com/", 3)) {
			t.Error("运行中StartCrawl应返回false")
		}
		if e.Session() != first {
			t.Error("当前会话不应被替换")
		}

		close(f.gate)
		waitResult(t, e)
	})
}

func TestEngine_Restart(t *testing.T) {
	f := newStubFetcher(stubSite)
	e := newStubEngine(f)

	if !e.StartCrawl(testParams("https://example.com/", 3)) {
		t.Fatal("第一次StartCrawl返回false")
	}
	first := waitResult(t, e)

	if !e.StartCrawl(testParams("https://example.com/", 1)) {
		t.Fatal("会话结束后应允许重新开始")
	}
	second := waitResult(t, e)

	if first.SessionID == second.SessionID {
		t.Error("新会话应有新的ID")
	}
	if second.Pages != 3 || len(e.Records()) != 3 {
		t.Errorf("新会话应重置队列和记录: pages=%d records=%d", second.Pages, len(e.Records()))
	}
	if second.Stats.PagesCrawled != 3 {
		t.Errorf("新会话应重置统计: %+v", second.Stats)
	}
}

func TestEngine_Filter(t *testing.T) {
	f := newStubFetcher(stubSite)
	opts := testEngineOptions()
	opts.Filter = crawlers.NewURLFilter()
	if err := opts.Filter.AddExcludePattern(`/b$`); err != nil {
		t.Fatalf("添加规则失败: %v", err)
	}

	e := NewEngine(opts)
	e.newFetcher = func(models.CrawlParams) (crawlers.Fetcher, error) { return f, nil }

	if !e.StartCrawl(testParams("https://example.com/", 3)) {
		t.Fatal("StartCrawl返回false")
	}
	result := waitResult(t, e)

	for _, url := range f.Calls() {
		if strings.HasSuffix(url, "/b") {
			t.Errorf("被排除的URL不应被抓取: %s", url)
		}
	}
	if result.Pages != 3 {
		t.Errorf("Pages = %d, 期望 3", result.Pages)
	}
}

func TestEngine_Robots(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.URL.Path == "/" {
			_, _ = w.Write([]byte(`<html><body><a href="/private/x">p</a><a href="/public">q</a></body></html>`))
			return
		}
		_, _ = w.Write([]byte(`<html><head><title>t</title></head></html>`))
	})

	srv := httptest.NewTLSServer(mux)
	defer srv.Close()

	opts := testEngineOptions()
	opts.DisableRobots = false
	opts.InsecureSkipVerify = true
	opts.RobotsClient = srv.Client()

	e := NewEngine(opts)
	if !e.StartCrawl(testParams(srv.URL+"/", 2)) {
		t.Fatal("StartCrawl返回false")
	}
	waitResult(t, e)

	got := strings.Join(recordPaths(e.Records(), srv.URL), ",")
	if got != "/,/public" {
		t.Errorf("robots禁止的路径不应被抓取, 实际: %s", got)
	}
}

// delayRobots 放行所有URL并声明固定的Crawl-delay
type delayRobots struct {
	delay      time.Duration
	delayCalls atomic.Int32
}

func (r *delayRobots) CanFetch(ctx context.Context, rawURL string) bool {
	return true
}

func (r *delayRobots) CrawlDelay(ctx context.Context, rawURL string) time.Duration {
	r.delayCalls.Add(1)
	return r.delay
}

func newDelayEngine(f crawlers.Fetcher, robots *delayRobots, opts EngineOptions) *Engine {
	e := NewEngine(opts)
	e.newFetcher = func(models.CrawlParams) (crawlers.Fetcher, error) { return f, nil }
	e.newRobots = func(models.CrawlParams) crawlers.RobotsChecker { return robots }
	return e
}

func TestEngine_CrawlDelay(t *testing.T) {
	const delay = 150 * time.Millisecond

	f := newStubFetcher(map[string][]string{
		"https://example.com/": {
			"https://example.com/a",
			"https://example.com/a",
			"https://example.com/",
			"https://example.com/skip",
		},
		"https://example.com/a": {"https://example.com/"},
	})
	robots := &delayRobots{delay: delay}

	opts := testEngineOptions()
	opts.Filter = crawlers.NewURLFilter()
	if err := opts.Filter.AddExcludePattern(`/skip$`); err != nil {
		t.Fatalf("添加规则失败: %v", err)
	}
	e := newDelayEngine(f, robots, opts)

	params := testParams("https://example.com/", 3)
	params.RespectCrawlDelay = true
	if !e.StartCrawl(params) {
		t.Fatal("StartCrawl返回false")
	}
	result := waitResult(t, e)

	if got := strings.Join(f.Calls(), ","); got != "https://example.com/,https://example.com/a" {
		t.Fatalf("抓取顺序错误: %s", got)
	}
	if result.Pages != 2 {
		t.Errorf("Pages = %d, 期望 2", result.Pages)
	}

	// 同一域名相邻两次抓取至少间隔Crawl-delay(留少量计时误差)
	times := f.Times()
	if gap := times[1].Sub(times[0]); gap < delay-30*time.Millisecond {
		t.Errorf("同域名抓取间隔 %v, 期望至少 %v", gap, delay)
	}

	// 已访问和被过滤的URL不查询Crawl-delay,也不等待
	if got := robots.delayCalls.Load(); got != 2 {
		t.Errorf("CrawlDelay调用次数 = %d, 期望 2 (仅实际抓取的URL)", got)
	}
}

func TestEngine_CrawlDelayDisabled(t *testing.T) {
	f := newStubFetcher(stubSite)
	robots := &delayRobots{delay: time.Hour}
	e := newDelayEngine(f, robots, testEngineOptions())

	if !e.StartCrawl(testParams("https://example.com/", 3)) {
		t.Fatal("StartCrawl返回false")
	}
	result := waitResult(t, e)

	if result.Pages != 4 {
		t.Errorf("未开启Crawl-delay时应正常完成: pages=%d", result.Pages)
	}
	if got := robots.delayCalls.Load(); got != 0 {
		t.Errorf("未开启时不应查询Crawl-delay, 调用 %d 次", got)
	}
}

func TestEngine_StopDuringCrawlDelay(t *testing.T) {
	f := newStubFetcher(stubSite)
	robots := &delayRobots{delay: time.Hour}
	e := newDelayEngine(f, robots, testEngineOptions())

	params := testParams("https://example.com/", 3)
	params.RespectCrawlDelay = true
	if !e.StartCrawl(params) {
		t.Fatal("StartCrawl返回false")
	}
	<-f.called

	// 第二个URL查询Crawl-delay后进入一小时的等待
	deadline := time.Now().Add(5 * time.Second)
	for robots.delayCalls.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("等待进入限速超时")
		}
		time.Sleep(5 * time.Millisecond)
	}

	stoppedAt := time.Now()
	e.Stop()

	var result models.SessionResult
	select {
	case result = <-e.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("停止信号未打断Crawl-delay等待")
	}

	if elapsed := time.Since(stoppedAt); elapsed > time.Second {
		t.Errorf("停止耗时 %v, 期望立即结束", elapsed)
	}
	if !result.Stopped || !result.Success {
		t.Errorf("期望成功且已停止: %+v", result)
	}
	if calls := f.Calls(); len(calls) != 1 {
		t.Errorf("等待被打断的URL不应再抓取: %v", calls)
	}
}
