// Package crawlers 提供广度优先爬取的核心组件
//
// # 概述
//
// crawlers包实现单个爬取会话所需的全部状态和处理步骤:待爬队列与已访问集合、
// 单URL处理管道、robots策略缓存、代理轮转池、URL准入过滤器和实时统计。
// 编排(开始/暂停/恢复/停止)由core.Engine负责,本包只提供可组合的组件。
//
// # 核心组件
//
// ## Frontier (待爬队列)
//
// 严格FIFO的(URL, 深度)队列。入队不去重,去重由MarkVisited在处理前完成,
// MarkVisited在同一个互斥锁内完成"检查+记录",保证同一URL只被派发一次。
// 已访问集合以规范化URL为键(见CanonicalURL)。
//
//	frontier := NewFrontier()
//	frontier.Enqueue("https://example.com", 0)
//	item, ok := frontier.Dequeue()
//	if ok && frontier.MarkVisited(item.URL) {
//	    // 首次处理
//	}
//
// ## Pipeline (处理管道)
//
// 对一个已通过深度检查的工作项依次执行:
//   - 去重(MarkVisited)
//   - 准入过滤(URLFilter)
//   - robots检查(RobotsChecker,失败时放行)
//   - 借出代理并抓取(Fetcher),结束后归还代理
//   - 解析链接,生成PageRecord,过滤后以depth+1入队
//
// 单个URL的任何失败(包括panic)只计入错误数,不会中止爬取。
//
// ## CollyFetcher (页面抓取器)
//
// 基于Colly的抓取器,每个代理地址使用独立的collector。
// 通过OnHTML回调提取<title>和<a href>,支持gzip/deflate/br响应解压。
//
// ## RobotsCache (robots策略缓存)
//
// 按域名缓存 https://{host}/robots.txt 的解析结果,会话内不失效。
// 非200状态、传输错误、解析错误一律缓存为"无策略"(全部允许)。
// 同一域名的并发首次查询通过singleflight合并为一次请求。
//
// ## ProxyPool (代理池)
//
// 主列表 + 可用队列 + 借出计数。队列耗尽时只补充未借出的代理,
// 全部借出时才按轮询复用。健康检查失败的代理从主列表和队列中移除,
// 归还已移除的代理不会重新入队。
//
//	pool := NewProxyPool(ProxyPoolOptions{})
//	pool.Add(entry)
//	removed := pool.CheckAll(ctx, 4)
//
// ## URLFilter (准入过滤器)
//
// 判定顺序: 域名白名单 → 排除规则 → 包含规则,逐级短路。
// 无效的正则在配置阶段被记录并忽略,无法解析的URL直接拒绝。
//
// ## StatsAggregator (统计聚合器)
//
// 所有计数器在同一个互斥锁下更新,Snapshot在单个临界区内复制全部字段。
// StartSession启动每秒一次的后台采样(常驻内存、页/分钟),
// StopSession后采样器在下一次采样时退出。
//
// # 并发安全
//
// Frontier、ProxyPool、URLFilter、RobotsCache、StatsAggregator、RecordStore
// 均可被多个goroutine同时使用。
package crawlers
