package recon

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"VeilStrike/internal/limiter"
	"VeilStrike/internal/model"
	"VeilStrike/internal/probe"
	"VeilStrike/internal/utils"
)

// RowWriter 结果的落盘目标，必须可被并发调用
type RowWriter interface {
	WriteRow(fields ...string) error
}

type Enumerator struct {
	resolver probe.Resolver
	limiter  *limiter.Limiter
	logger   *utils.Logger
}

func NewEnumerator(resolver probe.Resolver, lim *limiter.Limiter, logger *utils.Logger) *Enumerator {
	if logger == nil {
		logger = utils.NewLogger("recon")
	}
	return &Enumerator{
		resolver: resolver,
		limiter:  lim,
		logger:   logger,
	}
}

// ResolveBase 解析主域名本身，结果只用于展示
func (e *Enumerator) ResolveBase(ctx context.Context, domain string) ([]net.IP, error) {
	permit, err := e.limiter.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer permit.Release()

	return e.resolver.LookupIP(ctx, domain)
}

// Enumerate 用字典爆破子域名。
// 每个解析成功且地址非空的子域名立即写入 w，返回写入的记录数。
// 解析失败只记录调试日志；写入失败会停止分发剩余任务并返回错误。
func (e *Enumerator) Enumerate(ctx context.Context, domain string, labels []string, w RowWriter) (int, error) {
	domain = strings.Trim(strings.TrimSpace(domain), ".")
	if domain == "" {
		return 0, fmt.Errorf("%w: 域名不能为空", model.ErrUsage)
	}

	g, gctx := errgroup.WithContext(ctx)
	var found atomic.Int64

dispatch:
	for _, label := range labels {
		task := model.ProbeTask{
			Kind: model.ProbeDNS,
			Host: label + "." + domain,
		}

		// 先拿许可再启动goroutine，同时存在的goroutine数量不超过闸门容量
		permit, err := e.limiter.Acquire(gctx)
		if err != nil {
			break dispatch
		}

		g.Go(func() error {
			defer permit.Release()

			ips, err := e.resolver.LookupIP(gctx, task.Host)
			if err != nil || len(ips) == 0 {
				e.logger.Debug("未解析: %s", task.Host)
				return nil
			}

			rec := model.ResolutionRecord{Subdomain: task.Host, Addresses: ips}
			if err := w.WriteRow(rec.Fields()...); err != nil {
				return fmt.Errorf("写入 %s 失败: %w", task.Host, err)
			}

			found.Add(1)
			e.logger.Info("✅ 发现子域名: %s → %s", rec.Subdomain, rec.Fields()[1])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(found.Load()), err
	}
	if err := ctx.Err(); err != nil {
		return int(found.Load()), err
	}

	e.logger.Info("子域名枚举完成，共发现 %d 个", found.Load())
	return int(found.Load()), nil
}
