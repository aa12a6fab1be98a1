// Package limiter 提供限制同时进行中网络探测数量的准入闸门。
//
// 闸门只会推迟任务的开始，从不拒绝任务；每个许可只覆盖一次探测，
// 持有者通过 defer Release 保证在所有退出路径上归还。
package limiter

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

type Limiter struct {
	sem      *semaphore.Weighted
	capacity int64
	inFlight atomic.Int64
	peak     atomic.Int64
}

// New 创建容量为 capacity 的闸门，capacity 小于1时按1处理
func New(capacity int) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	return &Limiter{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}
}

// Permit 一个探测槽位
type Permit struct {
	l    *Limiter
	once sync.Once
}

// Acquire 阻塞直到有空闲槽位或 ctx 结束
func (l *Limiter) Acquire(ctx context.Context) (*Permit, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	n := l.inFlight.Add(1)
	for {
		peak := l.peak.Load()
		if n <= peak || l.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	return &Permit{l: l}, nil
}

// Release 归还槽位，重复调用无副作用
func (p *Permit) Release() {
	if p == nil {
		return
	}
	p.once.Do(func() {
		p.l.inFlight.Add(-1)
		p.l.sem.Release(1)
	})
}

func (l *Limiter) Capacity() int { return int(l.capacity) }

// InFlight 当前被持有的许可数量
func (l *Limiter) InFlight() int { return int(l.inFlight.Load()) }

// Peak 观察到的最大同时持有数量
func (l *Limiter) Peak() int { return int(l.peak.Load()) }
