package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"VeilStrike/internal/limiter"
	"VeilStrike/internal/model"
	"VeilStrike/internal/probe"
	"VeilStrike/internal/sink"
	"VeilStrike/internal/utils"
)

const (
	MinPort = 1
	MaxPort = 65535
)

// ResultStore 端口结果的持久化，文件存在即视为已扫描
type ResultStore interface {
	Exists(host string, proto model.ProbeKind) bool
	Save(set model.PortSet) error
}

var _ ResultStore = (*sink.PortStore)(nil)

type PortScanner struct {
	limiter *limiter.Limiter
	probers []probe.PortProber
	store   ResultStore
	ports   []int
	logger  *utils.Logger
}

func NewPortScanner(lim *limiter.Limiter, probers []probe.PortProber, store ResultStore, ports []int, logger *utils.Logger) *PortScanner {
	if logger == nil {
		logger = utils.NewLogger("scanner")
	}
	return &PortScanner{
		limiter: lim,
		probers: probers,
		store:   store,
		ports:   ports,
		logger:  logger,
	}
}

// ParsePortRange 解析以逗号分隔的端口和端口区间，"" 和 "all" 表示全部端口
func ParsePortRange(portRange string) ([]int, error) {
	portRange = strings.TrimSpace(portRange)
	if portRange == "" || strings.EqualFold(portRange, "all") {
		return fullRange(), nil
	}

	var ports []int
	for _, part := range strings.Split(portRange, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		lo, hi, err := parseSpan(part)
		if err != nil {
			return nil, err
		}
		for port := lo; port <= hi; port++ {
			ports = append(ports, port)
		}
	}

	if len(ports) == 0 {
		return nil, fmt.Errorf("端口范围为空: %q", portRange)
	}
	return removeDuplicatesAndSort(ports), nil
}

// parseSpan 单个端口视为首尾相同的区间
func parseSpan(part string) (int, int, error) {
	first, last, isRange := strings.Cut(part, "-")
	if !isRange {
		last = first
	}

	lo, err := parsePort(first)
	if err != nil {
		return 0, 0, fmt.Errorf("无效的端口 %q: %w", part, err)
	}
	hi, err := parsePort(last)
	if err != nil {
		return 0, 0, fmt.Errorf("无效的端口 %q: %w", part, err)
	}
	if lo > hi {
		return 0, 0, fmt.Errorf("起始端口不能大于结束端口: %s", part)
	}
	return lo, hi, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.New("不是数字")
	}
	if port < MinPort || port > MaxPort {
		return 0, fmt.Errorf("超出 %d-%d", MinPort, MaxPort)
	}
	return port, nil
}

func fullRange() []int {
	ports := make([]int, 0, MaxPort)
	for port := MinPort; port <= MaxPort; port++ {
		ports = append(ports, port)
	}
	return ports
}

// 去重并排序
func removeDuplicatesAndSort(ports []int) []int {
	seen := make(map[int]struct{}, len(ports))
	unique := make([]int, 0, len(ports))
	for _, port := range ports {
		if _, ok := seen[port]; ok {
			continue
		}
		seen[port] = struct{}{}
		unique = append(unique, port)
	}
	sort.Ints(unique)
	return unique
}

// ScanHost 对单个主机按每个启用的协议扫描一次。
// 已存在结果文件的 (主机, 协议) 直接跳过，不发出任何探测。
func (ps *PortScanner) ScanHost(ctx context.Context, host string) ([]model.HostOutcome, error) {
	outcomes := make([]model.HostOutcome, 0, len(ps.probers))

	for _, prober := range ps.probers {
		proto := prober.Protocol()

		if ps.store.Exists(host, proto) {
			ps.logger.Warn("⚠️ 跳过 %s/%s，已扫描过", host, proto)
			outcomes = append(outcomes, model.HostOutcome{
				PortSet: model.PortSet{Host: host, Protocol: proto},
				Skipped: true,
			})
			continue
		}

		ps.logger.Info("🔍 扫描 %s/%s，共 %d 个端口...", host, proto, len(ps.ports))
		start := time.Now()

		open, err := ps.ConcurrentScan(ctx, host, prober)
		if err != nil {
			return outcomes, err
		}

		set := model.PortSet{Host: host, Protocol: proto, Ports: open}
		outcome := model.HostOutcome{PortSet: set, Elapsed: time.Since(start).Round(time.Millisecond).String()}

		if len(open) == 0 {
			ps.logger.Info("ℹ️ %s/%s 未发现开放端口", host, proto)
			outcomes = append(outcomes, outcome)
			continue
		}

		if err := ps.store.Save(set); err != nil {
			return outcomes, fmt.Errorf("保存 %s 的端口结果失败: %w", host, err)
		}
		ps.logger.Info("✅ 已保存 %s/%s 的 %d 个开放端口", host, proto, len(open))
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

// ConcurrentScan 每个端口一个任务，通过闸门限制同时进行的探测数量，
// 全部完成后返回升序的开放端口
func (ps *PortScanner) ConcurrentScan(ctx context.Context, host string, prober probe.PortProber) ([]int, error) {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		open []int
	)

	var dispatchErr error
	for _, port := range ps.ports {
		task := model.ProbeTask{Kind: prober.Protocol(), Host: host, Port: port}

		permit, err := ps.limiter.Acquire(ctx)
		if err != nil {
			dispatchErr = err
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer permit.Release()

			if !prober.Probe(ctx, task.Host, task.Port) {
				return
			}

			mu.Lock()
			open = append(open, task.Port)
			mu.Unlock()

			ps.logger.Debug("端口 %d/%s 开放", task.Port, task.Kind)
		}()
	}

	wg.Wait()
	if dispatchErr != nil {
		return nil, dispatchErr
	}

	sort.Ints(open)
	return open, nil
}

// Ports 本扫描器使用的端口列表
func (ps *PortScanner) Ports() []int {
	return ps.ports
}
