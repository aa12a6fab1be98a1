// Package orchestrator 按目标类型依次驱动各个扫描阶段。
//
// 阶段严格串行：端口扫描的输入（主机集合）来自子域名枚举已落盘的结果表。
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"VeilStrike/internal/config"
	"VeilStrike/internal/limiter"
	"VeilStrike/internal/model"
	"VeilStrike/internal/probe"
	"VeilStrike/internal/recon"
	"VeilStrike/internal/scanner"
	"VeilStrike/internal/sink"
	"VeilStrike/internal/utils"
)

type State int

const (
	StateIdle State = iota
	StateResolvingTarget
	StateEnumeratingSubdomains
	StateExtractingHosts
	StateScanningPorts
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateResolvingTarget:
		return "ResolvingTarget"
	case StateEnumeratingSubdomains:
		return "EnumeratingSubdomains"
	case StateExtractingHosts:
		return "ExtractingHosts"
	case StateScanningPorts:
		return "ScanningPorts"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Dependencies 可替换的协作者，为空时按配置创建默认实现
type Dependencies struct {
	Resolver probe.Resolver
	Probers  []probe.PortProber
}

type Orchestrator struct {
	cfg        *config.Config
	resolver   probe.Resolver
	probers    []probe.PortProber
	ports      []int
	dnsLimiter *limiter.Limiter
	runID      string
	logger     *utils.Logger

	mu      sync.Mutex
	state   State
	history []State
	err     error
}

func New(cfg *config.Config, deps Dependencies) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUsage, err)
	}

	ports, err := scanner.ParsePortRange(cfg.Ports.Range)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUsage, err)
	}

	resolver := deps.Resolver
	if resolver == nil {
		resolver = probe.NewResolver(cfg.DNS.Nameserver)
	}

	probers := deps.Probers
	if probers == nil {
		probers = []probe.PortProber{probe.NewTCPProber(cfg.Ports.TCPTimeout)}
		if cfg.Ports.UDP {
			probers = append(probers, probe.NewUDPProber(cfg.Ports.UDPTimeout, []byte(cfg.Ports.UDPPayload)))
		}
	}

	runID := uuid.NewString()
	return &Orchestrator{
		cfg:        cfg,
		resolver:   resolver,
		probers:    probers,
		ports:      ports,
		dnsLimiter: limiter.New(cfg.DNS.Concurrency),
		runID:      runID,
		logger:     utils.NewLogger("orchestrator").WithField("run", runID),
		state:      StateIdle,
		history:    []State{StateIdle},
	}, nil
}

func (o *Orchestrator) RunID() string { return o.runID }

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// History 本次运行经历过的全部状态
func (o *Orchestrator) History() []State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]State(nil), o.history...)
}

// Err 失败时携带的第一个不可恢复错误
func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

func (o *Orchestrator) transition(next State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = next
	o.history = append(o.history, next)
	o.logger.Debug("状态切换: %s", next)
}

func (o *Orchestrator) fail(err error) error {
	o.mu.Lock()
	if o.err == nil {
		o.err = err
	}
	first := o.err
	o.mu.Unlock()

	o.transition(StateFailed)
	o.logger.Error("❌ %v", first)
	return first
}

// Run 执行一次完整扫描，出错时仍返回已完成部分的报告
func (o *Orchestrator) Run(ctx context.Context, target model.Target) (*model.RunReport, error) {
	if o.State() != StateIdle {
		return nil, errors.New("orchestrator 只能运行一次")
	}

	start := time.Now()
	report := &model.RunReport{
		RunID:      o.runID,
		Target:     target.String(),
		TargetKind: target.Kind().String(),
	}

	err := o.run(ctx, target, report)
	if err == nil {
		o.transition(StateDone)
	} else {
		err = o.fail(err)
		report.Error = err.Error()
	}

	for _, s := range o.History() {
		report.States = append(report.States, s.String())
	}
	report.FinalState = o.State().String()
	report.ScanTime = time.Since(start).Round(time.Millisecond).String()

	return report, err
}

func (o *Orchestrator) run(ctx context.Context, target model.Target, report *model.RunReport) error {
	o.transition(StateResolvingTarget)
	o.logger.Info("🔍 目标: %s", target)

	switch target.Kind() {
	case model.TargetURL:
		hosts, err := o.reconDomain(ctx, target.URL(), report)
		if err != nil {
			return err
		}
		return o.scanHosts(ctx, hosts, report)

	case model.TargetIP:
		return o.scanHosts(ctx, []string{target.IP().String()}, report)

	case model.TargetRepo:
		o.logger.Info("📁 仓库路径 %s 暂不分析", target.Path())
		return nil

	default:
		return fmt.Errorf("%w: 未知的目标类型 %v", model.ErrUsage, target.Kind())
	}
}

// reconDomain 解析主域名、枚举子域名、校验结果表并提取主机集合
func (o *Orchestrator) reconDomain(ctx context.Context, rawURL string, report *model.RunReport) ([]string, error) {
	domain, err := utils.ExtractDomain(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUsage, err)
	}
	report.Domain = domain
	report.ReconTable = o.cfg.Paths.ReconOutput

	enumerator := recon.NewEnumerator(o.resolver, o.dnsLimiter, utils.NewLogger("recon").WithField("run", o.runID))

	o.logger.Info("🔧 解析主域名 %s ...", domain)
	if ips, err := enumerator.ResolveBase(ctx, domain); err != nil {
		o.logger.Warn("主域名解析失败: %v", err)
	} else {
		for _, ip := range ips {
			report.DomainIPs = append(report.DomainIPs, ip.String())
			o.logger.Info("→ IP: %s", ip)
		}
	}

	o.transition(StateEnumeratingSubdomains)

	labels, err := utils.LoadWordlist(o.cfg.Paths.Wordlist)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrIO, err)
	}
	o.logger.Info("🔍 使用 %d 个候选子域名枚举 %s", len(labels), domain)

	table, err := sink.OpenTable(o.cfg.Paths.ReconOutput, model.ReconHeader)
	if err != nil {
		return nil, err
	}

	found, enumErr := enumerator.Enumerate(ctx, domain, labels, table)
	closeErr := table.Close()
	report.Subdomains = found
	if enumErr != nil {
		return nil, enumErr
	}
	if closeErr != nil {
		return nil, closeErr
	}

	rows, err := sink.ValidateTable(o.cfg.Paths.ReconOutput, model.ReconHeader)
	report.TableRows = rows
	if err != nil {
		return nil, err
	}
	o.logger.Info("📄 子域名结果已写入 %s（共 %d 行）", o.cfg.Paths.ReconOutput, rows)

	o.transition(StateExtractingHosts)

	hosts, err := sink.ReadHosts(o.cfg.Paths.ReconOutput, domain)
	if err != nil {
		return nil, err
	}
	return hosts, nil
}

// scanHosts 逐个主机扫描，任一主机的I/O错误终止整个阶段
func (o *Orchestrator) scanHosts(ctx context.Context, hosts []string, report *model.RunReport) error {
	o.transition(StateScanningPorts)
	report.Hosts = hosts
	report.PortOutputDir = o.cfg.Paths.PortsDir

	if len(hosts) == 0 {
		o.logger.Info("ℹ️ 没有需要扫描的主机")
		return nil
	}

	ps := scanner.NewPortScanner(
		limiter.New(o.cfg.Ports.Concurrency),
		o.probers,
		sink.NewPortStore(o.cfg.Paths.PortsDir),
		o.ports,
		utils.NewLogger("scanner").WithField("run", o.runID),
	)

	for _, host := range hosts {
		outcomes, err := ps.ScanHost(ctx, host)
		report.Outcomes = append(report.Outcomes, outcomes...)
		if err != nil {
			return err
		}
	}
	return nil
}
