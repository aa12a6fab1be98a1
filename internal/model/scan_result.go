package model

import (
	"net"
	"strings"
)

// ProbeKind 探测类型
type ProbeKind string

const (
	ProbeDNS ProbeKind = "dns"
	ProbeTCP ProbeKind = "tcp"
	ProbeUDP ProbeKind = "udp"
)

// ProbeTask 单次探测的描述，每次分发时创建，只被一个worker消费
type ProbeTask struct {
	Kind ProbeKind
	Host string
	Port int
}

// ResolutionRecord 子域名解析成功的记录，地址顺序与解析器返回顺序一致
type ResolutionRecord struct {
	Subdomain string   `json:"subdomain"`
	Addresses []net.IP `json:"addresses"`
}

// ReconHeader 子域名结果表的表头
var ReconHeader = []string{"Subdomain", "IP Addresses"}

// Fields 转换为结果表的一行
func (r ResolutionRecord) Fields() []string {
	addrs := make([]string, 0, len(r.Addresses))
	for _, ip := range r.Addresses {
		addrs = append(addrs, ip.String())
	}
	return []string{r.Subdomain, strings.Join(addrs, ", ")}
}

// PortSet 单个主机的开放端口集合，端口升序排列
type PortSet struct {
	Host     string    `json:"host"`
	Protocol ProbeKind `json:"protocol"`
	Ports    []int     `json:"ports"`
}

// HostOutcome 单个主机单个协议的扫描结果
type HostOutcome struct {
	PortSet
	Skipped bool   `json:"skipped"`
	Elapsed string `json:"elapsed,omitempty"`
}

// RunReport 一次完整运行的汇总
type RunReport struct {
	RunID         string        `json:"run_id"`
	Target        string        `json:"target"`
	TargetKind    string        `json:"target_kind"`
	Domain        string        `json:"domain,omitempty"`
	DomainIPs     []string      `json:"domain_ips,omitempty"`
	Subdomains    int           `json:"subdomains_found"`
	TableRows     int           `json:"table_rows"`
	Hosts         []string      `json:"hosts,omitempty"`
	Outcomes      []HostOutcome `json:"outcomes,omitempty"`
	States        []string      `json:"states"`
	FinalState    string        `json:"final_state"`
	Error         string        `json:"error,omitempty"`
	ScanTime      string        `json:"scan_time"`
	ReconTable    string        `json:"recon_table,omitempty"`
	PortOutputDir string        `json:"port_output_dir,omitempty"`
}

// ScanOptions 命令行选项
type ScanOptions struct {
	URL          string
	IP           string
	Repo         string
	ConfigFile   string
	OutputFile   string
	OutputFormat string // text, json
	UDP          bool
	Verbose      bool
}
