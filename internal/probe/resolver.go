package probe

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/miekg/dns"
)

// Resolver 域名解析。任何错误（包括NXDOMAIN）对枚举器来说都等同于“没有地址”。
type Resolver interface {
	LookupIP(ctx context.Context, host string) ([]net.IP, error)
}

// NewResolver nameserver 为空时返回系统解析器
func NewResolver(nameserver string) Resolver {
	if strings.TrimSpace(nameserver) == "" {
		return NewSystemResolver()
	}
	return NewDNSClientResolver(nameserver)
}

// SystemResolver 使用系统默认解析配置，不覆盖超时
type SystemResolver struct {
	resolver *net.Resolver
}

func NewSystemResolver() *SystemResolver {
	return &SystemResolver{resolver: net.DefaultResolver}
}

func (r *SystemResolver) LookupIP(ctx context.Context, host string) ([]net.IP, error) {
	addrs, err := r.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		ips = append(ips, a.IP)
	}
	return ips, nil
}

// DNSClientResolver 直接向指定的DNS服务器依次查询 A 和 AAAA 记录
type DNSClientResolver struct {
	client *dns.Client
	server string
}

func NewDNSClientResolver(server string) *DNSClientResolver {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	return &DNSClientResolver{
		client: new(dns.Client),
		server: server,
	}
}

// LookupIP 任一查询成功即返回已收集的地址，两次查询都失败时才返回错误
func (r *DNSClientResolver) LookupIP(ctx context.Context, host string) ([]net.IP, error) {
	var (
		ips     []net.IP
		lastErr error
		ok      bool
	)

	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		answers, err := r.query(ctx, host, qtype)
		if err != nil {
			lastErr = err
			continue
		}
		ok = true
		ips = append(ips, answers...)
	}

	if !ok {
		return nil, lastErr
	}
	return ips, nil
}

func (r *DNSClientResolver) query(ctx context.Context, host string, qtype uint16) ([]net.IP, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), qtype)

	resp, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return nil, fmt.Errorf("查询 %s %s 失败: %w", host, dns.TypeToString[qtype], err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("查询 %s %s 失败: %s", host, dns.TypeToString[qtype], dns.RcodeToString[resp.Rcode])
	}

	var ips []net.IP
	for _, ans := range resp.Answer {
		switch rr := ans.(type) {
		case *dns.A:
			ips = append(ips, rr.A)
		case *dns.AAAA:
			ips = append(ips, rr.AAAA)
		}
	}
	return ips, nil
}
