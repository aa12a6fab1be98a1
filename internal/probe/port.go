package probe

import (
	"context"
	"net"
	"strconv"
	"time"

	"VeilStrike/internal/model"
)

// DefaultUDPPayload UDP探测默认发送的内容
var DefaultUDPPayload = []byte{0x00}

// PortProber 端口探测，只返回成功或失败
type PortProber interface {
	Probe(ctx context.Context, host string, port int) bool
	Protocol() model.ProbeKind
}

// TCPProber 在超时时间内建立连接即视为开放。
// 连接被拒绝和超时都返回 false，关闭和被过滤无法区分。
type TCPProber struct {
	Timeout time.Duration
}

func NewTCPProber(timeout time.Duration) *TCPProber {
	return &TCPProber{Timeout: timeout}
}

func (p *TCPProber) Protocol() model.ProbeKind { return model.ProbeTCP }

func (p *TCPProber) Probe(ctx context.Context, host string, port int) bool {
	dialer := &net.Dialer{Timeout: p.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// UDPProber 发送固定内容后在超时时间内收到任何回包即视为开放。
// 静默丢弃未知报文的主机会产生漏报。
type UDPProber struct {
	Timeout time.Duration
	Payload []byte
}

func NewUDPProber(timeout time.Duration, payload []byte) *UDPProber {
	if len(payload) == 0 {
		payload = DefaultUDPPayload
	}
	return &UDPProber{Timeout: timeout, Payload: payload}
}

func (p *UDPProber) Protocol() model.ProbeKind { return model.ProbeUDP }

func (p *UDPProber) Probe(ctx context.Context, host string, port int) bool {
	dialer := &net.Dialer{Timeout: p.Timeout}
	conn, err := dialer.DialContext(ctx, "udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	defer conn.Close()

	deadline := time.Now().Add(p.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return exchange(conn, deadline, p.Payload)
}

// exchange 发送载荷并等待至少一个字节的回应，无法设置超时则直接判定为未开放
func exchange(conn net.Conn, deadline time.Time, payload []byte) bool {
	if err := conn.SetDeadline(deadline); err != nil {
		return false
	}

	if _, err := conn.Write(payload); err != nil {
		return false
	}

	buf := make([]byte, 512)
	n, err := conn.Read(buf)
	return err == nil && n > 0
}
