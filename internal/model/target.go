package model

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
)

// TargetKind 目标类型
type TargetKind int

const (
	TargetURL TargetKind = iota + 1
	TargetIP
	TargetRepo
)

func (k TargetKind) String() string {
	switch k {
	case TargetURL:
		return "url"
	case TargetIP:
		return "ip"
	case TargetRepo:
		return "repo"
	default:
		return "unknown"
	}
}

// Target 扫描目标，三种类型中只有一种被填充，创建后不可修改
type Target struct {
	kind TargetKind
	url  string
	ip   net.IP
	path string
}

// NewTarget 从命令行输入构造目标，必须且只能提供一个非空参数
func NewTarget(rawURL, rawIP, repoPath string) (Target, error) {
	provided := 0
	for _, v := range []string{rawURL, rawIP, repoPath} {
		if strings.TrimSpace(v) != "" {
			provided++
		}
	}
	if provided != 1 {
		return Target{}, fmt.Errorf("%w: 必须且只能指定 --url、--ip、--repo 其中之一", ErrUsage)
	}

	switch {
	case strings.TrimSpace(rawURL) != "":
		u, err := url.Parse(strings.TrimSpace(rawURL))
		if err != nil {
			return Target{}, fmt.Errorf("%w: 无效的URL: %v", ErrUsage, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
			return Target{}, fmt.Errorf("%w: 无效的URL: %s", ErrUsage, rawURL)
		}
		return Target{kind: TargetURL, url: u.String()}, nil

	case strings.TrimSpace(rawIP) != "":
		ip := net.ParseIP(strings.TrimSpace(rawIP))
		if ip == nil {
			return Target{}, fmt.Errorf("%w: 无效的IP地址: %s", ErrUsage, rawIP)
		}
		return Target{kind: TargetIP, ip: ip}, nil

	default:
		info, err := os.Stat(repoPath)
		if err != nil || !info.IsDir() {
			return Target{}, fmt.Errorf("%w: 仓库路径不存在或不是目录: %s", ErrUsage, repoPath)
		}
		return Target{kind: TargetRepo, path: repoPath}, nil
	}
}

func (t Target) Kind() TargetKind { return t.kind }

func (t Target) URL() string { return t.url }

// IP 返回副本，调用方修改不会影响目标本身
func (t Target) IP() net.IP {
	if t.ip == nil {
		return nil
	}
	ip := make(net.IP, len(t.ip))
	copy(ip, t.ip)
	return ip
}

func (t Target) Path() string { return t.path }

func (t Target) String() string {
	switch t.kind {
	case TargetURL:
		return "url(" + t.url + ")"
	case TargetIP:
		return "ip(" + t.ip.String() + ")"
	case TargetRepo:
		return "repo(" + t.path + ")"
	default:
		return "invalid"
	}
}
