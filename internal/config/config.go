package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDNSConcurrency  = 600
	DefaultPortConcurrency = 1000
	DefaultTCPTimeout      = 800 * time.Millisecond
	DefaultUDPTimeout      = time.Second
	DefaultPortRange       = "1-65535"
	DefaultWordlist        = "wordlists/subdomains.txt"
	DefaultReconOutput     = "output/recon_output.csv"
	DefaultPortsDir        = "Ports"
)

type Config struct {
	DNS   DNSConfig   `yaml:"dns"`
	Ports PortsConfig `yaml:"ports"`
	Paths PathsConfig `yaml:"paths"`
}

// DNSConfig 子域名枚举相关配置
type DNSConfig struct {
	Concurrency int `yaml:"concurrency"`
	// Nameserver 为空时使用系统解析器，否则直接向该服务器发送查询（host:port）
	Nameserver string `yaml:"nameserver"`
}

// PortsConfig 端口扫描相关配置
type PortsConfig struct {
	Concurrency int           `yaml:"concurrency"`
	Range       string        `yaml:"range"`
	TCPTimeout  time.Duration `yaml:"tcp_timeout"`
	UDPTimeout  time.Duration `yaml:"udp_timeout"`
	UDP         bool          `yaml:"udp"`
	UDPPayload  string        `yaml:"udp_payload"`
}

type PathsConfig struct {
	Wordlist    string `yaml:"wordlist"`
	ReconOutput string `yaml:"recon_output"`
	PortsDir    string `yaml:"ports_dir"`
}

// Default 返回内置默认配置
func Default() *Config {
	return &Config{
		DNS: DNSConfig{
			Concurrency: DefaultDNSConcurrency,
		},
		Ports: PortsConfig{
			Concurrency: DefaultPortConcurrency,
			Range:       DefaultPortRange,
			TCPTimeout:  DefaultTCPTimeout,
			UDPTimeout:  DefaultUDPTimeout,
		},
		Paths: PathsConfig{
			Wordlist:    DefaultWordlist,
			ReconOutput: DefaultReconOutput,
			PortsDir:    DefaultPortsDir,
		},
	}
}

// Load 读取YAML配置文件并覆盖默认值，path为空时直接返回默认配置
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查配置是否合法
func (c *Config) Validate() error {
	if c.DNS.Concurrency <= 0 {
		return fmt.Errorf("dns.concurrency 必须大于0: %d", c.DNS.Concurrency)
	}
	if c.Ports.Concurrency <= 0 {
		return fmt.Errorf("ports.concurrency 必须大于0: %d", c.Ports.Concurrency)
	}
	if c.Ports.TCPTimeout <= 0 {
		return fmt.Errorf("ports.tcp_timeout 必须大于0: %s", c.Ports.TCPTimeout)
	}
	if c.Ports.UDPTimeout <= 0 {
		return fmt.Errorf("ports.udp_timeout 必须大于0: %s", c.Ports.UDPTimeout)
	}
	if strings.TrimSpace(c.Paths.Wordlist) == "" ||
		strings.TrimSpace(c.Paths.ReconOutput) == "" ||
		strings.TrimSpace(c.Paths.PortsDir) == "" {
		return fmt.Errorf("paths 中的路径不能为空")
	}
	return nil
}
