package utils

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// ExtractDomain 从完整URL中提取可注册域名（基于公共后缀列表）
func ExtractDomain(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("解析URL失败: %w", err)
	}

	host := strings.TrimSuffix(parsed.Hostname(), ".")
	if host == "" {
		return "", fmt.Errorf("URL中没有主机名: %s", rawURL)
	}

	ascii, err := idna.Lookup.ToASCII(strings.ToLower(host))
	if err != nil {
		return "", fmt.Errorf("主机名 %s 无法转换为IDNA格式: %w", host, err)
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(ascii)
	if err != nil {
		return "", fmt.Errorf("无法从 %s 提取可注册域名: %w", ascii, err)
	}

	return domain, nil
}
