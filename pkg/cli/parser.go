package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"VeilStrike/internal/model"
)

// ErrHelp 用户请求帮助信息
var ErrHelp = errors.New("显示帮助")

type Parser struct {
	Options model.ScanOptions
	out     io.Writer
}

func NewParser(out io.Writer) *Parser {
	return &Parser{out: out}
}

// Parse 解析命令行参数，只做语法检查和目标数量检查，不访问文件系统
func (p *Parser) Parse(args []string) error {
	var help bool

	fs := flag.NewFlagSet("VeilStrike", flag.ContinueOnError)
	fs.SetOutput(p.out)
	fs.Usage = p.printHelp

	fs.StringVar(&p.Options.URL, "url", "", "目标URL (如: https://example.com)")
	fs.StringVar(&p.Options.IP, "ip", "", "目标IP地址")
	fs.StringVar(&p.Options.Repo, "repo", "", "本地仓库路径")
	fs.StringVar(&p.Options.ConfigFile, "config", "", "YAML配置文件")
	fs.StringVar(&p.Options.OutputFile, "output", "", "运行报告输出文件")
	fs.StringVar(&p.Options.OutputFormat, "format", "text", "报告格式 (text, json)")
	fs.BoolVar(&p.Options.UDP, "udp", false, "同时进行UDP端口探测")
	fs.BoolVar(&p.Options.Verbose, "verbose", false, "显示详细信息")
	fs.BoolVar(&help, "help", false, "显示帮助")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ErrHelp
		}
		return fmt.Errorf("%w: %v", model.ErrUsage, err)
	}

	if help {
		p.printHelp()
		return ErrHelp
	}

	if fs.NArg() > 0 {
		return fmt.Errorf("%w: 无法识别的参数: %s", model.ErrUsage, strings.Join(fs.Args(), " "))
	}

	count := 0
	for _, v := range []string{p.Options.URL, p.Options.IP, p.Options.Repo} {
		if strings.TrimSpace(v) != "" {
			count++
		}
	}
	if count != 1 {
		return fmt.Errorf("%w: 必须且只能指定 --url、--ip、--repo 其中之一", model.ErrUsage)
	}

	switch strings.ToLower(p.Options.OutputFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: 不支持的报告格式: %s", model.ErrUsage, p.Options.OutputFormat)
	}

	return nil
}

func (p *Parser) printHelp() {
	fmt.Fprintln(p.out, "VeilStrike - 域名侦察与端口扫描工具")
	fmt.Fprintln(p.out, "")
	fmt.Fprintln(p.out, "使用方法: VeilStrike (--url <URL> | --ip <IP> | --repo <路径>) [选项]")
	fmt.Fprintln(p.out, "")
	fmt.Fprintln(p.out, "选项:")
	fmt.Fprintln(p.out, "  --url string      目标URL，先枚举子域名再扫描发现的主机")
	fmt.Fprintln(p.out, "  --ip string       目标IP地址，直接扫描端口")
	fmt.Fprintln(p.out, "  --repo string     本地仓库路径（暂不分析）")
	fmt.Fprintln(p.out, "  --config string   YAML配置文件")
	fmt.Fprintln(p.out, "  --udp             同时进行UDP端口探测")
	fmt.Fprintln(p.out, "  --output string   运行报告输出文件")
	fmt.Fprintln(p.out, "  --format string   报告格式 (text, json) (默认: text)")
	fmt.Fprintln(p.out, "  --verbose         显示详细信息")
	fmt.Fprintln(p.out, "  --help            显示帮助")
	fmt.Fprintln(p.out, "")
	fmt.Fprintln(p.out, "示例:")
	fmt.Fprintln(p.out, "  VeilStrike --url https://example.com")
	fmt.Fprintln(p.out, "  VeilStrike --ip 192.168.1.1 --udp --format json --output report.json")
}
