package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"VeilStrike/internal/model"
)

type OutputFormatter struct {
	format string
	out    io.Writer
}

func NewOutputFormatter(format string, out io.Writer) *OutputFormatter {
	return &OutputFormatter{format: format, out: out}
}

// PrintReport 输出运行报告，outputFile 非空时写入文件
func (of *OutputFormatter) PrintReport(report *model.RunReport, outputFile string) error {
	var output string

	switch strings.ToLower(of.format) {
	case "json":
		s, err := of.formatJSON(report)
		if err != nil {
			return err
		}
		output = s
	default:
		output = of.formatText(report)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0644); err != nil {
			return fmt.Errorf("%w: 写入报告失败: %v", model.ErrIO, err)
		}
		return nil
	}

	_, err := io.WriteString(of.out, output)
	return err
}

func (of *OutputFormatter) formatJSON(report *model.RunReport) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化报告失败: %w", err)
	}
	return string(data) + "\n", nil
}

func (of *OutputFormatter) formatText(report *model.RunReport) string {
	var builder strings.Builder

	title := color.New(color.Bold).SprintFunc()
	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()
	warn := color.New(color.FgYellow).SprintFunc()

	builder.WriteString("\n" + title("📡 VeilStrike 侦察报告") + "\n")
	builder.WriteString(strings.Repeat("═", 60) + "\n")

	builder.WriteString(fmt.Sprintf("运行ID: %s\n", report.RunID))
	builder.WriteString(fmt.Sprintf("目标: %s\n", report.Target))
	if report.Domain != "" {
		builder.WriteString(fmt.Sprintf("域名: %s\n", report.Domain))
		if len(report.DomainIPs) > 0 {
			builder.WriteString(fmt.Sprintf("解析IP: %s\n", strings.Join(report.DomainIPs, ", ")))
		}
		builder.WriteString(fmt.Sprintf("发现子域名: %d (结果表 %s, %d 行)\n", report.Subdomains, report.ReconTable, report.TableRows))
	}
	builder.WriteString(fmt.Sprintf("时间: %s\n", report.ScanTime))
	builder.WriteString(fmt.Sprintf("阶段: %s\n\n", strings.Join(report.States, " → ")))

	if len(report.Outcomes) > 0 {
		builder.WriteString("🔍 端口扫描结果:\n")
		builder.WriteString(strings.Repeat("─", 80) + "\n")

		w := tabwriter.NewWriter(&builder, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "主机\t协议\t开放端口\t说明")
		for _, o := range report.Outcomes {
			var note, ports string
			switch {
			case o.Skipped:
				note = warn("已扫描，跳过")
				ports = "-"
			case len(o.Ports) == 0:
				note = "无开放端口"
				ports = "-"
			default:
				note = ok(fmt.Sprintf("%d 个开放端口 (%s)", len(o.Ports), o.Elapsed))
				ports = formatPorts(o.Ports)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.Host, o.Protocol, ports, note)
		}
		w.Flush()
		builder.WriteString("\n")
	} else if len(report.Hosts) == 0 && report.TargetKind != "repo" {
		builder.WriteString("❌ 未发现可扫描的主机\n\n")
	}

	builder.WriteString(strings.Repeat("═", 60) + "\n")
	if report.Error != "" {
		builder.WriteString(bad("❌ 扫描失败: "+report.Error) + "\n")
	} else {
		builder.WriteString(ok("✨ 扫描完成！") + "\n")
	}

	return builder.String()
}

// formatPorts 端口列表，常见端口附带习惯名称
func formatPorts(ports []int) string {
	parts := make([]string, 0, len(ports))
	for _, p := range ports {
		s := strconv.Itoa(p)
		if label := model.PortLabel(p); label != "-" {
			s += "(" + label + ")"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}
