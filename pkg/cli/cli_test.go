package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VeilStrike/internal/model"
)

func TestParser_Parse(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{name: "url", args: []string{"--url", "https://example.com"}},
		{name: "ip with udp", args: []string{"--ip", "10.0.0.1", "--udp"}},
		{name: "repo json", args: []string{"--repo", ".", "--format", "json"}},
		{name: "no target", args: nil, wantErr: model.ErrUsage},
		{name: "url and ip", args: []string{"--url", "https://example.com", "--ip", "10.0.0.1"}, wantErr: model.ErrUsage},
		{name: "all three", args: []string{"--url", "https://a.com", "--ip", "10.0.0.1", "--repo", "."}, wantErr: model.ErrUsage},
		{name: "bad format", args: []string{"--ip", "10.0.0.1", "--format", "xml"}, wantErr: model.ErrUsage},
		{name: "unknown flag", args: []string{"--target", "x"}, wantErr: model.ErrUsage},
		{name: "stray args", args: []string{"--ip", "10.0.0.1", "extra"}, wantErr: model.ErrUsage},
		{name: "help", args: []string{"--help"}, wantErr: ErrHelp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewParser(&out)
			err := p.Parse(tt.args)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParser_Options(t *testing.T) {
	p := NewParser(&bytes.Buffer{})
	require.NoError(t, p.Parse([]string{"--ip", "10.0.0.1", "--udp", "--verbose", "--config", "c.yaml", "--output", "r.json"}))

	assert.Equal(t, "10.0.0.1", p.Options.IP)
	assert.True(t, p.Options.UDP)
	assert.True(t, p.Options.Verbose)
	assert.Equal(t, "c.yaml", p.Options.ConfigFile)
	assert.Equal(t, "r.json", p.Options.OutputFile)
	assert.Equal(t, "text", p.Options.OutputFormat)
}

func sampleReport() *model.RunReport {
	return &model.RunReport{
		RunID:      "run-1",
		Target:     "url(https://example.com)",
		TargetKind: "url",
		Domain:     "example.com",
		DomainIPs:  []string{"198.51.100.10"},
		Subdomains: 1,
		TableRows:  1,
		Hosts:      []string{"198.51.100.1", "198.51.100.2"},
		Outcomes: []model.HostOutcome{
			{PortSet: model.PortSet{Host: "198.51.100.1", Protocol: model.ProbeTCP, Ports: []int{22, 8081}}, Elapsed: "1s"},
			{PortSet: model.PortSet{Host: "198.51.100.2", Protocol: model.ProbeTCP}, Skipped: true},
		},
		States:     []string{"Idle", "ResolvingTarget", "Done"},
		FinalState: "Done",
		ScanTime:   "1s",
	}
}

func TestOutputFormatter_Text(t *testing.T) {
	color.NoColor = true

	var out bytes.Buffer
	require.NoError(t, NewOutputFormatter("text", &out).PrintReport(sampleReport(), ""))

	s := out.String()
	assert.Contains(t, s, "example.com")
	assert.Contains(t, s, "22(SSH), 8081")
	assert.Contains(t, s, "已扫描，跳过")
	assert.Contains(t, s, "Idle → ResolvingTarget → Done")
	assert.Contains(t, s, "扫描完成")
}

func TestOutputFormatter_TextFailure(t *testing.T) {
	color.NoColor = true

	report := sampleReport()
	report.Error = "I/O错误: boom"
	report.FinalState = "Failed"

	var out bytes.Buffer
	require.NoError(t, NewOutputFormatter("text", &out).PrintReport(report, ""))
	assert.Contains(t, out.String(), "扫描失败: I/O错误: boom")
}

func TestOutputFormatter_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	var out bytes.Buffer
	require.NoError(t, NewOutputFormatter("json", &out).PrintReport(sampleReport(), path))
	assert.Empty(t, out.String())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got model.RunReport
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "run-1", got.RunID)
	require.Len(t, got.Outcomes, 2)
	assert.Equal(t, []int{22, 8081}, got.Outcomes[0].Ports)
	assert.True(t, got.Outcomes[1].Skipped)
}

func TestOutputFormatter_UnwritableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "report.json")
	err := NewOutputFormatter("json", &bytes.Buffer{}).PrintReport(sampleReport(), path)
	assert.ErrorIs(t, err, model.ErrIO)
}
