package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDomain(t *testing.T) {
	testCases := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "https://www.google.com", want: "google.com"},
		{input: "http://sub.example.co.uk", want: "example.co.uk"},
		{input: "https://ftp.api.bbc.co.uk", want: "bbc.co.uk"},
		{input: "https://myapp.local", want: "myapp.local"},
		{input: "https://WWW.Example.COM:8443/path?q=1", want: "example.com"},
		{input: "https://食狮.中国", want: "xn--85x722f.xn--fiqs8s"},
		{input: "https://www.xn--85x722f.xn--55qx5d.cn", want: "xn--85x722f.xn--55qx5d.cn"},
		{input: "http://localhost", wantErr: true},
		{input: "invalid-url", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ExtractDomain(tc.input)
			if tc.wantErr {
				assert.Error(t, err, "输入 %s 应当返回错误", tc.input)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLoadWordlist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdomains.txt")
	content := "www\n\n  mail  \n\t\napi\r\nwww\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	words, err := LoadWordlist(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"www", "mail", "api", "www"}, words)
}

func TestLoadWordlist_Missing(t *testing.T) {
	_, err := LoadWordlist(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestLoggerDebugToggle(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		SetDebug(false)
	})

	logger := NewLogger("test").WithField("run", "abc")

	SetDebug(false)
	logger.Debug("hidden %d", 1)
	assert.Empty(t, buf.String())

	SetDebug(true)
	logger.Debug("visible %d", 2)
	logger.Info("hello %s", "world")

	out := buf.String()
	assert.True(t, strings.Contains(out, "visible 2"))
	assert.True(t, strings.Contains(out, "hello world"))
	assert.True(t, strings.Contains(out, "module=test"))
	assert.True(t, strings.Contains(out, "run=abc"))
}
