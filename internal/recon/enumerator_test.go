package recon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VeilStrike/internal/limiter"
	"VeilStrike/internal/model"
	"VeilStrike/internal/sink"
	"VeilStrike/internal/utils"
)

func TestMain(m *testing.M) {
	utils.SetOutput(io.Discard)
	os.Exit(m.Run())
}

var errNXDomain = errors.New("NXDOMAIN")

type stubResolver struct {
	answers map[string][]net.IP
	delay   time.Duration
	calls   atomic.Int64
}

func (r *stubResolver) LookupIP(ctx context.Context, host string) ([]net.IP, error) {
	r.calls.Add(1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	ips, ok := r.answers[host]
	if !ok {
		return nil, errNXDomain
	}
	return ips, nil
}

type memWriter struct {
	mu   sync.Mutex
	rows [][]string
	err  error
}

func (w *memWriter) WriteRow(fields ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.rows = append(w.rows, fields)
	return nil
}

func ips(s ...string) []net.IP {
	out := make([]net.IP, 0, len(s))
	for _, v := range s {
		out = append(out, net.ParseIP(v))
	}
	return out
}

func TestEnumerate_AllFailingResolver(t *testing.T) {
	resolver := &stubResolver{answers: map[string][]net.IP{}}
	w := &memWriter{}
	e := NewEnumerator(resolver, limiter.New(600), nil)

	labels := []string{"www", "mail", "api", "dev", "staging"}
	count, err := e.Enumerate(context.Background(), "example.com", labels, w)
	require.NoError(t, err)

	assert.Equal(t, 0, count)
	assert.Empty(t, w.rows)
	assert.Equal(t, int64(len(labels)), resolver.calls.Load())
}

func TestEnumerate_AddressOrderPreserved(t *testing.T) {
	resolver := &stubResolver{answers: map[string][]net.IP{
		"www.example.com": ips("198.51.100.3", "198.51.100.1", "2001:db8::2"),
	}}
	w := &memWriter{}
	e := NewEnumerator(resolver, limiter.New(10), nil)

	count, err := e.Enumerate(context.Background(), "example.com", []string{"www"}, w)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, w.rows, 1)
	assert.Equal(t, []string{"www.example.com", "198.51.100.3, 198.51.100.1, 2001:db8::2"}, w.rows[0])
}

func TestEnumerate_EndToEndTable(t *testing.T) {
	resolver := &stubResolver{answers: map[string][]net.IP{
		"www.example.com":  ips("198.51.100.1"),
		"mail.example.com": {},
	}}

	path := filepath.Join(t.TempDir(), "output", "recon_output.csv")
	table, err := sink.OpenTable(path, model.ReconHeader)
	require.NoError(t, err)

	e := NewEnumerator(resolver, limiter.New(600), nil)
	count, err := e.Enumerate(context.Background(), "example.com", []string{"www", "mail", "doesnotexist123"}, table)
	require.NoError(t, err)
	require.NoError(t, table.Close())
	assert.Equal(t, 1, count)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Subdomain,IP Addresses\nwww.example.com,198.51.100.1\n", string(data))

	rows, err := sink.ValidateTable(path, model.ReconHeader)
	require.NoError(t, err)
	assert.Equal(t, 1, rows)
}

func TestEnumerate_LimiterCapacityRespected(t *testing.T) {
	answers := make(map[string][]net.IP)
	labels := make([]string, 0, 300)
	for i := 0; i < 300; i++ {
		label := fmt.Sprintf("h%d", i)
		labels = append(labels, label)
		if i%3 == 0 {
			answers[label+".example.com"] = ips("198.51.100.1")
		}
	}

	resolver := &stubResolver{answers: answers, delay: 2 * time.Millisecond}
	lim := limiter.New(8)
	w := &memWriter{}

	count, err := NewEnumerator(resolver, lim, nil).Enumerate(context.Background(), "example.com", labels, w)
	require.NoError(t, err)

	assert.Equal(t, 100, count)
	assert.Len(t, w.rows, 100)
	assert.LessOrEqual(t, lim.Peak(), 8)
	assert.Equal(t, 0, lim.InFlight())
}

func TestEnumerate_WriteFailureAbortsPhase(t *testing.T) {
	answers := make(map[string][]net.IP)
	labels := make([]string, 0, 1000)
	for i := 0; i < 1000; i++ {
		label := fmt.Sprintf("h%d", i)
		labels = append(labels, label)
		answers[label+".example.com"] = ips("198.51.100.1")
	}

	resolver := &stubResolver{answers: answers}
	w := &memWriter{err: fmt.Errorf("%w: disk full", model.ErrIO)}

	count, err := NewEnumerator(resolver, limiter.New(4), nil).Enumerate(context.Background(), "example.com", labels, w)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrIO)
	assert.Equal(t, 0, count)
	assert.Less(t, resolver.calls.Load(), int64(len(labels)), "写入失败后不应继续分发所有任务")
}

func TestEnumerate_EmptyDomain(t *testing.T) {
	_, err := NewEnumerator(&stubResolver{}, limiter.New(1), nil).Enumerate(context.Background(), " ", []string{"www"}, &memWriter{})
	assert.ErrorIs(t, err, model.ErrUsage)
}

func TestResolveBase(t *testing.T) {
	resolver := &stubResolver{answers: map[string][]net.IP{"example.com": ips("198.51.100.10")}}
	e := NewEnumerator(resolver, limiter.New(1), nil)

	got, err := e.ResolveBase(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, ips("198.51.100.10"), got)

	_, err = e.ResolveBase(context.Background(), "missing.example.com")
	assert.Error(t, err)
}
