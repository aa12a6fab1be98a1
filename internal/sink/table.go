package sink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"VeilStrike/internal/model"
)

// Table 追加写入的结果表，所有并发生产者共享同一个实例。
// 文件句柄只由 Table 持有，每次写入都在锁内完成并立即刷盘。
type Table struct {
	mu     sync.Mutex
	path   string
	header []string
	file   *os.File
	writer *csv.Writer
	rows   int
	closed bool
}

// OpenTable 以追加方式打开结果表；文件为空时写入表头（每个文件只写一次）
func OpenTable(path string, header []string) (*Table, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("%w: 创建输出目录失败: %v", model.ErrIO, err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: 打开结果文件失败: %v", model.ErrIO, err)
	}

	t := &Table{
		path:   path,
		header: append([]string(nil), header...),
		file:   file,
		writer: csv.NewWriter(file),
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: 读取结果文件信息失败: %v", model.ErrIO, err)
	}
	if info.Size() == 0 {
		if err := t.writeLocked(t.header); err != nil {
			file.Close()
			return nil, err
		}
	}

	return t, nil
}

// WriteRow 加锁写入一行并刷盘
func (t *Table) WriteRow(fields ...string) error {
	if len(fields) != len(t.header) {
		return fmt.Errorf("%w: 字段数 %d 与表头字段数 %d 不一致", model.ErrValidation, len(fields), len(t.header))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return fmt.Errorf("%w: 结果表已关闭", model.ErrIO)
	}
	if err := t.writeLocked(fields); err != nil {
		return err
	}
	t.rows++
	return nil
}

func (t *Table) writeLocked(fields []string) error {
	if err := t.writer.Write(fields); err != nil {
		return fmt.Errorf("%w: 写入结果失败: %v", model.ErrIO, err)
	}
	t.writer.Flush()
	if err := t.writer.Error(); err != nil {
		return fmt.Errorf("%w: 写入结果失败: %v", model.ErrIO, err)
	}
	return nil
}

// Rows 本次打开后写入的数据行数
func (t *Table) Rows() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rows
}

func (t *Table) Path() string { return t.path }

func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	t.writer.Flush()
	werr := t.writer.Error()
	if err := t.file.Close(); err != nil {
		return fmt.Errorf("%w: 关闭结果文件失败: %v", model.ErrIO, err)
	}
	if werr != nil {
		return fmt.Errorf("%w: 写入结果失败: %v", model.ErrIO, werr)
	}
	return nil
}

// ValidateTable 重新读取结果表，确认表头一致并且每一行的字段数与表头相同。
// 返回数据行数。
func ValidateTable(path string, header []string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: 打开结果文件失败: %v", model.ErrIO, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	got, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("%w: %s 缺少表头", model.ErrValidation, path)
		}
		return 0, fmt.Errorf("%w: 解析表头失败: %v", model.ErrValidation, err)
	}
	if !slices.Equal(got, header) {
		return 0, fmt.Errorf("%w: 表头 %q 与预期 %q 不一致", model.ErrValidation, got, header)
	}

	rows := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("%w: 解析第 %d 行失败: %v", model.ErrValidation, rows+2, err)
		}
		if len(record) != len(header) {
			return rows, fmt.Errorf("%w: 第 %d 行字段数 %d 与表头字段数 %d 不一致",
				model.ErrValidation, rows+2, len(record), len(header))
		}
		rows++
	}

	return rows, nil
}

// ReadHosts 从结果表第二列提取去重后的IP地址，按字符串排序。
// 只保留子域名属于 domain 的行，表中其他目标的历史记录会被忽略。
func ReadHosts(path, domain string) ([]string, error) {
	domain = normalizeName(domain)
	if domain == "" {
		return nil, fmt.Errorf("%w: 域名不能为空", model.ErrUsage)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: 打开结果文件失败: %v", model.ErrIO, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: 解析表头失败: %v", model.ErrValidation, err)
	}

	seen := make(map[string]struct{})
	var hosts []string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: 解析结果文件失败: %v", model.ErrValidation, err)
		}
		if len(record) < 2 || !inDomain(record[0], domain) {
			continue
		}
		for _, raw := range strings.Split(record[1], ",") {
			ip := net.ParseIP(strings.TrimSpace(raw))
			if ip == nil {
				continue
			}
			s := ip.String()
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			hosts = append(hosts, s)
		}
	}

	sort.Strings(hosts)
	return hosts, nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(name), "."))
}

func inDomain(subdomain, domain string) bool {
	name := normalizeName(subdomain)
	return name == domain || strings.HasSuffix(name, "."+domain)
}
