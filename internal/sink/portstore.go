package sink

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"VeilStrike/internal/model"
)

// PortStore 每个主机一个开放端口文件，每行一个端口号。
// 文件存在即表示该主机已扫描过，不做过期判断。
type PortStore struct {
	dir string
}

func NewPortStore(dir string) *PortStore {
	return &PortStore{dir: dir}
}

func (s *PortStore) Dir() string { return s.dir }

// Path TCP结果为 <dir>/<ip>.txt，UDP结果为 <dir>/<ip>.udp.txt
func (s *PortStore) Path(host string, proto model.ProbeKind) string {
	name := host
	if proto == model.ProbeUDP {
		name += ".udp"
	}
	// IPv6地址中的冒号在部分文件系统上不合法
	name = strings.ReplaceAll(name, ":", "_")
	return filepath.Join(s.dir, name+".txt")
}

func (s *PortStore) Exists(host string, proto model.ProbeKind) bool {
	_, err := os.Stat(s.Path(host, proto))
	return err == nil
}

// Save 先写临时文件再重命名，避免中断时留下不完整的结果被当作“已扫描”
func (s *PortStore) Save(set model.PortSet) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("%w: 创建端口结果目录失败: %v", model.ErrIO, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".ports-*")
	if err != nil {
		return fmt.Errorf("%w: 创建临时文件失败: %v", model.ErrIO, err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: 设置端口结果权限失败: %v", model.ErrIO, err)
	}

	w := bufio.NewWriter(tmp)
	for _, port := range set.Ports {
		fmt.Fprintln(w, port)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: 写入端口结果失败: %v", model.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: 写入端口结果失败: %v", model.ErrIO, err)
	}

	if err := os.Rename(tmp.Name(), s.Path(set.Host, set.Protocol)); err != nil {
		return fmt.Errorf("%w: 保存端口结果失败: %v", model.ErrIO, err)
	}
	return nil
}

// Load 读取已保存的端口文件，端口升序返回
func (s *PortStore) Load(host string, proto model.ProbeKind) (model.PortSet, error) {
	set := model.PortSet{Host: host, Protocol: proto}

	f, err := os.Open(s.Path(host, proto))
	if err != nil {
		return set, fmt.Errorf("%w: 打开端口结果失败: %v", model.ErrIO, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		port, err := strconv.Atoi(text)
		if err != nil || port < 1 || port > 65535 {
			return set, fmt.Errorf("%w: %s 第 %d 行不是合法端口: %q", model.ErrValidation, f.Name(), line, text)
		}
		set.Ports = append(set.Ports, port)
	}
	if err := scanner.Err(); err != nil {
		return set, fmt.Errorf("%w: 读取端口结果失败: %v", model.ErrIO, err)
	}

	sort.Ints(set.Ports)
	return set, nil
}
