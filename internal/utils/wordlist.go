package utils

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadWordlist 读取字典文件，返回去除首尾空白后的非空行，保持原有顺序
func LoadWordlist(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开字典文件失败: %w", err)
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word == "" {
			continue
		}
		words = append(words, word)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取字典文件失败: %w", err)
	}

	return words, nil
}
