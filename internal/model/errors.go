package model

import "errors"

// 错误分类：探测层面的失败（解析失败、连接超时）不会出现在这里，
// 它们在 probe 包内就被降级为“无结果”。
var (
	// ErrUsage 命令行参数错误或目标不合法，在任何网络活动之前终止
	ErrUsage = errors.New("参数错误")
	// ErrIO 字典不可读、输出目录无法创建、写入失败等，终止当前阶段
	ErrIO = errors.New("I/O错误")
	// ErrValidation 扫描后结果表校验失败，已写入的行保留
	ErrValidation = errors.New("结果校验失败")
)
