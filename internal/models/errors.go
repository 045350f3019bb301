package models

import "errors"

var (
	// ErrMalformedMessage 主题段数不足等无法解析的消息，直接丢弃
	ErrMalformedMessage = errors.New("malformed message")
	// ErrUnknownDevice 查询的设备不存在
	ErrUnknownDevice = errors.New("unknown device")
	// ErrPersistence 持久化失败，必须向调用方返回
	ErrPersistence = errors.New("persistence failure")
)
