package container

import "errors"

// ErrNoFeedsEnabled 错误：没有启用任何 kline 源
var ErrNoFeedsEnabled = errors.New("no exchange feeds enabled")

// ErrUnknownExchange 错误：交易所没有注册 kline feed
var ErrUnknownExchange = errors.New("unknown exchange")

// ErrStorageInitFailed 错误：存储初始化失败
var ErrStorageInitFailed = errors.New("storage initialization failed")

// ErrEventsInitFailed 错误：事件发布初始化失败
var ErrEventsInitFailed = errors.New("events initialization failed")
