package model

import "errors"

// ErrInvalidSymbolFormat 交易对格式错误，期望 BASE/QUOTE
var ErrInvalidSymbolFormat = errors.New("invalid symbol format")

// ErrInvalidCurrency 币种代码为空、含非法字符或与保留字段冲突
var ErrInvalidCurrency = errors.New("invalid currency code")

// ErrInvalidPlatform 平台名为空或含非法字符
var ErrInvalidPlatform = errors.New("invalid platform")
