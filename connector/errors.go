package connector

import "github.com/ceyewan/aegis/xerrors"

// 错误定义
var (
	// ErrConfigNil 配置为空
	ErrConfigNil = xerrors.New("connector: config is nil")

	// ErrConfigInvalid 配置无效
	ErrConfigInvalid = xerrors.New("connector: config is invalid")

	// ErrConnection 连接建立失败
	ErrConnection = xerrors.New("connector: connection failed")
)
