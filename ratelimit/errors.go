package ratelimit

import "github.com/ceyewan/aegis/xerrors"

// 错误定义
var (
	// ErrConnectorNil Redis 连接器为空
	ErrConnectorNil = xerrors.New("ratelimit: redis connector is nil")

	// ErrKeyEmpty 限流键为空
	ErrKeyEmpty = xerrors.New("ratelimit: key is empty")

	// ErrInvalidLimit 限流规则非法
	ErrInvalidLimit = xerrors.New("ratelimit: invalid limit")
)

// errScriptResult Lua 脚本返回值格式异常（按存储故障处理）
var errScriptResult = xerrors.New("ratelimit: unexpected lua script result")
