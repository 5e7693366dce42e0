package xctx

import "context"

// Identity 表示通过 X-API-Key 认证后的调用方身份。
// 核心只关心身份是否存在；密钥的散列与管理由外层适配器负责。
type Identity struct {
	// Subject 是调用方标识（API Key 对应的名称）。
	Subject string

	// Role 是调用方角色，用于外层授权判断。
	Role string
}

// KeyIdentity 是身份的日志属性 key。
const KeyIdentity = "identity"

// WithIdentity 将已认证身份注入 context。
func WithIdentity(ctx context.Context, id Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, keyIdentity, id)
}

// IdentityFrom 从 context 提取身份，第二个返回值表示是否存在。
func IdentityFrom(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	v, ok := ctx.Value(keyIdentity).(Identity)
	return v, ok
}

// RequireIdentity 从 context 提取身份，不存在时返回 ErrMissingIdentity。
func RequireIdentity(ctx context.Context) (Identity, error) {
	if ctx == nil {
		return Identity{}, ErrNilContext
	}
	v, ok := IdentityFrom(ctx)
	if !ok {
		return Identity{}, ErrMissingIdentity
	}
	return v, nil
}
