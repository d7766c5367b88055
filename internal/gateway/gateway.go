package gateway

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// 远端文档库的集合名
const (
	CollectionUsers        = "users"
	CollectionChatMessages = "chat_messages"
	CollectionAttempts     = "assignment_attempts"
	CollectionQuizAttempts = "quiz_attempts"
)

var ErrNotFound = errors.New("document not found")

// Filter 按字段等值过滤
type Filter map[string]interface{}

// Snapshot 订阅推送的全量查询结果。订阅失败时 Err 非空且 Docs 为空，
// 调用方应保留上一次的结果而不是清空状态
type Snapshot struct {
	Docs []bson.Raw
	Err  error
}

// Gateway 远端文档库的抽象。
// 所有实现必须把"键不存在"统一映射为 ErrNotFound，其余失败包装为 *Error
type Gateway interface {
	Get(ctx context.Context, collection, key string) (bson.Raw, error)
	Set(ctx context.Context, collection, key string, doc interface{}) error
	Update(ctx context.Context, collection, key string, fields map[string]interface{}) error
	// Append 向文档的数组字段追加元素，幂等（已存在时不重复追加）
	Append(ctx context.Context, collection, key, field string, value interface{}) error
	Delete(ctx context.Context, collection, key string) error
	Query(ctx context.Context, collection string, filter Filter, orderBy string) ([]bson.Raw, error)
	// Subscribe 返回全量结果快照流；首个快照为当前查询结果，
	// 之后每次集合变更重新执行查询并推送。ctx 取消后通道关闭
	Subscribe(ctx context.Context, collection string, filter Filter, orderBy string) (<-chan Snapshot, error)
}

// Error 网关调用失败（网络、权限、配额），携带底层错误信息
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// Decode 把单个文档解码到目标结构
func Decode(raw bson.Raw, out interface{}) error {
	return bson.Unmarshal(raw, out)
}

// DecodeAll 批量解码快照文档
func DecodeAll[T any](raws []bson.Raw) ([]T, error) {
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := bson.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
