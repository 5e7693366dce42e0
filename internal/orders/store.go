package orders

import (
	"context"

	"github.com/omeyang/rxgate/pkg/web/xpage"
)

// SortFields 是订单列表允许的排序字段。
func SortFields() []string {
	return []string{"createdAt", "patientId", "status"}
}

// ListQuery 是订单列表查询条件。
type ListQuery struct {
	// PatientID 非空时只返回该患者的订单。
	PatientID string

	// Page 分页与排序参数。
	Page xpage.Page
}

// Store 定义订单的持久化端口。
type Store interface {
	// Insert 插入新订单。ID 冲突返回冲突类失败。
	Insert(ctx context.Context, order *Order) error

	// FindByID 按 ID 查询。不存在返回未找到类失败。
	FindByID(ctx context.Context, id string) (*Order, error)

	// Replace 全量替换订单。不存在返回未找到类失败。
	Replace(ctx context.Context, order *Order) error

	// Delete 按 ID 删除。不存在返回未找到类失败。
	Delete(ctx context.Context, id string) error

	// List 分页查询。HasMore 由 top+1 探测得出；
	// 仅在 Page.Count 为 true 时执行 COUNT。
	List(ctx context.Context, q ListQuery) (xpage.Result[Order], error)

	// Ping 检查存储连通性。
	Ping(ctx context.Context) error
}
