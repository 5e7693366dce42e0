package xpage

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/omeyang/rxgate/pkg/fault/xfault"
)

const (
	// DefaultTop 未指定 $top 时的页大小。
	DefaultTop = 10
	// MaxTop 页大小上限，超出的 $top 被钳制到此值。
	MaxTop = 100
)

// Order 是单个排序项。
type Order struct {
	Field string
	Desc  bool
}

// Page 是解析并钳制后的分页参数。
type Page struct {
	// Top 页大小，∈ [1, MaxTop]。
	Top int

	// Skip 偏移量，≥ 0。
	Skip int

	// Count 是否返回总数（$count=true）。
	Count bool

	// OrderBy 解析后的排序项。协议接受多字段，数据层只应用第一项。
	OrderBy []Order
}

// Options 定义解析约束。
type Options struct {
	// DefaultTop 未指定 $top 时的页大小。≤ 0 回落到包默认值。
	DefaultTop int

	// MaxTop 页大小上限。≤ 0 回落到包默认值。
	MaxTop int

	// SortFields 允许的排序字段白名单。空表示拒绝一切 $orderby。
	SortFields []string

	// DefaultCount 未指定 $count 时是否返回总数。
	DefaultCount bool
}

func (o Options) sanitize() Options {
	if o.DefaultTop <= 0 {
		o.DefaultTop = DefaultTop
	}
	if o.MaxTop <= 0 {
		o.MaxTop = MaxTop
	}
	return o
}

// Parse 解析查询参数并钳制越界值。
//
// 钳制规则：
//   - $top 缺省 → DefaultTop；显式值钳制到 [1, MaxTop]
//   - $skip 缺省或 < 0 → 0
//
// 非数字的 $top/$skip、白名单外的排序字段、非法排序方向返回校验错误。
func Parse(q url.Values, opts Options) (Page, error) {
	opts = opts.sanitize()
	p := Page{Top: opts.DefaultTop, Count: opts.DefaultCount}

	if raw := q.Get("$top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Page{}, xfault.Validation("invalid pagination parameters",
				map[string][]string{"$top": {"must be an integer"}})
		}
		switch {
		case n <= 0:
			p.Top = 1
		case n > opts.MaxTop:
			p.Top = opts.MaxTop
		default:
			p.Top = n
		}
	}

	if raw := q.Get("$skip"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Page{}, xfault.Validation("invalid pagination parameters",
				map[string][]string{"$skip": {"must be an integer"}})
		}
		if n > 0 {
			p.Skip = n
		}
	}

	if raw := q.Get("$count"); raw != "" {
		p.Count = strings.EqualFold(raw, "true")
	}

	if raw := q.Get("$orderby"); raw != "" {
		orders, err := parseOrderBy(raw, opts.SortFields)
		if err != nil {
			return Page{}, err
		}
		p.OrderBy = orders
	}

	return p, nil
}

// parseOrderBy 解析 "$orderby=field [asc|desc],field2 ..." 形式。
func parseOrderBy(raw string, allowed []string) ([]Order, error) {
	var orders []Order
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Fields(item)
		if len(parts) > 2 {
			return nil, xfault.Validation("invalid pagination parameters",
				map[string][]string{"$orderby": {"malformed sort expression: " + item}})
		}

		field := parts[0]
		if !contains(allowed, field) {
			return nil, xfault.Validation("invalid pagination parameters",
				map[string][]string{"$orderby": {"unsupported sort field: " + field}})
		}

		order := Order{Field: field}
		if len(parts) == 2 {
			switch strings.ToLower(parts[1]) {
			case "asc":
			case "desc":
				order.Desc = true
			default:
				return nil, xfault.Validation("invalid pagination parameters",
					map[string][]string{"$orderby": {"sort direction must be asc or desc"}})
			}
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Canonical 返回分页参数的规范化字符串，用于缓存 key 摘要。
// 字段顺序与 nextLink 一致：$skip,$top,$count,$orderby。
func (p Page) Canonical() string {
	var b strings.Builder
	b.WriteString("$skip=")
	b.WriteString(strconv.Itoa(p.Skip))
	b.WriteString("&$top=")
	b.WriteString(strconv.Itoa(p.Top))
	if p.Count {
		b.WriteString("&$count=true")
	}
	if expr := p.orderByExpr(); expr != "" {
		b.WriteString("&$orderby=")
		b.WriteString(expr)
	}
	return b.String()
}

// orderByExpr 还原 $orderby 表达式。
func (p Page) orderByExpr() string {
	if len(p.OrderBy) == 0 {
		return ""
	}
	items := make([]string, 0, len(p.OrderBy))
	for _, o := range p.OrderBy {
		if o.Desc {
			items = append(items, o.Field+" desc")
		} else {
			items = append(items, o.Field)
		}
	}
	return strings.Join(items, ",")
}
