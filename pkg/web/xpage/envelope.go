package xpage

import (
	"net/url"
	"strconv"
	"strings"
)

// Result 是数据层返回的一页结果。
// Items 最多 Top 条；HasMore 由 top+1 探测得出。
type Result[T any] struct {
	Items   []T
	Total   int64
	HasMore bool
}

// Envelope 是 OData 风格的响应信封。
type Envelope[T any] struct {
	Context  string `json:"@odata.context,omitempty"`
	Count    *int64 `json:"@odata.count,omitempty"`
	NextLink string `json:"@odata.nextLink,omitempty"`
	Value    []T    `json:"value"`
}

// NewEnvelope 构造响应信封。
// $count=true 时带总数；还有下一页时带 nextLink。
// query 是当前请求的完整查询参数，过滤类参数（如 patientId）原样
// 保留进 nextLink，沿链接翻页不改变过滤范围。
func NewEnvelope[T any](contextURL, basePath string, p Page, query url.Values, r Result[T]) Envelope[T] {
	env := Envelope[T]{
		Context: contextURL,
		Value:   r.Items,
	}
	if env.Value == nil {
		env.Value = []T{}
	}
	if p.Count {
		total := r.Total
		env.Count = &total
	}
	if r.HasMore {
		env.NextLink = NextLink(basePath, p, query)
	}
	return env
}

// NextLink 生成下一页链接：当前 URL 的 $skip 前移一页。
// 分页参数顺序固定为 $skip,$top,$count,$orderby，保证链接字节级
// 可复现；query 中的分页参数以 Page 为准，其余参数按键名排序追加。
func NextLink(basePath string, p Page, query url.Values) string {
	var b strings.Builder
	b.WriteString(basePath)
	b.WriteString("?$skip=")
	b.WriteString(strconv.Itoa(p.Skip + p.Top))
	b.WriteString("&$top=")
	b.WriteString(strconv.Itoa(p.Top))
	if p.Count {
		b.WriteString("&$count=true")
	}
	if expr := p.orderByExpr(); expr != "" {
		b.WriteString("&$orderby=")
		b.WriteString(url.QueryEscape(expr))
	}
	if enc := nonPagingParams(query).Encode(); enc != "" {
		b.WriteString("&")
		b.WriteString(enc)
	}
	return b.String()
}

// nonPagingParams 剔除分页参数，保留过滤类参数。
func nonPagingParams(query url.Values) url.Values {
	rest := url.Values{}
	for k, vs := range query {
		switch k {
		case "$top", "$skip", "$count", "$orderby":
			continue
		}
		rest[k] = vs
	}
	return rest
}
