// Package xpage 提供 OData 风格的分页协议：$top/$skip/$count/$orderby
// 查询参数解析、越界钳制、排序字段白名单，以及带 @odata.nextLink 的
// 响应信封。
//
// 分页探测采用 top+1 约定：数据层多取一条判断是否还有下一页，
// 信封只回传 top 条并在有下一页时生成 nextLink。
package xpage
