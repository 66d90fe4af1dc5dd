// Package query 解析房间列表接口的 fields / filters / sorts 查询语法。
//
//	fields:  name,max_member_num,startTime      (为空表示全部字段)
//	filters: tag=transport,maxMemberNum>=3      (多个条件之间为 AND)
//	sorts:   -created_at,+startTime
package query

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrSyntax 查询字符串不符合语法
var ErrSyntax = errors.New("query: syntax error")

const (
	// MaxLimit 单页最多返回的条数
	MaxLimit = 20
	// DefaultLimit limit 未指定 (0) 时使用
	DefaultLimit = 10
)

// Op 过滤条件的比较运算符
type Op string

const (
	OpEq  Op = "="
	OpNe  Op = "!="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpLt  Op = "<"
	OpLte Op = "<="
)

// Filter 一个 key<op>value 条件
type Filter struct {
	Key   string
	Op    Op
	Value string
}

// Sort 一个排序子句
type Sort struct {
	Key  string
	Desc bool
}

// Page 分页参数
type Page struct {
	Offset int
	Limit  int
}

// RoomQuery 是校验通过后的完整查询
type RoomQuery struct {
	Fields  []string
	Filters []Filter
	Sorts   []Sort
	Page    Page
}

const identPattern = `[a-zA-Z][a-zA-Z0-9]*(?:_[a-zA-Z0-9]+)*`

var (
	identRe  = regexp.MustCompile(`^` + identPattern + `$`)
	filterRe = regexp.MustCompile(`^(` + identPattern + `)(>=|<=|!=|=|>|<)(.+)$`)
	sortRe   = regexp.MustCompile(`^([+-])(` + identPattern + `)$`)
)

// Parse 一次性解析并校验全部查询参数。
func Parse(fields, filters, sorts string, offset, limit int) (RoomQuery, error) {
	var q RoomQuery
	var err error
	if q.Fields, err = ParseFields(fields); err != nil {
		return RoomQuery{}, err
	}
	if q.Filters, err = ParseFilters(filters); err != nil {
		return RoomQuery{}, err
	}
	if q.Sorts, err = ParseSorts(sorts); err != nil {
		return RoomQuery{}, err
	}
	if q.Page, err = NewPage(offset, limit); err != nil {
		return RoomQuery{}, err
	}
	return q, nil
}

// ParseFields 解析逗号分隔的字段列表，空字符串返回 nil (全部字段)。
func ParseFields(s string) ([]string, error) {
	parts := split(s)
	if len(parts) == 0 {
		return nil, nil
	}
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		if !identRe.MatchString(p) {
			return nil, fmt.Errorf("%w: invalid field %q", ErrSyntax, p)
		}
		fields = append(fields, p)
	}
	return fields, nil
}

// ParseFilters 解析 key<op>value 条件列表，不支持 OR / IN。
func ParseFilters(s string) ([]Filter, error) {
	parts := split(s)
	if len(parts) == 0 {
		return nil, nil
	}
	filters := make([]Filter, 0, len(parts))
	for _, p := range parts {
		m := filterRe.FindStringSubmatch(p)
		if m == nil {
			return nil, fmt.Errorf("%w: invalid filter %q", ErrSyntax, p)
		}
		filters = append(filters, Filter{Key: m[1], Op: Op(m[2]), Value: m[3]})
	}
	return filters, nil
}

// ParseSorts 解析 (+|-)key 排序列表。
func ParseSorts(s string) ([]Sort, error) {
	parts := split(s)
	if len(parts) == 0 {
		return nil, nil
	}
	sorts := make([]Sort, 0, len(parts))
	for _, p := range parts {
		m := sortRe.FindStringSubmatch(p)
		if m == nil {
			return nil, fmt.Errorf("%w: invalid sort %q", ErrSyntax, p)
		}
		sorts = append(sorts, Sort{Key: m[2], Desc: m[1] == "-"})
	}
	return sorts, nil
}

// NewPage 校验分页参数，limit 为 0 时取默认值。
func NewPage(offset, limit int) (Page, error) {
	if offset < 0 {
		return Page{}, fmt.Errorf("%w: offset must be >= 0", ErrSyntax)
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 0 || limit > MaxLimit {
		return Page{}, fmt.Errorf("%w: limit must be in (0, %d]", ErrSyntax, MaxLimit)
	}
	return Page{Offset: offset, Limit: limit}, nil
}

func split(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
