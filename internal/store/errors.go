package store

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// 错误分类：调用方通过 errors.Is 判断类别，内部细节不对外暴露
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnknownLayer = errors.New("unknown layer")
	ErrStorageFetch = errors.New("storage fetch failed")
	ErrQuery        = errors.New("query failed")
	ErrInsert       = errors.New("insert failed")
	ErrLocalPersist = errors.New("local persist failed")
)

// Error：存储层失败，同时携带类别与底层原因
// Op 为操作名（resolve_layer/list_points/create_point），Target 为图层或文件名
type Error struct {
	Kind   error
	Op     string
	Target string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s %s: %v", e.Kind, e.Op, e.Target, e.Err)
}

// Unwrap 同时暴露类别与原因，errors.Is 对二者均可命中
func (e *Error) Unwrap() []error { return []error{e.Kind, e.Err} }

// ValidationError：缺少必填输入；字段名可直接返回给调用方
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return e.Fields[0] + " is required"
	}
	return strings.Join(e.Fields, " and ") + " are required"
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
