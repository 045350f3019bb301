package httpapi

// Result 统一响应结构
// - code: 2000 成功，其余为错误
// - type: 'success' | 'error'
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1
	// ResultNotFound 设备序号/标识无法解析
	ResultNotFound = 4040
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

func Fail(message string) Result[any] {
	return Result[any]{Code: ResultError, Type: "error", Message: message, Result: nil}
}

func NotFound(message string) Result[any] {
	return Result[any]{Code: ResultNotFound, Type: "error", Message: message, Result: nil}
}
