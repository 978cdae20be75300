package models

// 响应码定义
const (
	// 成功
	CodeSuccess = 0

	// 客户端错误 (1000-1999)
	CodeInvalidParams = 1000 // 无效的参数
	CodeMissingParams = 1001 // 缺少必要参数
	CodeTokenNotFound = 1002 // 币种不存在或时间窗口内没有提及
	CodeNoData        = 1003 // 没有数据

	// 服务端错误 (2000-2999)
	CodeServerError   = 2000 // 服务器内部错误
	CodeDatabaseError = 2001 // 数据库错误
	CodeIngestError   = 2002 // 采集分析错误
)

// 错误码对应的消息
var CodeMessages = map[int]string{
	CodeSuccess:       "success",
	CodeInvalidParams: "无效的参数",
	CodeMissingParams: "缺少必要参数",
	CodeTokenNotFound: "币种不存在或时间窗口内没有提及",
	CodeNoData:        "没有数据",
	CodeServerError:   "服务器内部错误",
	CodeDatabaseError: "数据库错误",
	CodeIngestError:   "采集分析错误",
}

// APIResponse 统一的API响应结构
type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) APIResponse {
	return APIResponse{
		Code:    CodeSuccess,
		Message: CodeMessages[CodeSuccess],
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, data interface{}) APIResponse {
	message, exists := CodeMessages[code]
	if !exists {
		message = "未知错误"
	}
	return APIResponse{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// NewCustomErrorResponse 创建自定义错误消息的响应
func NewCustomErrorResponse(code int, message string, data interface{}) APIResponse {
	return APIResponse{
		Code:    code,
		Message: message,
		Data:    data,
	}
}
