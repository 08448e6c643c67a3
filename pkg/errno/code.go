package errno

import "net/http"

// code=0 请求成功
// code=4xx 客户端请求错误
// code=5xx 服务器端错误
// code=3xxxx 检测业务错误码

type Errno struct {
	Code       int
	HTTPStatus int
	Message    string
}

// Error 实现error接口
func (e *Errno) Error() string {
	return e.Message
}

// Status 返回对应的HTTP状态码
func (e *Errno) Status() int {
	if e.HTTPStatus == 0 {
		return http.StatusInternalServerError
	}
	return e.HTTPStatus
}

var (
	OK = &Errno{Code: 0, HTTPStatus: http.StatusOK, Message: "Success"}

	ErrInvalidParam = &Errno{Code: 400, HTTPStatus: http.StatusBadRequest, Message: "Invalid parameter"}
	ErrNotFound     = &Errno{Code: 404, HTTPStatus: http.StatusNotFound, Message: "Not found"}

	ErrInternalServer = &Errno{Code: 500, HTTPStatus: http.StatusInternalServerError, Message: "Internal server error"}
	ErrStorage        = &Errno{Code: 502, HTTPStatus: http.StatusInternalServerError, Message: "Storage error"}

	// 上传校验错误码
	ErrNoFileProvided    = &Errno{Code: 30001, HTTPStatus: http.StatusBadRequest, Message: "No video file provided"}
	ErrNoFileSelected    = &Errno{Code: 30002, HTTPStatus: http.StatusBadRequest, Message: "No file selected"}
	ErrUnsupportedFormat = &Errno{Code: 30003, HTTPStatus: http.StatusBadRequest, Message: "File type not supported"}
	ErrPayloadTooLarge   = &Errno{Code: 30004, HTTPStatus: http.StatusRequestEntityTooLarge, Message: "File too large"}

	// 任务查询错误码
	ErrJobNotFound   = &Errno{Code: 30010, HTTPStatus: http.StatusNotFound, Message: "Job not found"}
	ErrJobNotReady   = &Errno{Code: 30011, HTTPStatus: http.StatusBadRequest, Message: "Job not completed yet"}
	ErrVideoNotFound = &Errno{Code: 30012, HTTPStatus: http.StatusNotFound, Message: "Video file not found"}
	ErrJobIDRequired = &Errno{Code: 30013, HTTPStatus: http.StatusBadRequest, Message: "Job ID is required"}

	// 调度错误码
	ErrQueueFull = &Errno{Code: 30020, HTTPStatus: http.StatusServiceUnavailable, Message: "Analysis queue is full, try again later"}
)
