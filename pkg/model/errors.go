package model

import "errors"

// 业务错误分类：校验失败 / 前置条件不满足 / 不存在 / 无权限。
// HTTP 层统一映射状态码，service 层只返回这些哨兵（或其包装）。
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidOTP        = errors.New("invalid OTP")
	ErrOTPExpired        = errors.New("OTP expired")
	ErrOTPLocked         = errors.New("too many failed OTP attempts")
)
