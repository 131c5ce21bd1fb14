// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 通用错误类型
	ErrorTypeValidation   ErrorType = "validation_error"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeError        ErrorType = "processing_error"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeConflict     ErrorType = "conflict"

	// 生成后端相关错误类型
	ErrorTypeResponseFormat ErrorType = "response_format_error" // 响应已收到但无法解析为预期结构
	ErrorTypeBackend        ErrorType = "backend_error"         // 调用本身失败（传输/可用性）

	// 媒体相关错误类型
	ErrorTypeMedia    ErrorType = "media_error"
	ErrorTypePlayback ErrorType = "playback_error"
)

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // 用户友好的错误代码
	Field   string // 验证错误对应的表单字段（可选）
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现错误链接
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError 创建新的 AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewValidationError 创建验证错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewFieldValidationError 创建带字段信息的验证错误
func NewFieldValidationError(field, message string) *AppError {
	err := NewAppError(ErrorTypeValidation, message, nil)
	err.Field = field
	return err
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewProcessingError 创建处理错误
func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

// NewResponseFormatError 创建响应格式错误（后端契约违反）
func NewResponseFormatError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeResponseFormat, message, originalError)
}

// NewBackendError 创建后端传输/可用性错误
func NewBackendError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeBackend, message, originalError)
}

// NewMediaError 创建媒体错误
func NewMediaError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeMedia, message, originalError)
}

// NewPlaybackError 创建播放错误
func NewPlaybackError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypePlayback, message, originalError)
}

// NewUnauthorizedError 创建未授权错误
func NewUnauthorizedError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeUnauthorized, message, originalError)
}

// NewConflictError 创建冲突错误
func NewConflictError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeConflict, message, originalError)
}

// isType 检查错误链中是否包含指定类型的 AppError
func isType(err error, t ErrorType) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == t
	}
	return false
}

// IsValidationError 检查是否为验证错误
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsResponseFormatError 检查是否为响应格式错误
func IsResponseFormatError(err error) bool {
	return isType(err, ErrorTypeResponseFormat)
}

// IsBackendError 检查是否为后端错误
func IsBackendError(err error) bool {
	return isType(err, ErrorTypeBackend)
}

// IsConflictError 检查是否为冲突错误
func IsConflictError(err error) bool {
	return isType(err, ErrorTypeConflict)
}

// IsUnauthorizedError 检查是否为未授权错误
func IsUnauthorizedError(err error) bool {
	return isType(err, ErrorTypeUnauthorized)
}

// IsPlaybackError 检查是否为播放错误
func IsPlaybackError(err error) bool {
	return isType(err, ErrorTypePlayback)
}

// ValidationField 返回验证错误关联的字段名，无则返回空串
func ValidationField(err error) string {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Field
	}
	return ""
}

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
	case ErrorTypeUnauthorized:
		return "UNAUTHORIZED"
	case ErrorTypeConflict:
		return "CONFLICT"
	case ErrorTypeResponseFormat:
		return "INVALID_RESPONSE"
	case ErrorTypeBackend:
		return "BACKEND_UNAVAILABLE"
	case ErrorTypeMedia:
		return "MEDIA_ERROR"
	case ErrorTypePlayback:
		return "PLAYBACK_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError 包装现有错误
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		// 如果已经是 AppError，只更新消息
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError,
			Code:    appError.Code,
			Field:   appError.Field,
		}
	}

	// 否则创建新的 AppError
	return NewAppError(errType, message, err)
}
