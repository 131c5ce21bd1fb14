// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"
	ErrorUnauthorized  = "UNAUTHORIZED"

	// 验证相关错误
	ErrorValidationFailed = "VALIDATION_ERROR"

	// 生成后端相关错误
	ErrorInvalidResponse    = "INVALID_RESPONSE"
	ErrorBackendUnavailable = "BACKEND_UNAVAILABLE"
	ErrorGenerationFailed   = "GENERATION_FAILED"
	ErrorExtractionFailed   = "EXTRACTION_FAILED"
	ErrorSynthesisFailed    = "SYNTHESIS_FAILED"

	// 媒体相关错误
	ErrorMediaInvalid   = "MEDIA_INVALID"
	ErrorPlaybackFailed = "PLAYBACK_FAILED"
	ErrorClipNotFound   = "CLIP_NOT_FOUND"

	// 库相关错误
	ErrorScriptNotFound   = "SCRIPT_NOT_FOUND"
	ErrorTemplateNotFound = "TEMPLATE_NOT_FOUND"

	// 配置相关错误
	ErrorConfigUnhealthy    = "CONFIG_UNHEALTHY"
	ErrorLLMProviderMissing = "LLM_PROVIDER_MISSING"
	ErrorAPIKeyMissing      = "API_KEY_MISSING"
)
