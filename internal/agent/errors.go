package agent

import "strings"

// classifyBackendError 对后端错误做启发式归类，返回给用户的修复建议。
// 只看错误文本，不依赖具体提供方的错误类型。
func classifyBackendError(err error) string {
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "API") || strings.Contains(lower, "api"):
		return "Check your API configuration and network connection"
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out") || strings.Contains(lower, "deadline exceeded"):
		return "The request timed out. Try again or check the service availability"
	default:
		return "An unexpected error occurred. Check the session log for details"
	}
}
