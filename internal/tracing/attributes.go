package tracing

import (
	"regexp"
	"strings"
)

// span 属性长度上限，按字符计
const (
	DefaultMaxLength = 200
	MaxSQLLength     = 500
	MaxRedisLength   = 100
	MaxMessageLength = 80
)

// 属性名包含这些片段时整体掩码
var sensitiveNameParts = []string{
	"password", "secret", "token", "api_key",
	"email", "phone", "mobile", "name", "address",
	"姓名", "手机", "电话", "邮箱", "地址", "身份证",
}

var (
	emailRe  = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	mobileRe = regexp.MustCompile(`(?:\+?86[- ]?)?1[3-9]\d{9}`)
)

// SafeAttributeValue 敏感属性掩码，其余按 maxLength 截断
func SafeAttributeValue(name, value string, maxLength int) string {
	lower := strings.ToLower(name)
	for _, part := range sensitiveNameParts {
		if strings.Contains(lower, part) {
			return MaskPII(value)
		}
	}
	return TruncateString(value, maxLength)
}

// MaskPII 短值保留首字（长度 3~4 时也保留尾字），长值保留首尾各两个字符
func MaskPII(value string) string {
	runes := []rune(value)
	n := len(runes)
	switch {
	case n == 0:
		return ""
	case n == 1:
		return "*"
	case n == 2:
		return string(runes[0]) + "*"
	case n <= 4:
		return string(runes[0]) + strings.Repeat("*", n-2) + string(runes[n-1])
	default:
		return string(runes[:2]) + strings.Repeat("*", n-4) + string(runes[n-2:])
	}
}

// TruncateString 超长时保留首尾，中间以 ... 连接
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}
	keep := (maxLength - 3) / 2
	if keep < 1 {
		keep = 1
	}
	return string(runes[:keep]) + "..." + string(runes[len(runes)-keep:])
}

// RedactContacts 把文本中的邮箱和手机号替换为掩码
func RedactContacts(text string) string {
	text = emailRe.ReplaceAllStringFunc(text, MaskPII)
	return mobileRe.ReplaceAllStringFunc(text, MaskPII)
}

// SafeSQL SQL 语句只截断
func SafeSQL(sql string) string {
	return TruncateString(sql, MaxSQLLength)
}

// SafeRedisKey Redis 键只截断
func SafeRedisKey(key string) string {
	return TruncateString(key, MaxRedisLength)
}

// SafeMessageContent 候选人发言先脱敏联系方式再截断
func SafeMessageContent(content string) string {
	return TruncateString(RedactContacts(content), MaxMessageLength)
}
