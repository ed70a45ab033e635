// Package apperr holds the error kinds surfaced by a life report analysis.
// Every kind is raised where it is detected and reaches the caller unchanged.
package apperr

import (
	"errors"
	"fmt"
)

// ConfigError is a missing or unusable generator setting, detected before any network call.
// Message is user facing.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// InputError is subject data that cannot be parsed.
type InputError struct {
	Field   string
	Message string
	Err     error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *InputError) Unwrap() error { return e.Err }

// TransportError is a failed generator call. StatusCode is zero when no response arrived.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("生成服务请求失败: %v", e.Err)
	}
	return fmt.Sprintf("生成服务请求失败: %d - %s", e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }

// EmptyContentError means the generator answered successfully with no message content.
type EmptyContentError struct{}

func (e *EmptyContentError) Error() string {
	return "模型未返回任何内容"
}

// MalformedResponseError means the content is not usable structured data.
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("模型返回数据格式错误: %s: %v", e.Reason, e.Err)
	}
	return "模型返回数据格式错误: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// ErrorKind classifies an error for callers that map it to a status or a message
type ErrorKind string

const (
	KindConfig    ErrorKind = "configuration"
	KindInput     ErrorKind = "input"
	KindTransport ErrorKind = "transport"
	KindEmpty     ErrorKind = "empty_content"
	KindMalformed ErrorKind = "malformed_response"
	KindUnknown   ErrorKind = "unknown"
)

// Kind returns the kind of the first typed error in err's chain
func Kind(err error) ErrorKind {
	var (
		cfgErr       *ConfigError
		inputErr     *InputError
		transportErr *TransportError
		emptyErr     *EmptyContentError
		malformedErr *MalformedResponseError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cfgErr):
		return KindConfig
	case errors.As(err, &inputErr):
		return KindInput
	case errors.As(err, &transportErr):
		return KindTransport
	case errors.As(err, &emptyErr):
		return KindEmpty
	case errors.As(err, &malformedErr):
		return KindMalformed
	}
	return KindUnknown
}
