package connectors

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// FetchErrorKind: класс отказа при получении отчета.
type FetchErrorKind string

const (
	KindHTTP    FetchErrorKind = "http_error"    // бэкенд ответил не-2xx
	KindNetwork FetchErrorKind = "network_error" // транспорт, таймаут, открытый предохранитель
	KindParse   FetchErrorKind = "parse_error"   // тело не похоже на отчет
)

// FetchError: единый результат-ошибка ReportFetcher.
type FetchError struct {
	Kind   FetchErrorKind
	Status int // только для KindHTTP
	Cause  error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("kpi fetch: http status %d", e.Status)
	default:
		if e.Cause == nil {
			return fmt.Sprintf("kpi fetch: %s", e.Kind)
		}
		return fmt.Sprintf("kpi fetch: %s: %v", e.Kind, e.Cause)
	}
}

func (e *FetchError) Unwrap() error { return e.Cause }

// Timeout сообщает, что запрос прерван по дедлайну.
func (e *FetchError) Timeout() bool {
	if e.Kind != KindNetwork || e.Cause == nil {
		return false
	}
	if errors.Is(e.Cause, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(e.Cause, &nerr) && nerr.Timeout()
}

// KindOf достает класс ошибки; для посторонних ошибок, KindNetwork.
func KindOf(err error) FetchErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindNetwork
}

func httpError(status int) *FetchError {
	return &FetchError{Kind: KindHTTP, Status: status}
}

func networkError(cause error) *FetchError {
	return &FetchError{Kind: KindNetwork, Cause: cause}
}

func parseError(cause error) *FetchError {
	return &FetchError{Kind: KindParse, Cause: cause}
}
