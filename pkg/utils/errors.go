package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrParse                  = errors.New("URL decomposition failed")   // Malformed port, unbalanced IPv6 brackets
	ErrInvalidProxy           = errors.New("invalid proxy descriptor")   // Raw string does not match the proxy grammar
	ErrUnsupportedProxyScheme = errors.New("unsupported proxy scheme")   // Not one of http/https/socks4/socks5/direct/quic
	ErrEmptyPool              = errors.New("proxy pool is empty")        // Rotation requested on an empty pool
	ErrSourceLoad             = errors.New("failed to load list source") // File/remote list could not be read
	ErrUnsupportedTransport   = errors.New("proxy scheme has no transport")
	ErrClientHTTPError        = errors.New("client HTTP error (4xx)")    // Wraps original error/status
	ErrServerHTTPError        = errors.New("server HTTP error (5xx)")    // Wraps original error/status
	ErrOtherHTTPError         = errors.New("other HTTP error (non-2xx)") // Wraps original error/status
	ErrParsing                = errors.New("parsing error")              // Wraps specific parsing error (HTML, YAML, CSV)
	ErrFilesystem             = errors.New("filesystem error")           // Wraps os errors
	ErrDatabase               = errors.New("database error")             // Wraps badger errors
	ErrRequestCreation        = errors.New("failed to create HTTP request")
	ErrResponseBodyRead       = errors.New("failed to read response body")
	ErrConfigValidation       = errors.New("configuration validation error")
)

// WrapErrorf wraps a sentinel with a formatted message so errors.Is keeps working.
func WrapErrorf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// CategorizeError maps an error to a predefined category string for logging.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrInvalidProxy):
		return "Proxy_Invalid"
	case errors.Is(err, ErrUnsupportedProxyScheme):
		return "Proxy_UnsupportedScheme"
	case errors.Is(err, ErrUnsupportedTransport):
		return "Proxy_UnsupportedTransport"
	case errors.Is(err, ErrEmptyPool):
		return "Proxy_EmptyPool"
	case errors.Is(err, ErrParse):
		return "URL_Decomposition"
	case errors.Is(err, ErrSourceLoad):
		// A remote list that answered with a status is a different failure than a missing file
		if errors.Is(err, os.ErrNotExist) {
			return "Source_NotExist"
		}
		if strings.Contains(err.Error(), "status") {
			return "Source_HTTPStatus"
		}
		return "Source_Other"
	case errors.Is(err, ErrClientHTTPError):
		errMsg := err.Error()
		if strings.Contains(errMsg, " 404 ") {
			return "HTTP_404"
		}
		if strings.Contains(errMsg, " 403 ") {
			return "HTTP_403"
		}
		if strings.Contains(errMsg, " 407 ") {
			return "HTTP_407"
		}
		if strings.Contains(errMsg, " 429 ") {
			return "HTTP_429"
		}
		return "HTTP_4xx"
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrParsing):
		errMsg := err.Error()
		if strings.Contains(errMsg, "HTML") {
			return "Content_ParsingHTML"
		}
		if strings.Contains(errMsg, "YAML") {
			return "Content_ParsingYAML"
		}
		if strings.Contains(errMsg, "JSON") {
			return "Content_ParsingJSON"
		}
		return "Content_ParsingOther"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, os.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		if errors.Is(err, os.ErrExist) {
			return "Filesystem_Exist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	// --- Fallback checks for common underlying error types/strings ---

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}
	lowerErrMsg := strings.ToLower(err.Error())
	if strings.Contains(lowerErrMsg, "socks") {
		return "Network_SOCKS"
	}
	if strings.Contains(lowerErrMsg, "proxyconnect") {
		return "Network_ProxyConnect"
	}
	if strings.Contains(lowerErrMsg, "timeout") {
		return "Network_TimeoutGeneric"
	}
	if strings.Contains(lowerErrMsg, "connection refused") {
		return "Network_ConnectionRefused"
	}
	if strings.Contains(lowerErrMsg, "no such host") {
		return "Network_DNSLookup"
	}
	if strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate") {
		return "Network_TLS"
	}
	if strings.Contains(lowerErrMsg, "reset by peer") {
		return "Network_ConnectionReset"
	}

	return "Unknown"
}
