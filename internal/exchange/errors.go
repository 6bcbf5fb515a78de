package exchange

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFetch marks any failure to read positions: transport, timeout,
	// non-2xx status or an unsuccessful envelope.
	ErrFetch = errors.New("fetch positions failed")
	// ErrOrder marks an order that was rejected or whose submission failed.
	ErrOrder = errors.New("order submission failed")
	// ErrAuth marks a rejected key, signature or timestamp. It is always
	// reported together with ErrFetch or ErrOrder.
	ErrAuth = errors.New("exchange authentication rejected")
)

// APIError is a non-2xx response or a success:false envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Message)
	switch {
	case e.Code != "" && msg != "":
		return fmt.Sprintf("http %d: %s: %s", e.Status, e.Code, msg)
	case e.Code != "":
		return fmt.Sprintf("http %d: %s", e.Status, e.Code)
	default:
		return fmt.Sprintf("http %d: %s", e.Status, msg)
	}
}

func (e *APIError) Is(target error) bool {
	return target == ErrAuth && e.isAuth()
}

var authCodes = []string{
	"invalid_api_key",
	"unauthorized",
	"signature",
	"expired_signature",
	"ip_not_whitelisted",
}

func (e *APIError) isAuth() bool {
	if e.Status == 401 || e.Status == 403 {
		return true
	}
	code := strings.ToLower(e.Code)
	if code == "" {
		return false
	}
	for _, c := range authCodes {
		if strings.Contains(code, c) {
			return true
		}
	}
	return false
}
