package deviceconfig

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
	"testing"
)

func dialError(err error) error {
	return &url.Error{
		Op:  "Post",
		URL: "http://10.0.0.2:8123/upload",
		Err: &net.OpError{Op: "dial", Net: "tcp", Err: err},
	}
}

func TestClassifyNetworkError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		subtype   NetworkErrorSubtype
		retryable bool
	}{
		{"timeout", dialError(&timeoutError{}), ErrTypeTimeout, NetworkErrorTimeout, true},
		{"connection refused", dialError(syscall.ECONNREFUSED), ErrTypeConnectionRefused, NetworkErrorConnectionRefused, true},
		{"host unreachable", dialError(syscall.EHOSTUNREACH), ErrTypeNetwork, NetworkErrorHostUnreachable, true},
		{"network unreachable", dialError(syscall.ENETUNREACH), ErrTypeNetwork, NetworkErrorNetworkUnreachable, true},
		{"dns", &net.DNSError{Err: "no such host", Name: "cfg.invalid", IsNotFound: true}, ErrTypeDNS, NetworkErrorDNS, false},
		{"other", errors.New("connection reset"), ErrTypeNetwork, NetworkErrorGeneral, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devErr := ClassifyNetworkError(tt.err, "10.0.0.2")
			if devErr == nil {
				t.Fatal("ClassifyNetworkError() = nil")
			}
			if devErr.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", devErr.Type, tt.wantType)
			}
			if devErr.NetworkSubtype != tt.subtype {
				t.Errorf("NetworkSubtype = %v, want %v", devErr.NetworkSubtype, tt.subtype)
			}
			if devErr.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", devErr.Retryable, tt.retryable)
			}
			if !IsNetworkError(devErr) {
				t.Error("IsNetworkError() = false")
			}
		})
	}

	if ClassifyNetworkError(nil, "") != nil {
		t.Error("ClassifyNetworkError(nil) should be nil")
	}
}

func TestErrorForStatus(t *testing.T) {
	tests := []struct {
		status    int
		body      string
		is        func(error) bool
		message   string
		retryable bool
	}{
		{409, "  sd card busy\n", IsConflictError, "sd card busy", false},
		{409, "", IsConflictError, "remote filesystem conflict", false},
		{404, "node 192.168.1.40 did not answer", IsUnreachableError, "node 192.168.1.40 did not answer", false},
		{401, "nope", IsAuthError, "authentication failed (check credentials)", false},
		{500, "Traceback: disk full", IsHTTPError, "Traceback: disk full", true},
		{418, "", IsHTTPError, "unexpected status code: 418", false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := ErrorForStatus(tt.status, tt.body)
			if !tt.is(err) {
				t.Errorf("ErrorForStatus(%d) has type %v", tt.status, err.Type)
			}
			if err.Message != tt.message {
				t.Errorf("Message = %q, want %q", err.Message, tt.message)
			}
			if err.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", err.StatusCode, tt.status)
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", IsRetryable(err), tt.retryable)
			}
		})
	}
}

func TestPredicatesSeeWrappedErrors(t *testing.T) {
	err := fmt.Errorf("submit: %w", NewConflictError("busy"))
	if !IsConflictError(err) {
		t.Error("IsConflictError() missed a wrapped error")
	}
	if IsUnreachableError(err) || IsHTTPError(err) || IsNetworkError(err) {
		t.Error("wrapped conflict matched another predicate")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("plain errors should not be retryable")
	}
}

func TestGetShortErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", &DeviceError{Type: ErrTypeTimeout}, "Server not responding (timeout)"},
		{"refused", &DeviceError{Type: ErrTypeConnectionRefused}, "Server refused connection"},
		{"auth", &DeviceError{Type: ErrTypeAuth}, "Authentication failed - check credentials"},
		{"conflict", NewConflictError("sd card busy"), "Filesystem conflict on node: sd card busy"},
		{"unreachable", NewUnreachableError("gone"), "Target node unreachable"},
		{"host unreachable", &DeviceError{Type: ErrTypeNetwork, NetworkSubtype: NetworkErrorHostUnreachable}, "Host unreachable - check network connection"},
		{"http", NewHTTPError(500, "disk full"), "Upload failed (HTTP 500): disk full"},
		{"validation", NewValidationError("empty payload"), "empty payload"},
		{"plain", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetShortErrorMessage(tt.err); got != tt.want {
				t.Errorf("GetShortErrorMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetTroubleshootingHint(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []string
	}{
		{"timeout", &DeviceError{Type: ErrTypeTimeout}, []string{"did not respond in time", "--timeout", "kept"}},
		{"conflict", NewConflictError("sd card busy"), []string{"HTTP 409", "sd card busy", "kept unchanged"}},
		{"unreachable", NewUnreachableError(""), []string{"HTTP 404", "nodecfg scan"}},
		{"host unreachable", &DeviceError{Type: ErrTypeNetwork, NetworkSubtype: NetworkErrorHostUnreachable, DeviceIP: "192.168.1.40"}, []string{"ping 192.168.1.40"}},
		{"server error", NewHTTPError(503, "restarting"), []string{"HTTP 503", "restarting", "server logs"}},
		{"parse", NewParseError("bad", nil), []string{"NODECFG_LOG_LEVEL"}},
		{"plain", errors.New("boom"), []string{"configuration was kept"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hint := GetTroubleshootingHint(tt.err)
			for _, want := range tt.want {
				if !strings.Contains(hint, want) {
					t.Errorf("hint missing %q\nGot: %s", want, hint)
				}
			}
		})
	}
}

func TestDeviceErrorUnwrap(t *testing.T) {
	cause := errors.New("eof")
	err := NewParseError("failed to parse status", cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is() did not reach the cause")
	}
	if !strings.Contains(err.Error(), "caused by: eof") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestErrorTypeString(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		expected  string
	}{
		{ErrTypeNetwork, "Network Error"},
		{ErrTypeAuth, "Authentication Error"},
		{ErrTypeHTTP, "HTTP Error"},
		{ErrTypeConflict, "Conflict"},
		{ErrTypeUnreachable, "Node Unreachable"},
		{ErrTypeParse, "Parse Error"},
		{ErrTypeValidation, "Validation Error"},
		{ErrTypeTimeout, "Timeout"},
		{ErrTypeConnectionRefused, "Connection Refused"},
		{ErrTypeDNS, "DNS Error"},
		{ErrTypeUnknown, "Unknown Error"},
		{ErrorType(99), "ErrorType(99)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.errorType.String(); got != tt.expected {
				t.Errorf("ErrorType.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

// timeoutError is a mock error that implements timeout behavior
type timeoutError struct{}

func (e *timeoutError) Error() string   { return "i/o timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }
