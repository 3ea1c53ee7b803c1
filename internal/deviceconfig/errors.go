package deviceconfig

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// ErrorType is the category of a failed server or node call.
type ErrorType int

const (
	ErrTypeNetwork           ErrorType = iota // unclassified transport failure
	ErrTypeAuth                               // 401 from the config server
	ErrTypeHTTP                               // any other non-2xx response
	ErrTypeConflict                           // 409, the node's filesystem is busy
	ErrTypeUnreachable                        // 404, the server could not reach the node
	ErrTypeParse                              // malformed response body
	ErrTypeValidation                         // payload refused before sending
	ErrTypeTimeout
	ErrTypeConnectionRefused
	ErrTypeDNS
	ErrTypeUnknown
)

var errorTypeNames = map[ErrorType]string{
	ErrTypeNetwork:           "Network Error",
	ErrTypeAuth:              "Authentication Error",
	ErrTypeHTTP:              "HTTP Error",
	ErrTypeConflict:          "Conflict",
	ErrTypeUnreachable:       "Node Unreachable",
	ErrTypeParse:             "Parse Error",
	ErrTypeValidation:        "Validation Error",
	ErrTypeTimeout:           "Timeout",
	ErrTypeConnectionRefused: "Connection Refused",
	ErrTypeDNS:               "DNS Error",
	ErrTypeUnknown:           "Unknown Error",
}

func (et ErrorType) String() string {
	if name, ok := errorTypeNames[et]; ok {
		return name
	}
	return fmt.Sprintf("ErrorType(%d)", et)
}

// transport reports whether the type describes a failure below HTTP.
func (et ErrorType) transport() bool {
	switch et {
	case ErrTypeNetwork, ErrTypeTimeout, ErrTypeConnectionRefused, ErrTypeDNS:
		return true
	}
	return false
}

// NetworkErrorSubtype narrows down ErrTypeNetwork and friends.
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorTimeout
	NetworkErrorConnectionRefused
	NetworkErrorDNS
	NetworkErrorHostUnreachable
	NetworkErrorNetworkUnreachable
)

// DeviceError is returned by every Client and StatusWatcher call that
// fails. The predicates below see through wrapping.
type DeviceError struct {
	Type           ErrorType
	Message        string
	StatusCode     int // 0 for transport failures
	Err            error
	NetworkSubtype NetworkErrorSubtype
	DeviceIP       string
	Retryable      bool
}

func (e *DeviceError) Error() string {
	s := e.Type.String() + ": " + e.Message
	if e.Err != nil {
		s += fmt.Sprintf(" (caused by: %v)", e.Err)
	}
	return s
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// errnoClass maps a dial errno to its classification.
var errnoClass = []struct {
	errno   syscall.Errno
	typ     ErrorType
	subtype NetworkErrorSubtype
	message string
}{
	{syscall.ECONNREFUSED, ErrTypeConnectionRefused, NetworkErrorConnectionRefused, "Server refused connection"},
	{syscall.EHOSTUNREACH, ErrTypeNetwork, NetworkErrorHostUnreachable, "Host unreachable"},
	{syscall.ENETUNREACH, ErrTypeNetwork, NetworkErrorNetworkUnreachable, "Network unreachable"},
}

// ClassifyNetworkError turns a transport error from net/http into a
// DeviceError. It returns nil for a nil error.
func ClassifyNetworkError(err error, deviceIP string) *DeviceError {
	if err == nil {
		return nil
	}
	devErr := &DeviceError{
		Type:      ErrTypeNetwork,
		Message:   "Network error occurred",
		Err:       err,
		DeviceIP:  deviceIP,
		Retryable: true,
	}

	var timeout interface{ Timeout() bool }
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &timeout) && timeout.Timeout():
		devErr.Type, devErr.NetworkSubtype = ErrTypeTimeout, NetworkErrorTimeout
		devErr.Message = "Request timed out"
	case errors.As(err, &dnsErr):
		devErr.Type, devErr.NetworkSubtype = ErrTypeDNS, NetworkErrorDNS
		devErr.Message = "DNS resolution failed for " + dnsErr.Name
		devErr.Retryable = false
	default:
		for _, c := range errnoClass {
			if errors.Is(err, c.errno) {
				devErr.Type, devErr.NetworkSubtype, devErr.Message = c.typ, c.subtype, c.message
				break
			}
		}
	}
	return devErr
}

// NewNetworkError classifies err and replaces its message.
func NewNetworkError(message string, err error) *DeviceError {
	if devErr := ClassifyNetworkError(err, ""); devErr != nil {
		devErr.Message = message
		return devErr
	}
	return &DeviceError{Type: ErrTypeNetwork, Message: message, Retryable: true}
}

func NewAuthError(message string) *DeviceError {
	return &DeviceError{Type: ErrTypeAuth, Message: message, StatusCode: http.StatusUnauthorized}
}

// NewHTTPError creates an unclassified HTTP error. 5xx is retryable.
func NewHTTPError(statusCode int, message string) *DeviceError {
	return &DeviceError{
		Type:       ErrTypeHTTP,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  statusCode >= 500,
	}
}

func NewConflictError(message string) *DeviceError {
	return &DeviceError{Type: ErrTypeConflict, Message: message, StatusCode: http.StatusConflict}
}

func NewUnreachableError(message string) *DeviceError {
	return &DeviceError{Type: ErrTypeUnreachable, Message: message, StatusCode: http.StatusNotFound}
}

func NewParseError(message string, err error) *DeviceError {
	return &DeviceError{Type: ErrTypeParse, Message: message, Err: err}
}

func NewValidationError(message string) *DeviceError {
	return &DeviceError{Type: ErrTypeValidation, Message: message}
}

// ErrorForStatus maps a non-2xx response to a DeviceError. The trimmed
// body becomes the message, so server text reaches the user unchanged.
func ErrorForStatus(statusCode int, body string) *DeviceError {
	msg := strings.TrimSpace(body)
	orDefault := func(def string) string {
		if msg == "" {
			return def
		}
		return msg
	}
	switch statusCode {
	case http.StatusUnauthorized:
		return NewAuthError("authentication failed (check credentials)")
	case http.StatusConflict:
		return NewConflictError(orDefault("remote filesystem conflict"))
	case http.StatusNotFound:
		return NewUnreachableError(orDefault("target node unreachable"))
	default:
		return NewHTTPError(statusCode, orDefault(fmt.Sprintf("unexpected status code: %d", statusCode)))
	}
}

func asDeviceError(err error) (*DeviceError, bool) {
	var devErr *DeviceError
	ok := errors.As(err, &devErr)
	return devErr, ok
}

func hasType(err error, t ErrorType) bool {
	devErr, ok := asDeviceError(err)
	return ok && devErr.Type == t
}

// IsNetworkError matches every transport failure, timeouts and DNS
// included.
func IsNetworkError(err error) bool {
	devErr, ok := asDeviceError(err)
	return ok && devErr.Type.transport()
}

func IsAuthError(err error) bool        { return hasType(err, ErrTypeAuth) }
func IsHTTPError(err error) bool        { return hasType(err, ErrTypeHTTP) }
func IsConflictError(err error) bool    { return hasType(err, ErrTypeConflict) }
func IsUnreachableError(err error) bool { return hasType(err, ErrTypeUnreachable) }
func IsParseError(err error) bool       { return hasType(err, ErrTypeParse) }

// IsRetryable reports whether resubmitting may succeed. Errors that are not
// DeviceErrors never are.
func IsRetryable(err error) bool {
	devErr, ok := asDeviceError(err)
	return ok && devErr.Retryable
}

const (
	tipsHeading = "Troubleshooting:"
	keptTip     = "  • Your configuration was kept unchanged"
)

// GetTroubleshootingHint returns multi-line advice for err: a summary line,
// then a "Troubleshooting:" block of bullet tips.
func GetTroubleshootingHint(err error) string {
	devErr, ok := asDeviceError(err)
	if !ok {
		return "An unexpected error occurred. Your configuration was kept; please try again."
	}
	return strings.Join(hintLines(devErr), "\n")
}

func hintLines(e *DeviceError) []string {
	switch e.Type {
	case ErrTypeTimeout:
		return []string{"The config server did not respond in time.", tipsHeading,
			"  • Check that the server is running",
			"  • Try increasing the timeout with --timeout",
			"  • Your configuration was kept and can be resubmitted"}
	case ErrTypeConnectionRefused:
		return []string{"The config server refused the connection.", tipsHeading,
			"  • Verify the server URL and port (--server)",
			"  • The server process may not be running"}
	case ErrTypeDNS:
		return []string{"Could not resolve the server hostname.", tipsHeading,
			"  • Use the IP address instead of hostname",
			"  • Check your network DNS settings"}
	case ErrTypeAuth:
		return []string{"Authentication failed.", tipsHeading,
			"  • Check the username and password for the config server"}
	case ErrTypeConflict:
		return []string{"The node reported a filesystem conflict (HTTP 409).", e.Message, tipsHeading,
			"  • Another upload may be in progress; wait and resubmit",
			keptTip}
	case ErrTypeUnreachable:
		return []string{"The target node is unreachable (HTTP 404).", tipsHeading,
			"  • Check that the node is powered on and on the network",
			"  • Run 'nodecfg scan' to confirm its address",
			keptTip}
	case ErrTypeNetwork:
		return networkHint(e)
	case ErrTypeHTTP:
		if e.StatusCode < 500 {
			return []string{fmt.Sprintf("The server returned HTTP error %d: %s", e.StatusCode, e.Message)}
		}
		return []string{fmt.Sprintf("The server returned an error (HTTP %d).", e.StatusCode), e.Message, tipsHeading,
			"  • Check the server logs",
			"  • Retry the submission"}
	case ErrTypeParse:
		return []string{"Failed to parse the server's response.", tipsHeading,
			"  • Check that the server and nodecfg versions match",
			"  • Run with NODECFG_LOG_LEVEL=debug for details"}
	case ErrTypeValidation:
		return []string{"The configuration values are invalid. Check the error message for details."}
	}
	return []string{"An error occurred. Please check the error message for details."}
}

func networkHint(e *DeviceError) []string {
	lines := []string{"Network communication failed."}
	switch e.NetworkSubtype {
	case NetworkErrorHostUnreachable:
		return append(lines, "The host is not reachable on the network.", tipsHeading,
			"  • Verify the address is correct",
			"  • Check that you're on the same network",
			"  • Try pinging it: ping "+e.DeviceIP)
	case NetworkErrorNetworkUnreachable:
		return append(lines, "Your computer cannot reach the node's network.", tipsHeading,
			"  • Check your network adapter settings",
			"  • Verify WiFi is enabled on your computer")
	}
	return append(lines, tipsHeading,
		"  • Check your network connection",
		"  • Ensure you're connected to the correct network")
}

// GetShortErrorMessage returns a one-line message for status bars.
func GetShortErrorMessage(err error) string {
	devErr, ok := asDeviceError(err)
	if !ok {
		return err.Error()
	}
	switch devErr.Type {
	case ErrTypeTimeout:
		return "Server not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Server refused connection"
	case ErrTypeDNS:
		return "Cannot resolve server hostname"
	case ErrTypeAuth:
		return "Authentication failed - check credentials"
	case ErrTypeConflict:
		return "Filesystem conflict on node: " + devErr.Message
	case ErrTypeUnreachable:
		return "Target node unreachable"
	case ErrTypeHTTP:
		return fmt.Sprintf("Upload failed (HTTP %d): %s", devErr.StatusCode, devErr.Message)
	case ErrTypeParse:
		return "Failed to parse server response"
	case ErrTypeNetwork:
		switch devErr.NetworkSubtype {
		case NetworkErrorHostUnreachable:
			return "Host unreachable - check network connection"
		case NetworkErrorNetworkUnreachable:
			return "Network unreachable - check WiFi connection"
		}
		return "Network error - check connection"
	}
	return devErr.Message
}
