package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNoUsableSession     = errors.New("no usable session")
	ErrNoBoundAccount      = errors.New("no bound game account")
	ErrEmptyRoleList       = errors.New("role list is empty")
	ErrNoMatchingCharacter = errors.New("no matching character")
	ErrRefreshTooFrequent  = errors.New("refresh requested too frequently")
	ErrLoginTimeout        = errors.New("login timed out")
	ErrLoginPending        = errors.New("login already pending")
)

// Local codes for failures that have no remote message.
const (
	CodeNoCharacterFound   = -100
	CodeCheckToken         = -101
	CodeNotBound           = -102
	CodeNoPlayerID         = -103
	CodeProfileHidden      = -106
	CodeRosterHidden       = -107
	CodeRetryLater         = -990
	CodeAccessBlocked      = -998
	CodeUnknown            = -999
	CodeSuccess            = 200
	CodeSuccessAlternative = 10902
)

var codeMessages = map[int]string{
	CodeNoCharacterFound: "no game character found for this account, check that it is publicly visible",
	CodeCheckToken:       "please check that your token is still valid",
	CodeNotBound:         "you have not bound a game token or it has expired, please log in again",
	CodeNoPlayerID:       "you have not bound a player id yet",
	CodeProfileHidden:    "your profile is not publicly visible",
	CodeRosterHidden:     "your resonator list is not publicly visible",
	CodeRetryLater:       "please try again later or log in again",
	CodeAccessBlocked:    "access may be blocked for this IP address",
	CodeUnknown:          "unknown error, check the logs",
}

// CodeMessage returns the local message for a business code.
func CodeMessage(code int) string {
	if msg, ok := codeMessages[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsSuccessCode reports whether a remote business code means success.
func IsSuccessCode(code int) bool {
	return code == CodeSuccess || code == CodeSuccessAlternative
}

// APIError is a remote response with a non-success business code.
type APIError struct {
	URL     string
	Code    int
	Message string
}

func NewAPIError(url string, code int, message string) *APIError {
	if message == "" {
		message = CodeMessage(code)
	}
	return &APIError{URL: url, Code: code, Message: message}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %s failed with code %d: %s", e.URL, e.Code, e.Message)
}

type LoginStatus string

const (
	LoginStatusUnbound     LoginStatus = "unbound"
	LoginStatusExpired     LoginStatus = "expired"
	LoginStatusRateLimited LoginStatus = "rate-limited"
	LoginStatusUnknown     LoginStatus = "unknown"
)

// LoginStatusError reports that a session is not authenticated for a player.
type LoginStatusError struct {
	PlayerID string
	Status   LoginStatus
	Message  string
}

func (e *LoginStatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("[%s] login check failed for player %s", e.Status, e.PlayerID)
	}
	return fmt.Sprintf("[%s] login check failed for player %s: %s", e.Status, e.PlayerID, e.Message)
}

// Invalidates reports whether the session behind this error can never recover.
func (e *LoginStatusError) Invalidates() bool {
	return e.Status == LoginStatusExpired || e.Status == LoginStatusUnbound
}

// TransportError is an HTTP level failure that survived all retries.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("request %s failed with status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("request %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UserMessage turns a core error into text for the chat front end.
func UserMessage(err error) string {
	var apiErr *APIError
	var loginErr *LoginStatusError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoUsableSession), errors.Is(err, ErrNoBoundAccount):
		return CodeMessage(CodeNotBound)
	case errors.Is(err, ErrEmptyRoleList):
		return "the role list of this account is empty"
	case errors.Is(err, ErrNoMatchingCharacter):
		return "none of the requested characters were found on this account"
	case errors.Is(err, ErrRefreshTooFrequent):
		return "character data was refreshed too recently, please try again later"
	case errors.Is(err, ErrLoginTimeout):
		return "login timed out, please try again"
	case errors.As(err, &loginErr):
		switch loginErr.Status {
		case LoginStatusUnbound:
			return fmt.Sprintf("player %s is not linked to the companion app", loginErr.PlayerID)
		case LoginStatusExpired:
			return fmt.Sprintf("the login of player %s has expired", loginErr.PlayerID)
		case LoginStatusRateLimited:
			return CodeMessage(CodeAccessBlocked)
		}
		return fmt.Sprintf("the login of player %s is in an unknown state", loginErr.PlayerID)
	case errors.As(err, &apiErr):
		return apiErr.Message
	}
	return CodeMessage(CodeUnknown)
}
