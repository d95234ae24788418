package onboarding

// Error is an application-layer error that can be mapped to an HTTP response.
//
// Validation and remote-service failures during Next are not Errors: they are reported
// through the controller's error message and Result. Error covers protocol misuse
// (unknown fields, bad values, missing sessions, overlapping submissions).
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func validationError(message string, details map[string]any) *Error {
	return &Error{
		Status:  422,
		Code:    "VALIDATION_ERROR",
		Message: message,
		Details: details,
	}
}
