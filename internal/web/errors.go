package web

import (
	"encoding/json"
	"errors"
)

// Error is the JSON body of every non-2xx API response.
type Error struct {
	Message string   `json:"message,omitempty"`
	Err     []string `json:"err,omitempty"`
}

func NewError(message string, errs ...error) *Error {
	var msgs []string
	for _, err := range errs {
		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	return &Error{Message: message, Err: msgs}
}

func (e *Error) Error() string {
	//nolint:errchkjson
	data, _ := json.Marshal(e)
	return string(data)
}

var (
	errMissingWindow = errors.New("startDateTime and endDateTime are required")
	errInvertedRange = errors.New("endDateTime is before startDateTime")
	errNoDates       = errors.New("at least one date parameter is required")
)
