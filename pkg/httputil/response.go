package httputil

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes data in the success envelope. A zero status means 200.
func WriteSuccess(w http.ResponseWriter, status int, data interface{}, meta interface{}) error {
	if status == 0 {
		status = http.StatusOK
	}
	return WriteJSON(w, status, ToSuccessResponse(data, meta))
}

// WriteCreated writes a 201 success envelope
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteSuccess(w, http.StatusCreated, data, nil)
}

// WriteErrorResponse writes an already built error envelope
func WriteErrorResponse(w http.ResponseWriter, status int, resp ErrorResponse) error {
	return WriteJSON(w, status, resp)
}

// WriteError normalizes err and writes the resulting envelope.
// It returns the status that was written.
func WriteError(w http.ResponseWriter, err error, defaultMessage string) int {
	status, resp := ToErrorResponse(err, defaultMessage, http.StatusInternalServerError)
	_ = WriteErrorResponse(w, status, resp)
	return status
}

// WriteMessage writes a {"message": ...} body, used by delete and logout endpoints
func WriteMessage(w http.ResponseWriter, status int, message string) error {
	return WriteJSON(w, status, map[string]string{"message": message})
}
