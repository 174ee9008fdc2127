package handlers

import (
	"net/http"

	"github.com/go-chi/render"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ErrorResponse writes a JSON error response.
func ErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, errorCode, message string) {
	WriteJSON(w, r, statusCode, ErrorBody{Error: errorCode, Message: message})
}

// WriteJSON writes data as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, r *http.Request, statusCode int, data any) {
	render.Status(r, statusCode)
	render.JSON(w, r, data)
}
