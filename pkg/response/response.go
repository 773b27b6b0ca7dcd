package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"scanventory-api/pkg/apierror"
)

// Response represents a standard API response.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Count   *int        `json:"count,omitempty"`
	Message string      `json:"message,omitempty"`
}

func write(w http.ResponseWriter, statusCode int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	write(w, statusCode, Response{Success: true, Data: data})
}

// List sends a 200 OK response with a collection and its size.
func List(w http.ResponseWriter, data interface{}, count int) {
	write(w, http.StatusOK, Response{Success: true, Data: data, Count: &count})
}

// Message sends a 200 OK response carrying a human-readable message and an affected-row count.
func Message(w http.ResponseWriter, message string, count int) {
	write(w, http.StatusOK, Response{Success: true, Message: message, Count: &count})
}

// Result sends a 200 OK response with data, a message and a count.
func Result(w http.ResponseWriter, data interface{}, message string, count int) {
	write(w, http.StatusOK, Response{Success: true, Data: data, Message: message, Count: &count})
}

// Error sends an error response. Errors that are not *apierror.Error become a 500.
func Error(w http.ResponseWriter, err error) {
	var apiErr *apierror.Error
	if !errors.As(err, &apiErr) {
		apiErr = apierror.InternalError("")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.StatusCode)
	w.Write(apiErr.ToJSON())
}

// Created sends a 201 Created response with the created resource.
func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, data)
}

// OK sends a 200 OK response.
func OK(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, data)
}
