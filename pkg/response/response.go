// Package response writes the JSON envelope every engine endpoint
// returns. Handlers never encode bodies themselves; success and error
// shapes stay uniform across the resolution and configuration routes.
package response

import (
	"encoding/json"
	"net/http"
)

// APIResponse is the envelope: status is "success" or "error",
// message carries the error text, data the payload.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// JSON writes a success envelope with the given payload.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	write(w, status, APIResponse{Status: "success", Data: data})
}

// Error writes an error envelope carrying only a message.
func Error(w http.ResponseWriter, status int, msg string) {
	write(w, status, APIResponse{Status: "error", Message: msg})
}

func write(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
