package chat

import "time"

// Message persists individual transcript entries on the backend.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	IsBot     bool      `json:"isBot"`
	CreatedAt time.Time `json:"createdAt"`
}

// Request is the body of a chat exchange call.
type Request struct {
	Message string `json:"message"`
}

// Response is the body returned by a chat exchange call. Success is optional
// on the wire: a body carrying only a response is a successful reply.
type Response struct {
	Response string `json:"response"`
	Success  *bool  `json:"success,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Reply builds a successful Response.
func Reply(text string) Response {
	ok := true
	return Response{Response: text, Success: &ok}
}

// Failure builds a rejected Response.
func Failure(message string) Response {
	ok := false
	return Response{Success: &ok, Error: message}
}

// Rejected reports whether the server declined to answer: success is
// explicitly false or an error is present.
func (r Response) Rejected() bool {
	return r.Error != "" || (r.Success != nil && !*r.Success)
}
