package api

import "encoding/json"

// Envelope codes with client-side meaning.
const (
	CodeSuccess      = 0
	CodeUnauthorized = 401
)

// Envelope is the wrapper around every backend response body.
type Envelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data,omitempty"`
	Msg  string          `json:"msg"`
}

// decodeEnvelope returns false when body is not an envelope.
func decodeEnvelope(body []byte) (*Envelope, bool) {
	var probe struct {
		Code *int            `json:"code"`
		Data json.RawMessage `json:"data"`
		Msg  string          `json:"msg"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || probe.Code == nil {
		return nil, false
	}
	return &Envelope{Code: *probe.Code, Data: probe.Data, Msg: probe.Msg}, true
}

// PageResult is the paged list shape shared by the list endpoints.
type PageResult[T any] struct {
	List  []T   `json:"list"`
	Total int64 `json:"total"`
}
