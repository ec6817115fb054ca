// Package models holds the JSON payloads exchanged with API clients.
package models

import "github.com/shopspring/decimal"

// ReconcileRequest asks which open notes add up to a payment. Exactly one of
// Notes (free text, parsed leniently) or Values must be given. Amounts accept
// JSON strings or numbers.
type ReconcileRequest struct {
	Target   *decimal.Decimal  `json:"target" binding:"required"`
	Notes    string            `json:"notes" binding:"required_without=Values"`
	Values   []decimal.Decimal `json:"values" binding:"required_without=Notes"`
	MaxDepth *int              `json:"maxDepth" binding:"omitempty,min=1"`
}

// Search status values.
const (
	StatusFound     = "found"
	StatusNotFound  = "not_found"
	StatusCancelled = "cancelled"
)

// ReconcileResponse is the outcome of one search. Amounts are rendered with
// two decimals.
type ReconcileResponse struct {
	RequestID      string   `json:"requestId"`
	Status         string   `json:"status"`
	Combination    []string `json:"combination,omitempty"`
	Indices        []int    `json:"indices,omitempty"`
	Sum            string   `json:"sum,omitempty"`
	Target         string   `json:"target"`
	Candidates     int      `json:"candidates"`
	Depth          int      `json:"depth"`
	Evaluated      uint64   `json:"evaluated"`
	Elapsed        string   `json:"elapsed"`
	ElapsedMs      float64  `json:"elapsedMs"`
	RejectedTokens []string `json:"rejectedTokens,omitempty"`
	Warning        string   `json:"warning,omitempty"`
	Hint           string   `json:"hint,omitempty"`
}

// ParseRequest previews how free text would be read as note amounts.
type ParseRequest struct {
	Notes string `json:"notes" binding:"required"`
}

// ParseResponse lists the amounts read from the text, in input order.
type ParseResponse struct {
	Values   []string `json:"values"`
	Count    int      `json:"count"`
	Total    string   `json:"total"`
	Rejected []string `json:"rejected,omitempty"`
}

// ErrorBody is the error payload, wrapped as {"error": ErrorBody}.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Stream frame types sent over the reconcile WebSocket.
const (
	FrameProgress = "progress"
	FrameResult   = "result"
	FrameError    = "error"
	FrameCancel   = "cancel"
)

// ProgressEvent reports that a combination size is about to be evaluated.
type ProgressEvent struct {
	Size         int     `json:"size"`
	Fraction     float64 `json:"fraction"`
	Label        string  `json:"label"`
	Combinations uint64  `json:"combinations"`
}

// StreamFrame is one server-to-client WebSocket message. Clients may send
// {"type":"cancel"} to abandon the running search.
type StreamFrame struct {
	Type     string             `json:"type"`
	Progress *ProgressEvent     `json:"progress,omitempty"`
	Result   *ReconcileResponse `json:"result,omitempty"`
	Error    *ErrorBody         `json:"error,omitempty"`
}
