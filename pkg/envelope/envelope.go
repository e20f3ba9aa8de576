// Package envelope assembles operation results into the response shape the
// eMISTR desktop client consumes: {status, timestamp, action, data, message}.
// Summaries are computed from the already anonymized data only.
package envelope

import (
	"math"
	"time"

	"github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource"
	"github.com/ekaya-inc/emistr-mcp/pkg/apperrors"
	"github.com/ekaya-inc/emistr-mcp/pkg/jsonutil"
	"github.com/ekaya-inc/emistr-mcp/pkg/models"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// MsgProcessingFailed is shown for every failure that is not the caller's
// fault. The cause is only logged.
const MsgProcessingFailed = "Chyba při zpracování"

// Envelope is the uniform result of every operation.
type Envelope struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Action    Action `json:"action"`
	Data      any    `json:"data"`
	Message   string `json:"message"`
}

// Action tells the client which window to open.
type Action struct {
	Type              string         `json:"type,omitempty"`
	Window            string         `json:"window,omitempty"`
	ItemID            any            `json:"item_id,omitempty"`
	Tabs              []string       `json:"tabs,omitempty"`
	Filters           map[string]any `json:"filters,omitempty"`
	SearchTerm        string         `json:"search_term,omitempty"`
	HighlightLowStock *bool          `json:"highlight_low_stock,omitempty"`
	Period            *models.Period `json:"period,omitempty"`
	Message           string         `json:"message,omitempty"`
}

// ColumnInfo describes one grid column of a list window.
type ColumnInfo struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

type Metadata struct {
	FiltersApplied map[string]any `json:"filters_applied,omitempty"`
	Columns        []ColumnInfo   `json:"columns"`
}

// Builder creates envelopes. The zero value is not usable; use NewBuilder.
type Builder struct {
	now func() time.Time
}

func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// NewBuilderWithClock is used by tests that compare timestamps.
func NewBuilderWithClock(now func() time.Time) *Builder {
	return &Builder{now: now}
}

func (b *Builder) success(action Action, data any, message string) Envelope {
	return Envelope{
		Status:    StatusSuccess,
		Timestamp: b.now().Format(time.RFC3339),
		Action:    action,
		Data:      data,
		Message:   message,
	}
}

// Error returns an error envelope showing message to the user.
func (b *Builder) Error(message string) Envelope {
	return Envelope{
		Status:    StatusError,
		Timestamp: b.now().Format(time.RFC3339),
		Action:    Action{Type: "show_message", Message: message},
		Data:      struct{}{},
		Message:   message,
	}
}

// Failure converts a pipeline error into an error envelope. Validation and
// not-found errors keep their message; everything else is replaced by the
// generic one.
func (b *Builder) Failure(err error) Envelope {
	if msg := apperrors.UserMessage(err); msg != "" {
		return b.Error(msg)
	}
	return b.Error(MsgProcessingFailed)
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// percent returns part/whole*100, or 0 when whole is not positive.
func percent(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return Round2(part / whole * 100)
}

func num(row datasource.Row, key string) float64 {
	return jsonutil.Number(row.Value(key))
}

func rows(r []datasource.Row) []datasource.Row {
	if r == nil {
		return []datasource.Row{}
	}
	return r
}
