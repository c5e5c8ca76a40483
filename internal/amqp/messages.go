package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Completion statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// AnalysisRequestMessage asks a worker to analyze a dataset and write reports.
type AnalysisRequestMessage struct {
	RunID         string    `json:"run_id"`
	DatasetPath   string    `json:"dataset_path"`
	Formats       []string  `json:"formats"`
	UseLLM        bool      `json:"use_llm"`
	LicensingOnly bool      `json:"licensing_only"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewAnalysisRequestMessage creates a request with a fresh run ID.
func NewAnalysisRequestMessage(datasetPath string, formats []string, useLLM bool) *AnalysisRequestMessage {
	return &AnalysisRequestMessage{
		RunID:         uuid.NewString(),
		DatasetPath:   datasetPath,
		Formats:       formats,
		UseLLM:        useLLM,
		LicensingOnly: true,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *AnalysisRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AnalysisRequestMessageFromJSON decodes a request. A request without a
// run ID is rejected.
func AnalysisRequestMessageFromJSON(data []byte) (*AnalysisRequestMessage, error) {
	var msg AnalysisRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.RunID == "" {
		return nil, errors.New("analysis request without run_id")
	}
	return &msg, nil
}

// AnalysisCompletedMessage reports the outcome of a run.
type AnalysisCompletedMessage struct {
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	Reports    []string  `json:"reports,omitempty"`
	TotalSpend float64   `json:"total_spend"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewAnalysisCompletedMessage builds a success message, or a failure
// message when runErr is non-nil.
func NewAnalysisCompletedMessage(runID string, reports []string, totalSpend float64, runErr error) *AnalysisCompletedMessage {
	m := &AnalysisCompletedMessage{
		RunID:      runID,
		Status:     StatusSucceeded,
		Reports:    reports,
		TotalSpend: totalSpend,
		Timestamp:  time.Now(),
	}
	if runErr != nil {
		m.Status = StatusFailed
		m.Error = runErr.Error()
	}
	return m
}

// AnalysisCompletedMessageFromJSON decodes a completion message.
func AnalysisCompletedMessageFromJSON(data []byte) (*AnalysisCompletedMessage, error) {
	var msg AnalysisCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
