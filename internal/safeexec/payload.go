package safeexec

import (
	"encoding/json"
	"math"
	"time"
)

const (
	// NoResultPlaceholder replaces an absent result in a success payload.
	NoResultPlaceholder = "No result data"

	successMessageTemplateConstant = "Function %s executed successfully"
	microsecondsPerSecondConstant  = 1e6
)

// Failure describes an error captured by the wrapper.
type Failure struct {
	Kind    string `json:"type" yaml:"type"`
	Message string `json:"message" yaml:"message"`
	File    string `json:"file,omitempty" yaml:"file,omitempty"`
	Line    int    `json:"line,omitempty" yaml:"line,omitempty"`
}

// Payload is the uniform outcome of a wrapped call.
type Payload struct {
	Status      bool     `json:"status" yaml:"status"`
	Message     string   `json:"message,omitempty" yaml:"message,omitempty"`
	Result      any      `json:"result,omitempty" yaml:"result,omitempty"`
	Error       *Failure `json:"error,omitempty" yaml:"error,omitempty"`
	ElapsedTime float64  `json:"elapsed_time" yaml:"elapsed_time"`
}

// Succeeded reports whether the payload represents a successful call.
func (payload Payload) Succeeded() bool {
	return payload.Status
}

// Reply carries the payload of a wrapped call and, in JSON mode, its encoding.
type Reply struct {
	Payload Payload
	JSON    string
}

// IsJSON reports whether the reply was produced in JSON mode.
func (reply Reply) IsJSON() bool {
	return len(reply.JSON) > 0
}

// String returns the JSON encoding in JSON mode and an empty string otherwise.
func (reply Reply) String() string {
	return reply.JSON
}

func elapsedSeconds(elapsed time.Duration) float64 {
	return math.Round(elapsed.Seconds()*microsecondsPerSecondConstant) / microsecondsPerSecondConstant
}

func encodePayload(payload Payload) (string, error) {
	encoded, marshalError := json.Marshal(payload)
	if marshalError != nil {
		return "", marshalError
	}
	return string(encoded), nil
}
