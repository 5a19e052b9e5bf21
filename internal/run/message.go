package run

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Step names carried in queue messages. Each step triggers exactly one phase
// executor on the consuming side.
const (
	StepGenerateContent = "generate_content"
	StepGenerateImage   = "generate_image"
	StepPublish         = "publish"
)

// QueueMessage is the envelope passed between phases in the chained-queue
// driver. It carries identifiers and accumulated result references only;
// all other state lives in the run state store.
type QueueMessage struct {
	RunTraceID string `json:"runTraceId"`
	BrandID    string `json:"brandId"`
	PostPlanID string `json:"postPlanId"`
	Step       string `json:"step"`
	Agent      string `json:"agent,omitempty"`
	ContentRef string `json:"contentRef,omitempty"`
	MediaRef   string `json:"mediaRef,omitempty"`
}

// Validate checks the fields every consumer requires.
func (m QueueMessage) Validate() error {
	if strings.TrimSpace(m.RunTraceID) == "" {
		return errors.New("queue message: runTraceId required")
	}
	if strings.TrimSpace(m.BrandID) == "" {
		return errors.New("queue message: brandId required")
	}
	if strings.TrimSpace(m.PostPlanID) == "" {
		return errors.New("queue message: postPlanId required")
	}
	if strings.TrimSpace(m.Step) == "" {
		return errors.New("queue message: step required")
	}
	return nil
}

// Encode serializes the message for transport.
func (m QueueMessage) Encode() ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode queue message: %w", err)
	}
	return payload, nil
}

// DecodeMessage parses and validates a queue message payload.
func DecodeMessage(payload []byte) (QueueMessage, error) {
	var msg QueueMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return QueueMessage{}, fmt.Errorf("decode queue message: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return QueueMessage{}, err
	}
	return msg, nil
}
