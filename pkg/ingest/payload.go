package ingest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidSubmission marks payloads rejected before they reach classification or storage.
var ErrInvalidSubmission = errors.New("invalid submission")

// Submission is the wire shape of a node report.
type Submission struct {
	MaxObservedBlockHeight *uint64 `json:"max_observed_block_height" validate:"required,max=9223372036854775807"`
	CommitHash             string  `json:"commit_hash" validate:"required,max=128"`
	ChainID                string  `json:"chain_id" validate:"required,max=256"`
	PeerID                 string  `json:"peer_id" validate:"required,max=256"`
	PeerCount              *uint64 `json:"peer_count" validate:"required,max=9223372036854775807"`
	Timestamp              string  `json:"timestamp" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	BlockProducerPublicKey *string `json:"block_producer_public_key,omitempty" validate:"omitempty,max=256"`
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message *struct {
		Data string `json:"data"`
	} `json:"message"`
}

// Decode accepts a flat report, a report wrapped under "data", or a push-messaging envelope
// {"message": {"data": "<base64>"}} whose decoded payload is either of the first two.
func Decode(body []byte) (*Submission, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidSubmission)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}

	if env.Message != nil {
		decoded, err := decodeBase64(env.Message.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: message data: %v", ErrInvalidSubmission, err)
		}
		return decodeReport(decoded)
	}
	return decodeReport(body)
}

// decodeReport unwraps a single optional "data" level and decodes the report.
func decodeReport(body []byte) (*Submission, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}
	if isObject(env.Data) {
		body = env.Data
	}

	var sub Submission
	if err := json.Unmarshal(body, &sub); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}
	return &sub, nil
}

func decodeBase64(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("empty")
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
