package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/harvester-hq/harvester/internal/crawler"
)

// Envelope is the JSON wire format carried by the work queue for one
// asynchronously dispatched URL. JSON keeps the payload interoperable
// with out-of-process consumers in any language.
type Envelope struct {
	SourceID int64            `json:"source_id"`
	Metadata crawler.Metadata `json:"metadata"`
	URL      string           `json:"url"`
}

// Marshal encodes the envelope as JSON.
func (e Envelope) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return data, nil
}

// DecodeEnvelope parses and validates a queue payload.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.SourceID <= 0 {
		return Envelope{}, fmt.Errorf("envelope has no source id")
	}
	if env.URL == "" {
		return Envelope{}, fmt.Errorf("envelope has no url")
	}
	return env, nil
}
