package model

import (
	"encoding/json"
)

// WebhookPayload is the generic decoded-event envelope posted by the chain
// listener. Parameter names and values are parallel arrays; the value types
// depend on the event ABI, so they stay untyped until the router classifies
// the event.
type WebhookPayload struct {
	TransactionHash         string   `json:"transaction_hash"`
	LogIndex                uint64   `json:"log_index"`
	ContractAddress         string   `json:"contract_address"`
	BlockchainNetworkID     uint64   `json:"blockchain_network_id"`
	DecodedParametersNames  []string `json:"decoded_parameters_names"`
	DecodedParametersValues []any    `json:"decoded_parameters_values"`
	BlockNumber             *uint64  `json:"block_number,omitempty"`
	BlockHash               string   `json:"block_hash,omitempty"`
	EventSignature          string   `json:"event_signature,omitempty"`
}

// MarshalJSON ensures WebhookPayload is encoded with stable field names.
func (p WebhookPayload) MarshalJSON() ([]byte, error) {
	type Alias WebhookPayload
	return json.Marshal(Alias(p))
}

// UnmarshalJSON decodes a WebhookPayload from JSON.
func (p *WebhookPayload) UnmarshalJSON(data []byte) error {
	type Alias WebhookPayload
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = WebhookPayload(a)
	return nil
}
