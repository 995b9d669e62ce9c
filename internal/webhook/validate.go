package webhook

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"vaultindex/internal/model"
)

// Validator performs structural checks on inbound payloads. Problems are
// collected, not fail-fast, so the caller can report every field at once. A
// payload that fails validation never reaches the router.
type Validator struct {
	// allowed restricts accepted contract addresses; empty means any.
	allowed map[string]struct{}
}

func NewValidator(allowedContracts []string) (*Validator, error) {
	allowed := make(map[string]struct{}, len(allowedContracts))
	for _, input := range allowedContracts {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid allowlisted address: %s", input)
		}
		allowed[strings.ToLower(common.HexToAddress(input).Hex())] = struct{}{}
	}
	return &Validator{allowed: allowed}, nil
}

// Validate returns every structural problem found, or nil for a well-formed
// payload.
func (v *Validator) Validate(p model.WebhookPayload) model.ValidationErrors {
	var errs model.ValidationErrors

	if !isHexHash(p.TransactionHash) {
		errs = append(errs, model.FieldError{
			Field:   "transaction_hash",
			Message: fmt.Sprintf("must be a 0x-prefixed 64-char hex hash, got %q", p.TransactionHash),
		})
	}

	if !common.IsHexAddress(p.ContractAddress) || len(p.ContractAddress) != 42 {
		errs = append(errs, model.FieldError{
			Field:   "contract_address",
			Message: fmt.Sprintf("must be a 0x-prefixed 40-char hex address, got %q", p.ContractAddress),
		})
	} else if len(v.allowed) > 0 {
		normalized := strings.ToLower(common.HexToAddress(p.ContractAddress).Hex())
		if _, ok := v.allowed[normalized]; !ok {
			errs = append(errs, model.FieldError{
				Field:   "contract_address",
				Message: fmt.Sprintf("contract %s is not an indexed vault", normalized),
			})
		}
	}

	if len(p.DecodedParametersNames) != len(p.DecodedParametersValues) {
		errs = append(errs, model.FieldError{
			Field: "decoded_parameters",
			Message: fmt.Sprintf("names and values length mismatch: %d != %d",
				len(p.DecodedParametersNames), len(p.DecodedParametersValues)),
		})
	}
	for i, name := range p.DecodedParametersNames {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, model.FieldError{
				Field:   "decoded_parameters_names",
				Message: fmt.Sprintf("empty parameter name at position %d", i),
			})
		}
	}

	if p.BlockHash != "" && !isHexHash(p.BlockHash) {
		errs = append(errs, model.FieldError{
			Field:   "block_hash",
			Message: fmt.Sprintf("must be a 0x-prefixed 64-char hex hash, got %q", p.BlockHash),
		})
	}
	if p.EventSignature != "" && !isHexHash(p.EventSignature) {
		errs = append(errs, model.FieldError{
			Field:   "event_signature",
			Message: fmt.Sprintf("must be a 0x-prefixed 64-char hex hash, got %q", p.EventSignature),
		})
	}

	return errs
}

// isHexHash reports whether s is a 0x-prefixed 32-byte hex string.
func isHexHash(s string) bool {
	if len(s) != 66 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, c := range s[2:] {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
