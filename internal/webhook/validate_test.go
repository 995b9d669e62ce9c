package webhook

import (
	"strings"
	"testing"

	"vaultindex/internal/model"
)

func validPayload() model.WebhookPayload {
	return model.WebhookPayload{
		TransactionHash:         "0x" + strings.Repeat("11", 32),
		LogIndex:                0,
		ContractAddress:         "0x" + strings.Repeat("ab", 20),
		BlockchainNetworkID:     1,
		DecodedParametersNames:  []string{"commitment", "leafIndex"},
		DecodedParametersValues: []any{"0x" + strings.Repeat("aa", 32), "0"},
	}
}

func TestValidateAcceptsWellFormedPayload(t *testing.T) {
	v, err := NewValidator(nil)
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	if errs := v.Validate(validPayload()); len(errs) != 0 {
		t.Fatalf("unexpected validation errors: %v", errs)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	v, err := NewValidator(nil)
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}

	p := validPayload()
	p.TransactionHash = "0x123"
	p.ContractAddress = "not-an-address"
	p.DecodedParametersValues = p.DecodedParametersValues[:1]
	p.BlockHash = "0xzz"

	errs := v.Validate(p)
	if len(errs) < 4 {
		t.Fatalf("expected at least 4 collected errors, got %d: %v", len(errs), errs)
	}

	fields := make(map[string]bool)
	for _, fe := range errs {
		fields[fe.Field] = true
	}
	for _, want := range []string{"transaction_hash", "contract_address", "decoded_parameters", "block_hash"} {
		if !fields[want] {
			t.Fatalf("missing error for field %s in %v", want, errs)
		}
	}
}

func TestValidateRejectsEmptyParameterName(t *testing.T) {
	v, _ := NewValidator(nil)
	p := validPayload()
	p.DecodedParametersNames = []string{"commitment", " "}

	errs := v.Validate(p)
	if len(errs) != 1 || errs[0].Field != "decoded_parameters_names" {
		t.Fatalf("expected a single parameter-name error, got %v", errs)
	}
}

func TestValidateContractAllowlist(t *testing.T) {
	address := "0x" + strings.Repeat("ab", 20)
	v, err := NewValidator([]string{address})
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}

	p := validPayload()
	if errs := v.Validate(p); len(errs) != 0 {
		t.Fatalf("allowlisted contract rejected: %v", errs)
	}

	p.ContractAddress = "0x" + strings.Repeat("cd", 20)
	errs := v.Validate(p)
	if len(errs) != 1 || errs[0].Field != "contract_address" {
		t.Fatalf("expected allowlist rejection, got %v", errs)
	}
}

func TestNewValidatorRejectsBadAllowlist(t *testing.T) {
	if _, err := NewValidator([]string{"nope"}); err == nil {
		t.Fatalf("expected error for malformed allowlist entry")
	}
}

func TestValidateOptionalEventSignature(t *testing.T) {
	v, _ := NewValidator(nil)
	p := validPayload()
	p.EventSignature = "0x" + strings.Repeat("ee", 32)
	if errs := v.Validate(p); len(errs) != 0 {
		t.Fatalf("valid event signature rejected: %v", errs)
	}

	p.EventSignature = "0xshort"
	if errs := v.Validate(p); len(errs) != 1 {
		t.Fatalf("expected event signature error, got %v", errs)
	}
}
