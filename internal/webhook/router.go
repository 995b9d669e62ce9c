package webhook

import (
	"fmt"
	"sort"
	"strings"

	"vaultindex/internal/model"
)

// Required field sets per event kind. ERC20 withdrawal is a strict superset
// of action-executed and must be tested first.
var (
	depositFields    = []string{"commitment", "leafIndex"}
	actionFields     = []string{"nullifierHash", "changeCommitment", "changeIndex"}
	erc20ExtraFields = []string{"token", "recipient"}
)

// DetermineEventKind classifies a parameter map by field presence. Priority:
// ERC20 withdrawal before action-executed (the more specific superset), and
// action-executed before deposit when a map satisfies both: a map carrying
// the full spend field set is a spend even when deposit-shaped fields ride
// along. A deposit may carry a bare nullifierHash without being a spend;
// that is the optional registration of the note's future spend key.
func DetermineEventKind(params map[string]any) model.EventKind {
	if hasAll(params, actionFields) {
		if hasAll(params, erc20ExtraFields) {
			return model.EventERC20Withdrawal
		}
		return model.EventActionExecuted
	}
	if hasAll(params, depositFields) {
		return model.EventDeposit
	}
	return model.EventUnknown
}

// ValidateEventKind reports the fields missing for a presumed kind, in
// stable order. Empty for a satisfied or unknown kind.
func ValidateEventKind(params map[string]any, kind model.EventKind) []string {
	var required []string
	switch kind {
	case model.EventDeposit:
		required = depositFields
	case model.EventActionExecuted:
		required = actionFields
	case model.EventERC20Withdrawal:
		required = append(append([]string{}, actionFields...), erc20ExtraFields...)
	default:
		return nil
	}

	var missing []string
	for _, field := range required {
		if _, ok := params[field]; !ok {
			missing = append(missing, field)
		}
	}
	sort.Strings(missing)
	return missing
}

// BuildEvent constructs the typed event for a classified parameter map so
// downstream handlers stay statically checked. Numeric fields that fail to
// parse make the whole event unroutable.
func BuildEvent(params map[string]any) (model.Event, error) {
	kind := DetermineEventKind(params)
	switch kind {
	case model.EventDeposit:
		leafIndex, err := paramUint(params["leafIndex"])
		if err != nil {
			return model.Event{}, fmt.Errorf("parse leafIndex: %w", err)
		}
		deposit := &model.DepositEvent{
			Commitment: paramString(params["commitment"]),
			LeafIndex:  leafIndex,
		}
		if v, ok := params["nullifierHash"]; ok {
			deposit.NullifierHash = paramString(v)
		}
		return model.Event{Kind: kind, Deposit: deposit}, nil

	case model.EventActionExecuted, model.EventERC20Withdrawal:
		changeIndex, err := paramUint(params["changeIndex"])
		if err != nil {
			return model.Event{}, fmt.Errorf("parse changeIndex: %w", err)
		}
		action := &model.ActionExecutedEvent{
			NullifierHash:    paramString(params["nullifierHash"]),
			ChangeCommitment: paramString(params["changeCommitment"]),
			ChangeIndex:      changeIndex,
		}
		if kind == model.EventERC20Withdrawal {
			action.Token = paramString(params["token"])
			action.Recipient = paramString(params["recipient"])
		}
		return model.Event{Kind: kind, Action: action}, nil

	default:
		return model.Event{Kind: model.EventUnknown}, nil
	}
}

// DescribeEvent renders a one-line summary for logs.
func DescribeEvent(ev model.Event) string {
	switch ev.Kind {
	case model.EventDeposit:
		return fmt.Sprintf("deposit commitment=%s leafIndex=%d", ev.Deposit.Commitment, ev.Deposit.LeafIndex)
	case model.EventActionExecuted:
		return fmt.Sprintf("action nullifier=%s changeIndex=%d", ev.Action.NullifierHash, ev.Action.ChangeIndex)
	case model.EventERC20Withdrawal:
		return fmt.Sprintf("erc20 withdrawal nullifier=%s token=%s recipient=%s changeIndex=%d",
			ev.Action.NullifierHash, ev.Action.Token, ev.Action.Recipient, ev.Action.ChangeIndex)
	default:
		return "unknown event"
	}
}

func hasAll(params map[string]any, fields []string) bool {
	for _, field := range fields {
		if _, ok := params[field]; !ok {
			return false
		}
	}
	return true
}

// FieldSummary lists the parameter names present, for diagnostics.
func FieldSummary(params map[string]any) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
