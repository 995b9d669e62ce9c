package webhook

import (
	"reflect"
	"strings"
	"testing"

	"vaultindex/internal/model"
)

func depositParams() map[string]any {
	return map[string]any{
		"commitment": "0x" + strings.Repeat("aa", 32),
		"leafIndex":  "0",
	}
}

func actionParams() map[string]any {
	return map[string]any{
		"nullifierHash":    "0x" + strings.Repeat("bb", 32),
		"changeCommitment": "0x" + strings.Repeat("cc", 32),
		"changeIndex":      "1",
	}
}

func TestDetermineEventKind(t *testing.T) {
	cases := []struct {
		name   string
		params map[string]any
		want   model.EventKind
	}{
		{"deposit", depositParams(), model.EventDeposit},
		{"action", actionParams(), model.EventActionExecuted},
		{"empty", map[string]any{}, model.EventUnknown},
		{"partial deposit", map[string]any{"commitment": "0xaa"}, model.EventUnknown},
	}
	for _, c := range cases {
		if got := DetermineEventKind(c.params); got != c.want {
			t.Fatalf("%s: classified as %s, want %s", c.name, got, c.want)
		}
	}
}

// A map that satisfies both the deposit and the action-executed field sets
// is a spend: the action rule wins by priority, not by incidental order.
func TestRouterPriorityActionOverDeposit(t *testing.T) {
	params := actionParams()
	for k, v := range depositParams() {
		params[k] = v
	}
	if got := DetermineEventKind(params); got != model.EventActionExecuted {
		t.Fatalf("combined field sets classified as %s, want %s", got, model.EventActionExecuted)
	}
}

func TestRouterPriorityERC20Superset(t *testing.T) {
	params := actionParams()
	params["token"] = "0x" + strings.Repeat("dd", 20)
	params["recipient"] = "0x" + strings.Repeat("ee", 20)
	if got := DetermineEventKind(params); got != model.EventERC20Withdrawal {
		t.Fatalf("superset classified as %s, want %s", got, model.EventERC20Withdrawal)
	}

	// Only one of the extra fields present: falls back to action-executed.
	delete(params, "recipient")
	if got := DetermineEventKind(params); got != model.EventActionExecuted {
		t.Fatalf("partial superset classified as %s, want %s", got, model.EventActionExecuted)
	}
}

func TestValidateEventKind(t *testing.T) {
	missing := ValidateEventKind(map[string]any{"nullifierHash": "0xbb"}, model.EventActionExecuted)
	want := []string{"changeCommitment", "changeIndex"}
	if !reflect.DeepEqual(missing, want) {
		t.Fatalf("missing fields %v, want %v", missing, want)
	}

	if missing := ValidateEventKind(actionParams(), model.EventActionExecuted); len(missing) != 0 {
		t.Fatalf("expected no missing fields, got %v", missing)
	}

	if missing := ValidateEventKind(map[string]any{}, model.EventUnknown); missing != nil {
		t.Fatalf("unknown kind must report nothing, got %v", missing)
	}
}

func TestBuildEventDeposit(t *testing.T) {
	ev, err := BuildEvent(depositParams())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if ev.Kind != model.EventDeposit || ev.Deposit == nil || ev.Action != nil {
		t.Fatalf("malformed union: %+v", ev)
	}
	if ev.Deposit.LeafIndex != 0 || ev.Deposit.Commitment != "0x"+strings.Repeat("aa", 32) {
		t.Fatalf("deposit fields wrong: %+v", ev.Deposit)
	}
}

// A deposit with a bare nullifierHash stays a deposit and carries the
// nullifier for registration.
func TestBuildEventDepositWithNullifier(t *testing.T) {
	params := depositParams()
	params["nullifierHash"] = "0x" + strings.Repeat("bb", 32)

	if got := DetermineEventKind(params); got != model.EventDeposit {
		t.Fatalf("classified as %s, want %s", got, model.EventDeposit)
	}
	ev, err := BuildEvent(params)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if ev.Deposit == nil || ev.Deposit.NullifierHash != "0x"+strings.Repeat("bb", 32) {
		t.Fatalf("nullifier not carried: %+v", ev.Deposit)
	}
}

func TestBuildEventERC20(t *testing.T) {
	params := actionParams()
	params["token"] = "0xtok"
	params["recipient"] = "0xrcpt"
	ev, err := BuildEvent(params)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if ev.Kind != model.EventERC20Withdrawal || ev.Action == nil {
		t.Fatalf("malformed union: %+v", ev)
	}
	if ev.Action.Token != "0xtok" || ev.Action.Recipient != "0xrcpt" || ev.Action.ChangeIndex != 1 {
		t.Fatalf("action fields wrong: %+v", ev.Action)
	}
}

func TestBuildEventBadNumeric(t *testing.T) {
	params := depositParams()
	params["leafIndex"] = "not-a-number"
	if _, err := BuildEvent(params); err == nil {
		t.Fatalf("expected numeric parse error")
	}
}

func TestBuildEventUnknown(t *testing.T) {
	ev, err := BuildEvent(map[string]any{"something": "else"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if ev.Kind != model.EventUnknown || ev.Deposit != nil || ev.Action != nil {
		t.Fatalf("unknown union must be empty: %+v", ev)
	}
}

func TestDescribeEvent(t *testing.T) {
	ev, _ := BuildEvent(depositParams())
	if !strings.Contains(DescribeEvent(ev), "deposit") {
		t.Fatalf("describe missing kind: %s", DescribeEvent(ev))
	}
	if DescribeEvent(model.Event{Kind: model.EventUnknown}) != "unknown event" {
		t.Fatalf("unknown description wrong")
	}
}
