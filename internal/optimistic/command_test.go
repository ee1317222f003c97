package optimistic

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/matheus3301/chatline/internal/metrics"
)

type counter struct{ value int }

func TestRunReconcilesOnSuccess(t *testing.T) {
	state := &counter{}
	r := NewRunner(nil, nil)

	got, err := Run(context.Background(), r, Command[int]{
		Name: "inc",
		Apply: func() func() {
			prev := state.value
			state.value = -1
			return func() { state.value = prev }
		},
		Request:   func(context.Context) (int, error) { return 7, nil },
		Reconcile: func(v int) { state.value = v },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != 7 || state.value != 7 {
		t.Errorf("got=%d state=%d, want 7", got, state.value)
	}
}

func TestRunRollsBackOnFailure(t *testing.T) {
	state := &counter{value: 3}
	want := errors.New("boom")
	m := metrics.New()
	r := NewRunner(m, nil)

	_, err := Run(context.Background(), r, Command[int]{
		Name: "inc",
		Apply: func() func() {
			prev := state.value
			state.value = 99
			return func() { state.value = prev }
		},
		Request:   func(context.Context) (int, error) { return 0, want },
		Reconcile: func(int) { t.Error("Reconcile called on failure") },
	})
	if !errors.Is(err, want) {
		t.Fatalf("err = %v", err)
	}
	if state.value != 3 {
		t.Errorf("state = %d, want rollback to 3", state.value)
	}
	expected := `
# HELP chatline_optimistic_rollbacks_total Optimistic mutations reverted after a failed request.
# TYPE chatline_optimistic_rollbacks_total counter
chatline_optimistic_rollbacks_total{command="inc"} 1
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "chatline_optimistic_rollbacks_total"); err != nil {
		t.Error(err)
	}
}

func TestRunWithoutApply(t *testing.T) {
	r := NewRunner(nil, nil)
	_, err := Run(context.Background(), r, Command[struct{}]{
		Name:    "noop",
		Request: func(context.Context) (struct{}, error) { return struct{}{}, errors.New("x") },
	})
	if err == nil {
		t.Fatal("expected error")
	}
}
