package repl

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func noop(string, *REPLConfig) (string, error) { return "", nil }

func TestNewReplIsEmpty(t *testing.T) {
	t.Parallel()
	r := NewRepl()
	if len(r.GetCommands()) != 0 {
		t.Fatal("new REPL should have no commands")
	}
	if len(r.GetHelp()) != 0 {
		t.Fatal("new REPL should have no help strings")
	}
}

func TestAddCommand(t *testing.T) {
	t.Parallel()
	r := NewRepl()
	r.AddCommand("insert", noop, "insert help")
	if _, ok := r.GetCommands()["insert"]; !ok {
		t.Fatal("AddCommand did not register the command")
	}
	if help := r.GetHelp()["insert"]; help != "insert help" {
		t.Fatalf("GetHelp()[insert] = %q, want %q", help, "insert help")
	}
}

func TestAddCommandOverwrites(t *testing.T) {
	t.Parallel()
	r := NewRepl()
	r.AddCommand("insert", noop, "first")
	r.AddCommand("insert", noop, "second")
	if len(r.GetCommands()) != 1 {
		t.Fatalf("expected one command after re-registering the same trigger, got %d", len(r.GetCommands()))
	}
	if help := r.GetHelp()["insert"]; help != "second" {
		t.Fatalf("GetHelp()[insert] = %q, want %q (overwritten)", help, "second")
	}
}

func TestAddCommandRefusesHelpMetacommand(t *testing.T) {
	t.Parallel()
	r := NewRepl()
	r.AddCommand(TriggerHelpMetacommand, noop, "should not register")
	if _, ok := r.GetCommands()[TriggerHelpMetacommand]; ok {
		t.Fatal("AddCommand registered a handler for the help metacommand")
	}
}

func TestCombineReplsEmpty(t *testing.T) {
	t.Parallel()
	r, err := CombineRepls(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.GetCommands()) != 0 {
		t.Fatal("combining zero REPLs should yield an empty REPL")
	}
}

func TestCombineReplsMerges(t *testing.T) {
	t.Parallel()
	a := NewRepl()
	a.AddCommand("insert", noop, "insert help")
	b := NewRepl()
	b.AddCommand("get", noop, "get help")

	merged, err := CombineRepls([]*REPL{a, b})
	if err != nil {
		t.Fatal(err)
	}
	for _, trigger := range []string{"insert", "get"} {
		if _, ok := merged.GetCommands()[trigger]; !ok {
			t.Fatalf("merged REPL missing command %q", trigger)
		}
	}
}

func TestCombineReplsRejectsOverlap(t *testing.T) {
	t.Parallel()
	a := NewRepl()
	a.AddCommand("insert", noop, "a")
	b := NewRepl()
	b.AddCommand("insert", noop, "b")

	if _, err := CombineRepls([]*REPL{a, b}); err != ErrOverlappingCommands {
		t.Fatalf("CombineRepls error = %v, want %v", err, ErrOverlappingCommands)
	}
}

func TestRunDispatchesAndPrintsHelp(t *testing.T) {
	t.Parallel()
	r := NewRepl()
	r.AddCommand("echo", func(payload string, _ *REPLConfig) (string, error) {
		return payload, nil
	}, "echoes its payload")

	input := strings.NewReader("echo hello world\n.help\nbogus\n")
	var output strings.Builder
	r.Run(uuid.New(), "hashdb> ", input, &output)

	got := output.String()
	if !strings.Contains(got, "echo hello world") {
		t.Fatalf("output missing echoed payload: %q", got)
	}
	if !strings.Contains(got, "echoes its payload") {
		t.Fatalf("output missing help text: %q", got)
	}
	if !strings.Contains(got, ErrorPrependStr+ErrCommandNotFound.Error()) {
		t.Fatalf("output missing command-not-found error: %q", got)
	}
}

func TestRunReportsCommandError(t *testing.T) {
	t.Parallel()
	r := NewRepl()
	boom := strings.Repeat("x", 1) // distinct sentinel text
	r.AddCommand("fail", func(string, *REPLConfig) (string, error) {
		return "", errFailure{boom}
	}, "always fails")

	input := strings.NewReader("fail\n")
	var output strings.Builder
	r.Run(uuid.New(), "hashdb> ", input, &output)

	if !strings.Contains(output.String(), ErrorPrependStr) {
		t.Fatalf("output missing error prefix: %q", output.String())
	}
}

type errFailure struct{ msg string }

func (e errFailure) Error() string { return e.msg }
