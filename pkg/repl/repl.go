// Package repl implements the small command dispatcher behind cmd/hashdb:
// a trigger word at the start of a line selects a handler, and the whole
// line, trigger included, is passed through verbatim as its payload.
package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
)

// ReplCommand handles one payload line and returns the text to print.
type ReplCommand func(string, *REPLConfig) (output string, err error)

const (
	// TriggerHelpMetacommand prints every registered command's help string.
	TriggerHelpMetacommand = ".help"

	// ErrorPrependStr is prepended to any error before it reaches the output writer.
	ErrorPrependStr = "ERROR: "
)

var (
	// ErrOverlappingCommands is returned by CombineRepls on a duplicate trigger.
	ErrOverlappingCommands = errors.New("found overlapping")

	// ErrCommandNotFound is returned when a line's trigger matches no command.
	ErrCommandNotFound = errors.New("command not found")
)

// REPL holds one session's registered commands and their help text.
type REPL struct {
	commands map[string]ReplCommand
	help     map[string]string
}

// REPLConfig is threaded through every command invocation in a session.
type REPLConfig struct {
	clientID uuid.UUID
}

// GetAddr returns the session's client id.
func (replConfig *REPLConfig) GetAddr() uuid.UUID {
	return replConfig.clientID
}

// NewRepl constructs an empty REPL.
func NewRepl() *REPL {
	return &REPL{make(map[string]ReplCommand), make(map[string]string)}
}

func contains(s []string, str string) bool {
	for _, v := range s {
		if v == str {
			return true
		}
	}
	return false
}

// CombineRepls merges several REPLs' command sets into one, failing if any
// two share a trigger.
func CombineRepls(repls []*REPL) (*REPL, error) {
	if len(repls) == 0 {
		return NewRepl(), nil
	}
	merged := NewRepl()
	var seen []string
	for _, r := range repls {
		for trigger, action := range r.commands {
			if contains(seen, trigger) {
				return nil, ErrOverlappingCommands
			}
			merged.AddCommand(trigger, action, r.help[trigger])
			seen = append(seen, trigger)
		}
	}
	return merged, nil
}

// GetCommands returns the REPL's trigger-to-handler map.
func (r *REPL) GetCommands() map[string]ReplCommand {
	return r.commands
}

// GetHelp returns the REPL's trigger-to-help-string map.
func (r *REPL) GetHelp() map[string]string {
	return r.help
}

// AddCommand registers action under trigger, overwriting any prior command
// with the same trigger. Silently refuses to shadow the help metacommand.
func (r *REPL) AddCommand(trigger string, action ReplCommand, help string) {
	if trigger == TriggerHelpMetacommand {
		return
	}
	r.commands[trigger] = action
	r.help[trigger] = help
}

// HelpString renders every registered command's help line.
func (r *REPL) HelpString() string {
	var sb strings.Builder
	for trigger, help := range r.help {
		sb.WriteString(fmt.Sprintf("%s: %s\n", trigger, help))
	}
	return sb.String()
}

// Run writes the welcome banner, then reads lines from input until EOF,
// dispatching each to its command and writing the result to output.
// Defaults input/output to stdin/stdout when nil.
func (r *REPL) Run(clientID uuid.UUID, prompt string, input io.Reader, output io.Writer) {
	if input == nil {
		input = os.Stdin
	}
	if output == nil {
		output = os.Stdout
	}

	scanner := bufio.NewScanner(input)
	replConfig := &REPLConfig{clientID: clientID}
	fmt.Fprintln(output, "Welcome to the hashdb REPL! Type '.help' to see available commands.")
	io.WriteString(output, prompt)

	for scanner.Scan() {
		payload := scanner.Text()
		fields := strings.Fields(payload)
		if len(fields) == 0 {
			io.WriteString(output, prompt)
			continue
		}
		trigger := fields[0]

		if trigger == TriggerHelpMetacommand {
			io.WriteString(output, r.HelpString())
			io.WriteString(output, prompt)
			continue
		}

		if command, exists := r.commands[trigger]; exists {
			result, err := command(payload, replConfig)
			if err != nil {
				fmt.Fprintf(output, "%s%s\n", ErrorPrependStr, err)
			} else {
				if len(result) != 0 && !strings.HasSuffix(result, "\n") {
					result += "\n"
				}
				io.WriteString(output, result)
			}
		} else {
			fmt.Fprintf(output, "%s%s\n", ErrorPrependStr, ErrCommandNotFound)
		}
		io.WriteString(output, prompt)
	}
	io.WriteString(output, "\n")
}
