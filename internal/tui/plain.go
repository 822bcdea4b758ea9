package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/rocket-approval/mortgage-agent/internal/flow"
)

// SecretReader reads one line without echoing it.
type SecretReader func() (string, error)

// RunPlain is a line-mode chat for terminals without TTY support. Sensitive
// answers go through readSecret when it is set.
func RunPlain(ctx context.Context, conv Conversation, st *flow.State, opening []flow.Message, in io.Reader, out io.Writer, readSecret SecretReader, onTurn TurnHook) (*flow.State, error) {
	for _, msg := range opening {
		fmt.Fprintf(out, "Assistant: %s\n\n", msg.Content)
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		var text string
		if readSecret != nil && conv.AwaitingSensitive(st) {
			secret, err := readSecret()
			fmt.Fprintln(out)
			if err != nil {
				return st, fmt.Errorf("failed to read input: %w", err)
			}
			text = secret
		} else {
			if !scanner.Scan() {
				break
			}
			text = scanner.Text()
		}
		if isExit(text) {
			break
		}

		latest, msgs, err := conv.Handle(ctx, st.ThreadID, text)
		if err != nil {
			fmt.Fprintf(out, "Something went wrong: %v\n\n", err)
		}
		if latest != nil {
			st = latest
			if onTurn != nil {
				onTurn(st)
			}
		}
		for _, msg := range msgs {
			fmt.Fprintf(out, "Assistant: %s\n\n", msg.Content)
		}

		if ctx.Err() != nil {
			return st, ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return st, fmt.Errorf("failed to read input: %w", err)
	}
	fmt.Fprintln(out, "Goodbye!")
	return st, nil
}
