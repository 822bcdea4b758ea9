package tui

import (
	"context"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rocket-approval/mortgage-agent/internal/async"
	"github.com/rocket-approval/mortgage-agent/internal/flow"
	"github.com/rocket-approval/mortgage-agent/internal/logger"
)

// ChatSession runs the chat screen and forwards status changes into it.
type ChatSession struct {
	conv     Conversation
	watcher  *async.StatusWatcher
	onTurn   TurnHook
	program  *tea.Program
	mu       sync.Mutex
	watching string
}

func NewChatSession(conv Conversation, watcher *async.StatusWatcher, onTurn TurnHook) *ChatSession {
	return &ChatSession{
		conv:    conv,
		watcher: watcher,
		onTurn:  onTurn,
	}
}

// Run shows the chat until the user quits, returning the last state.
func (cs *ChatSession) Run(ctx context.Context, st *flow.State, opening []flow.Message, logPath string) (*flow.State, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := NewModel(ctx, cs.conv, st, opening, func(latest *flow.State) {
		if cs.onTurn != nil {
			cs.onTurn(latest)
		}
		cs.watch(ctx, latest)
	})
	model.SetLogPath(logPath)

	cs.program = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	cs.watch(ctx, st)

	final, err := cs.program.Run()
	if err != nil {
		return st, fmt.Errorf("failed to run TUI: %w", err)
	}
	if m, ok := final.(Model); ok && m.State() != nil {
		return m.State(), nil
	}
	return st, nil
}

// watch follows the application once it has been started, once per loan.
func (cs *ChatSession) watch(ctx context.Context, st *flow.State) {
	if cs.watcher == nil || st == nil || !st.Session.Started() {
		return
	}

	cs.mu.Lock()
	if cs.watching == st.Session.RmLoanID {
		cs.mu.Unlock()
		return
	}
	cs.watching = st.Session.RmLoanID
	cs.mu.Unlock()

	logger.Debug("Watching status of application %s", st.Session.RmLoanID)
	updates := cs.watcher.Watch(ctx, st.Session)
	go func() {
		for status := range updates {
			if cs.program != nil {
				cs.program.Send(StatusUpdate{Status: status})
			}
		}
	}()
}
