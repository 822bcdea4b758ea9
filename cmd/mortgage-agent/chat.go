package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/mattn/go-isatty"

	"github.com/rocket-approval/mortgage-agent/internal/agent"
	"github.com/rocket-approval/mortgage-agent/internal/config"
	"github.com/rocket-approval/mortgage-agent/internal/flow"
	"github.com/rocket-approval/mortgage-agent/internal/logger"
	"github.com/rocket-approval/mortgage-agent/internal/storage"
	"github.com/rocket-approval/mortgage-agent/internal/tui"
)

func runResume(cfg *config.Config, threadID string, plain bool) {
	if threadID == "" {
		last, err := storage.GetLastThread(cfg.DataDir)
		if err != nil {
			logger.Fatal("Failed to read the last conversation: %v", err)
		}
		if last.ThreadID == "" {
			logger.Fatal("There is no conversation to resume, start one with 'mortgage-agent chat'")
		}
		threadID = last.ThreadID
	}
	runChat(cfg, threadID, plain)
}

func runChat(cfg *config.Config, threadID string, plain bool) {
	ctx, stop := signalContext()
	defer stop()

	if !plain && !isatty.IsTerminal(os.Stdout.Fd()) {
		plain = true
	}

	var logPath string
	if !plain {
		path, err := logger.InitFileOnly(cfg.LogDir)
		if err != nil {
			logger.Fatal("Failed to initialize file logging: %v", err)
		}
		defer logger.Close()
		logPath = path
	}

	a, err := agent.New(ctx, cfg, agent.Options{})
	if err != nil {
		logger.Fatal("Failed to start agent: %v", err)
	}
	defer a.Cleanup()

	st, opening, err := a.Engine().Start(ctx, threadID, cfg.UserID)
	if err != nil {
		logger.Fatal("Failed to open conversation: %v", err)
	}

	remember := func(st *flow.State) {
		if err := storage.SaveLastThread(cfg.DataDir, st.ThreadID, st.Session.RmLoanID); err != nil {
			logger.Warn("Failed to remember thread %s: %v", st.ThreadID, err)
		}
	}
	remember(st)

	if plain {
		st, err = tui.RunPlain(ctx, a.Engine(), st, opening, os.Stdin, os.Stdout, secretReader(os.Stdin), remember)
	} else {
		st, err = tui.NewChatSession(a.Engine(), a.Watcher(), remember).Run(ctx, st, opening, logPath)
	}
	if err != nil && ctx.Err() == nil {
		logger.Fatal("Conversation ended with an error: %v", err)
	}

	if a.Persistent() && !st.Completed {
		fmt.Printf("Conversation %s saved. Run 'mortgage-agent resume' to continue.\n", st.ThreadID)
	}
}

// secretReader reads without echo when f is a terminal.
func secretReader(f *os.File) tui.SecretReader {
	if !term.IsTerminal(f.Fd()) {
		return nil
	}
	return func() (string, error) {
		b, err := term.ReadPassword(f.Fd())
		return string(b), err
	}
}
