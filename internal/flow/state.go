package flow

import (
	"strconv"
	"time"

	"github.com/rocket-approval/mortgage-agent/internal/models"
)

// Dialog names.
const (
	PrimaryAssistant  = "primary_assistant"
	MortgageAssistant = "approve_mortgage"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// PopDialog is the dialog update that leaves the current dialog.
const PopDialog = "pop"

type Message struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// DialogStack tracks which assistant is talking; the bottom is always the primary assistant.
type DialogStack []string

func (s DialogStack) Current() string {
	if len(s) == 0 {
		return PrimaryAssistant
	}
	return s[len(s)-1]
}

func (s *DialogStack) Push(name string) {
	*s = append(*s, name)
}

func (s *DialogStack) Pop() {
	if len(*s) > 0 {
		*s = (*s)[:len(*s)-1]
	}
}

// Update keeps the stack for an empty update, pops for PopDialog and pushes anything else.
func (s *DialogStack) Update(update string) {
	switch update {
	case "":
	case PopDialog:
		s.Pop()
	default:
		s.Push(update)
	}
}

type Answers map[string]string

func (a Answers) Yes(key string) bool {
	return a[key] == "yes"
}

func (a Answers) Float(key string) float64 {
	v, _ := strconv.ParseFloat(a[key], 64)
	return v
}

func (a Answers) Int(key string) int {
	v, _ := strconv.Atoi(a[key])
	return v
}

// State is one conversation thread; it is checkpointed after every turn.
type State struct {
	ThreadID        string         `json:"thread_id"`
	UserID          string         `json:"user_id"`
	Messages        []Message      `json:"messages"`
	DialogStack     DialogStack    `json:"dialog_stack"`
	Session         models.Session `json:"session"`
	CurrentStep     string         `json:"current_step"`
	QuestionIndex   int            `json:"question_index"`
	Answers         Answers        `json:"answers"`
	Prefilled       Answers        `json:"prefilled,omitempty"`
	PendingApproval bool           `json:"pending_approval"`
	Completed       bool           `json:"completed"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func NewState(threadID, userID string, at time.Time) *State {
	return &State{
		ThreadID:  threadID,
		UserID:    userID,
		Answers:   Answers{},
		CreatedAt: at,
		UpdatedAt: at,
	}
}

// InMortgageDialog reports whether the mortgage assistant holds the conversation.
func (s *State) InMortgageDialog() bool {
	return s.DialogStack.Current() == MortgageAssistant
}

func (s *State) append(role, content string, at time.Time) Message {
	msg := Message{Role: role, Content: content, At: at}
	s.Messages = append(s.Messages, msg)
	return msg
}
