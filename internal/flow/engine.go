package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/rocket-approval/mortgage-agent/internal/logger"
	"github.com/rocket-approval/mortgage-agent/internal/models"
	"github.com/rocket-approval/mortgage-agent/internal/session"
	"github.com/rocket-approval/mortgage-agent/internal/tools"
)

// ToolRunner executes registered tools.
type ToolRunner interface {
	Execute(ctx context.Context, name string, tc *tools.Context, input json.RawMessage) models.Response[any]
	Lookup(name string) (tools.Tool, bool)
}

const (
	greeting = "Hi! I'm the Rocket Approval assistant. I can help you get pre-approved for a home purchase " +
		"or check on an application. Say \"apply\" to get started."
	primaryHelp = "You can say:\n  apply     start or continue a mortgage pre-approval\n  status    check on your application\n  help      show this message"
	dialogHelp  = "Answer each question to move on. You can also say:\n  back      change the previous answer\n" +
		"  status    see where you are\n  cancel    pause the application\n  skip      leave an optional answer blank"
	masked = "****"
)

var (
	applyIntents = []string{"apply", "application", "mortgage", "loan", "start", "continue", "resume",
		"pre-approval", "preapproval", "pre-approved", "preapproved"}
	cancelCommands = map[string]bool{"cancel": true, "stop": true, "nevermind": true, "never mind": true,
		"quit application": true}
)

// Engine drives a conversation through the primary assistant and the mortgage dialog.
type Engine struct {
	runner      ToolRunner
	checkpoints *Checkpointer
	steps       []Step
	now         func() time.Time

	// Sensitive answers never reach the checkpoint store; they are held
	// here per thread and asked again after a restart.
	sensitive map[string]bool
	mu        sync.Mutex
	secrets   map[string]Answers
}

func NewEngine(runner ToolRunner, checkpoints *Checkpointer, steps []Step) *Engine {
	sensitive := map[string]bool{}
	for _, step := range steps {
		for _, q := range step.Questions {
			if q.Sensitive {
				sensitive[q.Key] = true
			}
		}
	}
	return &Engine{
		runner:      runner,
		checkpoints: checkpoints,
		steps:       steps,
		now:         time.Now,
		sensitive:   sensitive,
		secrets:     map[string]Answers{},
	}
}

// Start opens threadID, or a new thread when it is empty or unknown.
func (e *Engine) Start(ctx context.Context, threadID, userID string) (*State, []Message, error) {
	var st *State
	var texts []string

	if threadID != "" {
		loaded, err := e.load(ctx, threadID)
		switch {
		case err == nil:
			st = loaded
			texts = e.welcomeBack(st)
		case errors.Is(err, session.ErrNotFound):
			logger.Debug("Thread %s not found, starting a new one", threadID)
		default:
			return nil, nil, err
		}
	}

	if st == nil {
		if threadID == "" {
			threadID = uuid.NewString()
		}
		st = NewState(threadID, userID, e.now())
		texts = []string{greeting}
	}
	if st.UserID == "" {
		st.UserID = userID
	}

	msgs := e.say(st, texts...)
	if err := e.save(ctx, st); err != nil {
		return st, msgs, err
	}
	return st, msgs, nil
}

// Handle processes one user turn and checkpoints the result.
func (e *Engine) Handle(ctx context.Context, threadID, input string) (*State, []Message, error) {
	st, err := e.load(ctx, threadID)
	if err != nil {
		return nil, nil, err
	}

	content := input
	if e.AwaitingSensitive(st) && !isCommand(input) {
		content = masked
	}
	st.append(RoleUser, content, e.now())

	msgs := e.say(st, e.dispatch(ctx, st, input)...)
	if err := e.save(ctx, st); err != nil {
		return st, msgs, err
	}
	return st, msgs, nil
}

// Progress reports the current step position and the number of steps.
func (e *Engine) Progress(st *State) (int, int) {
	total := len(e.steps)
	switch {
	case st.Completed:
		return total, total
	case st.CurrentStep == "":
		return 0, total
	}
	return e.index(st.CurrentStep), total
}

// StepTitle names the step the conversation is on.
func (e *Engine) StepTitle(st *State) string {
	if st.Completed {
		return "Complete"
	}
	if st.CurrentStep == "" {
		return ""
	}
	return e.current(st).Title
}

// load reads a checkpoint and puts back the sensitive answers held for it.
func (e *Engine) load(ctx context.Context, threadID string) (*State, error) {
	st, err := e.checkpoints.Load(ctx, threadID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	for k, v := range e.secrets[threadID] {
		st.Answers[k] = v
	}
	e.mu.Unlock()

	// After a restart the approval would submit without the answers it lists.
	if e.rewindSensitive(st) {
		logger.Info("Thread %s lost its sensitive answers, asking again", st.ThreadID)
	}
	return st, nil
}

// save checkpoints st without its sensitive answers.
func (e *Engine) save(ctx context.Context, st *State) error {
	st.UpdatedAt = e.now()

	snapshot := *st
	snapshot.Answers = make(Answers, len(st.Answers))
	held := Answers{}
	for k, v := range st.Answers {
		if !e.sensitive[k] {
			snapshot.Answers[k] = v
		} else if v != "" {
			held[k] = v
		}
	}

	e.mu.Lock()
	if len(held) > 0 {
		e.secrets[st.ThreadID] = held
	} else {
		delete(e.secrets, st.ThreadID)
	}
	e.mu.Unlock()

	if err := e.checkpoints.Save(ctx, &snapshot); err != nil {
		logger.Error("Failed to checkpoint thread %s: %v", st.ThreadID, err)
		return err
	}
	return nil
}

// rewindSensitive moves back to the first sensitive question already passed
// without an answer, dropping any pending approval.
func (e *Engine) rewindSensitive(st *State) bool {
	if st.CurrentStep == "" {
		return false
	}
	for i, q := range e.current(st).Questions {
		if !q.Sensitive || !q.applies(st.Answers) || st.Answers[q.Key] != "" {
			continue
		}
		if i >= st.QuestionIndex && !st.PendingApproval {
			return false
		}
		st.PendingApproval = false
		st.QuestionIndex = i
		return true
	}
	return false
}

// forgetSensitive drops the step's sensitive answers.
func (e *Engine) forgetSensitive(st *State, step Step) {
	for _, q := range step.Questions {
		if q.Sensitive {
			delete(st.Answers, q.Key)
		}
	}
}

func (e *Engine) say(st *State, texts ...string) []Message {
	var msgs []Message
	for _, text := range texts {
		if text == "" {
			continue
		}
		msgs = append(msgs, st.append(RoleAssistant, text, e.now()))
	}
	return msgs
}

func (e *Engine) welcomeBack(st *State) []string {
	switch {
	case st.Completed:
		return []string{fmt.Sprintf("Welcome back! Your application %s is complete. Say \"status\" to check on it.", st.Session.RmLoanID)}
	case st.InMortgageDialog():
		return []string{"Welcome back! Let's pick up where we left off.", e.prompt(st)}
	case st.CurrentStep != "":
		return []string{"Welcome back! Say \"continue\" to pick up your application."}
	}
	return []string{greeting}
}

func (e *Engine) dispatch(ctx context.Context, st *State, input string) []string {
	if st.InMortgageDialog() {
		return e.mortgage(ctx, st, input)
	}
	return e.primary(ctx, st, input)
}

func (e *Engine) primary(ctx context.Context, st *State, input string) []string {
	words := intentWords(input)
	switch {
	case len(words) == 0 || words["help"]:
		return []string{primaryHelp}
	case words["status"]:
		return []string{e.statusReply(ctx, st)}
	case hasAny(words, applyIntents):
		if st.Completed {
			return []string{fmt.Sprintf("Your application %s is already complete. Say \"status\" to check on it.", st.Session.RmLoanID)}
		}
		st.DialogStack.Update(MortgageAssistant)
		logger.Info("Thread %s entered the mortgage dialog", st.ThreadID)
		if st.CurrentStep == "" {
			return e.enterStep(ctx, st, 0)
		}
		return []string{"Let's continue your application.", e.prompt(st)}
	}
	return []string{"I can help you apply for a mortgage pre-approval or check on an application. Say \"apply\" to begin, or \"help\" for options."}
}

func (e *Engine) mortgage(ctx context.Context, st *State, input string) []string {
	switch lower := strings.ToLower(strings.TrimSpace(input)); {
	case cancelCommands[lower]:
		return e.leave(st)
	case lower == "back":
		return e.back(st)
	case lower == "status":
		return []string{e.progressReply(st), e.prompt(st)}
	case lower == "help":
		return []string{dialogHelp, e.prompt(st)}
	}

	if st.PendingApproval {
		return e.approve(ctx, st, input)
	}

	i := e.nextQuestion(st)
	if i < 0 {
		return e.finishStep(ctx, st)
	}
	q := e.current(st).Questions[i]
	st.QuestionIndex = i

	value, err := answer(st, q, input)
	if err != nil {
		return []string{fmt.Sprintf("Sorry, %v.", err), e.prompt(st)}
	}
	st.Answers[q.Key] = value
	st.QuestionIndex = i + 1
	return e.advance(ctx, st)
}

func answer(st *State, q Question, input string) (string, error) {
	raw := strings.TrimSpace(input)
	prev, answered := st.Answers[q.Key]
	switch {
	case raw == "" && answered && (prev != "" || q.Optional):
		return prev, nil
	case q.Optional && strings.EqualFold(raw, "skip"):
		return "", nil
	}
	return q.Parse(raw)
}

// advance asks the next question or finishes the step.
func (e *Engine) advance(ctx context.Context, st *State) []string {
	if i := e.nextQuestion(st); i >= 0 {
		st.QuestionIndex = i
		return []string{e.prompt(st)}
	}
	return e.finishStep(ctx, st)
}

// finishStep asks for approval before sensitive tools and submits everything else.
func (e *Engine) finishStep(ctx context.Context, st *State) []string {
	step := e.current(st)
	if step.Tool != "" {
		if tool, ok := e.runner.Lookup(step.Tool); ok && tool.Sensitive {
			st.PendingApproval = true
			return []string{e.prompt(st)}
		}
	}
	return e.submit(ctx, st)
}

func (e *Engine) approve(ctx context.Context, st *State, input string) []string {
	v, err := ParseYesNo(input)
	if err != nil {
		return []string{"Please answer yes or no.", e.prompt(st)}
	}
	st.PendingApproval = false
	if v == "yes" {
		return e.submit(ctx, st)
	}

	st.QuestionIndex = 0
	e.forgetSensitive(st, e.current(st))
	return []string{"Okay, I won't submit that. Let's go over it again.", e.prompt(st)}
}

func (e *Engine) submit(ctx context.Context, st *State) []string {
	step := e.current(st)
	if step.Input == nil {
		return e.completeStep(ctx, st, step, models.Response[any]{Success: true})
	}

	input, err := step.Input(st)
	switch {
	case errors.Is(err, ErrDeclined):
		return e.decline(st)
	case errors.Is(err, ErrSkipTool):
		return e.completeStep(ctx, st, step, models.Response[any]{Success: true})
	case err != nil:
		return e.retry(st, step, err.Error())
	}

	resp := e.run(ctx, st, step.Tool, input)
	if !resp.Success {
		logger.Warn("Step %s failed for thread %s: %s", step.ID, st.ThreadID, resp.Message)
		if step.OnFailure != nil {
			msg, next := step.OnFailure(st, resp)
			if next {
				return append([]string{msg}, e.nextStep(ctx, st)...)
			}
			return e.retry(st, step, msg)
		}
		return e.retry(st, step, resp.Message)
	}
	return e.completeStep(ctx, st, step, resp)
}

func (e *Engine) run(ctx context.Context, st *State, name string, input interface{}) models.Response[any] {
	raw, err := json.Marshal(input)
	if err != nil {
		return models.Failure[any](fmt.Sprintf("Error: %v", err))
	}
	tc := &tools.Context{UserID: st.UserID, Session: st.Session}
	resp := e.runner.Execute(ctx, name, tc, raw)
	st.Session = tc.Session
	return resp
}

func (e *Engine) completeStep(ctx context.Context, st *State, step Step, resp models.Response[any]) []string {
	msg := resp.Message
	if step.Done != nil {
		msg = step.Done(st, resp)
	}
	e.forgetSensitive(st, step)
	logger.Debug("Thread %s completed step %s", st.ThreadID, step.ID)
	return append([]string{msg}, e.nextStep(ctx, st)...)
}

// retry restarts the step's questions; earlier answers become defaults.
func (e *Engine) retry(st *State, step Step, reason string) []string {
	st.QuestionIndex = 0
	st.PendingApproval = false
	e.forgetSensitive(st, step)
	for _, q := range step.Questions {
		delete(st.Prefilled, q.Key)
	}

	texts := []string{"Sorry, that didn't go through: " + reason}
	if e.nextQuestion(st) < 0 {
		return append(texts, e.prompt(st))
	}
	return append(texts, "Let's go over this step again. Press enter to keep an answer.", e.prompt(st))
}

func (e *Engine) decline(st *State) []string {
	delete(st.Answers, "ready")
	st.QuestionIndex = 0
	st.DialogStack.Update(PopDialog)
	return []string{"Understood. We won't start the application now. Say \"apply\" whenever you're ready."}
}

func (e *Engine) leave(st *State) []string {
	if st.CurrentStep != "" {
		e.forgetSensitive(st, e.current(st))
		e.rewindSensitive(st)
	}
	st.PendingApproval = false
	st.DialogStack.Update(PopDialog)
	logger.Info("Thread %s left the mortgage dialog at %s", st.ThreadID, st.CurrentStep)
	return []string{"No problem, I've paused your application. Say \"continue\" whenever you'd like to pick it back up."}
}

func (e *Engine) nextStep(ctx context.Context, st *State) []string {
	for idx := e.index(st.CurrentStep) + 1; idx < len(e.steps); idx++ {
		step := e.steps[idx]
		if step.Skip != nil && step.Skip(st) {
			continue
		}
		return e.enterStep(ctx, st, idx)
	}

	st.Completed = true
	st.PendingApproval = false
	st.DialogStack.Update(PopDialog)
	logger.Info("Thread %s completed application %s", st.ThreadID, st.Session.RmLoanID)
	return nil
}

func (e *Engine) enterStep(ctx context.Context, st *State, idx int) []string {
	step := e.steps[idx]
	st.CurrentStep = step.ID
	st.QuestionIndex = 0

	var texts []string
	if step.Intro != nil {
		texts = append(texts, step.Intro(st))
	}
	return append(texts, e.advance(ctx, st)...)
}

func (e *Engine) back(st *State) []string {
	if st.PendingApproval {
		st.PendingApproval = false
		e.forgetSensitive(st, e.current(st))
	}
	idx := e.index(st.CurrentStep)
	step := e.steps[idx]
	for i := min(st.QuestionIndex, len(step.Questions)) - 1; i >= 0; i-- {
		if e.pending(st, step.Questions[i]) {
			st.QuestionIndex = i
			return []string{e.prompt(st)}
		}
	}

	for idx--; idx >= 0; idx-- {
		step = e.steps[idx]
		if step.Skip != nil && step.Skip(st) {
			continue
		}
		for i := len(step.Questions) - 1; i >= 0; i-- {
			if e.pending(st, step.Questions[i]) {
				st.CurrentStep = step.ID
				st.QuestionIndex = i
				return []string{e.prompt(st)}
			}
		}
	}
	return []string{"We're already at the first question.", e.prompt(st)}
}

// prompt renders what the dialog is waiting for without changing state.
func (e *Engine) prompt(st *State) string {
	step := e.current(st)
	if st.PendingApproval {
		return e.approvalPrompt(st, step)
	}

	i := e.nextQuestion(st)
	if i < 0 {
		return "Say \"retry\" to submit this step again."
	}
	q := step.Questions[i]
	p := q.Prompt
	if prev := st.Answers[q.Key]; prev != "" {
		if q.Sensitive {
			prev = masked
		}
		p += fmt.Sprintf(" [press enter to keep %s]", prev)
	}
	if q.Optional {
		p += " (say \"skip\" to leave it blank)"
	}
	return p
}

func (e *Engine) approvalPrompt(st *State, step Step) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Before I submit %s, please confirm:", strings.ToLower(step.Title))
	for _, q := range step.Questions {
		v, ok := st.Answers[q.Key]
		if !ok {
			continue
		}
		if q.Sensitive {
			v = masked
		}
		fmt.Fprintf(&b, "\n  %s: %s", q.Label, v)
	}
	b.WriteString("\nShall I proceed? (yes/no)")
	return b.String()
}

func (e *Engine) progressReply(st *State) string {
	pos, total := e.Progress(st)
	reply := fmt.Sprintf("You're on step %d of %d: %s.", pos+1, total, e.StepTitle(st))
	if st.Session.Started() {
		reply += fmt.Sprintf(" Application %s.", st.Session.RmLoanID)
	}
	return reply
}

func (e *Engine) statusReply(ctx context.Context, st *State) string {
	if !st.Session.Started() {
		return "You don't have an application in progress yet. Say \"apply\" to start one."
	}
	resp := e.run(ctx, st, tools.GetApplicationStatus, struct{}{})
	if !resp.Success {
		return resp.Message
	}
	var status models.ApplicationStatus
	if err := decode(resp.Data, &status); err != nil {
		return resp.Message
	}
	return fmt.Sprintf("Application %s: %s.", status.RmLoanID, status.Status)
}

// nextQuestion finds the first question at or after QuestionIndex still waiting for an answer.
func (e *Engine) nextQuestion(st *State) int {
	step := e.current(st)
	for i := st.QuestionIndex; i < len(step.Questions); i++ {
		if e.pending(st, step.Questions[i]) {
			return i
		}
	}
	return -1
}

// pending skips questions that do not apply and confirmed profile answers.
func (e *Engine) pending(st *State, q Question) bool {
	if !q.applies(st.Answers) {
		return false
	}
	if v := st.Prefilled[q.Key]; v != "" && st.Answers[q.Key] == v {
		return false
	}
	return true
}

// AwaitingSensitive reports whether the next answer should not be echoed.
func (e *Engine) AwaitingSensitive(st *State) bool {
	if !st.InMortgageDialog() || st.PendingApproval || st.CurrentStep == "" {
		return false
	}
	i := e.nextQuestion(st)
	return i >= 0 && e.current(st).Questions[i].Sensitive
}

func (e *Engine) index(id string) int {
	for i, step := range e.steps {
		if step.ID == id {
			return i
		}
	}
	if id != "" {
		logger.Warn("Unknown step %q, restarting from the beginning", id)
	}
	return 0
}

func (e *Engine) current(st *State) Step {
	return e.steps[e.index(st.CurrentStep)]
}

func isCommand(input string) bool {
	lower := strings.ToLower(strings.TrimSpace(input))
	return cancelCommands[lower] || lower == "back" || lower == "status" || lower == "help"
}

func intentWords(input string) map[string]bool {
	words := map[string]bool{}
	for _, w := range strings.FieldsFunc(strings.ToLower(input), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '-'
	}) {
		words[w] = true
	}
	return words
}

func hasAny(words map[string]bool, candidates []string) bool {
	for _, c := range candidates {
		if words[c] {
			return true
		}
	}
	return false
}
