package flow

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/rocket-approval/mortgage-agent/internal/client"
	"github.com/rocket-approval/mortgage-agent/internal/config"
	"github.com/rocket-approval/mortgage-agent/internal/google"
	"github.com/rocket-approval/mortgage-agent/internal/services"
	"github.com/rocket-approval/mortgage-agent/internal/session"
	"github.com/rocket-approval/mortgage-agent/internal/tools"
)

// fakeAPI answers application API calls by endpoint.
type fakeAPI struct {
	calls []string
	fail  map[string]int
}

func (f *fakeAPI) Do(ctx context.Context, call client.Call) (*client.Reply, error) {
	f.calls = append(f.calls, call.Endpoint)
	if f.fail[call.Endpoint] > 0 {
		f.fail[call.Endpoint]--
		return nil, &client.HTTPError{StatusCode: 400, Body: "rejected"}
	}

	body := `{"context":{"rmLoanId":"12345"}}`
	switch call.Endpoint {
	case "/api/account-create":
		body = `{"context":{"rmLoanId":"12345","rocketAccountId":"acct-1"}}`
	case "/api/welcome/12345":
		body = `{"context":{"rmLoanId":"12345","rocketAccountId":"acct-1"}}`
	}
	return &client.Reply{StatusCode: 200, SessionToken: "tok", Body: json.RawMessage(body)}, nil
}

func (f *fakeAPI) called(endpoint string) int {
	n := 0
	for _, c := range f.calls {
		if c == endpoint {
			n++
		}
	}
	return n
}

type fakeAuthorizer struct {
	err error
}

func (f *fakeAuthorizer) TokenSource(ctx context.Context, userID string) (oauth2.TokenSource, error) {
	if f.err != nil {
		return nil, f.err
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "access"}), nil
}

func (f *fakeAuthorizer) AuthorizationURL(userID string) (string, error) {
	return "https://auth.example/authorize", nil
}

type fakePeople struct{}

func (fakePeople) Me(ctx context.Context, ts oauth2.TokenSource) (*google.Profile, error) {
	return &google.Profile{
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jane@example.com",
		Phone:     "+13135551234",
		Birthdate: "1990-04-02",
		Street:    "1050 Woodward Ave",
		City:      "Detroit",
		State:     "MI",
		ZipCode:   "48226",
		Employer:  "Acme",
	}, nil
}

type harness struct {
	t       *testing.T
	api     *fakeAPI
	engine  *Engine
	store   *session.MemoryStore
	thread  string
	replies []Message
}

func newHarness(t *testing.T, opts Options, auth tools.Authorizer) *harness {
	api := &fakeAPI{fail: map[string]int{}}
	registry := tools.NewRegistry(auth)
	tools.RegisterMortgageTools(registry, services.NewApplicationService(api, "https://example.com/done"))
	tools.RegisterAccountTools(registry, tools.AccountRequirement(config.GoogleConfig{}), fakePeople{})

	store := session.NewMemoryStore()
	engine := NewEngine(registry, NewCheckpointer(store), DefaultSteps(opts))

	st, msgs, err := engine.Start(context.Background(), "", "user-1")
	require.NoError(t, err)
	return &harness{t: t, api: api, engine: engine, store: store, thread: st.ThreadID, replies: msgs}
}

func (h *harness) say(inputs ...string) string {
	h.t.Helper()
	for _, input := range inputs {
		_, msgs, err := h.engine.Handle(context.Background(), h.thread, input)
		require.NoError(h.t, err, input)
		h.replies = msgs
	}
	return h.last()
}

func (h *harness) last() string {
	var parts []string
	for _, m := range h.replies {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n")
}

func (h *harness) state() *State {
	h.t.Helper()
	st, err := h.engine.checkpoints.Load(context.Background(), h.thread)
	require.NoError(h.t, err)
	return st
}

// checkpoint returns the bytes the store holds for the thread.
func (h *harness) checkpoint() string {
	h.t.Helper()
	data, err := h.store.Get(context.Background(), threadKeyPrefix+h.thread)
	require.NoError(h.t, err)
	return string(data)
}

var upToCreditPull = []string{
	"I'd like to apply for a mortgage",
	"yes",
	"no", "Detroit, MI 48226", "skip", "1",
	"yes", "$400k", "skip",
	"no",
	"1", "1050 Woodward Ave", "skip", "Detroit, MI 48226",
	"Jane Doe", "04/02/1990",
	"jane@example.com", "313-555-1234", "no",
	"2",
	"4",
	"1", "120000", "Acme", "Engineer", "3",
	"Chase", "1", "50k", "skip", "20%",
}

func TestStartGreetsAndCheckpoints(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	assert.Contains(t, h.last(), "Say \"apply\"")

	st := h.state()
	assert.Equal(t, "user-1", st.UserID)
	assert.Equal(t, PrimaryAssistant, st.DialogStack.Current())
	require.Len(t, st.Messages, 1)
}

func TestPrimaryAssistantRouting(t *testing.T) {
	h := newHarness(t, Options{}, nil)

	assert.Contains(t, h.say("help"), "apply")
	assert.Contains(t, h.say("what's my status?"), "don't have an application")
	assert.Contains(t, h.say("tell me a joke"), "Say \"apply\" to begin")

	reply := h.say("I want a pre-approval")
	assert.Contains(t, reply, "Are you ready to start your application?")
	assert.Equal(t, MortgageAssistant, h.state().DialogStack.Current())
}

func TestFullApplication(t *testing.T) {
	h := newHarness(t, Options{}, nil)

	reply := h.say(upToCreditPull...)
	assert.Contains(t, reply, "soft credit check")
	assert.Contains(t, reply, "last 4 digits")

	reply = h.say("1234")
	assert.Contains(t, reply, "SSN (last 4): ****")
	assert.Contains(t, reply, "Shall I proceed?")

	reply = h.say("yes")
	assert.Contains(t, reply, "Choose a password")

	h.say("correct-horse")
	reply = h.say("yes")
	assert.Contains(t, reply, "Congratulations, your application 12345 is complete!")
	assert.Contains(t, reply, "Account Created")

	st := h.state()
	assert.True(t, st.Completed)
	assert.Equal(t, PrimaryAssistant, st.DialogStack.Current())
	assert.Equal(t, "acct-1", st.Session.RocketAccountID)
	assert.Equal(t, "tok", st.Session.SessionToken)
	assert.NotContains(t, st.Answers, "ssn_last4")
	assert.NotContains(t, st.Answers, "password")

	for _, m := range st.Messages {
		assert.NotEqual(t, "1234", m.Content)
		assert.NotEqual(t, "correct-horse", m.Content)
	}

	assert.Equal(t, 1, h.api.called("/api/welcome"))
	assert.Equal(t, 1, h.api.called("/api/credit-info/birthdate-SSN"))
	assert.Equal(t, 1, h.api.called("/api/account-create"))

	assert.Contains(t, h.say("apply"), "already complete")
}

func TestDeclineAtWelcome(t *testing.T) {
	h := newHarness(t, Options{}, nil)

	reply := h.say("apply", "no")
	assert.Contains(t, reply, "Understood. We won't start the application now.")

	st := h.state()
	assert.Equal(t, PrimaryAssistant, st.DialogStack.Current())
	assert.False(t, st.Session.Started())
	assert.Empty(t, h.api.calls)
}

func TestCancelAndContinue(t *testing.T) {
	h := newHarness(t, Options{}, nil)

	h.say("apply", "yes", "yes")
	reply := h.say("cancel")
	assert.Contains(t, reply, "paused")
	assert.Equal(t, PrimaryAssistant, h.state().DialogStack.Current())

	reply = h.say("continue")
	assert.Contains(t, reply, "Where is the home")
	assert.Equal(t, "yes", h.state().Answers["found_home"])
}

func TestBackAndStatusCommands(t *testing.T) {
	h := newHarness(t, Options{}, nil)

	h.say("apply", "yes", "yes", "Detroit, MI 48226")
	reply := h.say("back")
	assert.Contains(t, reply, "Where is the home")
	assert.Contains(t, reply, "[press enter to keep Detroit, MI 48226]")

	reply = h.say("")
	assert.Contains(t, reply, "What type of property")

	reply = h.say("status")
	assert.Contains(t, reply, "New home details")
	assert.Contains(t, reply, "Application 12345")

	h.say("back", "back")
	assert.Contains(t, h.last(), "Have you already found the home")

	reply = h.say("back")
	assert.Contains(t, reply, "We're already at the first question.")
	assert.Contains(t, reply, "Have you already found the home")
	assert.NotContains(t, reply, "Are you ready to start")

	st := h.state()
	assert.Equal(t, StepHomeDetails, st.CurrentStep)
	assert.Equal(t, MortgageAssistant, st.DialogStack.Current())
	assert.Equal(t, 1, h.api.called("/api/welcome"))
}

func TestToolFailureRestartsStep(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.api.fail["/api/home-info/buying-plans/home-price"] = 1

	reply := h.say("apply", "yes", "no", "Detroit, MI 48226", "skip", "1", "yes", "400000", "skip")
	assert.Contains(t, reply, "Sorry, that didn't go through")
	assert.Contains(t, reply, "please fix your mistakes")
	assert.Contains(t, reply, "Do you have a purchase price in mind?")
	assert.Equal(t, StepHomePrice, h.state().CurrentStep)

	reply = h.say("", "", "")
	assert.Contains(t, reply, "real estate agent")
	assert.Equal(t, 2, h.api.called("/api/home-info/buying-plans/home-price"))
}

func TestInvalidAnswerRepeatsQuestion(t *testing.T) {
	h := newHarness(t, Options{}, nil)

	reply := h.say("apply", "yes", "no", "somewhere nice")
	assert.Contains(t, reply, "City, ST 12345")
	assert.Equal(t, 1, h.state().QuestionIndex)
}

func TestDeniedApprovalReopensStep(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.say(upToCreditPull...)

	reply := h.say("1234", "no")
	assert.Contains(t, reply, "I won't submit that")
	assert.Contains(t, reply, "last 4 digits")
	assert.Zero(t, h.api.called("/api/credit-info/birthdate-SSN"))

	st := h.state()
	assert.False(t, st.PendingApproval)
	assert.NotContains(t, st.Answers, "ssn_last4")
}

func TestPrefillWithoutAuthorization(t *testing.T) {
	h := newHarness(t, Options{Prefill: true}, &fakeAuthorizer{err: errors.New("no token")})

	reply := h.say("apply", "yes", "yes")
	assert.Contains(t, reply, "https://auth.example/authorize")
	assert.Contains(t, reply, "Have you already found the home")
	assert.Empty(t, h.state().Prefilled)
}

func TestPrefillFromProfile(t *testing.T) {
	h := newHarness(t, Options{Prefill: true}, &fakeAuthorizer{})

	reply := h.say("apply", "yes", "yes")
	assert.Contains(t, reply, "Full name: Jane Doe")
	assert.Contains(t, reply, "Phone: (313) 555-1234")
	assert.Contains(t, reply, "Is this information correct?")

	reply = h.say("yes")
	assert.Contains(t, reply, "skip those questions")

	st := h.state()
	assert.Equal(t, "Jane Doe", st.Answers["full_name"])
	assert.Equal(t, "1990-04-02", st.Answers["date_of_birth"])

	st.CurrentStep = StepPersonalInfo
	st.QuestionIndex = 0
	assert.Equal(t, -1, h.engine.nextQuestion(st))

	st.CurrentStep = StepIncome
	st.Answers["income_type"] = "Employment"
	st.QuestionIndex = 2
	assert.Equal(t, 3, h.engine.nextQuestion(st), "employer is prefilled")
}

func TestPrefillRejected(t *testing.T) {
	h := newHarness(t, Options{Prefill: true}, &fakeAuthorizer{})

	reply := h.say("apply", "yes", "yes", "no")
	assert.Contains(t, reply, "I'll ask for those details")
	assert.Empty(t, h.state().Answers["full_name"])
}

func TestResumeThread(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.say("apply", "yes")

	st, msgs, err := h.engine.Start(context.Background(), h.thread, "")
	require.NoError(t, err)
	assert.Equal(t, h.thread, st.ThreadID)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Content, "Welcome back")
	assert.Contains(t, msgs[1].Content, "Have you already found the home")

	st, msgs, err = h.engine.Start(context.Background(), "unknown-thread", "user-2")
	require.NoError(t, err)
	assert.Equal(t, "unknown-thread", st.ThreadID)
	assert.Contains(t, msgs[0].Content, "Say \"apply\"")
}

func TestHandleUnknownThread(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	_, _, err := h.engine.Handle(context.Background(), "missing", "hi")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestProgress(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	steps := len(DefaultSteps(Options{}))

	pos, total := h.engine.Progress(h.state())
	assert.Equal(t, 0, pos)
	assert.Equal(t, steps, total)

	h.say("apply", "yes")
	pos, _ = h.engine.Progress(h.state())
	assert.Equal(t, 1, pos)
	assert.Equal(t, "New home details", h.engine.StepTitle(h.state()))
}

func TestSensitiveAnswersStayOutOfCheckpoints(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.say(upToCreditPull...)

	reply := h.say("9876")
	assert.Contains(t, reply, "Shall I proceed?")
	assert.NotContains(t, h.checkpoint(), "9876")

	reply = h.say("yes")
	assert.Contains(t, reply, "Choose a password")
	assert.Equal(t, 1, h.api.called("/api/credit-info/birthdate-SSN"))

	reply = h.say("correct-horse")
	assert.Contains(t, reply, "Shall I proceed?")
	assert.NotContains(t, h.checkpoint(), "correct-horse")

	reply = h.say("cancel")
	assert.Contains(t, reply, "paused")
	assert.NotContains(t, h.checkpoint(), "correct-horse")

	reply = h.say("continue")
	assert.Contains(t, reply, "Choose a password")
	assert.NotContains(t, reply, "press enter to keep")
	assert.Zero(t, h.api.called("/api/account-create"))
}

func TestFailedSubmitDropsSensitiveAnswers(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.api.fail["/api/credit-info/birthdate-SSN"] = 1
	h.say(upToCreditPull...)

	reply := h.say("9876", "yes")
	assert.Contains(t, reply, "Sorry, that didn't go through")
	assert.Contains(t, reply, "last 4 digits")
	assert.NotContains(t, reply, "press enter to keep")
	assert.NotContains(t, h.checkpoint(), "9876")
	assert.NotContains(t, h.state().Answers, "ssn_last4")

	reply = h.say("9876", "yes")
	assert.Contains(t, reply, "Choose a password")
	assert.Equal(t, 2, h.api.called("/api/credit-info/birthdate-SSN"))
}

func TestRestartAsksForSensitiveAnswersAgain(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.say(upToCreditPull...)
	h.say("9876")
	require.True(t, h.state().PendingApproval)

	h.engine = NewEngine(h.engine.runner, NewCheckpointer(h.store), DefaultSteps(Options{}))

	reply := h.say("yes")
	assert.Contains(t, reply, "last 4 digits")
	assert.NotContains(t, reply, "Shall I proceed?")
	assert.Zero(t, h.api.called("/api/credit-info/birthdate-SSN"))

	reply = h.say("9876")
	assert.Contains(t, reply, "Shall I proceed?")
}

func TestNonFiniteAmountIsRejected(t *testing.T) {
	h := newHarness(t, Options{}, nil)

	reply := h.say("apply", "yes", "no", "Detroit, MI 48226", "skip", "1", "yes", "nan")
	assert.Contains(t, reply, "is not an amount")
	assert.Equal(t, StepHomePrice, h.state().CurrentStep)
	assert.Zero(t, h.api.called("/api/home-info/buying-plans/home-price"))
}
