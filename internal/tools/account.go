package tools

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/rocket-approval/mortgage-agent/internal/config"
	"github.com/rocket-approval/mortgage-agent/internal/google"
	"github.com/rocket-approval/mortgage-agent/internal/models"
)

const (
	LoginUser      = "RocketApproval.LoginUser"
	GetUserInfo    = "RocketApproval.GetUserInfo"
	ForgotPassword = "RocketApproval.ForgotPassword"

	GoogleProvider    = "google"
	GoogleRecoveryURL = "https://accounts.google.com/signin/recovery"
)

// ProfileFetcher reads the signed-in user's profile.
type ProfileFetcher interface {
	Me(ctx context.Context, ts oauth2.TokenSource) (*google.Profile, error)
}

// AccountRequirement builds the authorization metadata for the account tools.
// Only the first configured scope is requested.
func AccountRequirement(cfg config.GoogleConfig) *Requirement {
	scopes := []string{config.ContactsReadonlyScope}
	if len(cfg.Scopes) > 0 {
		scopes = cfg.Scopes[:1]
	}
	return &Requirement{
		Provider:     GoogleProvider,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       scopes,
	}
}

type LoginStatus struct {
	UserID        string    `json:"user_id"`
	Authenticated bool      `json:"authenticated"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
}

type ForgotPasswordInput struct {
	Email string `json:"email,omitempty"`
}

type PasswordRecovery struct {
	RecoveryURL string `json:"recovery_url"`
}

// RegisterAccountTools adds login_user, get_user_info and forgot_password.
func RegisterAccountTools(r *Registry, req *Requirement, people ProfileFetcher) {
	r.Register(Tool{
		Name:        LoginUser,
		Description: "Authenticate the user through the OAuth2 flow.",
		Auth:        req,
		Handler: typed(func(ctx context.Context, tc *Context, _ struct{}) (models.Response[any], error) {
			token, err := tc.TokenSource.Token()
			if err != nil {
				return models.Response[any]{}, fmt.Errorf("refresh token: %w", err)
			}
			return models.Success[any]("User is signed in", LoginStatus{
				UserID:        tc.UserID,
				Authenticated: true,
				ExpiresAt:     token.Expiry,
			}, nil), nil
		}),
	})

	r.Register(Tool{
		Name:        GetUserInfo,
		Description: "Retrieve the user's profile (name, e-mail, phone, birthday, address) after authentication.",
		Auth:        req,
		Handler: typed(func(ctx context.Context, tc *Context, _ struct{}) (models.Response[any], error) {
			profile, err := people.Me(ctx, tc.TokenSource)
			if err != nil {
				return models.Response[any]{}, err
			}
			return models.Success[any]("Retrieved user information", profile, nil), nil
		}),
	})

	r.Register(Tool{
		Name:        ForgotPassword,
		Description: "Start password recovery with the identity provider.",
		Params: []Param{
			{Name: "email", Description: "Account e-mail to recover", Inferrable: true},
		},
		Auth: req,
		Handler: typed(func(ctx context.Context, tc *Context, in ForgotPasswordInput) (models.Response[any], error) {
			recovery := GoogleRecoveryURL
			if in.Email != "" {
				recovery += "?" + url.Values{"Email": {in.Email}}.Encode()
			}
			return models.Success[any]("Password recovery is handled by Google. Follow the link to reset your password.",
				PasswordRecovery{RecoveryURL: recovery}, nil), nil
		}),
	})
}
