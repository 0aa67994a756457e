package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"estate-inbox/internal/apiclient"
	"estate-inbox/internal/casing"
	"estate-inbox/internal/endpoints"
	"estate-inbox/internal/events"
	"estate-inbox/internal/i18n"
	"estate-inbox/internal/notify"
	"estate-inbox/internal/session"
	"estate-inbox/internal/validation"
	"estate-inbox/pkg/logger"
)

var ErrNoToken = errors.New("auth: backend returned no token")

type LoginForm struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegistrationForm struct {
	Name            string `json:"name" binding:"required,min=2,max=100"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,password"`
	ConfirmPassword string `json:"confirmPassword" binding:"required,eqfield=Password"`
	Phone           string `json:"phone,omitempty" binding:"omitempty,e164"`
}

type ForgotPasswordForm struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordForm struct {
	Token           string `json:"token" binding:"required"`
	Password        string `json:"password" binding:"required,password"`
	ConfirmPassword string `json:"confirmPassword" binding:"required,eqfield=Password"`
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Phone string `json:"phone,omitempty"`
}

// Cookies is the refresh-cookie side of the API client.
type Cookies interface {
	RefreshToken() string
	SetRefreshToken(value string)
}

type Service struct {
	api     apiclient.API
	anon    apiclient.API
	cookies Cookies
	ep      endpoints.Registry
	state   *session.State
	report  *notify.Reporter
	events  events.Publisher
}

func NewService(api apiclient.API, cookies Cookies, ep endpoints.Registry, state *session.State, report *notify.Reporter, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	if report == nil {
		report = notify.NewReporter(nil, nil, nil)
	}
	// A 401 on login or password reset is a rejected credential, not an
	// expired session: those calls go out without the logout redirect.
	anon := api
	if c, ok := api.(redirectless); ok {
		anon = c.WithoutLogoutRedirect()
	}
	return &Service{api: api, anon: anon, cookies: cookies, ep: ep, state: state, report: report, events: pub}
}

type redirectless interface {
	WithoutLogoutRedirect() *apiclient.Client
}

func (s *Service) publish(ctx context.Context, key string, payload any) {
	if err := s.events.Publish(ctx, key, payload); err != nil {
		logger.From(ctx).Warn("event publish failed", "key", key, "err", err)
	}
}

type tokenResponse struct {
	Token        string `json:"token"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         User   `json:"user"`
}

func (r tokenResponse) token() string {
	if r.Token != "" {
		return r.Token
	}
	return r.AccessToken
}

func (s *Service) Login(ctx context.Context, form LoginForm) (User, error) {
	if err := validation.Struct(form); err != nil {
		s.report.Failure(ctx, i18n.AuthLoginFailed, err)
		return User{}, err
	}
	env, err := s.anon.Post(ctx, s.ep.Login(), form)
	if err != nil {
		s.report.Failure(ctx, i18n.AuthLoginFailed, err)
		return User{}, err
	}
	user, err := s.install(ctx, env.Data)
	if err != nil {
		s.report.Failure(ctx, i18n.AuthLoginFailed, err)
		return User{}, err
	}
	s.publish(ctx, events.SessionLogin, map[string]string{"user_id": user.ID})
	return user, nil
}

// Register creates the user. When the backend answers with a token the user
// is signed in straight away.
func (s *Service) Register(ctx context.Context, form RegistrationForm) (User, error) {
	if err := validation.Struct(form); err != nil {
		s.report.Failure(ctx, i18n.AuthRegisterFailed, err)
		return User{}, err
	}
	body, err := casing.Default.Encode(form)
	if err != nil {
		return User{}, err
	}
	env, err := s.anon.Post(ctx, s.ep.Register(), body)
	if err != nil {
		s.report.Failure(ctx, i18n.AuthRegisterFailed, err)
		return User{}, err
	}
	var resp tokenResponse
	if err := casing.Default.Decode(env.Data, &resp); err != nil {
		s.report.Failure(ctx, i18n.AuthRegisterFailed, err)
		return User{}, err
	}
	user := resp.User
	if resp.token() != "" {
		if user, err = s.install(ctx, env.Data); err != nil {
			s.report.Failure(ctx, i18n.AuthRegisterFailed, err)
			return User{}, err
		}
		s.publish(ctx, events.SessionLogin, map[string]string{"user_id": user.ID})
	}
	s.report.Success(ctx, i18n.AuthRegistered)
	return user, nil
}

func (s *Service) install(ctx context.Context, data json.RawMessage) (User, error) {
	var resp tokenResponse
	if err := casing.Default.Decode(data, &resp); err != nil {
		return User{}, fmt.Errorf("auth: decode token response: %w", err)
	}
	token := resp.token()
	if token == "" {
		return User{}, ErrNoToken
	}
	refresh := resp.RefreshToken
	if refresh == "" && s.cookies != nil {
		refresh = s.cookies.RefreshToken()
	} else if refresh != "" && s.cookies != nil {
		s.cookies.SetRefreshToken(refresh)
	}
	claims, err := s.state.Set(ctx, token, refresh)
	if err != nil {
		return User{}, err
	}
	user := resp.User
	if user.ID == "" {
		user.ID = claims.UserID
	}
	if user.Email == "" {
		user.Email = claims.Email
	}
	if user.Name == "" {
		user.Name = claims.Name
	}
	if user.Role == "" {
		user.Role = claims.Role
	}
	return user, nil
}

// Logout tells the backend, then always destroys the local session.
func (s *Service) Logout(ctx context.Context) error {
	if tok, _ := s.state.Token(); tok != "" {
		if _, err := s.api.Post(ctx, s.ep.Logout(), nil); err != nil && !apiclient.IsUnauthorized(err) {
			logger.From(ctx).Warn("backend logout failed", "err", err)
		}
	}
	return s.EndSession(ctx, "logout")
}

// EndSession destroys the local session without calling the backend. It is
// the target of the logout redirect after a 401.
func (s *Service) EndSession(ctx context.Context, reason string) error {
	claims, _ := s.state.Claims()
	err := s.state.Clear(ctx)
	if s.cookies != nil {
		s.cookies.SetRefreshToken("")
	}
	s.publish(ctx, events.SessionLogout, map[string]string{"user_id": claims.UserID, "reason": reason})
	return err
}

func (s *Service) ForgotPassword(ctx context.Context, form ForgotPasswordForm) error {
	if err := validation.Struct(form); err != nil {
		s.report.Failure(ctx, i18n.AuthResetFailed, err)
		return err
	}
	if _, err := s.anon.Post(ctx, s.ep.ForgotPassword(), form); err != nil {
		s.report.Failure(ctx, i18n.AuthResetFailed, err)
		return err
	}
	s.report.Success(ctx, i18n.AuthResetSent)
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, form ResetPasswordForm) error {
	if err := validation.Struct(form); err != nil {
		s.report.Failure(ctx, i18n.AuthResetFailed, err)
		return err
	}
	body, err := casing.Default.Encode(form)
	if err != nil {
		return err
	}
	if _, err := s.anon.Post(ctx, s.ep.ResetPassword(), body); err != nil {
		s.report.Failure(ctx, i18n.AuthResetFailed, err)
		return err
	}
	s.report.Success(ctx, i18n.AuthPasswordChanged)
	return nil
}

// Me reads the current user. Read failures are not toasted.
func (s *Service) Me(ctx context.Context) (User, error) {
	env, err := s.api.Get(ctx, s.ep.Me())
	if err != nil {
		return User{}, err
	}
	var raw json.RawMessage = env.Data
	var wrapped struct {
		User json.RawMessage `json:"user"`
	}
	if json.Unmarshal(env.Data, &wrapped) == nil && len(wrapped.User) > 0 {
		raw = wrapped.User
	}
	var u User
	if err := casing.Default.Decode(raw, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Refresh trades the refresh cookie for a new access token.
func (s *Service) Refresh(ctx context.Context) error {
	if s.cookies != nil && s.cookies.RefreshToken() == "" {
		if v := s.state.RefreshToken(ctx); v != "" {
			s.cookies.SetRefreshToken(v)
		}
	}
	env, err := s.api.Post(ctx, s.ep.Refresh(), nil)
	if err != nil {
		return err
	}
	_, err = s.install(ctx, env.Data)
	return err
}

// Restore reloads a persisted session and seeds the refresh cookie.
func (s *Service) Restore(ctx context.Context) error {
	if err := s.state.Restore(ctx); err != nil {
		return err
	}
	if s.cookies != nil {
		if v := s.state.RefreshToken(ctx); v != "" {
			s.cookies.SetRefreshToken(v)
		}
	}
	return nil
}
