package whatsapp

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"

	"estate-inbox/internal/audit"
	"estate-inbox/internal/config"
	"estate-inbox/internal/events"
	"estate-inbox/internal/i18n"
	"estate-inbox/pkg/logger"
)

// DefaultScope is the permission set requested from Meta.
const DefaultScope = "whatsapp_business_management,whatsapp_business_messaging,business_management"

// NewState returns a fresh one-time OAuth state: 32 random bytes, base64url.
func NewState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Linker runs the embedded-signup flow that links a WhatsApp Business
// account to the signed-in CRM user. Its API client must not trigger the
// logout redirect: a failed link never ends the CRM session.
type Linker struct {
	deps     Deps
	loader   *Loader
	accounts *AccountManager
	configID string
	scope    string
	newState func() (string, error)
}

func NewLinker(deps Deps, loader *Loader, accounts *AccountManager, meta config.MetaConfig) *Linker {
	scope := meta.Scope
	if scope == "" {
		scope = DefaultScope
	}
	return &Linker{
		deps:     deps.withDefaults(),
		loader:   loader,
		accounts: accounts,
		configID: meta.ConfigID,
		scope:    scope,
		newState: NewState,
	}
}

type prepareRequest struct {
	State string `json:"state"`
}

type callbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

// Link runs the steps in order: state, prepare, SDK init, login, callback,
// account refresh. Every failure is toasted and returned.
func (l *Linker) Link(ctx context.Context) error {
	log := logger.From(ctx)

	state, err := l.newState()
	if err != nil {
		return l.fail(ctx, i18n.LinkingFailed, err)
	}
	l.deps.Audit.Record(ctx, audit.LinkingStarted, "", "")

	if _, err := l.deps.API.Post(ctx, l.deps.Endpoints.WhatsAppOAuthPrepare(), prepareRequest{State: state}); err != nil {
		return l.fail(ctx, i18n.LinkingFailed, err)
	}

	if err := l.loader.EnsureInit(ctx); err != nil {
		return l.fail(ctx, i18n.LinkingSDKFailed, err)
	}

	resp, err := l.loader.SDK().Login(ctx, LoginOptions{
		ResponseType:                "code",
		Scope:                       l.scope,
		State:                       state,
		ConfigID:                    l.configID,
		OverrideDefaultResponseType: true,
	})
	if err != nil {
		var sdkErr *SDKError
		if !errors.As(err, &sdkErr) && ctx.Err() == nil {
			err = &SDKError{Op: "login", Err: err}
		}
		return l.fail(ctx, i18n.LinkingSDKFailed, err)
	}

	code := resp.Code()
	if code == "" {
		log.Info("whatsapp linking cancelled", "status", resp.Status)
		l.deps.Reporter.Warning(ctx, i18n.LinkingCancelled)
		l.deps.Audit.Record(ctx, audit.LinkingCancelled, "", resp.Status)
		return ErrLinkCancelled
	}

	if _, err := l.deps.API.Post(ctx, l.deps.Endpoints.WhatsAppOAuthCallback(), callbackRequest{Code: code, State: state}); err != nil {
		return l.fail(ctx, i18n.LinkingFailed, err)
	}

	l.deps.Reporter.Success(ctx, i18n.LinkingSucceeded)
	l.deps.Audit.Record(ctx, audit.LinkingSucceeded, "", "")
	if err := l.deps.Events.Publish(ctx, events.AccountLinked, map[string]any{}); err != nil {
		log.Warn("event publish failed", "key", events.AccountLinked, "err", err)
	}
	if l.accounts != nil {
		l.accounts.FetchAll(ctx)
	}
	return nil
}

func (l *Linker) fail(ctx context.Context, key i18n.Key, err error) error {
	logger.From(ctx).Warn("whatsapp linking failed", "err", err)
	l.deps.Reporter.Failure(ctx, key, err)
	l.deps.Audit.Record(ctx, audit.LinkingFailed, "", err.Error())
	return err
}
