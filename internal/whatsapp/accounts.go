package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"estate-inbox/internal/apiclient"
	"estate-inbox/internal/audit"
	"estate-inbox/internal/casing"
	"estate-inbox/internal/endpoints"
	"estate-inbox/internal/events"
	"estate-inbox/internal/fence"
	"estate-inbox/internal/i18n"
	"estate-inbox/internal/inbox"
	"estate-inbox/internal/notify"
	"estate-inbox/pkg/logger"
)

// Deps are the collaborators shared by the account, linking and conversation
// services.
type Deps struct {
	API       apiclient.API
	Endpoints endpoints.Registry
	Reporter  *notify.Reporter
	Audit     *audit.Service
	Events    events.Publisher
}

func (d Deps) withDefaults() Deps {
	if d.Reporter == nil {
		d.Reporter = notify.NewReporter(nil, nil, nil)
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	return d
}

// AccountManager owns the client-side account cache. Every mutation is
// fenced per account id: a response from a request older than one already
// applied for that account is returned to its caller but not cached.
type AccountManager struct {
	deps  Deps
	fence *fence.Fence
	now   func() time.Time

	mu      sync.RWMutex
	byID    map[string]Account
	order   []string
	lastErr error
}

func NewAccountManager(deps Deps) *AccountManager {
	return &AccountManager{
		deps:  deps.withDefaults(),
		fence: fence.New(),
		now:   time.Now,
		byID:  map[string]Account{},
	}
}

// FetchAll loads every account. On failure it returns an empty list, leaves
// the cache alone and records the error for LastError; reads never toast.
func (m *AccountManager) FetchAll(ctx context.Context) []Account {
	mark := m.fence.Epoch()
	env, err := m.deps.API.Get(ctx, m.deps.Endpoints.WhatsAppAccounts())
	if err != nil {
		m.setErr(ctx, err)
		return []Account{}
	}
	var list []Account
	if err := casing.WhatsAppAccount.Decode(inbox.UnwrapList(env.Data, "items", "accounts"), &list); err != nil {
		m.setErr(ctx, err)
		return []Account{}
	}

	m.fence.Locked(func(changedSince func(string, uint64) bool) {
		m.mu.Lock()
		defer m.mu.Unlock()
		next := make(map[string]Account, len(list))
		order := make([]string, 0, len(list))
		for _, a := range list {
			if a.ID == "" {
				continue
			}
			a.Status = normalizeStatus(a.Status)
			if changedSince(a.ID, mark) {
				cached, ok := m.byID[a.ID]
				if !ok {
					continue
				}
				a = cached
			}
			if _, dup := next[a.ID]; !dup {
				order = append(order, a.ID)
			}
			next[a.ID] = a
		}
		for _, id := range m.order {
			if _, ok := next[id]; ok || !changedSince(id, mark) {
				continue
			}
			if a, ok := m.byID[id]; ok {
				next[id] = a
				order = append(order, id)
			}
		}
		m.byID = next
		m.order = order
		m.lastErr = nil
	})
	return m.Accounts()
}

// FetchOne reads a single account. It returns nil without an error when the
// backend does not know the id.
func (m *AccountManager) FetchOne(ctx context.Context, id string) (*Account, error) {
	mark := m.fence.Epoch()
	env, err := m.deps.API.Get(ctx, m.deps.Endpoints.WhatsAppAccount(id))
	if apiclient.StatusCode(err) == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		m.setErr(ctx, err)
		return nil, err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, nil
	}
	a, err := decodeAccount(env.Data, Account{})
	if err != nil {
		m.setErr(ctx, err)
		return nil, err
	}
	m.fence.Locked(func(changedSince func(string, uint64) bool) {
		if changedSince(a.ID, mark) {
			return
		}
		m.put(a)
	})
	return &a, nil
}

// Create registers an account from a pre-validated form.
func (m *AccountManager) Create(ctx context.Context, form AccountForm) (Account, error) {
	body, err := casing.WhatsAppAccount.Encode(form)
	if err != nil {
		return Account{}, err
	}
	env, err := m.deps.API.Post(ctx, m.deps.Endpoints.WhatsAppAccounts(), body)
	if err != nil {
		m.deps.Reporter.Failure(ctx, i18n.AccountFailed, err)
		return Account{}, err
	}
	a, err := decodeAccount(env.Data, Account{})
	if err != nil {
		m.deps.Reporter.Failure(ctx, i18n.AccountFailed, err)
		return Account{}, err
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
	if a.ID != "" {
		m.fence.Apply(m.fence.Begin(a.ID), func() { m.put(a) })
	}
	m.deps.Reporter.Success(ctx, i18n.AccountCreated)
	m.record(ctx, audit.AccountCreated, events.AccountCreated, a, "")
	return a, nil
}

// Update sends only the non-nil fields of patch.
func (m *AccountManager) Update(ctx context.Context, id string, patch AccountPatch) (Account, error) {
	body, err := casing.WhatsAppAccount.Encode(patch)
	if err != nil {
		return Account{}, err
	}
	ticket := m.fence.Begin(id)
	env, err := m.deps.API.Put(ctx, m.deps.Endpoints.WhatsAppAccount(id), body)
	if err != nil {
		m.deps.Reporter.Failure(ctx, i18n.AccountFailed, err)
		return Account{}, err
	}
	base, _ := m.Get(id)
	applyPatch(&base, patch)
	a, err := decodeAccount(env.Data, base)
	if err != nil {
		m.deps.Reporter.Failure(ctx, i18n.AccountFailed, err)
		return Account{}, err
	}
	if a.ID == "" {
		a.ID = id
	}
	m.apply(ctx, ticket, a)
	m.deps.Reporter.Success(ctx, i18n.AccountUpdated)
	m.record(ctx, audit.AccountUpdated, events.AccountUpdated, a, "")
	return a, nil
}

// Verify asks the backend to check the account's credentials with Meta.
// After any 2xx the account is CONNECTED or ERROR, never PENDING. A backend
// rejection marks it ERROR; a transport failure leaves the status as it was.
func (m *AccountManager) Verify(ctx context.Context, id string) (Account, error) {
	ticket := m.fence.Begin(id)
	env, err := m.deps.API.Post(ctx, m.deps.Endpoints.WhatsAppAccountVerify(id), nil)
	base, _ := m.Get(id)
	if base.ID == "" {
		base.ID = id
	}
	if err != nil {
		if apiclient.IsUnauthorized(err) || apiclient.IsTransport(err) || errors.Is(err, context.Canceled) {
			m.deps.Reporter.Failure(ctx, i18n.AccountVerifyFailed, err)
			return Account{}, err
		}
		base.Status = StatusError
		base.ErrorMessage = apiclient.Message(err)
		m.apply(ctx, ticket, base)
		m.deps.Reporter.Failure(ctx, i18n.AccountVerifyFailed, err)
		m.record(ctx, audit.AccountVerified, events.AccountVerified, base, base.ErrorMessage)
		return base, err
	}

	reported := base
	reported.Status = ""
	a, err := decodeAccount(env.Data, reported)
	if err != nil {
		a = reported
	}
	now := m.now().UTC()
	switch a.Status {
	case "":
		// A success envelope without a status is a completed verification.
		a.Status = StatusConnected
		a.ErrorMessage = ""
	case StatusConnected:
		a.ErrorMessage = ""
	case StatusError:
	default:
		a.Status = StatusError
		if a.ErrorMessage == "" {
			a.ErrorMessage = env.Message
		}
		if a.ErrorMessage == "" {
			a.ErrorMessage = "verification did not complete"
		}
	}
	a.LastVerifiedAt = &now
	m.apply(ctx, ticket, a)

	if a.Status == StatusConnected {
		m.deps.Reporter.Success(ctx, i18n.AccountVerified)
	} else {
		m.deps.Reporter.Failure(ctx, i18n.AccountVerifyFailed, &apiclient.BusinessError{StatusCode: http.StatusOK, Message: a.ErrorMessage})
	}
	m.record(ctx, audit.AccountVerified, events.AccountVerified, a, string(a.Status))
	return a, nil
}

// Activate re-enables a deactivated account. Status is not touched.
func (m *AccountManager) Activate(ctx context.Context, id string) (Account, error) {
	return m.setActive(ctx, id, true)
}

// Deactivate hides the account from active views without deleting history.
func (m *AccountManager) Deactivate(ctx context.Context, id string) (Account, error) {
	return m.setActive(ctx, id, false)
}

func (m *AccountManager) setActive(ctx context.Context, id string, active bool) (Account, error) {
	path := m.deps.Endpoints.WhatsAppAccountDeactivate(id)
	okKey, auditType, eventKey := i18n.AccountDeactivated, audit.AccountDeactivated, events.AccountDeactivated
	if active {
		path = m.deps.Endpoints.WhatsAppAccountReactivate(id)
		okKey, auditType, eventKey = i18n.AccountActivated, audit.AccountActivated, events.AccountActivated
	}

	ticket := m.fence.Begin(id)
	env, err := m.deps.API.Post(ctx, path, nil)
	if err != nil {
		m.deps.Reporter.Failure(ctx, i18n.AccountFailed, err)
		return Account{}, err
	}
	a, cached := m.Get(id)
	if !cached {
		a, err = decodeAccount(env.Data, Account{ID: id})
		if err != nil {
			a = Account{ID: id}
		}
	}
	a.IsActive = active
	m.apply(ctx, ticket, a)
	m.deps.Reporter.Success(ctx, okKey)
	m.record(ctx, auditType, eventKey, a, "")
	return a, nil
}

// Delete removes the account on the backend and from the cache.
func (m *AccountManager) Delete(ctx context.Context, id string) error {
	ticket := m.fence.Begin(id)
	if _, err := m.deps.API.Delete(ctx, m.deps.Endpoints.WhatsAppAccount(id)); err != nil {
		m.deps.Reporter.Failure(ctx, i18n.AccountFailed, err)
		return err
	}
	m.fence.Apply(ticket, func() { m.remove(id) })
	m.deps.Reporter.Success(ctx, i18n.AccountDeleted)
	m.record(ctx, audit.AccountDeleted, events.AccountDeleted, Account{ID: id}, "")
	return nil
}

// MarkDisconnected applies a backend-reported disconnect from the realtime
// feed. It reports whether a cached account changed.
func (m *AccountManager) MarkDisconnected(ctx context.Context, id, reason string) bool {
	if _, ok := m.Get(id); !ok {
		return false
	}
	var a Account
	applied := m.fence.Apply(m.fence.Begin(id), func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		a = m.byID[id]
		a.Status = StatusDisconnected
		a.ErrorMessage = reason
		m.byID[id] = a
	})
	if applied {
		m.deps.Reporter.Warning(ctx, i18n.AccountDisconnected)
		m.record(ctx, audit.AccountDisconnected, events.AccountDisconnected, a, reason)
	}
	return applied
}

// Accounts returns the cached accounts in listing order.
func (m *AccountManager) Accounts() []Account {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Account, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.byID[id])
	}
	return out
}

// Active lists accounts with isActive set, whatever their status.
func (m *AccountManager) Active() []Account {
	all := m.Accounts()
	out := all[:0]
	for _, a := range all {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out
}

func (m *AccountManager) Get(id string) (Account, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.byID[id]
	return a, ok
}

// LastError is the most recent read failure, nil after a successful FetchAll.
func (m *AccountManager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *AccountManager) setErr(ctx context.Context, err error) {
	logger.From(ctx).Warn("whatsapp account read failed", "err", err)
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *AccountManager) apply(ctx context.Context, t fence.Ticket, a Account) {
	if !m.fence.Apply(t, func() { m.put(a) }) {
		logger.From(ctx).Info("stale account response dropped", "account_id", a.ID)
	}
}

func (m *AccountManager) put(a Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[a.ID]; !ok {
		m.order = append(m.order, a.ID)
	}
	m.byID[a.ID] = a
}

func (m *AccountManager) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	for i, x := range m.order {
		if x == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *AccountManager) record(ctx context.Context, typ audit.EventType, key string, a Account, msg string) {
	m.deps.Audit.Record(ctx, typ, a.ID, msg)
	payload := map[string]any{"account_id": a.ID, "status": string(a.Status), "is_active": a.IsActive}
	if err := m.deps.Events.Publish(ctx, key, payload); err != nil {
		logger.From(ctx).Warn("event publish failed", "key", key, "err", err)
	}
}

// decodeAccount transcodes an account payload over base. The payload may be
// the account itself or wrap it under "account".
func decodeAccount(raw json.RawMessage, base Account) (Account, error) {
	var wrapped struct {
		Account json.RawMessage `json:"account"`
	}
	if json.Unmarshal(raw, &wrapped) == nil && len(wrapped.Account) > 0 {
		raw = wrapped.Account
	}
	out := base
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	if err := casing.WhatsAppAccount.Decode(raw, &out); err != nil {
		return Account{}, err
	}
	out.Status = normalizeStatus(out.Status)
	return out, nil
}

func applyPatch(a *Account, p AccountPatch) {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.PhoneNumber != nil {
		a.PhoneNumber = *p.PhoneNumber
	}
	if p.AccessToken != nil {
		a.AccessToken = *p.AccessToken
	}
	if p.WebhookSecret != nil {
		a.WebhookSecret = *p.WebhookSecret
	}
	if p.BusinessName != nil {
		a.BusinessName = *p.BusinessName
	}
}
