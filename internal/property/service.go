package property

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"estate-inbox/internal/apiclient"
	"estate-inbox/internal/casing"
	"estate-inbox/internal/endpoints"
	"estate-inbox/internal/i18n"
	"estate-inbox/internal/inbox"
	"estate-inbox/internal/notify"
	"estate-inbox/pkg/logger"
)

var ErrNotFound = errors.New("property: not found")

// Service is the property catalogue client. Mutations toast their outcome;
// reads only record the failure.
type Service struct {
	api    apiclient.API
	ep     endpoints.Registry
	report *notify.Reporter

	mu      sync.Mutex
	lastErr error
}

func NewService(api apiclient.API, ep endpoints.Registry, report *notify.Reporter) *Service {
	if report == nil {
		report = notify.NewReporter(nil, nil, nil)
	}
	return &Service{api: api, ep: ep, report: report}
}

func (s *Service) List(ctx context.Context) ([]Property, error) {
	out, err := s.list(ctx, s.ep.Properties())
	if err != nil {
		logger.From(ctx).Warn("property list failed", "err", err)
	}
	s.setErr(err)
	return out, err
}

// ListPublic reads the anonymous listing. Failures are returned to the
// caller only: the landing page renders an empty grid instead.
func (s *Service) ListPublic(ctx context.Context) ([]Property, error) {
	return s.list(ctx, s.ep.PublicProperties())
}

func (s *Service) list(ctx context.Context, path string) ([]Property, error) {
	env, err := s.api.Get(ctx, path)
	if err != nil {
		return []Property{}, err
	}
	out := []Property{}
	if err := casing.Property.Decode(inbox.UnwrapList(env.Data, "items", "properties"), &out); err != nil {
		return []Property{}, err
	}
	return out, nil
}

// Get returns ErrNotFound for a 404.
func (s *Service) Get(ctx context.Context, id string) (Property, error) {
	env, err := s.api.Get(ctx, s.ep.Property(id))
	if err != nil {
		if apiclient.StatusCode(err) == 404 {
			err = ErrNotFound
		}
		logger.From(ctx).Warn("property read failed", "id", id, "err", err)
		s.setErr(err)
		return Property{}, err
	}
	p, err := decode(env.Data)
	s.setErr(err)
	return p, err
}

func (s *Service) Create(ctx context.Context, f Form) (Property, error) {
	return s.save(ctx, "", f, i18n.PropertyCreated)
}

func (s *Service) Update(ctx context.Context, id string, f Form) (Property, error) {
	return s.save(ctx, id, f, i18n.PropertyUpdated)
}

func (s *Service) save(ctx context.Context, id string, f Form, done i18n.Key) (Property, error) {
	if err := f.Validate(); err != nil {
		s.report.Failure(ctx, i18n.PropertyFailed, err)
		return Property{}, err
	}
	if f.Status == "" {
		f.Status = StatusAvailable
	}
	body, err := casing.Property.Encode(f)
	if err != nil {
		return Property{}, err
	}
	var env apiclient.Envelope
	if id == "" {
		env, err = s.api.Post(ctx, s.ep.Properties(), body)
	} else {
		env, err = s.api.Put(ctx, s.ep.Property(id), body)
	}
	if err != nil {
		s.report.Failure(ctx, i18n.PropertyFailed, err)
		return Property{}, err
	}
	p, err := decode(env.Data)
	if err != nil {
		s.report.Failure(ctx, i18n.PropertyFailed, err)
		return Property{}, err
	}
	if p.ID == "" {
		p.ID = id
	}
	s.report.Success(ctx, done)
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.api.Delete(ctx, s.ep.Property(id)); err != nil {
		s.report.Failure(ctx, i18n.PropertyFailed, err)
		return err
	}
	s.report.Success(ctx, i18n.PropertyDeleted)
	return nil
}

// LastError is the most recent authenticated read failure.
func (s *Service) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Service) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func decode(raw json.RawMessage) (Property, error) {
	var obj map[string]json.RawMessage
	if json.Unmarshal(raw, &obj) == nil {
		if inner, ok := obj["property"]; ok && len(inner) > 0 && inner[0] == '{' {
			raw = inner
		}
	}
	var p Property
	if err := casing.Property.Decode(raw, &p); err != nil {
		return Property{}, err
	}
	if p.Images == nil {
		p.Images = []Image{}
	}
	return p, nil
}
