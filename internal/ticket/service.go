package ticket

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/diagnosis/scanlogin/internal/notify"
	"github.com/diagnosis/scanlogin/pkg/config"
	"github.com/diagnosis/scanlogin/pkg/logger"
)

// Directory resolves an authenticated principal to its role. Backed by
// Postgres in production; the HTTP layer supplies a claims-based fallback
// when no database is configured.
type Directory interface {
	RoleOf(ctx context.Context, username string) (string, error)
}

type Service interface {
	Create(ctx context.Context) (*Descriptor, error)
	Confirm(ctx context.Context, id, principal string) (string, error)
	Consume(ctx context.Context, id string) (string, error)
	Get(ctx context.Context, id string) (*Record, error)
}

type service struct {
	store    Store
	dir      Directory
	notifier notify.Notifier
	cfg      config.TicketConfig
}

func NewService(store Store, dir Directory, notifier notify.Notifier, cfg config.TicketConfig) Service {
	return &service{
		store:    store,
		dir:      dir,
		notifier: notifier,
		cfg:      cfg,
	}
}

func (s *service) Create(ctx context.Context) (*Descriptor, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec := Record{
		State:     StatePending,
		CreatedAt: now,
	}

	if err := s.store.Put(ctx, id, rec, s.cfg.TTL); err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	logger.InfoContext(ctx, "Ticket created", "ticket_id", id, "ttl", s.cfg.TTL.String())

	return &Descriptor{
		ID:        id,
		ScanURL:   s.scanURL(id),
		ExpiresAt: now.Add(s.cfg.TTL),
	}, nil
}

func (s *service) Confirm(ctx context.Context, id, principal string) (string, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", ErrExpired
	}
	if rec.State != StatePending {
		return "", ErrAlreadyConfirmed
	}

	role, err := s.dir.RoleOf(ctx, principal)
	if err != nil {
		return "", fmt.Errorf("failed to resolve principal role: %w", err)
	}
	redirect := RedirectForRole(role)

	confirmed := Record{
		State:     StateConfirmed,
		Principal: principal,
		Redirect:  redirect,
		CreatedAt: rec.CreatedAt,
	}

	// The only contended write in the whole handshake: two scans, or a
	// scan racing TTL eviction, resolve here to a single winner.
	won, err := s.store.CompareAndSet(ctx, id, StatePending, confirmed, s.cfg.ConfirmedTTL)
	if err != nil {
		return "", err
	}
	if !won {
		return "", ErrAlreadyConfirmed
	}

	ev := notify.Event{Type: notify.EventConfirmed, TicketID: id, Redirect: redirect}
	if err := s.notifier.Publish(ctx, id, ev); err != nil {
		// Best effort: the waiter recovers the outcome by polling the store.
		logger.WarnContext(ctx, "Failed to publish confirmation event", "ticket_id", id, "error", err)
	}

	logger.InfoContext(ctx, "Ticket confirmed", "ticket_id", id, "principal", principal, "role", role)

	return redirect, nil
}

func (s *service) Consume(ctx context.Context, id string) (string, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", ErrExpired
	}

	switch rec.State {
	case StatePending:
		return "", ErrNotReady
	case StateConsumed:
		return "", ErrAlreadyConsumed
	}

	consumed := Record{
		State:     StateConsumed,
		Principal: rec.Principal,
		Redirect:  rec.Redirect,
		CreatedAt: rec.CreatedAt,
	}

	// The consumed tombstone is kept for the confirmed window so a replayed
	// consume reads as "already used" rather than "expired".
	won, err := s.store.CompareAndSet(ctx, id, StateConfirmed, consumed, s.cfg.ConfirmedTTL)
	if err != nil {
		return "", err
	}
	if !won {
		return "", ErrAlreadyConsumed
	}

	logger.InfoContext(ctx, "Ticket consumed", "ticket_id", id, "principal", rec.Principal)

	return rec.Redirect, nil
}

func (s *service) Get(ctx context.Context, id string) (*Record, error) {
	return s.store.Get(ctx, id)
}

func (s *service) scanURL(id string) string {
	return s.cfg.ScanURLBase + "?ticket=" + url.QueryEscape(id)
}
