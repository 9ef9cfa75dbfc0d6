// Package notify owns the notification history and pushes new entries to
// the registered device.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"bishop/internal/clients/expo"
	"bishop/internal/eventbus"
	logx "bishop/pkg/logx"
)

var (
	ErrNoToken  = errors.New("notify: no device token")
	ErrNotFound = errors.New("notify: notification not found")
)

const defaultMaxHistory = 200

// Notification is one stored alert. Delivered tracks client-side
// acknowledgement, not gateway success.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	Delivered bool      `json:"delivered"`
}

// Pusher sends one message to the push gateway.
type Pusher interface {
	Push(ctx context.Context, msg expo.Message) error
}

// Mirror receives an operator copy of every alert.
type Mirror interface {
	Mirror(title, body string) error
}

type Config struct {
	// MaxHistory bounds the stored history; the oldest entries are
	// dropped on overflow. Zero means the default.
	MaxHistory int

	// RatePerSec limits gateway pushes. Zero disables the limiter.
	RatePerSec float64
}

type Service struct {
	log     logx.Logger
	push    Pusher
	bus     eventbus.Bus
	limiter *rate.Limiter
	now     func() time.Time

	mu     sync.Mutex
	token  string
	items  []*Notification // newest first
	max    int
	mirror Mirror
}

func New(cfg Config, push Pusher, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	max := cfg.MaxHistory
	if max <= 0 {
		max = defaultMaxHistory
	}
	s := &Service{
		log:  log.With(logx.String("component", "notify")),
		push: push,
		bus:  bus,
		now:  time.Now,
		max:  max,
	}
	if cfg.RatePerSec > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	return s
}

// SetMirror installs (or removes, with nil) the operator mirror channel.
func (s *Service) SetMirror(m Mirror) {
	s.mu.Lock()
	s.mirror = m
	s.mu.Unlock()
}

// RegisterDevice replaces the registered push token. Only one device is
// tracked at a time.
func (s *Service) RegisterDevice(token string) error {
	if token == "" {
		return ErrNoToken
	}
	s.mu.Lock()
	prev := s.token
	s.token = token
	s.mu.Unlock()

	if prev != "" && prev != token {
		s.log.Info("device token replaced")
	} else {
		s.log.Info("device registered")
	}
	s.publish(eventbus.EventDeviceRegistered, nil)
	return nil
}

// Token returns the registered push token, or "" when none is set.
func (s *Service) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Send stores the notification and, when a device is registered, pushes
// it through the gateway. Storage always succeeds; gateway and mirror
// failures are logged and never rolled back.
func (s *Service) Send(ctx context.Context, title, body string) (*Notification, error) {
	n := &Notification{
		ID:        uuid.NewString(),
		Title:     title,
		Body:      body,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.items = append([]*Notification{n}, s.items...)
	if len(s.items) > s.max {
		s.items = s.items[:s.max]
	}
	token := s.token
	mirror := s.mirror
	s.mu.Unlock()

	s.publish(eventbus.EventNotificationStored, n.ID)

	if token != "" {
		if err := s.deliver(ctx, token, n); err != nil {
			s.log.Warn("push failed", logx.String("id", n.ID), logx.Err(err))
		} else {
			s.publish(eventbus.EventNotificationPushed, n.ID)
		}
	}

	if mirror != nil {
		if err := mirror.Mirror(title, body); err != nil {
			s.log.Warn("mirror failed", logx.Err(err))
		}
	}
	return n, nil
}

func (s *Service) deliver(ctx context.Context, token string, n *Notification) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return s.push.Push(ctx, expo.Message{
		To:    token,
		Title: n.Title,
		Body:  n.Body,
		// Both keys carry the same id; older clients read notificationId.
		Data: map[string]string{"id": n.ID, "notificationId": n.ID},
	})
}

// All returns a snapshot of the history, newest first.
func (s *Service) All() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.items))
	for i, n := range s.items {
		out[i] = *n
	}
	return out
}

// Pending returns undelivered notifications, newest first.
func (s *Service) Pending() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Notification
	for _, n := range s.items {
		if !n.Delivered {
			out = append(out, *n)
		}
	}
	return out
}

// MarkDelivered flags a notification as acknowledged and returns the
// updated entry. Idempotent.
func (s *Service) MarkDelivered(id string) (*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.items {
		if n.ID == id {
			n.Delivered = true
			cp := *n
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// Clear wipes the stored history. The device token survives.
func (s *Service) Clear() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
	s.publish(eventbus.EventNotificationCleared, nil)
}

func (s *Service) publish(typ string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: data})
}
