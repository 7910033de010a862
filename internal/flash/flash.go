// Package flash stores one-shot messages shown on the next rendered page.
package flash

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CookieName carries the id of the pending messages
const CookieName = "console_flash"

// Kinds of messages
const (
	KindSuccess = "success"
	KindInfo    = "info"
	KindWarning = "warning"
	KindError   = "error"
)

// DefaultDismissAfter is how long success and info messages stay visible
const DefaultDismissAfter = 3 * time.Second

// DefaultTTL caps how long undelivered messages are kept
const DefaultTTL = 10 * time.Minute

// Message is a single flash message
type Message struct {
	Kind         string
	Text         string
	Details      []string
	DismissAfter time.Duration
}

// DismissMillis is used by the page script to auto-hide the message;
// zero means the message stays
func (m Message) DismissMillis() int64 {
	return m.DismissAfter.Milliseconds()
}

type entry struct {
	messages []Message
	expires  time.Time
}

// Store keeps pending messages in memory keyed by a random id
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
	now     func() time.Time
}

// NewStore creates a store whose undelivered messages expire after ttl
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		entries: make(map[string]*entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Success builds an auto-dismissed success message
func Success(text string) Message {
	return Message{Kind: KindSuccess, Text: text, DismissAfter: DefaultDismissAfter}
}

// Info builds an auto-dismissed info message
func Info(text string) Message {
	return Message{Kind: KindInfo, Text: text, DismissAfter: DefaultDismissAfter}
}

// Warning builds a message that stays until the next page
func Warning(text string, details ...string) Message {
	return Message{Kind: KindWarning, Text: text, Details: details}
}

// Error builds a message that stays until the next page
func Error(text string) Message {
	return Message{Kind: KindError, Text: text}
}

// Add stores messages under a new id and returns it
func (s *Store) Add(msgs ...Message) string {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	s.entries[id] = &entry{
		messages: msgs,
		expires:  s.now().Add(s.ttl),
	}
	return id
}

// Pop returns and removes the messages stored under id
func (s *Store) Pop(id string) []Message {
	if id == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil
	}
	delete(s.entries, id)
	if s.now().After(e.expires) {
		return nil
	}
	return e.messages
}

// Len returns the number of pending entries
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) pruneLocked() {
	now := s.now()
	for id, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, id)
		}
	}
}

// Set stores msgs and points the response cookie at them
func (s *Store) Set(w http.ResponseWriter, msgs ...Message) {
	id := s.Add(msgs...)
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.ttl.Seconds()),
	})
}

// Consume pops the messages referenced by the request cookie and clears it
func (s *Store) Consume(w http.ResponseWriter, r *http.Request) []Message {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	return s.Pop(c.Value)
}
