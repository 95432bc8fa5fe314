package mail

import (
	"context"
	"net/mail"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// ConsoleSender logs messages instead of delivering them. Sent messages are
// kept so tests and local runs can read reset links back.
type ConsoleSender struct {
	from       mail.Address
	subjPrefix string

	mu   sync.Mutex
	sent []Message
}

func NewConsoleSender(appName string, from mail.Address) *ConsoleSender {
	return &ConsoleSender{from: from, subjPrefix: subjectPrefix(appName)}
}

func (s *ConsoleSender) Send(_ context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	msg.Subject = s.subjPrefix + msg.Subject

	log.Info().
		Str("from", s.from.String()).
		Str("to", joinAddresses(msg.To)).
		Str("subject", msg.Subject).
		Msg(msg.Text)

	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	return nil
}

// Sent returns a copy of the messages sent so far.
func (s *ConsoleSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

func joinAddresses(addrs []mail.Address) string {
	toJoin := make([]string, 0, len(addrs))
	for _, a := range addrs {
		toJoin = append(toJoin, a.String())
	}
	return strings.Join(toJoin, ", ")
}
