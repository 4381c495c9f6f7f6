package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/bruinswipes/bruinswipes-backend/internal/models"
	"github.com/bruinswipes/bruinswipes-backend/internal/store"
)

const MaxMessageLength = 1000

// MessageNotifier receives messaging side effects. NotifyNewConversation must not block.
type MessageNotifier interface {
	NotifyNewConversation(from, to string)
	IncrementPending(ctx context.Context, recipient, sender string) error
}

type MessagingService struct {
	conversations store.ConversationRepository
	accounts      *AccountService
	notifier      MessageNotifier
	timeout       time.Duration
	logger        logrus.FieldLogger
	now           func() time.Time
}

func NewMessagingService(conversations store.ConversationRepository, accounts *AccountService, notifier MessageNotifier, timeout time.Duration, logger logrus.FieldLogger) *MessagingService {
	return &MessagingService{
		conversations: conversations,
		accounts:      accounts,
		notifier:      notifier,
		timeout:       timeout,
		logger:        logger,
		now:           time.Now,
	}
}

// SendMessage appends contents to the sender/recipient conversation,
// creating it on first contact. The first message notifies the recipient
// right away; later ones are counted for the hourly digest.
func (s *MessagingService) SendMessage(ctx context.Context, sender, recipient, contents string) StatusResult {
	sender = strings.TrimSpace(sender)
	recipient = strings.TrimSpace(recipient)
	if sender == "" || recipient == "" || strings.EqualFold(sender, recipient) {
		return fail()
	}
	if contents == "" || utf8.RuneCountInString(contents) > MaxMessageLength {
		return fail()
	}

	account, err := s.accounts.AccountByEmail(ctx, recipient)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.WithField("error", err.Error()).Error("recipient lookup failed")
		}
		return fail()
	}
	recipient = account.Email

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	msg := models.Message{Sender: sender, Contents: contents, Time: s.now().UTC()}
	created, err := s.conversations.AppendMessage(ctx, sender, recipient, msg)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"from":  sender,
			"to":    recipient,
			"error": err.Error(),
		}).Error("append message")
		return fail()
	}

	if s.notifier != nil {
		if created {
			s.notifier.NotifyNewConversation(sender, recipient)
		} else if err := s.notifier.IncrementPending(ctx, recipient, sender); err != nil {
			// The message is stored; only the digest count is lost.
			s.logger.WithField("error", err.Error()).Warn("increment pending count")
		}
	}
	return success()
}

// GetMessages returns every conversation email takes part in.
func (s *MessagingService) GetMessages(ctx context.Context, email string) []models.Conversation {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	convs, err := s.conversations.FindByParticipant(ctx, email)
	if err != nil {
		s.logger.WithFields(logrus.Fields{"email": email, "error": err.Error()}).Error("get messages")
		return []models.Conversation{}
	}
	return convs
}
