package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bruinswipes/bruinswipes-backend/internal/models"
	"github.com/bruinswipes/bruinswipes-backend/internal/store"
	"github.com/bruinswipes/bruinswipes-backend/pkg/mailer"
	"github.com/bruinswipes/bruinswipes-backend/pkg/mailer/templates"
)

const (
	DefaultDigestInterval = time.Hour
	digestLockKey         = "digest:lock"
	digestLockTTL         = 10 * time.Minute
	backgroundTimeout     = 15 * time.Second
	listingTimeLayout     = "Mon Jan 2 2006 3:04 PM"
)

// NotificationPublisher pushes a stored notification to live clients.
type NotificationPublisher interface {
	Publish(ctx context.Context, userID string, n models.Notification) error
}

// DigestLocker keeps two instances from draining the pending counts at once.
type DigestLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type NotificationConfig struct {
	PublicURL string
	OpTimeout time.Duration
}

// NotificationService records notifications, emails users and runs the
// hourly unread-message digest.
type NotificationService struct {
	notifications store.NotificationRepository
	pending       store.PendingCountRepository
	accounts      *AccountService
	mail          mailer.Dispatcher
	publisher     NotificationPublisher
	locker        DigestLocker
	publicURL     string
	timeout       time.Duration
	logger        logrus.FieldLogger
	now           func() time.Time
	wg            sync.WaitGroup
}

// NewNotificationService wires the service. publisher and locker may be nil.
func NewNotificationService(
	notifications store.NotificationRepository,
	pending store.PendingCountRepository,
	accounts *AccountService,
	mail mailer.Dispatcher,
	publisher NotificationPublisher,
	locker DigestLocker,
	cfg NotificationConfig,
	logger logrus.FieldLogger,
) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		pending:       pending,
		accounts:      accounts,
		mail:          mail,
		publisher:     publisher,
		locker:        locker,
		publicURL:     cfg.PublicURL,
		timeout:       cfg.OpTimeout,
		logger:        logger,
		now:           time.Now,
	}
}

// Notify emails the user identified by target (an id, or an email when
// byEmail) and stores n for them. Empty title or desc become "ERROR".
func (s *NotificationService) Notify(ctx context.Context, target string, byEmail bool, email mailer.EmailJob, n models.Notification) error {
	var (
		account *models.Account
		err     error
	)
	if byEmail {
		account, err = s.accounts.AccountByEmail(ctx, target)
	} else {
		account, err = s.accounts.Account(ctx, target)
	}
	if err != nil {
		return fmt.Errorf("resolve notification target %q: %w", target, err)
	}

	if n.Title == "" {
		n.Title = "ERROR"
	}
	if n.Desc == "" {
		n.Desc = "ERROR"
	}
	n.ID = primitive.NilObjectID
	n.UserID = account.ID.Hex()
	n.Time = s.now().UTC()
	n.Read = false

	s.logger.WithFields(logrus.Fields{"user_id": n.UserID, "title": n.Title}).Info("sending notification")

	email.To = account.Email
	if err := s.mail.Dispatch(ctx, email); err != nil {
		s.logger.WithFields(logrus.Fields{"to": email.To, "error": err.Error()}).Error("dispatch notification email")
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.notifications.Create(ctx, &n); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, n.UserID, n); err != nil {
			s.logger.WithField("error", err.Error()).Warn("push notification")
		}
	}
	return nil
}

// GetAll returns the user's notifications, newest first.
func (s *NotificationService) GetAll(ctx context.Context, userID string) []models.Notification {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	out, err := s.notifications.FindByUser(ctx, userID)
	if err != nil {
		s.logger.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).Error("get notifications")
		return []models.Notification{}
	}
	return out
}

func (s *NotificationService) ReadAll(ctx context.Context, userID string) StatusResult {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.notifications.MarkAllRead(ctx, userID); err != nil {
		s.logger.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).Error("read notifications")
		return fail()
	}
	return success()
}

// background runs fn detached from the caller with its own deadline.
func (s *NotificationService) background(op string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.logger.WithFields(logrus.Fields{"op": op, "error": err.Error()}).Error("notification failed")
		}
	}()
}

// Wait blocks until in-flight background notifications finish.
func (s *NotificationService) Wait() {
	s.wg.Wait()
}

func (s *NotificationService) messagesURL() string {
	return s.publicURL + "/messages"
}

func (s *NotificationService) firstName(ctx context.Context, email string) string {
	account, err := s.accounts.AccountByEmail(ctx, email)
	if err != nil {
		return ""
	}
	return account.First
}

// CertifyURL is the link a new user follows to certify their address.
func (s *NotificationService) CertifyURL(userID, email string) string {
	q := url.Values{"user_id": {userID}, "email": {email}}
	return s.publicURL + "/certify?" + q.Encode()
}

// SendCertificationEmail mails the certification link. It does not store a notification.
func (s *NotificationService) SendCertificationEmail(name, email, userID string) {
	s.background("certify_email", func(ctx context.Context) error {
		return s.mail.Dispatch(ctx, mailer.EmailJob{
			To:       email,
			Template: templates.VerifyEmail,
			Data: map[string]any{
				"Name":      name,
				"VerifyURL": s.CertifyURL(userID, email),
			},
		})
	})
}

func (s *NotificationService) NotifyNewConversation(from, to string) {
	s.background("new_conversation", func(ctx context.Context) error {
		return s.Notify(ctx, to, true, mailer.EmailJob{
			Template: templates.NewConversation,
			Data: map[string]any{
				"Name":        s.firstName(ctx, to),
				"From":        from,
				"MessagesURL": s.messagesURL(),
			},
		}, models.Notification{
			Title: "New Conversation",
			Desc:  fmt.Sprintf("You have a new conversation from %s.", from),
		})
	})
}

func (s *NotificationService) NotifyMessageBatch(froms []string, to string, count int) {
	s.background("message_batch", func(ctx context.Context) error {
		return s.notifyMessageBatch(ctx, froms, to, count)
	})
}

func (s *NotificationService) notifyMessageBatch(ctx context.Context, froms []string, to string, count int) error {
	return s.Notify(ctx, to, true, mailer.EmailJob{
		Template: templates.MessageDigest,
		Data: map[string]any{
			"Name":        s.firstName(ctx, to),
			"Froms":       froms,
			"Count":       count,
			"MessagesURL": s.messagesURL(),
		},
	}, models.Notification{
		Title: "New Message Count in Last Hour",
		Desc:  fmt.Sprintf("You have %d new messages in the last hour!", count),
	})
}

func (s *NotificationService) NotifyListingResolved(listing models.Listing, ownerEmail string) {
	slot := time.UnixMilli(listing.Time).UTC().Format(listingTimeLayout)
	s.background("listing_resolved", func(ctx context.Context) error {
		return s.Notify(ctx, ownerEmail, true, mailer.EmailJob{
			Template: templates.ListingResolved,
			Data: map[string]any{
				"Name":        s.firstName(ctx, ownerEmail),
				"Time":        slot,
				"Location":    listing.Location,
				"Price":       decimal.NewFromFloat(listing.Price).StringFixed(2),
				"Selling":     listing.Selling,
				"MessagesURL": s.messagesURL(),
			},
		}, models.Notification{
			Title: "Listing Resolved",
			Desc:  fmt.Sprintf("You just resolved your listing that was posted at %s.", slot),
		})
	})
}

// IncrementPending counts one more unread message from sender for the next digest.
func (s *NotificationService) IncrementPending(ctx context.Context, recipient, sender string) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.pending.Increment(ctx, recipient, sender)
}

// RunDigest sends one batch notification per recipient with pending counts
// and deletes the rows it drained. Rows of recipients whose notification
// failed stay for the next run. Returns the number of recipients notified.
func (s *NotificationService) RunDigest(ctx context.Context) (int, error) {
	if s.locker != nil {
		ok, err := s.locker.TryLock(ctx, digestLockKey, digestLockTTL)
		if err != nil {
			return 0, fmt.Errorf("acquire digest lock: %w", err)
		}
		if !ok {
			s.logger.Debug("digest already running elsewhere")
			return 0, nil
		}
		defer func() {
			if err := s.locker.Unlock(context.Background(), digestLockKey); err != nil {
				s.logger.WithField("error", err.Error()).Warn("release digest lock")
			}
		}()
	}

	listCtx, cancel := withTimeout(ctx, s.timeout)
	rows, err := s.pending.All(listCtx)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("load pending counts: %w", err)
	}

	type batch struct {
		froms []string
		count int
		ids   []primitive.ObjectID
	}
	var order []string
	batches := make(map[string]*batch)
	for _, row := range rows {
		b, ok := batches[row.Email]
		if !ok {
			b = &batch{}
			batches[row.Email] = b
			order = append(order, row.Email)
		}
		b.froms = append(b.froms, row.From)
		b.count += row.Count
		b.ids = append(b.ids, row.ID)
	}

	var (
		drained  []primitive.ObjectID
		errs     []error
		notified int
	)
	for _, recipient := range order {
		b := batches[recipient]
		if err := s.notifyMessageBatch(ctx, b.froms, recipient, b.count); err != nil {
			errs = append(errs, err)
			continue
		}
		notified++
		drained = append(drained, b.ids...)
	}

	if len(drained) > 0 {
		delCtx, cancel := withTimeout(ctx, s.timeout)
		defer cancel()
		if err := s.pending.Delete(delCtx, drained); err != nil {
			errs = append(errs, fmt.Errorf("clear pending counts: %w", err))
		}
	}

	s.logger.WithFields(logrus.Fields{"recipients": len(order), "rows": len(rows)}).Info("message digest run")
	return notified, errors.Join(errs...)
}

// StartDigestJob runs the digest immediately and then every interval until ctx is done.
func (s *NotificationService) StartDigestJob(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultDigestInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.runDigestLogged(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runDigestLogged(ctx)
			}
		}
	}()
}

func (s *NotificationService) runDigestLogged(ctx context.Context) {
	if _, err := s.RunDigest(ctx); err != nil {
		s.logger.WithField("error", err.Error()).Error("message digest failed")
	}
}
