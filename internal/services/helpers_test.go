package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/bruinswipes/bruinswipes-backend/internal/models"
	"github.com/bruinswipes/bruinswipes-backend/internal/store"
	"github.com/bruinswipes/bruinswipes-backend/internal/store/memory"
	"github.com/bruinswipes/bruinswipes-backend/pkg/mailer"
)

type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []mailer.EmailJob
}

func (d *recordingDispatcher) Dispatch(_ context.Context, job mailer.EmailJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
	return nil
}

func (d *recordingDispatcher) Jobs() []mailer.EmailJob {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]mailer.EmailJob(nil), d.jobs...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	pushed []models.Notification
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, n models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed = append(p.pushed, n)
	return nil
}

type testEnv struct {
	store         *store.Store
	sessions      *SessionManager
	accounts      *AccountService
	listings      *ListingService
	messaging     *MessagingService
	notifications *NotificationService
	mail          *recordingDispatcher
	pushed        *recordingPublisher
	logHook       *test.Hook
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log, hook := test.NewNullLogger()
	st := memory.New()
	mail := &recordingDispatcher{}
	pub := &recordingPublisher{}

	accounts := NewAccountService(st.Accounts, st.Profiles, AccountConfig{
		InstitutionDomain: "ucla.edu",
		DefaultProfileImg: "/img/default.png",
		OpTimeout:         time.Second,
	}, log)
	notifications := NewNotificationService(st.Notifications, st.Pending, accounts, mail, pub, nil,
		NotificationConfig{PublicURL: "https://bruinswipes.test", OpTimeout: time.Second}, log)

	return &testEnv{
		store:         st,
		sessions:      NewSessionManager(st.Sessions, 24*time.Hour, time.Second, log),
		accounts:      accounts,
		listings:      NewListingService(st.Listings, accounts, notifications, time.Second, log),
		messaging:     NewMessagingService(st.Conversations, accounts, notifications, time.Second, log),
		notifications: notifications,
		mail:          mail,
		pushed:        pub,
		logHook:       hook,
	}
}

// certifiedUser signs up and certifies an account, returning its id.
func (e *testEnv) certifiedUser(t *testing.T, first, last, email string) string {
	t.Helper()
	ctx := context.Background()
	res := e.accounts.SignUp(ctx, first, last, "secret12", email)
	require.True(t, res.AccountCreated, res.Info)
	require.True(t, e.accounts.Certify(ctx, res.UserID, email).Certified)
	return res.UserID
}
