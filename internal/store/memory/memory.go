// Package memory keeps every repository in process. It backs STORE=memory
// development runs and the service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bruinswipes/bruinswipes-backend/internal/models"
	"github.com/bruinswipes/bruinswipes-backend/internal/store"
)

type db struct {
	mu            sync.RWMutex
	accounts      []models.Account
	profiles      []models.Profile
	sessions      []models.Session
	listings      []models.Listing
	conversations []models.Conversation
	notifications []models.Notification
	pending       []models.PendingCount
}

// New returns a Store whose repositories share one in-process database.
func New() *store.Store {
	d := &db{}
	return &store.Store{
		Accounts:      &AccountRepository{d},
		Profiles:      &ProfileRepository{d},
		Sessions:      &SessionRepository{d},
		Listings:      &ListingRepository{d},
		Conversations: &ConversationRepository{d},
		Notifications: &NotificationRepository{d},
		Pending:       &PendingCountRepository{d},
	}
}

type AccountRepository struct{ db *db }

func (r *AccountRepository) Create(_ context.Context, account *models.Account) (primitive.ObjectID, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, a := range r.db.accounts {
		if strings.EqualFold(a.Email, account.Email) {
			return primitive.NilObjectID, store.ErrDuplicate
		}
	}
	if account.ID.IsZero() {
		account.ID = primitive.NewObjectID()
	}
	account.EmailLower = strings.ToLower(account.Email)
	r.db.accounts = append(r.db.accounts, *account)
	return account.ID, nil
}

func (r *AccountRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.Account, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, a := range r.db.accounts {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *AccountRepository) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, a := range r.db.accounts {
		if strings.EqualFold(a.Email, email) {
			return &a, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *AccountRepository) SetCertified(_ context.Context, id primitive.ObjectID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range r.db.accounts {
		if r.db.accounts[i].ID == id {
			r.db.accounts[i].Certified = true
			return nil
		}
	}
	return store.ErrNotFound
}

type ProfileRepository struct{ db *db }

func (r *ProfileRepository) Create(_ context.Context, profile *models.Profile) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if profile.ID.IsZero() {
		profile.ID = primitive.NewObjectID()
	}
	r.db.profiles = append(r.db.profiles, *profile)
	return nil
}

func (r *ProfileRepository) FindByEmail(_ context.Context, email string) (*models.Profile, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, p := range r.db.profiles {
		if strings.EqualFold(p.Email, email) {
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *ProfileRepository) Update(_ context.Context, userID string, update models.ProfileUpdate) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range r.db.profiles {
		p := &r.db.profiles[i]
		if p.UserID != userID {
			continue
		}
		changed := false
		if update.Bio != nil && *update.Bio != p.Bio {
			p.Bio, changed = *update.Bio, true
		}
		if update.Img != nil && *update.Img != p.Img {
			p.Img, changed = *update.Img, true
		}
		return changed, nil
	}
	return false, nil
}

type SessionRepository struct{ db *db }

func (r *SessionRepository) find(match func(models.Session) bool) (*models.Session, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, s := range r.db.sessions {
		if match(s) {
			return &s, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *SessionRepository) FindByUserID(_ context.Context, userID string) (*models.Session, error) {
	return r.find(func(s models.Session) bool { return s.UserID == userID })
}

func (r *SessionRepository) FindByToken(_ context.Context, token string) (*models.Session, error) {
	return r.find(func(s models.Session) bool { return s.Token == token })
}

func (r *SessionRepository) Create(_ context.Context, session *models.Session) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, s := range r.db.sessions {
		if s.UserID == session.UserID || s.Token == session.Token {
			return store.ErrDuplicate
		}
	}
	if session.ID.IsZero() {
		session.ID = primitive.NewObjectID()
	}
	r.db.sessions = append(r.db.sessions, *session)
	return nil
}

func (r *SessionRepository) Touch(_ context.Context, userID string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range r.db.sessions {
		if r.db.sessions[i].UserID == userID {
			r.db.sessions[i].IssuedAt = at
			return nil
		}
	}
	return store.ErrNotFound
}

func (r *SessionRepository) DeleteByToken(_ context.Context, token string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	kept := r.db.sessions[:0]
	for _, s := range r.db.sessions {
		if s.Token != token {
			kept = append(kept, s)
		}
	}
	r.db.sessions = kept
	return nil
}

type ListingRepository struct{ db *db }

func (r *ListingRepository) Create(_ context.Context, listing *models.Listing) (primitive.ObjectID, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if listing.ID.IsZero() {
		listing.ID = primitive.NewObjectID()
	}
	r.db.listings = append(r.db.listings, *listing)
	return listing.ID, nil
}

// Find runs the query's BSON filter and sort against the stored listings.
func (r *ListingRepository) Find(_ context.Context, q store.ListingQuery) ([]models.Listing, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	type hit struct {
		doc     bson.M
		listing models.Listing
	}
	var hits []hit
	for _, l := range r.db.listings {
		doc, err := toDocument(l)
		if err != nil {
			return nil, err
		}
		ok, err := Matches(doc, q.Filter)
		if err != nil {
			return nil, err
		}
		if ok {
			hits = append(hits, hit{doc: doc, listing: l})
		}
	}

	less := lessBySpec(q.Sort)
	sort.SliceStable(hits, func(i, j int) bool { return less(hits[i].doc, hits[j].doc) })

	out := make([]models.Listing, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.listing)
	}
	return out, nil
}

func (r *ListingRepository) Resolve(_ context.Context, id primitive.ObjectID, ownerEmail string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range r.db.listings {
		l := &r.db.listings[i]
		if l.ID == id && strings.EqualFold(l.User.Email, ownerEmail) {
			if l.Resolved {
				return false, nil
			}
			l.Resolved = true
			return true, nil
		}
	}
	return false, nil
}

func (r *ListingRepository) FindOwned(_ context.Context, id primitive.ObjectID, ownerEmail string) (*models.Listing, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, l := range r.db.listings {
		if l.ID == id && strings.EqualFold(l.User.Email, ownerEmail) {
			return &l, nil
		}
	}
	return nil, store.ErrNotFound
}

type ConversationRepository struct{ db *db }

func (r *ConversationRepository) AppendMessage(_ context.Context, a, b string, msg models.Message) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	key := models.PairKey(a, b)
	for i := range r.db.conversations {
		c := &r.db.conversations[i]
		if c.PairKey == key {
			c.Messages = append(c.Messages, msg)
			return false, nil
		}
	}
	for i := range r.db.conversations {
		c := &r.db.conversations[i]
		if c.PairKey == "" && hasPeople(c.People, a, b) {
			c.PairKey = key
			c.Messages = append(c.Messages, msg)
			return false, nil
		}
	}
	r.db.conversations = append(r.db.conversations, models.Conversation{
		ID:       primitive.NewObjectID(),
		People:   []string{a, b},
		PairKey:  key,
		Messages: []models.Message{msg},
	})
	return true, nil
}

// hasPeople reports whether people contains both a and b, ignoring case.
func hasPeople(people []string, a, b string) bool {
	var foundA, foundB bool
	for _, p := range people {
		foundA = foundA || strings.EqualFold(p, a)
		foundB = foundB || strings.EqualFold(p, b)
	}
	return foundA && foundB
}

func (r *ConversationRepository) FindByParticipant(_ context.Context, email string) ([]models.Conversation, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := []models.Conversation{}
	for _, c := range r.db.conversations {
		for _, p := range c.People {
			if strings.EqualFold(p, email) {
				c.People = append([]string(nil), c.People...)
				c.Messages = append([]models.Message(nil), c.Messages...)
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

type NotificationRepository struct{ db *db }

func (r *NotificationRepository) Create(_ context.Context, n *models.Notification) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	r.db.notifications = append(r.db.notifications, *n)
	return nil
}

// FindByUser returns the newest notifications first.
func (r *NotificationRepository) FindByUser(_ context.Context, userID string) ([]models.Notification, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := []models.Notification{}
	for _, n := range r.db.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.After(out[j].Time) })
	return out, nil
}

func (r *NotificationRepository) MarkAllRead(_ context.Context, userID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range r.db.notifications {
		if r.db.notifications[i].UserID == userID {
			r.db.notifications[i].Read = true
		}
	}
	return nil
}

type PendingCountRepository struct{ db *db }

func (r *PendingCountRepository) Increment(_ context.Context, recipient, sender string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range r.db.pending {
		p := &r.db.pending[i]
		if p.Email == recipient && p.From == sender {
			p.Count++
			return nil
		}
	}
	r.db.pending = append(r.db.pending, models.PendingCount{
		ID:    primitive.NewObjectID(),
		Email: recipient,
		From:  sender,
		Count: 1,
	})
	return nil
}

func (r *PendingCountRepository) All(_ context.Context) ([]models.PendingCount, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return append([]models.PendingCount{}, r.db.pending...), nil
}

func (r *PendingCountRepository) Delete(_ context.Context, ids []primitive.ObjectID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	drop := make(map[primitive.ObjectID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := r.db.pending[:0]
	for _, p := range r.db.pending {
		if _, ok := drop[p.ID]; !ok {
			kept = append(kept, p)
		}
	}
	r.db.pending = kept
	return nil
}
