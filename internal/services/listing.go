package services

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bruinswipes/bruinswipes-backend/internal/models"
	"github.com/bruinswipes/bruinswipes-backend/internal/store"
)

const InfoNoResults = "No results match your filter. Try broadening your search!"

var validate = validator.New()

// ListingBody is the client payload of /post-listing. The owner is never
// taken from the body.
type ListingBody struct {
	Location   string   `json:"location" validate:"required"`
	Price      *float64 `json:"price" validate:"required,gte=0"`
	Time       int64    `json:"time" validate:"required,gt=0"`
	TimePosted int64    `json:"time_posted" validate:"gte=0"`
	Selling    bool     `json:"selling"`
}

type ListingQueryResult struct {
	Data []models.Listing `json:"data"`
	Info string           `json:"info,omitempty"`
}

// ListingNotifier receives listing side effects. Implementations must not block.
type ListingNotifier interface {
	NotifyListingResolved(listing models.Listing, ownerEmail string)
}

type ListingService struct {
	listings store.ListingRepository
	accounts *AccountService
	notifier ListingNotifier
	timeout  time.Duration
	logger   logrus.FieldLogger
	now      func() time.Time
}

func NewListingService(listings store.ListingRepository, accounts *AccountService, notifier ListingNotifier, timeout time.Duration, logger logrus.FieldLogger) *ListingService {
	return &ListingService{
		listings: listings,
		accounts: accounts,
		notifier: notifier,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

// QueryListings runs the search for userID. An empty result carries InfoNoResults.
func (s *ListingService) QueryListings(ctx context.Context, userID string, f ListingFilter) ListingQueryResult {
	empty := ListingQueryResult{Data: []models.Listing{}, Info: InfoNoResults}

	var ownerEmail string
	if f.GetSelf {
		account, err := s.accounts.Account(ctx, userID)
		if err != nil {
			return empty
		}
		ownerEmail = account.Email
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	listings, err := s.listings.Find(ctx, BuildListingQuery(f, ownerEmail))
	if err != nil {
		s.logger.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).Error("query listings")
		return empty
	}
	if len(listings) == 0 {
		return empty
	}
	return ListingQueryResult{Data: listings}
}

// InsertListing stamps the owner from userID and stores the listing unresolved.
func (s *ListingService) InsertListing(ctx context.Context, userID string, body ListingBody) StatusResult {
	body.Location = strings.TrimSpace(body.Location)
	if err := validate.Struct(body); err != nil {
		return fail()
	}
	account, err := s.accounts.Account(ctx, userID)
	if err != nil {
		return fail()
	}

	posted := body.TimePosted
	if posted == 0 {
		posted = s.now().UnixMilli()
	}
	listing := &models.Listing{
		User: models.ListingOwner{
			Email: account.Email,
			First: account.First,
			Last:  account.Last,
		},
		Location:   body.Location,
		Price:      decimal.NewFromFloat(*body.Price).Round(2).InexactFloat64(),
		Time:       body.Time,
		TimePosted: posted,
		Selling:    body.Selling,
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.listings.Create(ctx, listing); err != nil {
		s.logger.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).Error("insert listing")
		return fail()
	}
	return success()
}

// ResolveListing marks the listing resolved when userID owns it. The owner is
// notified only on the transition; resolving again succeeds quietly.
func (s *ListingService) ResolveListing(ctx context.Context, userID, listingID string) StatusResult {
	id, err := primitive.ObjectIDFromHex(listingID)
	if err != nil {
		return fail()
	}
	account, err := s.accounts.Account(ctx, userID)
	if err != nil {
		return fail()
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	changed, err := s.listings.Resolve(ctx, id, account.Email)
	if err != nil {
		s.logger.WithFields(logrus.Fields{"listing_id": listingID, "error": err.Error()}).Error("resolve listing")
		return fail()
	}

	listing, err := s.listings.FindOwned(ctx, id, account.Email)
	if err != nil {
		return fail()
	}
	if !changed {
		if listing.Resolved {
			return success()
		}
		return fail()
	}
	if s.notifier != nil {
		s.notifier.NotifyListingResolved(*listing, account.Email)
	}
	return success()
}
