package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bruinswipes/bruinswipes-backend/internal/models"
	"github.com/bruinswipes/bruinswipes-backend/internal/store"
	"github.com/bruinswipes/bruinswipes-backend/pkg/utils"
)

// User-visible outcomes. Clients match on these strings.
const (
	InfoEmailExists     = "EMAIL ALREADY EXISTS"
	InfoWeakPassword    = "PASSWORD DOES NOT MEET SECURITY STANDARDS"
	InfoInvalidName     = "NAME IS OF INVALID FORM. (No Spaces and at least 3 characters)"
	InfoAccountCreated  = "ACCOUNT CREATED"
	InfoSignUpFailed    = "SIGN UP FAILED. PLEASE TRY AGAIN LATER."
	InfoNoAccount       = "ACCOUNT DOES NOT EXIST"
	InfoWrongPassword   = "INCORRECT PASSWORD"
	InfoUncertified     = "UNCERTIFIED ACCOUNT. CHECK YOUR EMAIL."
	InfoLoginSuccessful = "LOGIN SUCCESSFUL"
	InfoLoginFailed     = "LOGIN FAILED. PLEASE TRY AGAIN LATER."
	InfoBadUserID       = "UserID is of incorrect format."
	InfoNoMatchingID    = "Account with matching ID does not exist."
	InfoIDEmailMismatch = "Inputted ID and email combo is incorrect."
	InfoCertified       = "Certification success. Please login through the login page."
	DefaultBio          = "Description not yet set."
)

const (
	defaultInstitution   = "ucla.edu"
	attributeProjectedID = "_id"
)

// InvalidEmailInfo is the signup rejection for addresses outside domain.
func InvalidEmailInfo(domain string) string {
	return fmt.Sprintf("EMAIL IS OF INVALID FORM. YOU MUST SIGN UP WITH A %s EMAIL", strings.ToUpper(domain))
}

type SignUpResult struct {
	Info           string `json:"info"`
	AccountCreated bool   `json:"accountCreated"`
	UserID         string `json:"user_id,omitempty"`
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
}

type LoginResult struct {
	Info     string `json:"info"`
	UserID   string `json:"user_id,omitempty"`
	LoggedIn bool   `json:"loggedIn"`
}

type CertifyResult struct {
	Info      string `json:"info"`
	Certified bool   `json:"certified"`
}

// Identity is what the client shows for the signed-in user.
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type AccountConfig struct {
	InstitutionDomain string
	DefaultProfileImg string
	OpTimeout         time.Duration
}

// AccountService owns signup, login, certification and profiles.
type AccountService struct {
	accounts   store.AccountRepository
	profiles   store.ProfileRepository
	cache      ProfileCache
	domain     string
	defaultImg string
	timeout    time.Duration
	logger     logrus.FieldLogger
	now        func() time.Time
}

func NewAccountService(accounts store.AccountRepository, profiles store.ProfileRepository, cfg AccountConfig, logger logrus.FieldLogger) *AccountService {
	domain := strings.ToLower(strings.TrimSpace(cfg.InstitutionDomain))
	if domain == "" {
		domain = defaultInstitution
	}
	return &AccountService{
		accounts:   accounts,
		profiles:   profiles,
		domain:     domain,
		defaultImg: cfg.DefaultProfileImg,
		timeout:    cfg.OpTimeout,
		logger:     logger,
		now:        time.Now,
	}
}

// WithProfileCache puts cache in front of profile reads.
func (s *AccountService) WithProfileCache(cache ProfileCache) *AccountService {
	s.cache = cache
	return s
}

// SignUp validates in a fixed order and the first failing check wins.
func (s *AccountService) SignUp(ctx context.Context, first, last, password, email string) SignUpResult {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	email = strings.TrimSpace(email)
	_, err := s.accounts.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return SignUpResult{Info: InfoEmailExists}
	case !errors.Is(err, store.ErrNotFound):
		s.logger.WithFields(logrus.Fields{"email": email, "error": err.Error()}).Error("signup lookup failed")
		return SignUpResult{Info: InfoSignUpFailed}
	}

	if !utils.ValidatePasswordPolicy(password) {
		return SignUpResult{Info: InfoWeakPassword}
	}
	if !utils.ValidateEmailFormat(email, s.domain) {
		return SignUpResult{Info: InvalidEmailInfo(s.domain)}
	}
	if !utils.ValidateNameFormat(first, last) {
		return SignUpResult{Info: InfoInvalidName}
	}

	salt, hash, err := utils.HashPassword(password)
	if err != nil {
		s.logger.WithField("error", err.Error()).Error("hash password")
		return SignUpResult{Info: InfoSignUpFailed}
	}

	now := s.now().UTC()
	account := &models.Account{
		CreatedAt: now,
		First:     first,
		Last:      last,
		Email:     email,
		Hash:      hash,
		Salt:      salt,
	}
	id, err := s.accounts.Create(ctx, account)
	if errors.Is(err, store.ErrDuplicate) {
		return SignUpResult{Info: InfoEmailExists}
	}
	if err != nil {
		s.logger.WithFields(logrus.Fields{"email": email, "error": err.Error()}).Error("create account")
		return SignUpResult{Info: InfoSignUpFailed}
	}

	profile := &models.Profile{
		UserID:    id.Hex(),
		Name:      account.FullName(),
		Email:     email,
		Bio:       DefaultBio,
		Img:       s.defaultImg,
		CreatedAt: now,
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		// The account stands; the profile page falls back to empty.
		s.logger.WithFields(logrus.Fields{"user_id": id.Hex(), "error": err.Error()}).Error("create profile")
	}

	s.logger.WithField("user_id", id.Hex()).Info("account created")
	return SignUpResult{
		Info:           InfoAccountCreated,
		AccountCreated: true,
		UserID:         id.Hex(),
		Name:           account.FullName(),
		Email:          email,
	}
}

func (s *AccountService) Login(ctx context.Context, email, password string) LoginResult {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	account, err := s.accounts.FindByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		return LoginResult{Info: InfoNoAccount}
	}
	if err != nil {
		s.logger.WithField("error", err.Error()).Error("login lookup failed")
		return LoginResult{Info: InfoLoginFailed}
	}
	if !utils.VerifyPassword(password, account.Hash, account.Salt) {
		return LoginResult{Info: InfoWrongPassword}
	}
	if !account.Certified {
		return LoginResult{Info: InfoUncertified}
	}
	return LoginResult{Info: InfoLoginSuccessful, UserID: account.ID.Hex(), LoggedIn: true}
}

// Certify flips certified for userID when email matches the stored address.
func (s *AccountService) Certify(ctx context.Context, userID, email string) CertifyResult {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return CertifyResult{Info: InfoBadUserID}
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.WithField("error", err.Error()).Error("certify lookup failed")
		}
		return CertifyResult{Info: InfoNoMatchingID}
	}
	if account.Email != email {
		return CertifyResult{Info: InfoIDEmailMismatch}
	}
	if !account.Certified {
		if err := s.accounts.SetCertified(ctx, id); err != nil {
			s.logger.WithField("error", err.Error()).Error("set certified")
			return CertifyResult{Info: InfoNoMatchingID}
		}
	}
	return CertifyResult{Info: InfoCertified, Certified: true}
}

// Account loads the account behind a user id.
func (s *AccountService) Account(ctx context.Context, userID string) (*models.Account, error) {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, store.ErrNotFound
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.accounts.FindByID(ctx, id)
}

// AccountByEmail loads the account registered under email, ignoring case.
func (s *AccountService) AccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.accounts.FindByEmail(ctx, strings.TrimSpace(email))
}

// GetAccountAttribute projects attrs from the account found by id or email.
// One attribute returns its value, several return a map. Any fault yields nil.
// hash and salt are never exposed.
func (s *AccountService) GetAccountAttribute(ctx context.Context, idOrEmail string, byEmail bool, attrs ...string) any {
	if len(attrs) == 0 {
		return nil
	}
	var (
		account *models.Account
		err     error
	)
	if byEmail {
		account, err = s.AccountByEmail(ctx, idOrEmail)
	} else {
		account, err = s.Account(ctx, idOrEmail)
	}
	if err != nil {
		return nil
	}

	fields := accountAttributes(account)
	if len(attrs) == 1 {
		return fields[attrs[0]]
	}
	out := make(map[string]any, len(attrs))
	for _, a := range attrs {
		if v, ok := fields[a]; ok {
			out[a] = v
		}
	}
	return out
}

func accountAttributes(a *models.Account) map[string]any {
	return map[string]any{
		attributeProjectedID: a.ID.Hex(),
		"first":              a.First,
		"last":               a.Last,
		"email":              a.Email,
		"certified":          a.Certified,
		"time":               a.CreatedAt,
	}
}

// VerifyIdentity returns the display identity of userID, or nil.
func (s *AccountService) VerifyIdentity(ctx context.Context, userID string) *Identity {
	account, err := s.Account(ctx, userID)
	if err != nil {
		return nil
	}
	return &Identity{Name: account.FullName(), Email: account.Email}
}

// FetchProfile returns nil when no profile exists or the store fails.
func (s *AccountService) FetchProfile(ctx context.Context, email string) *models.Profile {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	email = strings.TrimSpace(email)

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, email)
		if err != nil {
			s.logger.WithField("error", err.Error()).Warn("profile cache read")
		} else if cached != nil {
			return cached
		}
	}

	profile, err := s.profiles.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.WithField("error", err.Error()).Error("fetch profile")
		}
		return nil
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, profile); err != nil {
			s.logger.WithField("error", err.Error()).Warn("profile cache write")
		}
	}
	return profile
}

// PostProfile applies the non-empty whitelisted fields. Nothing to apply, or
// nothing changed, is a failure.
func (s *AccountService) PostProfile(ctx context.Context, userID string, update models.ProfileUpdate) StatusResult {
	if update.Bio != nil && *update.Bio == "" {
		update.Bio = nil
	}
	if update.Img != nil && *update.Img == "" {
		update.Img = nil
	}
	if userID == "" || update.Empty() {
		return fail()
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	changed, err := s.profiles.Update(ctx, userID, update)
	if err != nil {
		s.logger.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).Error("update profile")
		return fail()
	}
	if !changed {
		return fail()
	}
	s.invalidateProfile(ctx, userID)
	return success()
}

func (s *AccountService) invalidateProfile(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	account, err := s.Account(ctx, userID)
	if err != nil {
		return
	}
	if err := s.cache.Delete(ctx, account.Email); err != nil {
		s.logger.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).Warn("profile cache invalidate")
	}
}
