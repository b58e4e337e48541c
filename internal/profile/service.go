package profile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joao-fontenele/storefront-core/internal/domain"
	"github.com/joao-fontenele/storefront-core/internal/storage"
)

type NewUser struct {
	ExternalID *int64
	Username   string
	FirstName  string
	LastName   string
}

// ExternalIdentity is a chat-side user submitted for a canonical id.
type ExternalIdentity struct {
	ExternalID int64  `json:"telegram_id"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
}

type Provisioned struct {
	UserID       int64  `json:"user_id"`
	IsNew        bool   `json:"is_new"`
	ReferralCode string `json:"referral_code"`
}

type Store interface {
	Insert(ctx context.Context, nu NewUser, referralCode string) (*domain.User, error)
	GetByExternalID(ctx context.Context, externalID int64) (*domain.User, error)
	UpdateDisplay(ctx context.Context, id int64, nu NewUser) (*domain.User, error)
	ListExternal(ctx context.Context, offset, limit int) ([]domain.User, int, error)
}

type Service struct {
	store   Store
	randInt func() int
	logger  *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		randInt: randomSuffix,
		logger:  logger,
	}
}

// Register creates a user with a unique referral code, regenerating the code
// when it collides with an existing one.
func (s *Service) Register(ctx context.Context, nu NewUser) (domain.User, error) {
	if nu.FirstName == "" {
		return domain.User{}, domain.ErrInvalidIdentity
	}

	for attempt := range maxReferralAttempts {
		code := ReferralCode(nu.ExternalID, attempt, s.randInt)
		u, err := s.store.Insert(ctx, nu, code)
		if err == nil {
			s.logger.Info("user registered", "user_id", u.ID, "referral_code", code)
			return *u, nil
		}
		if !storage.IsUniqueViolation(err, referralConstraint) {
			return domain.User{}, fmt.Errorf("insert user: %w", err)
		}
		s.logger.Warn("referral code collision", "referral_code", code, "attempt", attempt+1)
	}

	return domain.User{}, fmt.Errorf("no unique referral code after %d attempts", maxReferralAttempts)
}

// EnsureExternal maps an external identity to a canonical user, creating it
// on first sight and refreshing display attributes otherwise.
func (s *Service) EnsureExternal(ctx context.Context, id ExternalIdentity) (Provisioned, error) {
	if id.ExternalID == 0 || id.FirstName == "" {
		return Provisioned{}, domain.ErrInvalidIdentity
	}

	nu := NewUser{
		ExternalID: &id.ExternalID,
		Username:   id.Username,
		FirstName:  id.FirstName,
		LastName:   id.LastName,
	}

	existing, err := s.store.GetByExternalID(ctx, id.ExternalID)
	if err != nil {
		return Provisioned{}, err
	}
	if existing == nil {
		u, err := s.Register(ctx, nu)
		switch {
		case err == nil:
			return Provisioned{UserID: u.ID, IsNew: true, ReferralCode: u.ReferralCode}, nil
		case storage.IsUniqueViolation(err, externalIDConstraint):
			// Lost a race with a concurrent provisioning of the same identity.
			existing, err = s.store.GetByExternalID(ctx, id.ExternalID)
			if err != nil {
				return Provisioned{}, err
			}
			if existing == nil {
				return Provisioned{}, domain.ErrUserNotFound
			}
		default:
			return Provisioned{}, err
		}
	}

	u, err := s.store.UpdateDisplay(ctx, existing.ID, nu)
	if err != nil {
		return Provisioned{}, fmt.Errorf("update user: %w", err)
	}
	return Provisioned{UserID: u.ID, IsNew: false, ReferralCode: u.ReferralCode}, nil
}

func (s *Service) ListExternal(ctx context.Context, offset, limit int) ([]domain.User, int, error) {
	return s.store.ListExternal(ctx, offset, limit)
}
