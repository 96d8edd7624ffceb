// Package partner administers referral partners: approving creator
// applications into partners with a code, and pausing or banning them.
package partner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/revaspay/settlement/internal/models"
	"github.com/revaspay/settlement/internal/repository"
	"github.com/revaspay/settlement/internal/utils"
)

const (
	MinCodeLength = 4
	MaxCodeLength = 20
)

var codeSeparators = strings.NewReplacer("-", "", "_", "")

var (
	ErrInvalidCode    = fmt.Errorf("%w: referral code must be %d-%d letters or digits", repository.ErrValidation, MinCodeLength, MaxCodeLength)
	ErrInvalidPercent = fmt.Errorf("%w: percentages must be between 0 and 100", repository.ErrValidation)
	ErrInvalidStatus  = fmt.Errorf("%w: unknown partner status", repository.ErrValidation)
	ErrCodeTaken      = fmt.Errorf("%w: referral code or creator already registered", repository.ErrConflict)
)

// ApplicationApproval is an approved creator application
type ApplicationApproval struct {
	UserID            string     `json:"user_id" binding:"required"`
	DisplayName       string     `json:"display_name"`
	Email             string     `json:"email" binding:"omitempty,email"`
	RequestedCode     string     `json:"referral_code" binding:"required"`
	DiscountPercent   float64    `json:"discount_percent"`
	CommissionPercent float64    `json:"commission_percent"`
	MaxUses           *int       `json:"max_uses"`
	ExpiresAt         *time.Time `json:"expires_at"`
}

// Service manages referral partners
type Service struct {
	partners repository.PartnerRepository
	log      *zap.Logger
}

// NewService creates the partner service
func NewService(partners repository.PartnerRepository, log *zap.Logger) *Service {
	return &Service{partners: partners, log: log.Named("partner")}
}

// NormalizeCode turns a requested code into its stored form: transliterated,
// uppercased, separators removed
func NormalizeCode(requested string) (string, error) {
	code := strings.ToUpper(codeSeparators.Replace(slug.Make(requested)))
	if len(code) < MinCodeLength || len(code) > MaxCodeLength {
		return "", ErrInvalidCode
	}
	return code, nil
}

func validPercent(p float64) bool {
	return !math.IsNaN(p) && p >= 0 && p <= 100
}

// CreateFromApplication creates an active partner from an approved application
func (s *Service) CreateFromApplication(ctx context.Context, app ApplicationApproval) (*models.ReferralPartner, error) {
	userID := strings.TrimSpace(app.UserID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", repository.ErrValidation)
	}
	code, err := NormalizeCode(app.RequestedCode)
	if err != nil {
		return nil, err
	}
	if !validPercent(app.DiscountPercent) || !validPercent(app.CommissionPercent) {
		return nil, ErrInvalidPercent
	}
	if app.MaxUses != nil && *app.MaxUses < 0 {
		return nil, fmt.Errorf("%w: max uses cannot be negative", repository.ErrValidation)
	}

	partner := &models.ReferralPartner{
		UserID:            userID,
		DisplayName:       strings.TrimSpace(app.DisplayName),
		Email:             strings.ToLower(strings.TrimSpace(app.Email)),
		ReferralCode:      code,
		DiscountPercent:   utils.RoundMoney(app.DiscountPercent),
		CommissionPercent: utils.RoundMoney(app.CommissionPercent),
		MaxUses:           app.MaxUses,
		Status:            models.PartnerStatusActive,
	}
	if app.ExpiresAt != nil {
		expires := app.ExpiresAt.UTC()
		partner.ExpiresAt = &expires
	}

	if err := s.partners.Create(ctx, partner); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrCodeTaken
		}
		return nil, fmt.Errorf("failed to create partner: %w", err)
	}

	s.log.Info("partner created",
		zap.String("partner_id", partner.ID.String()),
		zap.String("code", partner.ReferralCode),
		zap.String("user_id", partner.UserID),
	)
	return partner, nil
}

// SetStatus changes a partner's status
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status models.PartnerStatus) (*models.ReferralPartner, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	if err := s.partners.SetStatus(ctx, id, status); err != nil {
		return nil, err
	}
	s.log.Info("partner status changed", zap.String("partner_id", id.String()), zap.String("status", string(status)))
	return s.partners.GetByID(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.ReferralPartner, error) {
	return s.partners.GetByID(ctx, id)
}

func (s *Service) GetByUserID(ctx context.Context, userID string) (*models.ReferralPartner, error) {
	return s.partners.GetByUserID(ctx, userID)
}

func (s *Service) List(ctx context.Context, page repository.Page) ([]models.ReferralPartner, int64, error) {
	return s.partners.List(ctx, page)
}
