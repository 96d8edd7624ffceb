// Package settings serves runtime-adjustable values. Values are read on
// every call so admin changes apply immediately.
package settings

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"go.uber.org/zap"

	"github.com/revaspay/settlement/internal/models"
	"github.com/revaspay/settlement/internal/repository"
	"github.com/revaspay/settlement/internal/utils"
)

// ErrInvalidThreshold is returned for negative or non-finite thresholds
var ErrInvalidThreshold = fmt.Errorf("%w: payout threshold must be a non-negative amount", repository.ErrValidation)

// Provider reads the payout threshold
type Provider interface {
	PayoutThreshold(ctx context.Context) (float64, error)
}

// Service is the settings provider backed by the settings table
type Service struct {
	repo             repository.SettingsRepository
	defaultThreshold float64
	log              *zap.Logger
}

// NewService creates a settings service falling back to defaultThreshold
func NewService(repo repository.SettingsRepository, defaultThreshold float64, log *zap.Logger) *Service {
	return &Service{repo: repo, defaultThreshold: defaultThreshold, log: log.Named("settings")}
}

// PayoutThreshold returns the stored threshold or the default when it is
// missing or unparsable
func (s *Service) PayoutThreshold(ctx context.Context) (float64, error) {
	raw, err := s.repo.Get(ctx, models.SettingPayoutThreshold)
	if errors.Is(err, repository.ErrNotFound) {
		return s.defaultThreshold, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read payout threshold: %w", err)
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		s.log.Warn("unusable payout threshold setting, using default",
			zap.String("value", raw),
			zap.Float64("default", s.defaultThreshold),
		)
		return s.defaultThreshold, nil
	}
	return value, nil
}

// SetPayoutThreshold stores a new threshold rounded to two decimals
func (s *Service) SetPayoutThreshold(ctx context.Context, value float64) (float64, error) {
	if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, ErrInvalidThreshold
	}
	value = utils.RoundMoney(value)
	if err := s.repo.Set(ctx, models.SettingPayoutThreshold, strconv.FormatFloat(value, 'f', 2, 64)); err != nil {
		return 0, fmt.Errorf("failed to store payout threshold: %w", err)
	}
	s.log.Info("payout threshold updated", zap.Float64("threshold", value))
	return value, nil
}
