// Package fraud records referral code usage and raises review flags. It
// never blocks a checkout: every failure is logged and dropped.
package fraud

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/revaspay/settlement/internal/config"
	"github.com/revaspay/settlement/internal/models"
	"github.com/revaspay/settlement/internal/repository"
)

// Usage is one checkout attempt with a referral code
type Usage struct {
	Code    string
	IP      string
	Email   string
	BuyerID string
}

// Monitor evaluates the usage heuristics
type Monitor struct {
	repo repository.FraudRepository
	cfg  config.FraudConfig
	log  *zap.Logger
	now  func() time.Time

	wg sync.WaitGroup
}

// NewMonitor creates a fraud monitor
func NewMonitor(repo repository.FraudRepository, cfg config.FraudConfig, log *zap.Logger) *Monitor {
	if cfg.Retention <= 0 {
		cfg.Retention = 90 * 24 * time.Hour
	}
	if cfg.RapidRepeatWindow <= 0 {
		cfg.RapidRepeatWindow = 10 * time.Minute
	}
	if cfg.RapidRepeatLimit <= 0 {
		cfg.RapidRepeatLimit = 3
	}
	if cfg.PatternLimit <= 0 {
		cfg.PatternLimit = 3
	}
	if cfg.ObserveTimeout <= 0 {
		cfg.ObserveTimeout = 5 * time.Second
	}
	return &Monitor{
		repo: repo,
		cfg:  cfg,
		log:  log.Named("fraud"),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Observe records a code_usage entry, then flags rapid repeats from one
// address and repeated use by one email
func (m *Monitor) Observe(ctx context.Context, u Usage) {
	u = normalize(u)
	if u.Code == "" {
		return
	}
	now := m.now()
	if !m.record(ctx, u, models.FraudLogCodeUsage, "", now) {
		return
	}

	if u.IP != "" {
		count, err := m.repo.CountByIPSince(ctx, u.Code, u.IP, now.Add(-m.cfg.RapidRepeatWindow))
		if err != nil {
			m.log.Warn("rapid repeat check failed", zap.String("code", u.Code), zap.Error(err))
		} else if count > int64(m.cfg.RapidRepeatLimit) {
			detail := fmt.Sprintf("%d uses from %s within %s", count, u.IP, m.cfg.RapidRepeatWindow)
			m.record(ctx, u, models.FraudLogRapidRepeat, detail, now)
		}
	}

	if u.Email != "" {
		count, err := m.repo.CountByEmail(ctx, u.Code, u.Email)
		if err != nil {
			m.log.Warn("pattern check failed", zap.String("code", u.Code), zap.Error(err))
		} else if count > int64(m.cfg.PatternLimit) {
			detail := fmt.Sprintf("%d uses by %s", count, u.Email)
			m.record(ctx, u, models.FraudLogSuspiciousPattern, detail, now)
		}
	}
}

// ObserveAsync runs Observe on its own goroutine and deadline
func (m *Monitor) ObserveAsync(u Usage) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ObserveTimeout)
		defer cancel()
		m.Observe(ctx, u)
	}()
}

// Wait blocks until detached observations finish
func (m *Monitor) Wait() {
	m.wg.Wait()
}

// RecordSelfUse logs a creator trying their own code
func (m *Monitor) RecordSelfUse(ctx context.Context, u Usage) {
	u = normalize(u)
	m.record(ctx, u, models.FraudLogSelfUse, "buyer is the code owner", m.now())
}

// Purge deletes entries past their retention
func (m *Monitor) Purge(ctx context.Context) (int64, error) {
	n, err := m.repo.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge fraud log: %w", err)
	}
	if n > 0 {
		m.log.Info("fraud log purged", zap.Int64("deleted", n))
	}
	return n, nil
}

// Flags lists review flags, newest first. An empty type lists every flag
// type except plain code_usage.
func (m *Monitor) Flags(ctx context.Context, logType models.FraudLogType, page repository.Page) ([]models.FraudLogEntry, int64, error) {
	return m.repo.List(ctx, logType, page)
}

func (m *Monitor) record(ctx context.Context, u Usage, logType models.FraudLogType, detail string, now time.Time) bool {
	entry := &models.FraudLogEntry{
		ReferralCode: u.Code,
		Type:         logType,
		IPAddress:    u.IP,
		Email:        u.Email,
		BuyerID:      u.BuyerID,
		Detail:       detail,
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.cfg.Retention),
	}
	if err := m.repo.Create(ctx, entry); err != nil {
		m.log.Warn("failed to write fraud log",
			zap.String("code", u.Code),
			zap.String("type", string(logType)),
			zap.Error(err),
		)
		return false
	}
	if logType != models.FraudLogCodeUsage {
		m.log.Warn("fraud flag raised",
			zap.String("code", u.Code),
			zap.String("type", string(logType)),
			zap.String("ip", u.IP),
			zap.String("detail", detail),
		)
	}
	return true
}

func normalize(u Usage) Usage {
	u.Code = strings.ToUpper(strings.TrimSpace(u.Code))
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.IP = strings.TrimSpace(u.IP)
	return u
}
