package domain

import (
	"fmt"
	"strings"
	"time"
)

type Period string

const (
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

const DefaultPlanDurationDays = 30

type Plan struct {
	ID           string    `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	PriceMonthly int64     `json:"priceMonthly"`
	PriceYearly  int64     `json:"priceYearly"`
	DurationDays int       `json:"durationDays"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func ParsePeriod(s string) (Period, error) {
	switch Period(strings.ToLower(strings.TrimSpace(s))) {
	case "", PeriodMonthly:
		return PeriodMonthly, nil
	case PeriodYearly:
		return PeriodYearly, nil
	}
	return "", fmt.Errorf("%w: unknown period %q", ErrValidation, s)
}

// PriceFor falls back to the monthly price when no yearly price is set.
func (p *Plan) PriceFor(period Period) (int64, error) {
	amount := p.PriceMonthly
	if period == PeriodYearly && p.PriceYearly > 0 {
		amount = p.PriceYearly
	}
	if amount <= 0 {
		return 0, fmt.Errorf("%w: plan %s has no valid %s price", ErrValidation, p.Code, period)
	}
	return amount, nil
}

func (p *Plan) Duration() time.Duration {
	days := p.DurationDays
	if days <= 0 {
		days = DefaultPlanDurationDays
	}
	return time.Duration(days) * 24 * time.Hour
}

func (p *Plan) OrderInfo(period Period) string {
	return fmt.Sprintf("Buy %s (%s)", p.Name, period)
}
