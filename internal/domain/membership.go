package domain

import "time"

type MembershipStatus string

const (
	MembershipActive  MembershipStatus = "active"
	MembershipExpired MembershipStatus = "expired"
)

// Membership is the single access record a user holds. Paid orders extend it.
type Membership struct {
	UserID    string
	PlanID    string
	Status    MembershipStatus
	StartedAt time.Time
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (m *Membership) ActiveAt(now time.Time) bool {
	return m != nil && m.Status == MembershipActive && m.ExpiresAt.After(now)
}

// Activate credits one plan period. A running membership is extended from its
// current expiry; a lapsed or missing one restarts at now.
func Activate(current *Membership, userID, planID string, period time.Duration, now time.Time) *Membership {
	if current.ActiveAt(now) {
		next := *current
		next.ExpiresAt = current.ExpiresAt.Add(period)
		next.UpdatedAt = now
		return &next
	}
	m := &Membership{
		UserID:    userID,
		PlanID:    planID,
		Status:    MembershipActive,
		StartedAt: now,
		ExpiresAt: now.Add(period),
		UpdatedAt: now,
	}
	if current != nil {
		m.CreatedAt = current.CreatedAt
	} else {
		m.CreatedAt = now
	}
	return m
}
