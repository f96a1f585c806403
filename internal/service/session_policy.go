package service

import (
	"time"

	"github.com/marketlens/account-service/internal/domain"
)

// LoginDecision is the outcome of the concurrent-session policy for one
// login attempt.
type LoginDecision int

const (
	// DecisionAdmit creates a new session; the cap is not reached.
	DecisionAdmit LoginDecision = iota

	// DecisionAdmitSameDevice refreshes an existing session in place
	// because the incoming fingerprint exactly matches one of the live
	// sessions. No new record is created.
	DecisionAdmitSameDevice

	// DecisionEvictOldestAndAdmit invalidates the least-recently-active
	// session to make room, then creates a new one. Requires forced login.
	DecisionEvictOldestAndAdmit

	// DecisionReject refuses the login and surfaces the live session list
	// so the user can choose which device to terminate.
	DecisionReject
)

// LoginPlan describes what the store must do to carry out a decision. The
// policy itself performs no writes.
type LoginPlan struct {
	Decision LoginDecision

	// Reuse is the session to refresh in place on DecisionAdmitSameDevice.
	Reuse *domain.Session

	// Evict is the session to invalidate on DecisionEvictOldestAndAdmit.
	Evict *domain.Session

	// Active is the live session set the decision was made against.
	Active []*domain.Session
}

// PlanLogin applies the maximum-concurrent-session rule to the user's live
// sessions. The caller loads the active-unexpired set, executes the returned
// plan's writes, and owns the read-then-write race documented for concurrent
// logins of the same user.
func PlanLogin(active []*domain.Session, device domain.DeviceInfo, force bool, maxSessions int) LoginPlan {
	if len(active) < maxSessions {
		return LoginPlan{Decision: DecisionAdmit, Active: active}
	}

	for _, s := range active {
		if s.Device.SameDevice(device) {
			return LoginPlan{Decision: DecisionAdmitSameDevice, Reuse: s, Active: active}
		}
	}

	if !force {
		return LoginPlan{Decision: DecisionReject, Active: active}
	}

	return LoginPlan{Decision: DecisionEvictOldestAndAdmit, Evict: oldestByActivity(active), Active: active}
}

// oldestByActivity picks the session with the smallest lastActivity. Activity
// age, not creation age, decides eviction.
func oldestByActivity(sessions []*domain.Session) *domain.Session {
	var oldest *domain.Session
	var oldestAt time.Time

	for _, s := range sessions {
		if oldest == nil || s.LastActivity.Before(oldestAt) {
			oldest = s
			oldestAt = s.LastActivity
		}
	}

	return oldest
}
