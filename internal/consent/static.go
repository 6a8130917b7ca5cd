package consent

import (
	"context"
	"sync"
)

// StaticService is an in-memory consent Service for tests and the offline
// CLI wiring. The necessary purpose is always granted; other purposes
// default to denied until granted explicitly.
type StaticService struct {
	mu     sync.RWMutex
	grants map[string]map[string]bool // userID → purpose → granted
}

// NewStaticService creates an empty static consent service.
func NewStaticService() *StaticService {
	return &StaticService{grants: make(map[string]map[string]bool)}
}

// Grant records consent for a user and purpose.
func (s *StaticService) Grant(userID, purpose string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grants[userID] == nil {
		s.grants[userID] = make(map[string]bool)
	}
	s.grants[userID][purpose] = true
}

// Revoke withdraws consent for a user and purpose.
func (s *StaticService) Revoke(userID, purpose string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grants[userID] != nil {
		delete(s.grants[userID], purpose)
	}
}

// Check implements Service.
func (s *StaticService) Check(_ context.Context, userID, purpose, _ string) (bool, error) {
	if purpose == "necessary" {
		return true, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grants[userID][purpose], nil
}

// AllowAllService grants every purpose. Demo mode only; the Rego purpose
// policy in front of it still rejects invalid purpose/category pairs.
type AllowAllService struct{}

// Check implements Service.
func (AllowAllService) Check(context.Context, string, string, string) (bool, error) {
	return true, nil
}
