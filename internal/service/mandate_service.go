package service

import (
	"context"
	"time"

	"github.com/mandate-authority/mandate-authority/internal/apierr"
	"github.com/mandate-authority/mandate-authority/internal/domain/mandate"
)

// MandateService wraps mandate.Store for the inbound HTTP surface's
// GET /mandates/:id, translating the store's sentinel not-found into
// the api error taxonomy.
type MandateService struct {
	store mandate.Store
	now   func() time.Time
}

func NewMandateService(store mandate.Store) *MandateService {
	return &MandateService{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func (s *MandateService) FindOne(ctx context.Context, mandateID string) (*mandate.Mandate, error) {
	m, err := s.store.Get(ctx, mandateID, s.now())
	if err != nil {
		return nil, apierr.New(apierr.KindNotFound, "mandate not found")
	}
	return m, nil
}

func (s *MandateService) FindByAgentAndContext(ctx context.Context, agentID string, context map[string]string) (*mandate.Mandate, error) {
	m, err := s.store.FindByAgentAndContext(ctx, agentID, context, s.now())
	if err != nil {
		return nil, apierr.New(apierr.KindNotFound, "no matching mandate")
	}
	return m, nil
}
