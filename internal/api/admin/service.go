package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Conversly/whatsapp-faq-bot/internal/loaders"
	"github.com/Conversly/whatsapp-faq-bot/internal/types"
	"github.com/Conversly/whatsapp-faq-bot/internal/utils"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmbedding means the FAQ could not be embedded; nothing was written.
	ErrEmbedding = errors.New("embedding failed")
)

// Store is the persistence the admin API needs.
type Store interface {
	GetTenant(ctx context.Context, id string) (*types.Tenant, error)
	ListTenants(ctx context.Context, includeInactive bool) ([]types.Tenant, error)
	CreateTenant(ctx context.Context, t *types.Tenant) error
	UpdateTenant(ctx context.Context, t *types.Tenant) error
	DeactivateTenant(ctx context.Context, id string) error

	ListActiveFAQs(ctx context.Context, tenantID string) ([]types.FAQEntry, error)
	GetFAQ(ctx context.Context, id int64) (*types.FAQEntry, error)
	CreateFAQ(ctx context.Context, f *types.FAQEntry) error
	UpdateFAQText(ctx context.Context, f *types.FAQEntry) error
	UpdateFAQWithEmbedding(ctx context.Context, f *types.FAQEntry) error
	DeactivateFAQ(ctx context.Context, id int64) error

	ListLatestConversations(ctx context.Context, tenantID string) ([]types.ConversationMessage, error)
	GetConversationThread(ctx context.Context, tenantID, waID string, limit int) ([]types.ConversationMessage, error)
	GetConversationStats(ctx context.Context, tenantID string) (*types.ConversationStats, error)
	HideConversation(ctx context.Context, tenantID, waID string) (int64, error)
}

// DocumentEmbedder embeds FAQ questions for storage.
type DocumentEmbedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
}

// TenantCache is told about phone number ids whose tenant changed.
type TenantCache interface {
	Invalidate(phoneNumberIDs ...string)
}

type Service struct {
	store    Store
	embedder DocumentEmbedder
	cache    TenantCache
}

func NewService(store Store, embedder DocumentEmbedder, cache TenantCache) *Service {
	return &Service{store: store, embedder: embedder, cache: cache}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func trimmed(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func (s *Service) invalidate(phoneNumberIDs ...string) {
	if s.cache != nil {
		s.cache.Invalidate(phoneNumberIDs...)
	}
}

// activeTenant is GetTenant that treats a deactivated tenant as missing.
func (s *Service) activeTenant(ctx context.Context, id string) (*types.Tenant, error) {
	t, err := s.store.GetTenant(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.Active {
		return nil, fmt.Errorf("%w: tenant %s is deactivated", loaders.ErrNotFound, id)
	}
	return t, nil
}

// Tenants

func (s *Service) CreateTenant(ctx context.Context, req *TenantRequest) (*types.Tenant, error) {
	t := &types.Tenant{
		Name:              trimmed(req.Name),
		PhoneNumberID:     trimmed(req.PhoneNumberID),
		APIToken:          trimmed(req.APIToken),
		SystemInstruction: trimmed(req.SystemInstruction),
		ModelName:         trimmed(req.ModelName),
	}
	if t.Name == "" {
		return nil, invalid("name is required")
	}
	if t.PhoneNumberID == "" {
		return nil, invalid("whatsapp_phone_number_id is required")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate tenant id: %w", err)
	}
	t.ID = id.String()

	if err := s.store.CreateTenant(ctx, t); err != nil {
		return nil, err
	}
	s.invalidate(t.PhoneNumberID)

	utils.Zlog.Info("Tenant created",
		zap.String("tenant_id", t.ID),
		zap.String("phone_number_id", t.PhoneNumberID))
	return t, nil
}

func (s *Service) ListTenants(ctx context.Context, includeInactive bool) ([]types.Tenant, error) {
	tenants, err := s.store.ListTenants(ctx, includeInactive)
	if err != nil {
		return nil, err
	}
	if tenants == nil {
		tenants = []types.Tenant{}
	}
	return tenants, nil
}

func (s *Service) GetTenant(ctx context.Context, id string) (*types.Tenant, error) {
	return s.store.GetTenant(ctx, id)
}

// UpdateTenant applies the non-nil fields of req.
func (s *Service) UpdateTenant(ctx context.Context, id string, req *TenantRequest) (*types.Tenant, error) {
	t, err := s.store.GetTenant(ctx, id)
	if err != nil {
		return nil, err
	}
	oldPhone := t.PhoneNumberID

	if req.Name != nil {
		if t.Name = trimmed(req.Name); t.Name == "" {
			return nil, invalid("name cannot be empty")
		}
	}
	if req.PhoneNumberID != nil {
		if t.PhoneNumberID = trimmed(req.PhoneNumberID); t.PhoneNumberID == "" {
			return nil, invalid("whatsapp_phone_number_id cannot be empty")
		}
	}
	if req.APIToken != nil {
		t.APIToken = trimmed(req.APIToken)
	}
	if req.SystemInstruction != nil {
		t.SystemInstruction = trimmed(req.SystemInstruction)
	}
	if req.ModelName != nil {
		t.ModelName = trimmed(req.ModelName)
	}

	if err := s.store.UpdateTenant(ctx, t); err != nil {
		return nil, err
	}
	s.invalidate(oldPhone, t.PhoneNumberID)
	return t, nil
}

func (s *Service) DeleteTenant(ctx context.Context, id string) error {
	t, err := s.store.GetTenant(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeactivateTenant(ctx, id); err != nil {
		return err
	}
	s.invalidate(t.PhoneNumberID)

	utils.Zlog.Info("Tenant deactivated", zap.String("tenant_id", id))
	return nil
}

// FAQs

// CreateFAQ embeds the question and stores the entry. An empty tenantID
// writes to the shared pool.
func (s *Service) CreateFAQ(ctx context.Context, tenantID string, req *FAQRequest) (*types.FAQEntry, error) {
	f := &types.FAQEntry{
		TenantID: tenantID,
		Question: trimmed(req.Question),
		Answer:   trimmed(req.Answer),
	}
	if f.Question == "" || f.Answer == "" {
		return nil, invalid("question and answer are required")
	}
	if tenantID != "" {
		if _, err := s.activeTenant(ctx, tenantID); err != nil {
			return nil, err
		}
	}

	emb, err := s.embedder.EmbedDocument(ctx, f.Question)
	if err != nil {
		utils.Zlog.Error("Failed to embed FAQ question",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	f.Embedding = emb

	if err := s.store.CreateFAQ(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Service) ListFAQs(ctx context.Context, tenantID string) ([]types.FAQEntry, error) {
	if tenantID != "" {
		if _, err := s.activeTenant(ctx, tenantID); err != nil {
			return nil, err
		}
	}
	faqs, err := s.store.ListActiveFAQs(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if faqs == nil {
		faqs = []types.FAQEntry{}
	}
	return faqs, nil
}

// UpdateFAQ re-embeds only when the trimmed question changed. An answer-only
// edit leaves the stored vector as it is.
func (s *Service) UpdateFAQ(ctx context.Context, id int64, req *FAQRequest) (*FAQUpdate, error) {
	f, err := s.store.GetFAQ(ctx, id)
	if err != nil {
		return nil, err
	}

	question := strings.TrimSpace(f.Question)
	if req.Question != nil {
		if question = trimmed(req.Question); question == "" {
			return nil, invalid("question cannot be empty")
		}
	}
	answer := f.Answer
	if req.Answer != nil {
		if answer = trimmed(req.Answer); answer == "" {
			return nil, invalid("answer cannot be empty")
		}
	}

	changed := question != strings.TrimSpace(f.Question)
	f.Question = question
	f.Answer = answer

	if !changed {
		if err := s.store.UpdateFAQText(ctx, f); err != nil {
			return nil, err
		}
		return &FAQUpdate{FAQ: f}, nil
	}

	emb, err := s.embedder.EmbedDocument(ctx, question)
	if err != nil {
		utils.Zlog.Error("Failed to re-embed FAQ question",
			zap.Int64("faq_id", id),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	f.Embedding = emb
	if err := s.store.UpdateFAQWithEmbedding(ctx, f); err != nil {
		return nil, err
	}
	return &FAQUpdate{FAQ: f, Reembedded: true}, nil
}

func (s *Service) DeleteFAQ(ctx context.Context, id int64) error {
	return s.store.DeactivateFAQ(ctx, id)
}

// Conversations

func (s *Service) ListConversations(ctx context.Context, tenantID string) ([]types.ConversationMessage, error) {
	if _, err := s.store.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	out, err := s.store.ListLatestConversations(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []types.ConversationMessage{}
	}
	return out, nil
}

func (s *Service) GetThread(ctx context.Context, tenantID, waID string, limit int) ([]types.ConversationMessage, error) {
	if strings.TrimSpace(waID) == "" {
		return nil, invalid("wa_id is required")
	}
	if limit < 0 || limit > 1000 {
		return nil, invalid("limit must be between 0 and 1000")
	}
	out, err := s.store.GetConversationThread(ctx, tenantID, waID, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []types.ConversationMessage{}
	}
	return out, nil
}

func (s *Service) Stats(ctx context.Context, tenantID string) (*types.ConversationStats, error) {
	if _, err := s.store.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.store.GetConversationStats(ctx, tenantID)
}

func (s *Service) HideConversation(ctx context.Context, tenantID, waID string) (int64, error) {
	return s.store.HideConversation(ctx, tenantID, waID)
}
