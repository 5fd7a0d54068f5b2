package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Conversly/whatsapp-faq-bot/internal/loaders"
	"github.com/Conversly/whatsapp-faq-bot/internal/types"
	"github.com/Conversly/whatsapp-faq-bot/internal/utils"
)

// ErrTenantNotFound means no active tenant owns the phone number id. It is an
// expected outcome for decommissioned or misconfigured numbers.
var ErrTenantNotFound = errors.New("no active tenant for phone number id")

// Store looks tenants up by WhatsApp phone number id.
type Store interface {
	GetActiveTenantByPhoneNumberID(ctx context.Context, phoneNumberID string) (*types.Tenant, error)
}

type cachedTenant struct {
	tenant   types.Tenant
	loadedAt time.Time
}

// Resolver maps phone number ids to tenants and keeps a short-lived snapshot
// of successful lookups. Misses are never cached so a newly created tenant is
// picked up on the next message.
type Resolver struct {
	store Store
	ttl   time.Duration
	now   func() time.Time

	mu      sync.RWMutex
	entries map[string]cachedTenant
}

func NewResolver(store Store, ttl time.Duration) *Resolver {
	return &Resolver{
		store:   store,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cachedTenant),
	}
}

// Resolve returns a copy of the tenant for phoneNumberID or ErrTenantNotFound.
func (r *Resolver) Resolve(ctx context.Context, phoneNumberID string) (*types.Tenant, error) {
	phoneNumberID = strings.TrimSpace(phoneNumberID)
	if phoneNumberID == "" {
		return nil, ErrTenantNotFound
	}

	if t, ok := r.cached(phoneNumberID); ok {
		return t, nil
	}

	t, err := r.store.GetActiveTenantByPhoneNumberID(ctx, phoneNumberID)
	if errors.Is(err, loaders.ErrNotFound) {
		utils.Zlog.Warn("No tenant configured for phone number id",
			zap.String("phone_number_id", phoneNumberID))
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tenant: %w", err)
	}

	if r.ttl > 0 {
		r.mu.Lock()
		r.entries[phoneNumberID] = cachedTenant{tenant: *t, loadedAt: r.now()}
		r.mu.Unlock()
	}

	out := *t
	return &out, nil
}

func (r *Resolver) cached(phoneNumberID string) (*types.Tenant, bool) {
	if r.ttl <= 0 {
		return nil, false
	}

	r.mu.RLock()
	entry, ok := r.entries[phoneNumberID]
	r.mu.RUnlock()
	if !ok || r.now().Sub(entry.loadedAt) >= r.ttl {
		return nil, false
	}

	out := entry.tenant
	return &out, true
}

// Invalidate drops cached entries for the given phone number ids.
func (r *Resolver) Invalidate(phoneNumberIDs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range phoneNumberIDs {
		delete(r.entries, id)
	}
}

// Size returns the number of cached tenants.
func (r *Resolver) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
