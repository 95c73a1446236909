package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/w3f/polkadot-registrar-bot/internal/domain"
	"github.com/w3f/polkadot-registrar-bot/internal/events"
	"github.com/w3f/polkadot-registrar-bot/internal/storage"
)

// Manager owns the live table of identities under judgement. It keeps two
// structures that must stay consistent: the primary table keyed by address,
// and a reverse index from claimed field to the addresses claiming it, which
// routes inbound proofs that arrive keyed by field value only.
//
// One lock guards both; every public operation appears atomic to callers.
// The reverse index stores address keys only, never references into the
// table, so the two structures share no lifetime.
type Manager struct {
	mu         sync.RWMutex
	identities map[domain.NetworkAddress]domain.IdentityState
	byField    map[domain.IdentityField]map[domain.NetworkAddress]struct{}

	store  storage.IdentityStore
	bus    events.Publisher
	logger *slog.Logger
	tracer trace.Tracer
}

func NewManager(store storage.IdentityStore, bus events.Publisher, logger *slog.Logger) *Manager {
	return &Manager{
		identities: make(map[domain.NetworkAddress]domain.IdentityState),
		byField:    make(map[domain.IdentityField]map[domain.NetworkAddress]struct{}),
		store:      store,
		bus:        bus,
		logger:     logger,
		tracer:     otel.Tracer("registrar/identity"),
	}
}

// Load hydrates the table and the reverse index from the store. Called once
// at startup, before any traffic; existing in-memory state is replaced.
func (m *Manager) Load(ctx context.Context) error {
	states, err := m.store.List(ctx)
	if err != nil {
		return fmt.Errorf("load identities: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.identities = make(map[domain.NetworkAddress]domain.IdentityState, len(states))
	m.byField = make(map[domain.IdentityField]map[domain.NetworkAddress]struct{})
	for _, state := range states {
		m.identities[state.Address] = state
		for _, status := range state.Fields {
			m.indexField(state.Address, status.Field)
		}
	}

	m.logger.Info("identities loaded", "count", len(states))
	return nil
}

// InsertIdentity registers a new identity claim and indexes every claimed
// field. The address must not already be registered; callers re-judging an
// account remove it first.
func (m *Manager) InsertIdentity(ctx context.Context, state domain.IdentityState) error {
	ctx, span := m.tracer.Start(ctx, "identity.InsertIdentity")
	defer span.End()

	seen := make(map[domain.FieldKind]struct{}, len(state.Fields))
	for _, status := range state.Fields {
		if _, dup := seen[status.Field.Kind]; dup {
			return fmt.Errorf("duplicate field kind %q in identity claim", status.Field.Kind)
		}
		seen[status.Field.Kind] = struct{}{}
	}
	if !state.Address.ValidSS58() {
		m.logger.Warn("address failed SS58 checksum, accepting as opaque",
			"address", state.Address.String())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.identities[state.Address]; exists {
		return ErrDuplicateIdentity
	}
	if err := m.store.Upsert(ctx, state); err != nil {
		return fmt.Errorf("persist identity: %w", err)
	}
	if err := m.bus.Publish(ctx, domain.IdentityInserted{State: state.Clone()}); err != nil {
		return fmt.Errorf("publish identity inserted: %w", err)
	}

	m.identities[state.Address] = state.Clone()
	for _, status := range state.Fields {
		m.indexField(state.Address, status.Field)
	}

	identitiesInserted.Inc()
	m.logger.Info("identity registered",
		"address", state.Address.String(), "fields", len(state.Fields))
	return nil
}

// UpdateField replaces the status entry matching the field kind of newStatus.
// On any failure the identity's field list and the reverse index are left
// unchanged.
func (m *Manager) UpdateField(ctx context.Context, addr domain.NetworkAddress, newStatus domain.FieldStatus) error {
	ctx, span := m.tracer.Start(ctx, "identity.UpdateField")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.identities[addr]
	if !ok {
		return ErrAddressNotFound
	}
	current, ok := state.FieldByKind(newStatus.Field.Kind)
	if !ok {
		return ErrFieldNotFound
	}

	if err := m.store.UpdateField(ctx, addr, newStatus); err != nil {
		return fmt.Errorf("persist field update: %w", err)
	}
	if err := m.bus.Publish(ctx, domain.FieldUpdated{Address: addr, Field: newStatus.Field}); err != nil {
		return fmt.Errorf("publish field update: %w", err)
	}

	if current.Field != newStatus.Field {
		// The claimed value changed; reroute the reverse index.
		m.unindexField(addr, current.Field)
		m.indexField(addr, newStatus.Field)
	}
	*current = newStatus.Clone()
	m.identities[addr] = state
	return nil
}

// LookupFullState returns a snapshot of the identity. Absence is not an
// error.
func (m *Manager) LookupFullState(addr domain.NetworkAddress) (domain.IdentityState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.identities[addr]
	if !ok {
		return domain.IdentityState{}, false
	}
	return state.Clone(), true
}

// LookupAddresses returns every address currently claiming exactly this
// field value.
func (m *Manager) LookupAddresses(field domain.IdentityField) []domain.NetworkAddress {
	m.mu.RLock()
	defer m.mu.RUnlock()
	addrs := make([]domain.NetworkAddress, 0, len(m.byField[field]))
	for addr := range m.byField[field] {
		addrs = append(addrs, addr)
	}
	return addrs
}

// VerifyMessage routes an inbound proof to every address claiming the field
// and evaluates it against each pending ExpectMessage challenge. It never
// mutates challenge state; a matched outcome is confirmed with a separate
// SetVerified call. Addresses whose challenge is not ExpectMessage, or
// already valid, are skipped.
func (m *Manager) VerifyMessage(ctx context.Context, field domain.IdentityField, message domain.ProvidedMessage) []domain.VerificationOutcome {
	_, span := m.tracer.Start(ctx, "identity.VerifyMessage")
	defer span.End()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var outcomes []domain.VerificationOutcome
	for addr := range m.byField[field] {
		state, ok := m.identities[addr]
		if !ok {
			continue
		}
		status, ok := state.FieldByKind(field.Kind)
		if !ok || status.Field != field {
			continue
		}
		challenge := status.Challenge
		if challenge.Kind != domain.KindExpectMessage || challenge.ExpectMessage.Status == domain.Valid {
			continue
		}

		_, matched := challenge.ExpectMessage.ExpectedMessage.Contains(message)
		if matched {
			verificationAttempts.WithLabelValues("verified").Inc()
		} else {
			verificationAttempts.WithLabelValues("failed").Inc()
		}
		outcomes = append(outcomes, domain.VerificationOutcome{
			Address:     addr,
			FieldStatus: status.Clone(),
			Verified:    matched,
		})
	}
	return outcomes
}

// SetVerified marks the field's next pending check as valid. It does not
// re-check message content; the caller validates first via VerifyMessage.
// Completing the identity's last pending field emits IdentityFullyVerified.
func (m *Manager) SetVerified(ctx context.Context, addr domain.NetworkAddress, field domain.IdentityField) (bool, error) {
	ctx, span := m.tracer.Start(ctx, "identity.SetVerified")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.identities[addr]
	if !ok {
		return false, nil
	}
	current, ok := state.FieldByKind(field.Kind)
	if !ok || current.Field != field {
		return false, nil
	}

	updated := current.Clone()
	updated.Challenge.SetValidity(domain.Valid)

	if err := m.store.UpdateField(ctx, addr, updated); err != nil {
		return false, fmt.Errorf("persist verified field: %w", err)
	}
	if err := m.bus.Publish(ctx, domain.FieldUpdated{Address: addr, Field: field}); err != nil {
		return false, fmt.Errorf("publish field update: %w", err)
	}

	*current = updated
	m.identities[addr] = state

	m.logger.Info("field verified", "address", addr.String(), "field", field.Kind)

	if state.FullyVerified() {
		identitiesFullyVerified.Inc()
		m.logger.Info("identity fully verified", "address", addr.String())
		err := m.bus.Publish(ctx, domain.IdentityFullyVerified{
			Address:   addr,
			Challenge: state.OnChainChallenge,
		})
		if err != nil {
			return true, fmt.Errorf("publish fully verified: %w", err)
		}
	}
	return true, nil
}

// DisplayNames returns every display name currently claimed, for the
// similarity check applied to new claims.
func (m *Manager) DisplayNames() []domain.DisplayName {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []domain.DisplayName
	for field := range m.byField {
		if field.Kind == domain.FieldDisplayName {
			names = append(names, domain.DisplayName(field.Address))
		}
	}
	return names
}

// IsFullyVerified reports whether every required field passed its challenge.
func (m *Manager) IsFullyVerified(addr domain.NetworkAddress) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.identities[addr]
	if !ok {
		return false, ErrAddressNotFound
	}
	return state.FullyVerified(), nil
}

// RemoveIdentity deletes the identity and prunes the reverse index. Used on
// judgement completion and explicit deregistration.
func (m *Manager) RemoveIdentity(ctx context.Context, addr domain.NetworkAddress) (bool, error) {
	ctx, span := m.tracer.Start(ctx, "identity.RemoveIdentity")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.identities[addr]
	if !ok {
		return false, nil
	}
	if err := m.store.Delete(ctx, addr); err != nil {
		return false, fmt.Errorf("delete identity: %w", err)
	}

	for _, status := range state.Fields {
		m.unindexField(addr, status.Field)
	}
	delete(m.identities, addr)

	identitiesRemoved.Inc()
	m.logger.Info("identity removed", "address", addr.String())
	return true, nil
}

func (m *Manager) indexField(addr domain.NetworkAddress, field domain.IdentityField) {
	addrs, ok := m.byField[field]
	if !ok {
		addrs = make(map[domain.NetworkAddress]struct{})
		m.byField[field] = addrs
	}
	addrs[addr] = struct{}{}
}

func (m *Manager) unindexField(addr domain.NetworkAddress, field domain.IdentityField) {
	addrs, ok := m.byField[field]
	if !ok {
		return
	}
	delete(addrs, addr)
	if len(addrs) == 0 {
		delete(m.byField, field)
	}
}
