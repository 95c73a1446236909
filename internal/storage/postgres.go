package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/w3f/polkadot-registrar-bot/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS identities (
	network            TEXT NOT NULL,
	address            TEXT NOT NULL,
	on_chain_challenge TEXT NOT NULL,
	PRIMARY KEY (network, address)
);

CREATE TABLE IF NOT EXISTS field_statuses (
	network      TEXT    NOT NULL,
	address      TEXT    NOT NULL,
	field_kind   TEXT    NOT NULL,
	field_value  TEXT    NOT NULL,
	is_permitted BOOLEAN NOT NULL,
	challenge    JSONB   NOT NULL,
	position     INT     NOT NULL,
	PRIMARY KEY (network, address, field_kind),
	FOREIGN KEY (network, address)
		REFERENCES identities (network, address)
		ON DELETE CASCADE
);
`

// PostgresIdentityStore persists identity state in PostgreSQL.
type PostgresIdentityStore struct {
	pool *pgxpool.Pool
}

// NewPostgres connects, applies the schema, and returns the store.
func NewPostgres(ctx context.Context, databaseURL string) (*PostgresIdentityStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &PostgresIdentityStore{pool: pool}, nil
}

func (s *PostgresIdentityStore) Close() {
	s.pool.Close()
}

// Health checks connectivity for the readiness endpoint.
func (s *PostgresIdentityStore) Health(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresIdentityStore) Upsert(ctx context.Context, state domain.IdentityState) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO identities (network, address, on_chain_challenge)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (network, address)
		 DO UPDATE SET on_chain_challenge = EXCLUDED.on_chain_challenge`,
		state.Address.Network, state.Address.Address, string(state.OnChainChallenge))
	if err != nil {
		return fmt.Errorf("upsert identity: %w", err)
	}

	// Field statuses are replaced wholesale; the set is small and the upsert
	// path is rare compared to point updates.
	_, err = tx.Exec(ctx,
		`DELETE FROM field_statuses WHERE network = $1 AND address = $2`,
		state.Address.Network, state.Address.Address)
	if err != nil {
		return fmt.Errorf("clear field statuses: %w", err)
	}
	for i, status := range state.Fields {
		challenge, err := encodeChallenge(status.Challenge)
		if err != nil {
			return fmt.Errorf("encode challenge: %w", err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO field_statuses
			 (network, address, field_kind, field_value, is_permitted, challenge, position)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			state.Address.Network, state.Address.Address,
			string(status.Field.Kind), string(status.Field.Address),
			status.IsPermitted, challenge, i)
		if err != nil {
			return fmt.Errorf("insert field status: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresIdentityStore) Find(ctx context.Context, addr domain.NetworkAddress) (domain.IdentityState, error) {
	state := domain.IdentityState{Address: addr}

	var challenge string
	err := s.pool.QueryRow(ctx,
		`SELECT on_chain_challenge FROM identities WHERE network = $1 AND address = $2`,
		addr.Network, addr.Address).Scan(&challenge)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.IdentityState{}, ErrNotFound
	}
	if err != nil {
		return domain.IdentityState{}, fmt.Errorf("find identity: %w", err)
	}
	state.OnChainChallenge = domain.OnChainChallenge(challenge)

	rows, err := s.pool.Query(ctx,
		`SELECT field_kind, field_value, is_permitted, challenge
		 FROM field_statuses
		 WHERE network = $1 AND address = $2
		 ORDER BY position`,
		addr.Network, addr.Address)
	if err != nil {
		return domain.IdentityState{}, fmt.Errorf("find field statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind, value string
			permitted   bool
			raw         []byte
		)
		if err := rows.Scan(&kind, &value, &permitted, &raw); err != nil {
			return domain.IdentityState{}, fmt.Errorf("scan field status: %w", err)
		}
		challenge, err := decodeChallenge(raw)
		if err != nil {
			return domain.IdentityState{}, fmt.Errorf("decode challenge: %w", err)
		}
		state.Fields = append(state.Fields, domain.FieldStatus{
			Field:       domain.NewIdentityField(domain.FieldKind(kind), domain.FieldAddress(value)),
			IsPermitted: permitted,
			Challenge:   challenge,
		})
	}
	if err := rows.Err(); err != nil {
		return domain.IdentityState{}, fmt.Errorf("iterate field statuses: %w", err)
	}
	return state, nil
}

// List loads every stored identity. Used once at startup to rebuild the
// manager's in-memory tables; identity counts are modest, so a per-row Find
// keeps the code simple.
func (s *PostgresIdentityStore) List(ctx context.Context) ([]domain.IdentityState, error) {
	rows, err := s.pool.Query(ctx, `SELECT network, address FROM identities`)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var addrs []domain.NetworkAddress
	for rows.Next() {
		var addr domain.NetworkAddress
		if err := rows.Scan(&addr.Network, &addr.Address); err != nil {
			return nil, fmt.Errorf("scan identity key: %w", err)
		}
		addrs = append(addrs, addr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}

	var out []domain.IdentityState
	for _, addr := range addrs {
		state, err := s.Find(ctx, addr)
		if err != nil {
			return nil, err
		}
		out = append(out, state)
	}
	return out, nil
}

func (s *PostgresIdentityStore) UpdateField(ctx context.Context, addr domain.NetworkAddress, status domain.FieldStatus) error {
	challenge, err := encodeChallenge(status.Challenge)
	if err != nil {
		return fmt.Errorf("encode challenge: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE field_statuses
		 SET field_value = $4, is_permitted = $5, challenge = $6
		 WHERE network = $1 AND address = $2 AND field_kind = $3`,
		addr.Network, addr.Address, string(status.Field.Kind),
		string(status.Field.Address), status.IsPermitted, challenge)
	if err != nil {
		return fmt.Errorf("update field status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresIdentityStore) Delete(ctx context.Context, addr domain.NetworkAddress) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM identities WHERE network = $1 AND address = $2`,
		addr.Network, addr.Address)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	return nil
}
