package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/possync/internal/domain"
	"github.com/iho/possync/internal/usecase"
)

// ReferenceRepository implements usecase.ReferenceRepository over the
// shops, agents and clients tables.
type ReferenceRepository struct {
	pool dbPool
}

// NewReferenceRepository creates a new ReferenceRepository.
func NewReferenceRepository(pool *pgxpool.Pool) *ReferenceRepository {
	return &ReferenceRepository{pool: pool}
}

func newReferenceRepository(pool dbPool) *ReferenceRepository {
	return &ReferenceRepository{pool: pool}
}

func (r *ReferenceRepository) shop(ctx context.Context, tx usecase.Transaction, where string, arg any) (*domain.Shop, error) {
	var shop domain.Shop
	err := conn(r.pool, tx).QueryRow(ctx, `SELECT id, designation FROM shops WHERE `+where+` LIMIT 1`, arg).
		Scan(&shop.ID, &shop.Designation)
	if err != nil {
		return nil, notFound(err, domain.ErrShopNotFound)
	}
	return &shop, nil
}

// ShopByDesignation looks a shop up by its unique designation.
func (r *ReferenceRepository) ShopByDesignation(ctx context.Context, tx usecase.Transaction, designation string) (*domain.Shop, error) {
	return r.shop(ctx, tx, "designation = $1", designation)
}

// ShopByID looks a shop up by id.
func (r *ReferenceRepository) ShopByID(ctx context.Context, tx usecase.Transaction, id int64) (*domain.Shop, error) {
	return r.shop(ctx, tx, "id = $1", id)
}

func (r *ReferenceRepository) agent(ctx context.Context, tx usecase.Transaction, where string, arg any) (*domain.Agent, error) {
	var (
		agent  domain.Agent
		shopID pgtype.Int8
	)
	err := conn(r.pool, tx).QueryRow(ctx, `SELECT id, username, full_name, shop_id FROM agents WHERE `+where+` LIMIT 1`, arg).
		Scan(&agent.ID, &agent.Username, &agent.FullName, &shopID)
	if err != nil {
		return nil, notFound(err, domain.ErrAgentNotFound)
	}
	agent.ShopID = int8ToPtr(shopID)
	return &agent, nil
}

// AgentByUsername looks an agent up by username.
func (r *ReferenceRepository) AgentByUsername(ctx context.Context, tx usecase.Transaction, username string) (*domain.Agent, error) {
	return r.agent(ctx, tx, "username = $1", username)
}

// AgentByID looks an agent up by id.
func (r *ReferenceRepository) AgentByID(ctx context.Context, tx usecase.Transaction, id int64) (*domain.Agent, error) {
	return r.agent(ctx, tx, "id = $1", id)
}

// CreateAgent inserts agent. A concurrent insert of the same username returns
// the existing row's id instead of failing.
func (r *ReferenceRepository) CreateAgent(ctx context.Context, tx usecase.Transaction, agent *domain.Agent) error {
	return conn(r.pool, tx).QueryRow(ctx, `
		INSERT INTO agents (username, full_name, shop_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE SET username = EXCLUDED.username
		RETURNING id`,
		agent.Username, agent.FullName, int64PtrToInt8(agent.ShopID),
	).Scan(&agent.ID)
}

func (r *ReferenceRepository) client(ctx context.Context, tx usecase.Transaction, where string, arg any) (*domain.Client, error) {
	var client domain.Client
	err := conn(r.pool, tx).QueryRow(ctx, `SELECT id, nom, telephone FROM clients WHERE `+where+` ORDER BY id LIMIT 1`, arg).
		Scan(&client.ID, &client.Name, &client.Phone)
	if err != nil {
		return nil, notFound(err, domain.ErrClientNotFound)
	}
	return &client, nil
}

// ClientByName looks a client up by name. Names are not unique; the oldest row wins.
func (r *ReferenceRepository) ClientByName(ctx context.Context, tx usecase.Transaction, name string) (*domain.Client, error) {
	return r.client(ctx, tx, "nom = $1", name)
}

// ClientByID looks a client up by id.
func (r *ReferenceRepository) ClientByID(ctx context.Context, tx usecase.Transaction, id int64) (*domain.Client, error) {
	return r.client(ctx, tx, "id = $1", id)
}
