package mocks

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/iho/possync/internal/domain"
	"github.com/iho/possync/internal/usecase"
)

// MockOperationRepository is an in-memory implementation of OperationRepository
// that honours the feed filter semantics of the Postgres repository.
type MockOperationRepository struct {
	mu     sync.RWMutex
	ops    map[int64]*domain.Operation
	nextID int64

	// Filters records every feed filter received, in call order.
	Filters []domain.FeedFilter

	CreateFunc                 func(ctx context.Context, tx usecase.Transaction, op *domain.Operation) error
	UpdateFunc                 func(ctx context.Context, tx usecase.Transaction, op *domain.Operation) error
	DeleteFunc                 func(ctx context.Context, tx usecase.Transaction, id int64) error
	GetByCodeFunc              func(ctx context.Context, code string) (*domain.Operation, error)
	GetByCodeOrIDForUpdateFunc func(ctx context.Context, tx usecase.Transaction, code string, id int64) (*domain.Operation, error)
	FindDuplicateFunc          func(ctx context.Context, tx usecase.Transaction, op *domain.Operation) (*domain.Operation, error)
	FindTransferForUpdateFunc  func(ctx context.Context, tx usecase.Transaction, locator domain.TransferLocator) (*domain.Operation, error)
	ListChangesFunc            func(ctx context.Context, filter domain.FeedFilter) ([]*domain.Operation, error)
	CountChangesFunc           func(ctx context.Context, filter domain.FeedFilter) (int, error)
}

func NewMockOperationRepository() *MockOperationRepository {
	return &MockOperationRepository{
		ops:    make(map[int64]*domain.Operation),
		nextID: 1000,
	}
}

// Seed stores operations as they are, keeping their ids.
func (m *MockOperationRepository) Seed(ops ...*domain.Operation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range ops {
		m.ops[op.ID] = op.Clone()
	}
}

// Get returns a copy of the stored operation.
func (m *MockOperationRepository) Get(id int64) (*domain.Operation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	op, ok := m.ops[id]
	if !ok {
		return nil, false
	}
	return op.Clone(), true
}

// Len returns the number of stored operations.
func (m *MockOperationRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ops)
}

func (m *MockOperationRepository) Create(ctx context.Context, tx usecase.Transaction, op *domain.Operation) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, op)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.ops {
		if existing.BusinessCode == op.BusinessCode {
			return domain.ErrBusinessCodeTaken
		}
	}
	m.nextID++
	op.ID = m.nextID
	if op.Version == 0 {
		op.Version = 1
	}
	m.ops[op.ID] = op.Clone()
	return nil
}

func (m *MockOperationRepository) Update(ctx context.Context, tx usecase.Transaction, op *domain.Operation) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, tx, op)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.ops[op.ID]
	if !ok {
		return domain.ErrOperationNotFound
	}
	op.Version = existing.Version + 1
	m.ops[op.ID] = op.Clone()
	return nil
}

func (m *MockOperationRepository) Delete(ctx context.Context, tx usecase.Transaction, id int64) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ops[id]; !ok {
		return domain.ErrOperationNotFound
	}
	delete(m.ops, id)
	return nil
}

func (m *MockOperationRepository) GetByCode(ctx context.Context, code string) (*domain.Operation, error) {
	if m.GetByCodeFunc != nil {
		return m.GetByCodeFunc(ctx, code)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, op := range m.ops {
		if op.BusinessCode == code {
			return op.Clone(), nil
		}
	}
	return nil, domain.ErrOperationNotFound
}

func (m *MockOperationRepository) GetByCodeOrIDForUpdate(ctx context.Context, tx usecase.Transaction, code string, id int64) (*domain.Operation, error) {
	if m.GetByCodeOrIDForUpdateFunc != nil {
		return m.GetByCodeOrIDForUpdateFunc(ctx, tx, code, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, op := range m.ops {
		if code != "" && op.BusinessCode == code {
			return op.Clone(), nil
		}
	}
	if op, ok := m.ops[id]; ok && id > 0 && op.BusinessCode == "" {
		return op.Clone(), nil
	}
	return nil, domain.ErrOperationNotFound
}

func (m *MockOperationRepository) FindDuplicate(ctx context.Context, tx usecase.Transaction, candidate *domain.Operation) (*domain.Operation, error) {
	if m.FindDuplicateFunc != nil {
		return m.FindDuplicateFunc(ctx, tx, candidate)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	day := candidate.CreatedAt.UTC().Truncate(24 * time.Hour)
	for _, op := range m.ops {
		if op.GrossAmount.Equal(candidate.GrossAmount) &&
			op.AgentID == candidate.AgentID &&
			op.Type == candidate.Type &&
			op.CreatedAt.UTC().Truncate(24*time.Hour).Equal(day) {
			return op.Clone(), nil
		}
	}
	return nil, nil
}

func (m *MockOperationRepository) FindTransferForUpdate(ctx context.Context, tx usecase.Transaction, locator domain.TransferLocator) (*domain.Operation, error) {
	if m.FindTransferForUpdateFunc != nil {
		return m.FindTransferForUpdateFunc(ctx, tx, locator)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matches []*domain.Operation
	for _, op := range m.ops {
		var hit bool
		switch locator.Strategy {
		case domain.MatchByReference:
			hit = op.Reference == locator.Reference
		case domain.MatchByBusinessCode:
			hit = op.BusinessCode == locator.BusinessCode
		case domain.MatchByID:
			hit = op.ID == locator.ID
		case domain.MatchByComposite:
			hit = op.Type.IsTransfer() && locator.Composite.Matches(op)
		}
		if hit {
			matches = append(matches, op)
		}
	}
	if len(matches) == 0 {
		return nil, domain.ErrOperationNotFound
	}
	sort.Slice(matches, func(i, j int) bool {
		if ti, tj := matches[i].Type.IsTransfer(), matches[j].Type.IsTransfer(); ti != tj {
			return ti
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches[0].Clone(), nil
}

func (m *MockOperationRepository) ListChanges(ctx context.Context, filter domain.FeedFilter) ([]*domain.Operation, error) {
	m.mu.Lock()
	m.Filters = append(m.Filters, filter)
	m.mu.Unlock()

	if m.ListChangesFunc != nil {
		return m.ListChangesFunc(ctx, filter)
	}

	matched := m.matching(filter)
	if filter.Offset >= len(matched) {
		return []*domain.Operation{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (m *MockOperationRepository) CountChanges(ctx context.Context, filter domain.FeedFilter) (int, error) {
	if m.CountChangesFunc != nil {
		return m.CountChangesFunc(ctx, filter)
	}
	return len(m.matching(filter)), nil
}

func (m *MockOperationRepository) ListValidatedTransfers(ctx context.Context, query usecase.ValidatedTransfersQuery) ([]*domain.Operation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Operation
	for _, op := range m.ops {
		if !op.Type.IsTransfer() {
			continue
		}
		if op.Status != domain.OperationStatusValidated && op.Status != domain.OperationStatusCompleted {
			continue
		}
		if query.Role == usecase.ShopRoleSource && op.SourceShopID != query.ShopID {
			continue
		}
		if query.Role == usecase.ShopRoleDestination && !op.DestinationIs(query.ShopID) {
			continue
		}
		if query.Since != nil && !op.LastModifiedAt.After(*query.Since) {
			continue
		}
		out = append(out, op.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastModifiedAt.After(out[j].LastModifiedAt) })
	if len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

func (m *MockOperationRepository) matching(filter domain.FeedFilter) []*domain.Operation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Operation
	for _, op := range m.ops {
		if MatchesFilter(op, filter) {
			out = append(out, op.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch filter.Order {
		case domain.FeedOrderAscending:
			return a.LastModifiedAt.Before(b.LastModifiedAt)
		case domain.FeedOrderPriority:
			if a.FeedPriority() != b.FeedPriority() {
				return a.FeedPriority() < b.FeedPriority()
			}
		}
		return a.LastModifiedAt.After(b.LastModifiedAt)
	})
	return out
}

// MatchesFilter evaluates a feed filter against one operation.
func MatchesFilter(op *domain.Operation, f domain.FeedFilter) bool {
	if !f.Scope.CanSee(op) {
		return false
	}
	if f.Since != nil && !op.LastModifiedAt.After(*f.Since) {
		return false
	}
	if f.CreatedSince != nil && !op.CreatedAt.After(*f.CreatedSince) {
		return false
	}
	if len(f.IncludeStatuses) > 0 && !containsStatus(f.IncludeStatuses, op.Status) {
		return false
	}
	if containsStatus(f.ExcludeStatuses, op.Status) {
		return false
	}
	if len(f.IDsIn) > 0 && !containsID(f.IDsIn, op.ID) {
		return false
	}
	if containsID(f.IDsNotIn, op.ID) {
		return false
	}
	if f.OnlyModified && !op.ModifiedAfterCreation() {
		return false
	}
	if len(f.Tiers) == 0 {
		return true
	}
	for _, tier := range f.Tiers {
		if matchesTier(op, tier) {
			return true
		}
	}
	return false
}

func matchesTier(op *domain.Operation, t domain.FeedTier) bool {
	if len(t.Statuses) > 0 && !containsStatus(t.Statuses, op.Status) {
		return false
	}
	if t.ModifiedAfter != nil && op.LastModifiedAt.Before(*t.ModifiedAfter) {
		return false
	}
	if t.CreatedAfter != nil && op.CreatedAt.Before(*t.CreatedAfter) {
		return false
	}
	if t.ModifiedAfterCreation && !op.ModifiedAfterCreation() {
		return false
	}
	return true
}

func containsStatus(list []domain.OperationStatus, s domain.OperationStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsID(list []int64, id int64) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

// MockDeletionRequestRepository is an in-memory implementation of DeletionRequestRepository.
type MockDeletionRequestRepository struct {
	mu     sync.RWMutex
	reqs   map[int64]*domain.DeletionRequest
	nextID int64

	CreateFunc                 func(ctx context.Context, tx usecase.Transaction, req *domain.DeletionRequest) error
	UpdateFunc                 func(ctx context.Context, tx usecase.Transaction, req *domain.DeletionRequest) error
	GetOpenByCodeForUpdateFunc func(ctx context.Context, tx usecase.Transaction, code string) (*domain.DeletionRequest, error)
	ListFunc                   func(ctx context.Context, filter usecase.DeletionRequestFilter) ([]*domain.DeletionRequest, error)
}

func NewMockDeletionRequestRepository() *MockDeletionRequestRepository {
	return &MockDeletionRequestRepository{reqs: make(map[int64]*domain.DeletionRequest)}
}

// All returns copies of every stored request.
func (m *MockDeletionRequestRepository) All() []*domain.DeletionRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.DeletionRequest, 0, len(m.reqs))
	for _, r := range m.reqs {
		c := *r
		out = append(out, &c)
	}
	return out
}

func (m *MockDeletionRequestRepository) Create(ctx context.Context, tx usecase.Transaction, req *domain.DeletionRequest) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, req)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	req.ID = m.nextID
	c := *req
	m.reqs[req.ID] = &c
	return nil
}

func (m *MockDeletionRequestRepository) Update(ctx context.Context, tx usecase.Transaction, req *domain.DeletionRequest) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, tx, req)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reqs[req.ID]; !ok {
		return domain.ErrDeletionRequestNotFound
	}
	c := *req
	m.reqs[req.ID] = &c
	return nil
}

func (m *MockDeletionRequestRepository) GetOpenByCodeForUpdate(ctx context.Context, tx usecase.Transaction, code string) (*domain.DeletionRequest, error) {
	if m.GetOpenByCodeForUpdateFunc != nil {
		return m.GetOpenByCodeForUpdateFunc(ctx, tx, code)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *domain.DeletionRequest
	for _, r := range m.reqs {
		if r.BusinessCode != code || r.Status.IsTerminal() {
			continue
		}
		if latest == nil || r.ID > latest.ID {
			latest = r
		}
	}
	if latest == nil {
		return nil, domain.ErrDeletionRequestNotFound
	}
	c := *latest
	return &c, nil
}

func (m *MockDeletionRequestRepository) List(ctx context.Context, filter usecase.DeletionRequestFilter) ([]*domain.DeletionRequest, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.DeletionRequest
	for _, r := range m.reqs {
		if len(filter.Statuses) > 0 {
			found := false
			for _, s := range filter.Statuses {
				if domain.NormalizeDeletionStatus(string(r.Status)) == s {
					found = true
				}
			}
			if !found {
				continue
			}
		}
		if filter.SourceShopID != nil && r.SourceShopID != *filter.SourceShopID {
			continue
		}
		if filter.Since != nil && !r.LastModifiedAt.After(*filter.Since) {
			continue
		}
		c := *r
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out, nil
}

// MockTrashRepository is an in-memory implementation of TrashRepository.
// Tombstone lookups consult the operation repository for live codes.
type MockTrashRepository struct {
	mu      sync.RWMutex
	entries []*domain.TrashEntry
	ops     *MockOperationRepository

	CreateFunc       func(ctx context.Context, tx usecase.Transaction, entry *domain.TrashEntry) error
	DeletedCodesFunc func(ctx context.Context, codes []string) ([]string, error)
}

func NewMockTrashRepository(ops *MockOperationRepository) *MockTrashRepository {
	return &MockTrashRepository{ops: ops}
}

// Seed stores trash entries as they are.
func (m *MockTrashRepository) Seed(entries ...*domain.TrashEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		c := *e
		m.entries = append(m.entries, &c)
	}
}

// All returns copies of every stored entry.
func (m *MockTrashRepository) All() []*domain.TrashEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.TrashEntry, 0, len(m.entries))
	for _, e := range m.entries {
		c := *e
		out = append(out, &c)
	}
	return out
}

func (m *MockTrashRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.TrashEntry) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, entry)
	}
	m.Seed(entry)
	return nil
}

func (m *MockTrashRepository) MarkRestored(ctx context.Context, tx usecase.Transaction, entry *domain.TrashEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.entries {
		if e.ID == entry.ID {
			c := *entry
			m.entries[i] = &c
			return nil
		}
	}
	return domain.ErrTrashEntryNotFound
}

func (m *MockTrashRepository) GetLatestUnrestoredForUpdate(ctx context.Context, tx usecase.Transaction, code string) (*domain.TrashEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *domain.TrashEntry
	for _, e := range m.entries {
		if e.Operation.BusinessCode != code || e.Restored {
			continue
		}
		if latest == nil || e.DeletedAt.After(latest.DeletedAt) {
			latest = e
		}
	}
	if latest == nil {
		return nil, domain.ErrTrashEntryNotFound
	}
	c := *latest
	return &c, nil
}

func (m *MockTrashRepository) List(ctx context.Context, filter usecase.TrashFilter) ([]*domain.TrashEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.TrashEntry
	for _, e := range m.entries {
		if filter.Restored != nil && e.Restored != *filter.Restored {
			continue
		}
		if filter.Since != nil && !e.DeletedAt.After(*filter.Since) {
			continue
		}
		c := *e
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeletedAt.After(out[j].DeletedAt) })
	return out, nil
}

func (m *MockTrashRepository) DeletedCodes(ctx context.Context, codes []string) ([]string, error) {
	if m.DeletedCodesFunc != nil {
		return m.DeletedCodesFunc(ctx, codes)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for _, code := range codes {
		inTrash := false
		for _, e := range m.entries {
			if e.Operation.BusinessCode == code {
				inTrash = true
				break
			}
		}
		if !inTrash {
			continue
		}
		if m.ops != nil {
			if _, err := m.ops.GetByCodeOrIDForUpdate(ctx, nil, code, 0); err == nil {
				continue
			}
		}
		out = append(out, code)
	}
	return out, nil
}

// MockReferenceRepository is an in-memory implementation of ReferenceRepository.
type MockReferenceRepository struct {
	mu      sync.RWMutex
	shops   map[int64]*domain.Shop
	agents  map[int64]*domain.Agent
	clients map[int64]*domain.Client
	nextID  int64

	// Calls counts lookups by method name.
	Calls map[string]int

	ShopByDesignationFunc func(ctx context.Context, tx usecase.Transaction, designation string) (*domain.Shop, error)
	CreateAgentFunc       func(ctx context.Context, tx usecase.Transaction, agent *domain.Agent) error
}

func NewMockReferenceRepository() *MockReferenceRepository {
	return &MockReferenceRepository{
		shops:   make(map[int64]*domain.Shop),
		agents:  make(map[int64]*domain.Agent),
		clients: make(map[int64]*domain.Client),
		nextID:  500,
		Calls:   make(map[string]int),
	}
}

func (m *MockReferenceRepository) AddShop(id int64, designation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shops[id] = &domain.Shop{ID: id, Designation: designation}
}

func (m *MockReferenceRepository) AddAgent(id int64, username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[id] = &domain.Agent{ID: id, Username: username}
}

func (m *MockReferenceRepository) AddClient(id int64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[id] = &domain.Client{ID: id, Name: name}
}

func (m *MockReferenceRepository) called(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls[name]++
}

func (m *MockReferenceRepository) ShopByDesignation(ctx context.Context, tx usecase.Transaction, designation string) (*domain.Shop, error) {
	m.called("ShopByDesignation")
	if m.ShopByDesignationFunc != nil {
		return m.ShopByDesignationFunc(ctx, tx, designation)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.shops {
		if s.Designation == designation {
			return s, nil
		}
	}
	return nil, domain.ErrShopNotFound
}

func (m *MockReferenceRepository) ShopByID(ctx context.Context, tx usecase.Transaction, id int64) (*domain.Shop, error) {
	m.called("ShopByID")
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.shops[id]; ok {
		return s, nil
	}
	return nil, domain.ErrShopNotFound
}

func (m *MockReferenceRepository) AgentByUsername(ctx context.Context, tx usecase.Transaction, username string) (*domain.Agent, error) {
	m.called("AgentByUsername")
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.agents {
		if a.Username == username {
			return a, nil
		}
	}
	return nil, domain.ErrAgentNotFound
}

func (m *MockReferenceRepository) AgentByID(ctx context.Context, tx usecase.Transaction, id int64) (*domain.Agent, error) {
	m.called("AgentByID")
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.agents[id]; ok {
		return a, nil
	}
	return nil, domain.ErrAgentNotFound
}

func (m *MockReferenceRepository) CreateAgent(ctx context.Context, tx usecase.Transaction, agent *domain.Agent) error {
	m.called("CreateAgent")
	if m.CreateAgentFunc != nil {
		return m.CreateAgentFunc(ctx, tx, agent)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	agent.ID = m.nextID
	m.agents[agent.ID] = agent
	return nil
}

func (m *MockReferenceRepository) ClientByName(ctx context.Context, tx usecase.Transaction, name string) (*domain.Client, error) {
	m.called("ClientByName")
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.clients {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, domain.ErrClientNotFound
}

func (m *MockReferenceRepository) ClientByID(ctx context.Context, tx usecase.Transaction, id int64) (*domain.Client, error) {
	m.called("ClientByID")
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.clients[id]; ok {
		return c, nil
	}
	return nil, domain.ErrClientNotFound
}

// MockConsistencyRepository is a func-field implementation of ConsistencyRepository.
type MockConsistencyRepository struct {
	UnreconciledOperationsFunc  func(ctx context.Context, limit int) ([]*domain.Operation, error)
	OrphanTrashEntriesFunc      func(ctx context.Context, limit int) ([]*domain.TrashEntry, error)
	InvalidDeletionRequestsFunc func(ctx context.Context, limit int) ([]*domain.DeletionRequest, error)
}

func (m *MockConsistencyRepository) UnreconciledOperations(ctx context.Context, limit int) ([]*domain.Operation, error) {
	if m.UnreconciledOperationsFunc != nil {
		return m.UnreconciledOperationsFunc(ctx, limit)
	}
	return nil, nil
}

func (m *MockConsistencyRepository) OrphanTrashEntries(ctx context.Context, limit int) ([]*domain.TrashEntry, error) {
	if m.OrphanTrashEntriesFunc != nil {
		return m.OrphanTrashEntriesFunc(ctx, limit)
	}
	return nil, nil
}

func (m *MockConsistencyRepository) InvalidDeletionRequests(ctx context.Context, limit int) ([]*domain.DeletionRequest, error) {
	if m.InvalidDeletionRequestsFunc != nil {
		return m.InvalidDeletionRequestsFunc(ctx, limit)
	}
	return nil, nil
}

// MockAuditRepository records audit logs in memory.
type MockAuditRepository struct {
	mu   sync.RWMutex
	logs []*domain.AuditLog

	CreateTxFunc func(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error
	ListFunc     func(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error)
	CountFunc    func(ctx context.Context, filter domain.AuditFilter) (int, error)
}

func NewMockAuditRepository() *MockAuditRepository {
	return &MockAuditRepository{}
}

func (m *MockAuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	if m.CreateTxFunc != nil {
		return m.CreateTxFunc(ctx, tx, log)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	return nil
}

func (m *MockAuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	out := m.matching(filter)
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MockAuditRepository) Count(ctx context.Context, filter domain.AuditFilter) (int, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx, filter)
	}
	return len(m.matching(filter)), nil
}

// matching returns the logs passing filter, newest first.
func (m *MockAuditRepository) matching(filter domain.AuditFilter) []*domain.AuditLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.AuditLog
	for _, l := range m.logs {
		if filter.UserID != "" && l.UserID != filter.UserID {
			continue
		}
		if filter.Action != "" && l.Action != filter.Action {
			continue
		}
		if filter.ResourceType != "" && l.ResourceType != filter.ResourceType {
			continue
		}
		if filter.ResourceID != "" && l.ResourceID != filter.ResourceID {
			continue
		}
		if filter.StartDate != nil && l.CreatedAt.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && !l.CreatedAt.Before(*filter.EndDate) {
			continue
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Actions returns the recorded audit actions in order.
func (m *MockAuditRepository) Actions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.logs))
	for i, l := range m.logs {
		out[i] = l.Action
	}
	return out
}

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)

	mu      sync.Mutex
	Begun   int
	Commits int
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	m.mu.Lock()
	m.Begun++
	m.mu.Unlock()
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{manager: m}, nil
}

// MockTransaction is a mock implementation of Transaction.
type MockTransaction struct {
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
	BeginFunc    func(ctx context.Context) (usecase.Transaction, error)

	manager   *MockTransactionManager
	Committed bool
	Savepoint bool
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	m.Committed = true
	if m.manager != nil && !m.Savepoint {
		m.manager.mu.Lock()
		m.manager.Commits++
		m.manager.mu.Unlock()
	}
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	return nil
}

func (m *MockTransaction) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{Savepoint: true}, nil
}

// MockIDGenerator is a mock implementation of IDGenerator.
type MockIDGenerator struct {
	GenerateFunc func() string
	counter      int
	mu           sync.Mutex
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return "mock-id-" + strconv.Itoa(m.counter)
}

// MockMetrics counts recorded measurements.
type MockMetrics struct {
	mu          sync.Mutex
	Uploads     map[string]int
	Handoffs    map[string]int
	Transitions map[domain.DeletionStatus]int
	FeedRows    map[string]int
	Tombstones  int
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		Uploads:     make(map[string]int),
		Handoffs:    make(map[string]int),
		Transitions: make(map[domain.DeletionStatus]int),
		FeedRows:    make(map[string]int),
	}
}

func (m *MockMetrics) FeedServed(kind string, rows int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FeedRows[kind] += rows
}

func (m *MockMetrics) UploadItem(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Uploads[outcome]++
}

func (m *MockMetrics) HandoffAttempt(strategy, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Handoffs[strategy+"/"+outcome]++
}

func (m *MockMetrics) DeletionTransition(to domain.DeletionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Transitions[to]++
}

func (m *MockMetrics) TombstonesFound(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tombstones += n
}

// FixedClock returns a clock frozen at t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
