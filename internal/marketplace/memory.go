package marketplace

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryStore is the in-process Store used by tests. One mutex serializes
// every check-and-update, matching the conditional-UPDATE guarantees of the
// Postgres store.
type MemoryStore struct {
	mu         sync.Mutex
	projects   map[string]*Project
	bids       map[string]*Bid
	orders     map[string]*Order
	milestones map[string]*Milestone
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects:   make(map[string]*Project),
		bids:       make(map[string]*Bid),
		orders:     make(map[string]*Order),
		milestones: make(map[string]*Milestone),
	}
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// ---- projects ----

func (s *MemoryStore) CreateProject(ctx context.Context, p *Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.projects[p.ID] = &cp
	return nil
}

func (s *MemoryStore) GetProject(ctx context.Context, id string) (*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) SetProjectStatus(ctx context.Context, id, from, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	p.UpdatedAt = time.Now()
	return true, nil
}

// ---- bids ----

func (s *MemoryStore) CreateBid(ctx context.Context, b *Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.bids {
		if other.ProjectID == b.ProjectID && other.DeveloperID == b.DeveloperID && other.Status != BidWithdrawn {
			return ErrDuplicate
		}
	}
	cp := *b
	s.bids[b.ID] = &cp
	return nil
}

func (s *MemoryStore) GetBid(ctx context.Context, id string) (*Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bids[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *MemoryStore) UpdateBidProposal(ctx context.Context, id string, price decimal.Decimal, days int, proposal string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bids[id]
	if !ok || b.Status != BidPending {
		return false, nil
	}
	b.ProposedPrice = price
	b.ProposedDays = days
	b.Proposal = proposal
	b.UpdatedAt = time.Now()
	return true, nil
}

func (s *MemoryStore) SetBidStatus(ctx context.Context, id, from, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bids[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	b.UpdatedAt = time.Now()
	return true, nil
}

func (s *MemoryStore) ListBidsByProject(ctx context.Context, projectID string) ([]*Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Bid
	for _, b := range s.bids {
		if b.ProjectID == projectID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) AcceptBidCascade(ctx context.Context, bidID, projectID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bids[bidID]
	if !ok || b.Status != BidPending {
		return false, nil
	}
	p, ok := s.projects[projectID]
	if !ok || p.Status != ProjectOpen {
		return false, nil
	}
	now := time.Now()
	b.Status = BidAccepted
	b.UpdatedAt = now
	for _, other := range s.bids {
		if other.ProjectID == projectID && other.ID != bidID && other.Status == BidPending {
			other.Status = BidRejected
			other.UpdatedAt = now
		}
	}
	p.Status = ProjectInProgress
	p.UpdatedAt = now
	return true, nil
}

// ---- orders ----

func (s *MemoryStore) CreateOrderWithMilestone(ctx context.Context, o *Order, m *Milestone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.orders {
		if other.ProjectID == o.ProjectID {
			return ErrDuplicate
		}
	}
	co := *o
	cm := *m
	s.orders[o.ID] = &co
	s.milestones[m.ID] = &cm
	return nil
}

func (s *MemoryStore) GetOrder(ctx context.Context, id string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *MemoryStore) GetOrderByNo(ctx context.Context, orderNo string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.OrderNo == orderNo {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetOrderByProject(ctx context.Context, projectID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ProjectID == projectID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListOrdersByUser(ctx context.Context, userID, role, status string) ([]*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Order
	for _, o := range s.orders {
		match := false
		switch role {
		case "employer":
			match = o.EmployerID == userID
		case "developer":
			match = o.DeveloperID == userID
		default:
			match = o.EmployerID == userID || o.DeveloperID == userID
		}
		if match && (status == "" || o.Status == status) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) SetOrderStatus(ctx context.Context, id string, from []string, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || !contains(from, o.Status) {
		return false, nil
	}
	now := time.Now()
	o.Status = to
	if to == OrderInProgress && o.StartedAt == nil {
		o.StartedAt = &now
	}
	if to == OrderCompleted {
		o.CompletedAt = &now
	}
	o.UpdatedAt = now
	return true, nil
}

// ---- milestones ----

func (s *MemoryStore) AddMilestone(ctx context.Context, m *Milestone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.milestones[m.ID] = &cp
	if o, ok := s.orders[m.OrderID]; ok {
		o.MilestoneCount++
		o.UpdatedAt = time.Now()
	}
	return nil
}

func (s *MemoryStore) GetMilestone(ctx context.Context, id string) (*Milestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.milestones[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) ListMilestones(ctx context.Context, orderID string) ([]*Milestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Milestone
	for _, m := range s.milestones {
		if m.OrderID == orderID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (s *MemoryStore) SetMilestoneStatus(ctx context.Context, id string, from []string, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.milestones[id]
	if !ok || !contains(from, m.Status) {
		return false, nil
	}
	m.Status = to
	m.UpdatedAt = time.Now()
	return true, nil
}

func (s *MemoryStore) SetMilestoneSubmitted(ctx context.Context, id, note string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.milestones[id]
	if !ok || (m.Status != MilestoneInProgress && m.Status != MilestoneRejected) {
		return false, nil
	}
	m.Status = MilestoneSubmitted
	m.SubmitNote = note
	m.UpdatedAt = time.Now()
	return true, nil
}

func (s *MemoryStore) SetMilestoneReviewed(ctx context.Context, id string, approved bool, note string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.milestones[id]
	if !ok || m.Status != MilestoneSubmitted {
		return false, nil
	}
	now := time.Now()
	if approved {
		m.Status = MilestoneApproved
		m.CompletedAt = &now
	} else {
		m.Status = MilestoneRejected
	}
	m.ReviewNote = note
	m.UpdatedAt = now
	return true, nil
}

func (s *MemoryStore) RevertMilestoneApproval(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.milestones[id]
	if !ok || m.Status != MilestoneApproved {
		return false, nil
	}
	m.Status = MilestoneSubmitted
	m.CompletedAt = nil
	m.UpdatedAt = time.Now()
	return true, nil
}

func (s *MemoryStore) NextPendingMilestone(ctx context.Context, orderID string) (*Milestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var next *Milestone
	for _, m := range s.milestones {
		if m.OrderID == orderID && m.Status == MilestonePending {
			if next == nil || m.Sequence < next.Sequence {
				next = m
			}
		}
	}
	if next == nil {
		return nil, nil
	}
	cp := *next
	return &cp, nil
}

func (s *MemoryStore) CountApprovedMilestones(ctx context.Context, orderID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.milestones {
		if m.OrderID == orderID && m.Status == MilestoneApproved {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) HasActiveMilestone(ctx context.Context, orderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.milestones {
		if m.OrderID == orderID && (m.Status == MilestoneInProgress || m.Status == MilestoneSubmitted) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) UnapprovedAmount(ctx context.Context, orderID string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := decimal.Zero
	for _, m := range s.milestones {
		if m.OrderID == orderID && m.Status != MilestoneApproved {
			sum = sum.Add(m.Amount)
		}
	}
	return sum, nil
}
