package marketplace

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore backs the marketplace with the shared pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ---- projects ----

const projectColumns = `id, user_id, title, COALESCE(description, ''), COALESCE(budget, 0), deadline, status, created_at, updated_at`

func scanProject(row pgx.Row) (*Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Description, &p.Budget, &p.Deadline,
		&p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) CreateProject(ctx context.Context, p *Project) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO projects (id, user_id, title, description, budget, deadline, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.UserID, p.Title, p.Description, p.Budget, p.Deadline, p.Status, p.CreatedAt, p.UpdatedAt)
	return err
}

func (s *PostgresStore) GetProject(ctx context.Context, id string) (*Project, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	return scanProject(row)
}

func (s *PostgresStore) SetProjectStatus(ctx context.Context, id, from, to string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
        UPDATE projects SET status = $1, updated_at = NOW()
        WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ---- bids ----

const bidColumns = `id, project_id, developer_id, proposed_price, proposed_days, COALESCE(proposal, ''), status, created_at, updated_at`

func scanBid(row pgx.Row) (*Bid, error) {
	var b Bid
	err := row.Scan(&b.ID, &b.ProjectID, &b.DeveloperID, &b.ProposedPrice, &b.ProposedDays,
		&b.Proposal, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *PostgresStore) CreateBid(ctx context.Context, b *Bid) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO bids (id, project_id, developer_id, proposed_price, proposed_days, proposal, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID, b.ProjectID, b.DeveloperID, b.ProposedPrice, b.ProposedDays, b.Proposal, b.Status, b.CreatedAt, b.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *PostgresStore) GetBid(ctx context.Context, id string) (*Bid, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+bidColumns+` FROM bids WHERE id = $1`, id)
	return scanBid(row)
}

func (s *PostgresStore) UpdateBidProposal(ctx context.Context, id string, price decimal.Decimal, days int, proposal string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
        UPDATE bids SET proposed_price = $1, proposed_days = $2, proposal = $3, updated_at = NOW()
        WHERE id = $4 AND status = $5`,
		price, days, proposal, id, BidPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) SetBidStatus(ctx context.Context, id, from, to string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
        UPDATE bids SET status = $1, updated_at = NOW()
        WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) ListBidsByProject(ctx context.Context, projectID string) ([]*Bid, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT `+bidColumns+` FROM bids WHERE project_id = $1 ORDER BY created_at ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AcceptBidCascade(ctx context.Context, bidID, projectID string) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
        UPDATE bids SET status = $1, updated_at = NOW()
        WHERE id = $2 AND status = $3`, BidAccepted, bidID, BidPending)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `
        UPDATE bids SET status = $1, updated_at = NOW()
        WHERE project_id = $2 AND id <> $3 AND status = $4`,
		BidRejected, projectID, bidID, BidPending); err != nil {
		return false, err
	}

	tag, err = tx.Exec(ctx, `
        UPDATE projects SET status = $1, updated_at = NOW()
        WHERE id = $2 AND status = $3`, ProjectInProgress, projectID, ProjectOpen)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	return true, tx.Commit(ctx)
}

// ---- orders ----

const orderColumns = `id, order_no, project_id, bid_id, employer_id, developer_id, amount, status,
    milestone_count, started_at, deadline, completed_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNo, &o.ProjectID, &o.BidID, &o.EmployerID, &o.DeveloperID,
		&o.Amount, &o.Status, &o.MilestoneCount, &o.StartedAt, &o.Deadline, &o.CompletedAt,
		&o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *PostgresStore) CreateOrderWithMilestone(ctx context.Context, o *Order, m *Milestone) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
        INSERT INTO orders (id, order_no, project_id, bid_id, employer_id, developer_id, amount, status,
            milestone_count, started_at, deadline, completed_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		o.ID, o.OrderNo, o.ProjectID, o.BidID, o.EmployerID, o.DeveloperID, o.Amount, o.Status,
		o.MilestoneCount, o.StartedAt, o.Deadline, o.CompletedAt, o.CreatedAt, o.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return err
	}

	if err := insertMilestone(ctx, tx, m); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (*Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (s *PostgresStore) GetOrderByNo(ctx context.Context, orderNo string) (*Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_no = $1`, orderNo)
	return scanOrder(row)
}

func (s *PostgresStore) GetOrderByProject(ctx context.Context, projectID string) (*Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE project_id = $1`, projectID)
	return scanOrder(row)
}

func (s *PostgresStore) ListOrdersByUser(ctx context.Context, userID, role, status string) ([]*Order, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT `+orderColumns+` FROM orders
        WHERE CASE $2
            WHEN 'employer' THEN employer_id = $1
            WHEN 'developer' THEN developer_id = $1
            ELSE employer_id = $1 OR developer_id = $1
        END
        AND ($3 = '' OR status = $3)
        ORDER BY created_at DESC`, userID, role, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetOrderStatus(ctx context.Context, id string, from []string, to string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
        UPDATE orders SET status = $1,
            started_at = CASE WHEN $1 = 'in_progress' THEN COALESCE(started_at, NOW()) ELSE started_at END,
            completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END,
            updated_at = NOW()
        WHERE id = $2 AND status = ANY($3)`, to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ---- milestones ----

const milestoneColumns = `id, order_id, title, COALESCE(description, ''), amount, sequence, status,
    due_date, completed_at, COALESCE(submit_note, ''), COALESCE(review_note, ''), created_at, updated_at`

func scanMilestone(row pgx.Row) (*Milestone, error) {
	var m Milestone
	err := row.Scan(&m.ID, &m.OrderID, &m.Title, &m.Description, &m.Amount, &m.Sequence,
		&m.Status, &m.DueDate, &m.CompletedAt, &m.SubmitNote, &m.ReviewNote,
		&m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func insertMilestone(ctx context.Context, tx pgx.Tx, m *Milestone) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO milestones (id, order_id, title, description, amount, sequence, status,
            due_date, completed_at, submit_note, review_note, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		m.ID, m.OrderID, m.Title, m.Description, m.Amount, m.Sequence, m.Status,
		m.DueDate, m.CompletedAt, m.SubmitNote, m.ReviewNote, m.CreatedAt, m.UpdatedAt)
	return err
}

func (s *PostgresStore) AddMilestone(ctx context.Context, m *Milestone) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := insertMilestone(ctx, tx, m); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
        UPDATE orders SET milestone_count = milestone_count + 1, updated_at = NOW()
        WHERE id = $1`, m.OrderID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) GetMilestone(ctx context.Context, id string) (*Milestone, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE id = $1`, id)
	return scanMilestone(row)
}

func (s *PostgresStore) ListMilestones(ctx context.Context, orderID string) ([]*Milestone, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT `+milestoneColumns+` FROM milestones WHERE order_id = $1 ORDER BY sequence ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetMilestoneStatus(ctx context.Context, id string, from []string, to string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
        UPDATE milestones SET status = $1, updated_at = NOW()
        WHERE id = $2 AND status = ANY($3)`, to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) SetMilestoneSubmitted(ctx context.Context, id, note string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
        UPDATE milestones SET status = $1, submit_note = $2, updated_at = NOW()
        WHERE id = $3 AND status = ANY($4)`,
		MilestoneSubmitted, note, id, []string{MilestoneInProgress, MilestoneRejected})
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) SetMilestoneReviewed(ctx context.Context, id string, approved bool, note string) (bool, error) {
	to := MilestoneRejected
	if approved {
		to = MilestoneApproved
	}
	tag, err := s.pool.Exec(ctx, `
        UPDATE milestones SET status = $1, review_note = $2,
            completed_at = CASE WHEN $1 = 'approved' THEN NOW() ELSE completed_at END,
            updated_at = NOW()
        WHERE id = $3 AND status = $4`, to, note, id, MilestoneSubmitted)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) RevertMilestoneApproval(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
        UPDATE milestones SET status = $1, completed_at = NULL, updated_at = NOW()
        WHERE id = $2 AND status = $3`,
		MilestoneSubmitted, id, MilestoneApproved)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) NextPendingMilestone(ctx context.Context, orderID string) (*Milestone, error) {
	row := s.pool.QueryRow(ctx, `
        SELECT `+milestoneColumns+` FROM milestones
        WHERE order_id = $1 AND status = $2
        ORDER BY sequence ASC LIMIT 1`, orderID, MilestonePending)
	m, err := scanMilestone(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return m, err
}

func (s *PostgresStore) CountApprovedMilestones(ctx context.Context, orderID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
        SELECT COUNT(*) FROM milestones WHERE order_id = $1 AND status = $2`,
		orderID, MilestoneApproved).Scan(&n)
	return n, err
}

func (s *PostgresStore) HasActiveMilestone(ctx context.Context, orderID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM milestones
            WHERE order_id = $1 AND status = ANY($2)
        )`, orderID, []string{MilestoneInProgress, MilestoneSubmitted}).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) UnapprovedAmount(ctx context.Context, orderID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := s.pool.QueryRow(ctx, `
        SELECT COALESCE(SUM(amount), 0) FROM milestones
        WHERE order_id = $1 AND status <> $2`, orderID, MilestoneApproved).Scan(&sum)
	return sum, err
}
