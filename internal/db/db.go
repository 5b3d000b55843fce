package db

import (
	"context"
	"fmt"
	"log"
	"os"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var Conn *pgxpool.Pool

// Init connects to Postgres
func Init() {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_NAME"),
	)

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		log.Fatalf("invalid database config: %v\n", err)
	}
	// NUMERIC columns scan straight into decimal.Decimal
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	Conn, err = pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}

	if err = Conn.Ping(context.Background()); err != nil {
		log.Fatalf("Unable to ping database: %v\n", err)
	}

	log.Println("Connected to Postgres successfully")

	// Ensure users table exists for auth
	ensureUsersTable()

	// Ensure wallet + transaction tables used by the ledger exist
	ensureWalletTables()

	// Ensure project/bid tables used by the marketplace exist
	ensureProjectTables()

	// Ensure order/milestone tables and their status constraints exist
	ensureOrderTables()
}

// ensureUsersTable creates the users table if missing
func ensureUsersTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS users (
            id UUID PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT 'developer' CHECK (role IN ('employer', 'developer', 'admin')),
            is_active BOOLEAN DEFAULT TRUE,
            bio TEXT NOT NULL DEFAULT '',
            avatar_url TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ DEFAULT NOW()
        )`)
	if err != nil {
		log.Printf("failed to ensure users table: %v", err)
	}
}

// ensureWalletTables creates wallets and transactions tables if missing
func ensureWalletTables() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS wallets (
            id UUID PRIMARY KEY,
            user_id UUID NOT NULL UNIQUE REFERENCES users(id),
            balance NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
            frozen_amount NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (frozen_amount >= 0),
            total_income NUMERIC(14,2) NOT NULL DEFAULT 0,
            total_expense NUMERIC(14,2) NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'normal' CHECK (status IN ('normal', 'frozen')),
            created_at TIMESTAMPTZ DEFAULT NOW(),
            updated_at TIMESTAMPTZ DEFAULT NOW()
        )`)
	if err != nil {
		log.Printf("failed to ensure wallets table: %v", err)
	}

	_, err = Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS transactions (
            id UUID PRIMARY KEY,
            transaction_no TEXT NOT NULL UNIQUE,
            wallet_id UUID NOT NULL REFERENCES wallets(id),
            user_id UUID NOT NULL REFERENCES users(id),
            type TEXT NOT NULL CHECK (type IN ('recharge', 'withdraw', 'payment', 'income', 'refund', 'service_fee')),
            amount NUMERIC(14,2) NOT NULL CHECK (amount > 0),
            balance_before NUMERIC(14,2) NOT NULL,
            balance_after NUMERIC(14,2) NOT NULL,
            order_id UUID NULL,
            milestone_id UUID NULL,
            status TEXT NOT NULL CHECK (status IN ('processing', 'success', 'failed')),
            remark TEXT,
            created_at TIMESTAMPTZ DEFAULT NOW(),
            updated_at TIMESTAMPTZ DEFAULT NOW()
        );
        CREATE INDEX IF NOT EXISTS idx_transactions_user_created ON transactions(user_id, created_at);
        CREATE INDEX IF NOT EXISTS idx_transactions_order ON transactions(order_id);
    `)
	if err != nil {
		log.Printf("failed to ensure transactions table: %v", err)
	}
}

// ensureProjectTables creates projects and bids tables if missing
func ensureProjectTables() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS projects (
            id UUID PRIMARY KEY,
            user_id UUID NOT NULL REFERENCES users(id),
            title TEXT NOT NULL,
            description TEXT,
            budget NUMERIC(14,2),
            deadline TIMESTAMPTZ,
            status TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'in_progress', 'completed')),
            created_at TIMESTAMPTZ DEFAULT NOW(),
            updated_at TIMESTAMPTZ DEFAULT NOW()
        )`)
	if err != nil {
		log.Printf("failed to ensure projects table: %v", err)
	}

	_, err = Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS bids (
            id UUID PRIMARY KEY,
            project_id UUID NOT NULL REFERENCES projects(id),
            developer_id UUID NOT NULL REFERENCES users(id),
            proposed_price NUMERIC(14,2) NOT NULL CHECK (proposed_price > 0),
            proposed_days INTEGER NOT NULL,
            proposal TEXT,
            status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'accepted', 'rejected', 'withdrawn')),
            created_at TIMESTAMPTZ DEFAULT NOW(),
            updated_at TIMESTAMPTZ DEFAULT NOW()
        );
        CREATE UNIQUE INDEX IF NOT EXISTS idx_bids_project_developer_live
            ON bids(project_id, developer_id) WHERE status <> 'withdrawn';
    `)
	if err != nil {
		log.Printf("failed to ensure bids table: %v", err)
	}
}

// ensureOrderTables creates orders and milestones tables if missing
func ensureOrderTables() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS orders (
            id UUID PRIMARY KEY,
            order_no TEXT NOT NULL UNIQUE,
            project_id UUID NOT NULL UNIQUE REFERENCES projects(id),
            bid_id UUID NOT NULL REFERENCES bids(id),
            employer_id UUID NOT NULL REFERENCES users(id),
            developer_id UUID NOT NULL REFERENCES users(id),
            amount NUMERIC(14,2) NOT NULL CHECK (amount > 0),
            status TEXT NOT NULL CHECK (status IN (
                'pending_payment', 'in_progress', 'delivered', 'completed', 'cancelled', 'disputed'
            )),
            milestone_count INTEGER NOT NULL DEFAULT 1,
            started_at TIMESTAMPTZ NULL,
            deadline TIMESTAMPTZ NULL,
            completed_at TIMESTAMPTZ NULL,
            created_at TIMESTAMPTZ DEFAULT NOW(),
            updated_at TIMESTAMPTZ DEFAULT NOW()
        )`)
	if err != nil {
		log.Printf("failed to ensure orders table: %v", err)
	}

	_, err = Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS milestones (
            id UUID PRIMARY KEY,
            order_id UUID NOT NULL REFERENCES orders(id),
            title TEXT NOT NULL,
            description TEXT,
            amount NUMERIC(14,2) NOT NULL CHECK (amount > 0),
            sequence INTEGER NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN (
                'pending', 'in_progress', 'submitted', 'approved', 'rejected'
            )),
            due_date TIMESTAMPTZ NULL,
            completed_at TIMESTAMPTZ NULL,
            submit_note TEXT,
            review_note TEXT,
            created_at TIMESTAMPTZ DEFAULT NOW(),
            updated_at TIMESTAMPTZ DEFAULT NOW(),
            UNIQUE (order_id, sequence)
        );
        CREATE INDEX IF NOT EXISTS idx_milestones_order ON milestones(order_id, sequence);
    `)
	if err != nil {
		log.Printf("failed to ensure milestones table: %v", err)
	}
}
