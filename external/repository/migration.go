package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`DO $$ BEGIN CREATE TYPE session_status AS ENUM ('active', 'completed', 'abandoned'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`DO $$ BEGIN CREATE TYPE session_mode AS ENUM ('text', 'voice'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email TEXT NOT NULL UNIQUE,
		api_key TEXT NOT NULL UNIQUE,
		completed_sessions_count INTEGER NOT NULL DEFAULT 0,
		company_name TEXT NOT NULL DEFAULT '',
		company_description TEXT NOT NULL DEFAULT '',
		industry TEXT NOT NULL DEFAULT '',
		target_audience TEXT NOT NULL DEFAULT '',
		products JSONB NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS researches (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		goal TEXT NOT NULL DEFAULT '',
		hypotheses JSONB NOT NULL DEFAULT '[]',
		questions JSONB NOT NULL DEFAULT '[]',
		custom_instructions TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS interviews (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		research_id UUID NOT NULL REFERENCES researches(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		slug TEXT NOT NULL UNIQUE,
		active BOOLEAN NOT NULL DEFAULT FALSE,
		public_title TEXT NOT NULL DEFAULT '',
		interview_length_min INTEGER NOT NULL DEFAULT 15,
		tone TEXT NOT NULL DEFAULT '',
		prompt_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id UUID PRIMARY KEY,
		interview_id UUID NOT NULL REFERENCES interviews(id) ON DELETE CASCADE,
		research_id UUID NOT NULL,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		status session_status NOT NULL DEFAULT 'active',
		mode session_mode NOT NULL,
		participant_name TEXT NOT NULL,
		participant_email TEXT,
		session_token TEXT NOT NULL UNIQUE,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ,
		last_activity_at TIMESTAMPTZ NOT NULL,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		global_context_snapshot JSONB NOT NULL,
		research_context_snapshot JSONB NOT NULL,
		persona_id TEXT NOT NULL,
		prompt_id TEXT NOT NULL DEFAULT '',
		compiled_prompt_hash TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_interview ON sessions (interview_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_stale ON sessions (last_activity_at) WHERE status = 'active'`,
	`CREATE TABLE IF NOT EXISTS transcript_segments (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		seq BIGSERIAL,
		session_id UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		role VARCHAR(32) NOT NULL,
		text TEXT NOT NULL DEFAULT '',
		start_sec DOUBLE PRECISION,
		end_sec DOUBLE PRECISION,
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transcript_segments_session ON transcript_segments (session_id, created_at, seq)`,
	`CREATE TABLE IF NOT EXISTS interview_reports (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		session_id UUID NOT NULL UNIQUE REFERENCES sessions(id) ON DELETE CASCADE,
		summary TEXT NOT NULL,
		key_quotes JSONB NOT NULL DEFAULT '[]',
		pains JSONB NOT NULL DEFAULT '[]',
		opportunities JSONB NOT NULL DEFAULT '[]',
		review JSONB,
		interview_completed BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
