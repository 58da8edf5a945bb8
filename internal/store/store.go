package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/obiyadev/revtree/internal/mcts"
	"github.com/obiyadev/revtree/internal/report"
)

// ErrNotFound is returned when a session or report does not exist.
var ErrNotFound = errors.New("not found")

// Session is a persisted review session.
type Session struct {
	ID                  string
	Repository          string
	Branch              string
	Requirements        string
	State               string
	MaxIterations       uint32
	ExplorationConstant float64
	MaxDepth            uint32
	OutputDestination   string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Store wraps the SQLite database with typed queries.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over an already opened database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession inserts a new session row.
func (s *Store) CreateSession(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, repository, branch, requirements, state,
			max_iterations, exploration_constant, max_depth,
			output_destination
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Repository, sess.Branch, sess.Requirements,
		sess.State, sess.MaxIterations, sess.ExplorationConstant,
		sess.MaxDepth, sess.OutputDestination,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	return nil
}

// UpdateSessionState records a session FSM state change.
func (s *Store) UpdateSessionState(ctx context.Context, sessionID,
	state string) error {

	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET state = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		state, sessionID,
	)
	if err != nil {
		return fmt.Errorf("update session state: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}

	return nil
}

// GetSession fetches one session by id.
func (s *Store) GetSession(ctx context.Context,
	sessionID string) (*Session, error) {

	row := s.db.QueryRowContext(ctx, `
		SELECT id, repository, branch, requirements, state,
		       max_iterations, exploration_constant, max_depth,
		       output_destination, created_at, updated_at
		FROM sessions WHERE id = ?`,
		sessionID,
	)

	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound,
			sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	return sess, nil
}

// ListSessions returns all sessions, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, repository, branch, requirements, state,
		       max_iterations, exploration_constant, max_depth,
		       output_destination, created_at, updated_at
		FROM sessions ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		sessions = append(sessions, sess)
	}

	return sessions, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for scanSession.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var sess Session
	err := row.Scan(
		&sess.ID, &sess.Repository, &sess.Branch, &sess.Requirements,
		&sess.State, &sess.MaxIterations, &sess.ExplorationConstant,
		&sess.MaxDepth, &sess.OutputDestination, &sess.CreatedAt,
		&sess.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &sess, nil
}

// SaveReport persists a session's final report. The full node map is stored
// as JSON for audit.
func (s *Store) SaveReport(ctx context.Context, rep *report.Report) error {
	nodesJSON, err := json.Marshal(rep.AllNodes)
	if err != nil {
		return fmt.Errorf("marshal report nodes: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (
			session_id, selected_node_id, state, reasoning,
			visits, value, total_visits, children_count,
			nodes_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			selected_node_id = excluded.selected_node_id,
			state = excluded.state,
			reasoning = excluded.reasoning,
			visits = excluded.visits,
			value = excluded.value,
			total_visits = excluded.total_visits,
			children_count = excluded.children_count,
			nodes_json = excluded.nodes_json`,
		rep.SessionID, rep.SelectedNodeID, rep.State, rep.Reasoning,
		rep.Stats.Visits, rep.Stats.Value, rep.Stats.TotalVisits,
		rep.Stats.ChildrenCount, string(nodesJSON),
	)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}

	return nil
}

// GetReport fetches the report persisted for a session.
func (s *Store) GetReport(ctx context.Context,
	sessionID string) (*report.Report, error) {

	row := s.db.QueryRowContext(ctx, `
		SELECT selected_node_id, state, reasoning, visits, value,
		       total_visits, children_count, nodes_json
		FROM reports WHERE session_id = ?`,
		sessionID,
	)

	var (
		rep       report.Report
		nodesJSON string
	)
	err := row.Scan(
		&rep.SelectedNodeID, &rep.State, &rep.Reasoning,
		&rep.Stats.Visits, &rep.Stats.Value, &rep.Stats.TotalVisits,
		&rep.Stats.ChildrenCount, &nodesJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: report for session %s",
			ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}

	rep.SessionID = sessionID
	rep.AllNodes = make(map[string]*mcts.Node)
	if err := json.Unmarshal([]byte(nodesJSON), &rep.AllNodes); err != nil {
		return nil, fmt.Errorf("unmarshal report nodes: %w", err)
	}

	return &rep, nil
}
