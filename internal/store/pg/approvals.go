package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"aexfy.org/internal/approval"
	"aexfy.org/internal/identity"
)

const requestColumns = `id, request_type, status, submitted_by, submitter_roles, payload,
	coalesce(reviewer_id,''), coalesce(decision_note,''), created_at, decided_at`

func (s *Store) Create(ctx context.Context, req *approval.Request) error {
	roles, err := json.Marshal(req.SubmitterRoles)
	if err != nil {
		return fmt.Errorf("marshal submitter roles: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		insert into approval_requests (id, request_type, status, submitted_by, submitter_roles, payload, created_at)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, req.ID, req.Kind, req.Status, req.SubmittedBy, roles, []byte(req.Payload), req.CreatedAt)
	return err
}

func (s *Store) Get(ctx context.Context, id string) (*approval.Request, error) {
	row := s.db.QueryRowContext(ctx, `select `+requestColumns+` from approval_requests where id = $1`, id)
	return scanRequest(row.Scan)
}

func (s *Store) List(ctx context.Context, filter approval.Filter) ([]*approval.Request, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+requestColumns+`
		from approval_requests
		where ($1 = '' or status = $1)
		  and ($2 = '' or request_type = $2)
		order by created_at desc
		limit $3 offset $4
	`, filter.Status, filter.Kind, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*approval.Request
	for rows.Next() {
		req, err := scanRequest(rows.Scan)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// Transition is the single conditional write that decides a request. The
// status predicate in the where clause is what serializes concurrent
// reviewers: exactly one update reports an affected row.
func (s *Store) Transition(ctx context.Context, id, toStatus, reviewerID, note string, decidedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		update approval_requests
		set status = $2, reviewer_id = $3, decision_note = $4, decided_at = $5
		where id = $1 and status = 'pending'
	`, id, toStatus, reviewerID, nullIfEmpty(note), decidedAt)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		// Either the id is unknown or another reviewer already won.
		var status string
		err := s.db.QueryRowContext(ctx, `select status from approval_requests where id = $1`, id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return identity.ErrNotFound
		}
		if err != nil {
			return err
		}
		return identity.ErrAlreadyResolved
	}
	return nil
}

func scanRequest(scan func(...any) error) (*approval.Request, error) {
	var (
		req       approval.Request
		roles     []byte
		payload   []byte
		decidedAt sql.NullTime
	)
	err := scan(&req.ID, &req.Kind, &req.Status, &req.SubmittedBy, &roles, &payload,
		&req.ReviewerID, &req.DecisionNote, &req.CreatedAt, &decidedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(roles) > 0 {
		if err := json.Unmarshal(roles, &req.SubmitterRoles); err != nil {
			return nil, fmt.Errorf("decode submitter roles: %w", err)
		}
	}
	req.Payload = json.RawMessage(payload)
	if decidedAt.Valid {
		t := decidedAt.Time
		req.DecidedAt = &t
	}
	return &req, nil
}
