package proposal

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const proposalCols = `id, patient_id, therapist_id, title, status, priority,
	total_sessions, total_duration_min, total_cost_cents,
	notes, therapeutic_goals, coordinator_notes, approval_notes,
	final_approval_notes, admin_notes, assigned_to,
	submitted_at, reviewed_at, reviewed_by, completed_at,
	version_id, created_at, updated_at`

func scanProposal(row pgx.Row) (*Proposal, error) {
	var p Proposal
	err := row.Scan(&p.ID, &p.PatientID, &p.TherapistID, &p.Title, &p.Status, &p.Priority,
		&p.TotalSessions, &p.TotalDurationMin, &p.TotalCostCents,
		&p.Notes, &p.TherapeuticGoals, &p.CoordinatorNotes, &p.ApprovalNotes,
		&p.FinalApprovalNotes, &p.AdminNotes, &p.AssignedTo,
		&p.SubmittedAt, &p.ReviewedAt, &p.ReviewedBy, &p.CompletedAt,
		&p.VersionID, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Proposal) error {
	p.ID = uuid.New()
	p.VersionID = 1
	_, err := r.pool.Exec(ctx, `
		INSERT INTO proposal (id, patient_id, therapist_id, title, status, priority,
			total_sessions, total_duration_min, total_cost_cents,
			notes, therapeutic_goals, version_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		p.ID, p.PatientID, p.TherapistID, p.Title, p.Status, p.Priority,
		p.TotalSessions, p.TotalDurationMin, p.TotalCostCents,
		p.Notes, p.TherapeuticGoals, p.VersionID)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Proposal, error) {
	return scanProposal(r.pool.QueryRow(ctx, `SELECT `+proposalCols+` FROM proposal WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, p *Proposal) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE proposal SET
			title=$2, status=$3, priority=$4,
			total_sessions=$5, total_duration_min=$6, total_cost_cents=$7,
			notes=$8, therapeutic_goals=$9, coordinator_notes=$10,
			approval_notes=$11, final_approval_notes=$12, admin_notes=$13,
			assigned_to=$14, submitted_at=$15, reviewed_at=$16, reviewed_by=$17,
			completed_at=$18, version_id=version_id+1, updated_at=NOW()
		WHERE id = $1 AND version_id = $19`,
		p.ID, p.Title, p.Status, p.Priority,
		p.TotalSessions, p.TotalDurationMin, p.TotalCostCents,
		p.Notes, p.TherapeuticGoals, p.CoordinatorNotes,
		p.ApprovalNotes, p.FinalApprovalNotes, p.AdminNotes,
		p.AssignedTo, p.SubmittedAt, p.ReviewedAt, p.ReviewedBy,
		p.CompletedAt, p.VersionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	p.VersionID++
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Proposal, int, error) {
	return r.listWhere(ctx, ``, nil, limit, offset)
}

func (r *repoPG) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Proposal, int, error) {
	return r.listWhere(ctx, `WHERE status = $1`, []interface{}{status}, limit, offset)
}

func (r *repoPG) ListByTherapist(ctx context.Context, therapistID uuid.UUID, limit, offset int) ([]*Proposal, int, error) {
	return r.listWhere(ctx, `WHERE therapist_id = $1`, []interface{}{therapistID}, limit, offset)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Proposal, int, error) {
	return r.listWhere(ctx, `WHERE patient_id = $1`, []interface{}{patientID}, limit, offset)
}

func (r *repoPG) listWhere(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*Proposal, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM proposal `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := fmt.Sprintf(`SELECT %s FROM proposal %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		proposalCols, where, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *repoPG) ListOpen(ctx context.Context) ([]*Proposal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+proposalCols+` FROM proposal
		WHERE status NOT IN ('rejected','cancelled','completed')
		ORDER BY updated_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repoPG) AddService(ctx context.Context, s *ProposalService) error {
	s.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO proposal_service (id, proposal_id, name, sessions, duration_min, cost_cents)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		s.ID, s.ProposalID, s.Name, s.Sessions, s.DurationMin, s.CostCents)
	return err
}

func (r *repoPG) GetServices(ctx context.Context, proposalID uuid.UUID) ([]*ProposalService, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, proposal_id, name, sessions, duration_min, cost_cents
		FROM proposal_service WHERE proposal_id = $1 ORDER BY name`, proposalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ProposalService
	for rows.Next() {
		var s ProposalService
		if err := rows.Scan(&s.ID, &s.ProposalID, &s.Name, &s.Sessions, &s.DurationMin, &s.CostCents); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
