package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agroplane/agroplane/internal/domain"
)

// Compile-time check: WorkflowRepository implements domain.WorkflowRepository.
var _ domain.WorkflowRepository = (*WorkflowRepository)(nil)

// WorkflowRepository implements domain.WorkflowRepository using SQLite.
// Step data and validation errors are stored as JSON text columns.
type WorkflowRepository struct {
	db *sql.DB
}

const workflowColumns = `id, tenant_id, current_step, total_steps, status, completed_at, created_at, updated_at`

const stepColumns = `id, workflow_id, step_number, name, title, required, status,
	step_data, validation_errors, completed_at, created_at, updated_at`

func (r *WorkflowRepository) CreateWorkflow(ctx context.Context, wf domain.OnboardingWorkflow, steps []domain.OnboardingStep) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning workflow transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO onboarding_workflows (`+workflowColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		wf.ID, wf.TenantID, wf.CurrentStep, wf.TotalSteps, string(wf.Status),
		nullTime(wf.CompletedAt),
		wf.CreatedAt.Format(timeFormat), wf.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting workflow: %w", err)
	}

	if err := insertSteps(ctx, tx, steps); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *WorkflowRepository) GetWorkflow(ctx context.Context, id string) (domain.OnboardingWorkflow, error) {
	wf, err := scanWorkflow(r.db.QueryRowContext(ctx,
		`SELECT `+workflowColumns+` FROM onboarding_workflows WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.OnboardingWorkflow{}, domain.ErrWorkflowNotFound
		}
		return domain.OnboardingWorkflow{}, fmt.Errorf("scanning workflow: %w", err)
	}
	return wf, nil
}

func (r *WorkflowRepository) ActiveByTenant(ctx context.Context, tenantID string) (domain.OnboardingWorkflow, error) {
	wf, err := scanWorkflow(r.db.QueryRowContext(ctx,
		`SELECT `+workflowColumns+` FROM onboarding_workflows
		 WHERE tenant_id = ? AND status NOT IN (?, ?)
		 ORDER BY created_at DESC LIMIT 1`,
		tenantID, string(domain.WorkflowCompleted), string(domain.WorkflowFailed),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.OnboardingWorkflow{}, domain.ErrWorkflowNotFound
		}
		return domain.OnboardingWorkflow{}, fmt.Errorf("scanning active workflow: %w", err)
	}
	return wf, nil
}

func (r *WorkflowRepository) UpdateWorkflow(ctx context.Context, wf domain.OnboardingWorkflow) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE onboarding_workflows
		 SET current_step = ?, status = ?, completed_at = ?, updated_at = ?
		 WHERE id = ?`,
		wf.CurrentStep, string(wf.Status), nullTime(wf.CompletedAt),
		time.Now().UTC().Format(timeFormat), wf.ID,
	)
	if err != nil {
		return fmt.Errorf("updating workflow: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrWorkflowNotFound
	}
	return nil
}

func (r *WorkflowRepository) ListSteps(ctx context.Context, workflowID string) ([]domain.OnboardingStep, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+stepColumns+` FROM onboarding_steps
		 WHERE workflow_id = ? ORDER BY step_number`, workflowID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing steps: %w", err)
	}
	defer rows.Close()

	var steps []domain.OnboardingStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	return steps, rows.Err()
}

func (r *WorkflowRepository) UpdateStep(ctx context.Context, step domain.OnboardingStep) error {
	data, errsJSON, err := marshalStepBags(step)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE onboarding_steps
		 SET status = ?, step_data = ?, validation_errors = ?, completed_at = ?, updated_at = ?
		 WHERE workflow_id = ? AND step_number = ?`,
		string(step.Status), data, errsJSON, nullTime(step.CompletedAt),
		time.Now().UTC().Format(timeFormat),
		step.WorkflowID, step.Number,
	)
	if err != nil {
		return fmt.Errorf("updating step: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("step %d of workflow %q not found", step.Number, step.WorkflowID)
	}
	return nil
}

func (r *WorkflowRepository) ReplaceSteps(ctx context.Context, workflowID string, steps []domain.OnboardingStep) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning replace transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM onboarding_steps WHERE workflow_id = ?`, workflowID,
	); err != nil {
		return fmt.Errorf("deleting steps: %w", err)
	}

	if err := insertSteps(ctx, tx, steps); err != nil {
		return err
	}

	return tx.Commit()
}

func insertSteps(ctx context.Context, tx *sql.Tx, steps []domain.OnboardingStep) error {
	for _, step := range steps {
		data, errsJSON, err := marshalStepBags(step)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO onboarding_steps (`+stepColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			step.ID, step.WorkflowID, step.Number, step.Name, step.Title,
			boolToInt(step.Required), string(step.Status),
			data, errsJSON, nullTime(step.CompletedAt),
			step.CreatedAt.Format(timeFormat), step.UpdatedAt.Format(timeFormat),
		)
		if err != nil {
			return fmt.Errorf("inserting step %d: %w", step.Number, err)
		}
	}
	return nil
}

func marshalStepBags(step domain.OnboardingStep) (string, string, error) {
	data := step.Data
	if data == nil {
		data = map[string]any{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return "", "", fmt.Errorf("marshaling step data: %w", err)
	}

	verrs := step.ValidationErrors
	if verrs == nil {
		verrs = []string{}
	}
	errsJSON, err := json.Marshal(verrs)
	if err != nil {
		return "", "", fmt.Errorf("marshaling validation errors: %w", err)
	}

	return string(dataJSON), string(errsJSON), nil
}

func scanWorkflow(row *sql.Row) (domain.OnboardingWorkflow, error) {
	var wf domain.OnboardingWorkflow
	var status, createdAt, updatedAt string
	var completedAt sql.NullString

	err := row.Scan(
		&wf.ID, &wf.TenantID, &wf.CurrentStep, &wf.TotalSteps, &status,
		&completedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.OnboardingWorkflow{}, err
	}

	wf.Status = domain.WorkflowStatus(status)
	wf.CompletedAt = parseNullTime(completedAt)
	wf.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	wf.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return wf, nil
}

func scanStep(rows *sql.Rows) (domain.OnboardingStep, error) {
	var step domain.OnboardingStep
	var status, dataJSON, errsJSON, createdAt, updatedAt string
	var required int
	var completedAt sql.NullString

	err := rows.Scan(
		&step.ID, &step.WorkflowID, &step.Number, &step.Name, &step.Title,
		&required, &status, &dataJSON, &errsJSON, &completedAt,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return domain.OnboardingStep{}, fmt.Errorf("scanning step: %w", err)
	}

	step.Required = required != 0
	step.Status = domain.StepStatus(status)
	step.CompletedAt = parseNullTime(completedAt)
	step.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	step.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	if err := json.Unmarshal([]byte(dataJSON), &step.Data); err != nil {
		return domain.OnboardingStep{}, fmt.Errorf("unmarshaling step data: %w", err)
	}
	if err := json.Unmarshal([]byte(errsJSON), &step.ValidationErrors); err != nil {
		return domain.OnboardingStep{}, fmt.Errorf("unmarshaling validation errors: %w", err)
	}
	if len(step.ValidationErrors) == 0 {
		step.ValidationErrors = nil
	}

	return step, nil
}
