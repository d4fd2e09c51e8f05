package appointments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const apptCols = `a.id, a.patient_id, a.doctor_id, a.appointment_date, a.duration_minutes,
	a.status, a.reason_for_visit, a.notes, a.created_at, a.updated_at,
	pu.first_name || ' ' || pu.last_name, du.first_name || ' ' || du.last_name`

const apptFrom = ` FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN users pu ON pu.id = p.user_id
	JOIN doctors d ON d.id = a.doctor_id
	JOIN users du ON du.id = d.user_id`

func (r *repoPG) scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.AppointmentDate, &a.DurationMinutes,
		&a.Status, &a.ReasonForVisit, &a.Notes, &a.CreatedAt, &a.UpdatedAt,
		&a.PatientName, &a.DoctorName)
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, appointment_date, duration_minutes,
			status, reason_for_visit, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.PatientID, a.DoctorID, a.AppointmentDate, a.DurationMinutes,
		a.Status, a.ReasonForVisit, a.Notes)
	if err != nil {
		return err
	}
	// Reload to hydrate the joined names.
	fresh, err := r.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	*a = *fresh
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppointment(r.pool.QueryRow(ctx, `SELECT `+apptCols+apptFrom+` WHERE a.id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE appointments SET appointment_date = $1, duration_minutes = $2, status = $3,
			reason_for_visit = $4, notes = $5, updated_at = NOW()
		WHERE id = $6`,
		a.AppointmentDate, a.DurationMinutes, a.Status, a.ReasonForVisit, a.Notes, a.ID)
	if err != nil {
		return err
	}
	fresh, err := r.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	*a = *fresh
	return nil
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	idx := 1
	if v, ok := params["doctor_id"]; ok {
		where += fmt.Sprintf(` AND a.doctor_id = $%d`, idx)
		args = append(args, v)
		idx++
	}
	if v, ok := params["patient_id"]; ok {
		where += fmt.Sprintf(` AND a.patient_id = $%d`, idx)
		args = append(args, v)
		idx++
	}
	if v, ok := params["status"]; ok {
		where += fmt.Sprintf(` AND a.status = $%d`, idx)
		args = append(args, v)
		idx++
	}
	if v, ok := params["date"]; ok {
		where += fmt.Sprintf(` AND a.appointment_date::date = $%d::date`, idx)
		args = append(args, v)
		idx++
	}
	if v, ok := params["date_from"]; ok {
		where += fmt.Sprintf(` AND a.appointment_date >= $%d`, idx)
		args = append(args, v)
		idx++
	}
	if v, ok := params["date_to"]; ok {
		where += fmt.Sprintf(` AND a.appointment_date <= $%d`, idx)
		args = append(args, v)
		idx++
	}
	if v, ok := params["q"]; ok {
		where += fmt.Sprintf(` AND (pu.first_name ILIKE $%d OR pu.last_name ILIKE $%d`+
			` OR du.first_name ILIKE $%d OR du.last_name ILIKE $%d`+
			` OR a.reason_for_visit ILIKE $%d OR a.notes ILIKE $%d)`, idx, idx, idx, idx, idx, idx)
		args = append(args, "%"+v+"%")
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+apptFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + apptCols + apptFrom + where +
		fmt.Sprintf(` ORDER BY a.appointment_date LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, nil
}

func (r *repoPG) ExistsActiveAt(ctx context.Context, doctorID uuid.UUID, at time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND appointment_date = $2 AND status IN ('SCHEDULED','CONFIRMED')
		)`, doctorID, at).Scan(&exists)
	return exists, err
}
