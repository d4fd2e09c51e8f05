package medicalrecords

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const recordCols = `m.id, m.patient_id, m.doctor_id, m.visit_date, m.diagnosis, m.treatment_notes,
	m.symptoms, m.vital_signs, m.medications_prescribed, m.follow_up_required, m.follow_up_date,
	m.lab_results, m.imaging_results, m.created_at, m.updated_at,
	pu.first_name || ' ' || pu.last_name, du.first_name || ' ' || du.last_name`

const recordFrom = ` FROM medical_records m
	JOIN patients p ON p.id = m.patient_id
	JOIN users pu ON pu.id = p.user_id
	JOIN doctors d ON d.id = m.doctor_id
	JOIN users du ON du.id = d.user_id`

func (r *repoPG) scanRecord(row pgx.Row) (*MedicalRecord, error) {
	var m MedicalRecord
	err := row.Scan(&m.ID, &m.PatientID, &m.DoctorID, &m.VisitDate, &m.Diagnosis, &m.TreatmentNotes,
		&m.Symptoms, &m.VitalSigns, &m.MedicationsPrescribed, &m.FollowUpRequired, &m.FollowUpDate,
		&m.LabResults, &m.ImagingResults, &m.CreatedAt, &m.UpdatedAt,
		&m.PatientName, &m.DoctorName)
	return &m, err
}

func (r *repoPG) Create(ctx context.Context, m *MedicalRecord) error {
	m.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO medical_records (id, patient_id, doctor_id, visit_date, diagnosis, treatment_notes,
			symptoms, vital_signs, medications_prescribed, follow_up_required, follow_up_date,
			lab_results, imaging_results)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		m.ID, m.PatientID, m.DoctorID, m.VisitDate, m.Diagnosis, m.TreatmentNotes,
		m.Symptoms, m.VitalSigns, m.MedicationsPrescribed, m.FollowUpRequired, m.FollowUpDate,
		m.LabResults, m.ImagingResults)
	if err != nil {
		return err
	}
	// Reload to hydrate the joined names.
	fresh, err := r.GetByID(ctx, m.ID)
	if err != nil {
		return err
	}
	*m = *fresh
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	return r.scanRecord(r.pool.QueryRow(ctx, `SELECT `+recordCols+recordFrom+` WHERE m.id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, m *MedicalRecord) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE medical_records SET diagnosis = $1, treatment_notes = $2, symptoms = $3,
			vital_signs = $4, medications_prescribed = $5, follow_up_required = $6,
			follow_up_date = $7, lab_results = $8, imaging_results = $9, updated_at = NOW()
		WHERE id = $10`,
		m.Diagnosis, m.TreatmentNotes, m.Symptoms, m.VitalSigns, m.MedicationsPrescribed,
		m.FollowUpRequired, m.FollowUpDate, m.LabResults, m.ImagingResults, m.ID)
	if err != nil {
		return err
	}
	fresh, err := r.GetByID(ctx, m.ID)
	if err != nil {
		return err
	}
	*m = *fresh
	return nil
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*MedicalRecord, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	idx := 1
	if v, ok := params["doctor_id"]; ok {
		where += fmt.Sprintf(` AND m.doctor_id = $%d`, idx)
		args = append(args, v)
		idx++
	}
	if v, ok := params["patient_id"]; ok {
		where += fmt.Sprintf(` AND m.patient_id = $%d`, idx)
		args = append(args, v)
		idx++
	}
	if v, ok := params["follow_up_required"]; ok {
		where += fmt.Sprintf(` AND m.follow_up_required = $%d::boolean`, idx)
		args = append(args, v)
		idx++
	}
	if v, ok := params["date_from"]; ok {
		where += fmt.Sprintf(` AND m.visit_date::date >= $%d::date`, idx)
		args = append(args, v)
		idx++
	}
	if v, ok := params["date_to"]; ok {
		where += fmt.Sprintf(` AND m.visit_date::date <= $%d::date`, idx)
		args = append(args, v)
		idx++
	}
	if v, ok := params["q"]; ok {
		where += fmt.Sprintf(` AND (m.diagnosis ILIKE $%d OR m.symptoms ILIKE $%d`+
			` OR m.treatment_notes ILIKE $%d OR m.medications_prescribed ILIKE $%d`+
			` OR pu.first_name ILIKE $%d OR pu.last_name ILIKE $%d)`, idx, idx, idx, idx, idx, idx)
		args = append(args, "%"+v+"%")
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+recordFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + recordCols + recordFrom + where +
		fmt.Sprintf(` ORDER BY m.visit_date DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*MedicalRecord
	for rows.Next() {
		m, err := r.scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, nil
}
