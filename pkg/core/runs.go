package core

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AddRun inserts a run and returns its ID. An empty RunID is assigned a UUID
// and a zero CreatedAt is set to now.
func (s *SQLiteStore) AddRun(ctx context.Context, run *Run) (string, error) {
	if err := s.checkOpen("add_run"); err != nil {
		return "", err
	}

	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, created_at, model, ontology_name, ontology_path, notes)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.RunID, formatTime(run.CreatedAt), run.Model, run.OntologyName, run.OntologyPath, run.Notes)
	if err != nil {
		return "", wrapError("add_run", err)
	}
	return run.RunID, nil
}

// GetRun retrieves a run by ID
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if err := s.checkOpen("get_run"); err != nil {
		return nil, err
	}

	var run Run
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, created_at, model, ontology_name, ontology_path, notes
		FROM runs WHERE run_id = ?
	`, id).Scan(&run.RunID, &createdAt, &run.Model, &run.OntologyName, &run.OntologyPath, &run.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrapError("get_run", ErrNotFound)
	}
	if err != nil {
		return nil, wrapError("get_run", err)
	}
	run.CreatedAt = parseTime(createdAt)
	return &run, nil
}

// AddTrajectory inserts a trajectory and returns its ID. The parent run must
// exist. An empty TrajectoryID is assigned a UUID.
func (s *SQLiteStore) AddTrajectory(ctx context.Context, traj *Trajectory) (string, error) {
	if err := s.checkOpen("add_trajectory"); err != nil {
		return "", err
	}

	if traj.TrajectoryID == "" {
		traj.TrajectoryID = uuid.NewString()
	}
	if traj.CreatedAt.IsZero() {
		traj.CreatedAt = time.Now().UTC()
	}

	var logPath sql.NullString
	if traj.RLMLogPath != "" {
		logPath = sql.NullString{String: traj.RLMLogPath, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trajectories (trajectory_id, run_id, task_query, final_answer,
			iteration_count, converged, artifact, rlm_log_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, traj.TrajectoryID, traj.RunID, traj.TaskQuery, traj.FinalAnswer,
		traj.IterationCount, boolToInt(traj.Converged), traj.Artifact, logPath, formatTime(traj.CreatedAt))
	if err != nil {
		return "", wrapError("add_trajectory", err)
	}
	return traj.TrajectoryID, nil
}

// GetTrajectory retrieves a trajectory by ID, or ErrNotFound
func (s *SQLiteStore) GetTrajectory(ctx context.Context, id string) (*Trajectory, error) {
	if err := s.checkOpen("get_trajectory"); err != nil {
		return nil, err
	}

	var traj Trajectory
	var converged int
	var logPath sql.NullString
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT trajectory_id, run_id, task_query, final_answer, iteration_count,
			converged, artifact, rlm_log_path, created_at
		FROM trajectories WHERE trajectory_id = ?
	`, id).Scan(&traj.TrajectoryID, &traj.RunID, &traj.TaskQuery, &traj.FinalAnswer,
		&traj.IterationCount, &converged, &traj.Artifact, &logPath, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrapError("get_trajectory", ErrNotFound)
	}
	if err != nil {
		return nil, wrapError("get_trajectory", err)
	}

	traj.Converged = converged != 0
	traj.RLMLogPath = logPath.String
	traj.CreatedAt = parseTime(createdAt)
	return &traj, nil
}

// AddJudgment records the verdict for a trajectory and returns the trajectory ID.
// A trajectory has at most one judgment; a second insert fails with the
// engine's constraint error.
func (s *SQLiteStore) AddJudgment(ctx context.Context, j *Judgment) (string, error) {
	if err := s.checkOpen("add_judgment"); err != nil {
		return "", err
	}
	if !j.Confidence.Valid() {
		return "", wrapError("add_judgment", fmt.Errorf("invalid confidence %q", j.Confidence))
	}

	missing := j.Missing
	if missing == nil {
		missing = []string{}
	}
	missingJSON, err := json.Marshal(missing)
	if err != nil {
		return "", wrapError("add_judgment", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO judgments (trajectory_id, is_success, reason, confidence, missing)
		VALUES (?, ?, ?, ?, ?)
	`, j.TrajectoryID, boolToInt(j.IsSuccess), j.Reason, string(j.Confidence), string(missingJSON))
	if err != nil {
		return "", wrapError("add_judgment", err)
	}
	return j.TrajectoryID, nil
}

// GetJudgment retrieves the judgment for a trajectory, or ErrNotFound
func (s *SQLiteStore) GetJudgment(ctx context.Context, trajectoryID string) (*Judgment, error) {
	if err := s.checkOpen("get_judgment"); err != nil {
		return nil, err
	}

	var j Judgment
	var isSuccess int
	var confidence, missingJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT trajectory_id, is_success, reason, confidence, missing
		FROM judgments WHERE trajectory_id = ?
	`, trajectoryID).Scan(&j.TrajectoryID, &isSuccess, &j.Reason, &confidence, &missingJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrapError("get_judgment", ErrNotFound)
	}
	if err != nil {
		return nil, wrapError("get_judgment", err)
	}

	j.IsSuccess = isSuccess != 0
	j.Confidence = Confidence(confidence)
	if err := json.Unmarshal([]byte(missingJSON), &j.Missing); err != nil {
		return nil, wrapError("get_judgment", fmt.Errorf("decode missing: %w", err))
	}
	return &j, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
