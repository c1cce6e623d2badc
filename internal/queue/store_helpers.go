package queue

import (
	"database/sql"
	"errors"
	"time"
)

const taskColumns = "id, source_path, file_name, fingerprint, work_dir, status, start_from_ms, translate, cues_emitted, position_ms, error_message, created_at, updated_at, finished_at, last_heartbeat"

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		id               string
		sourcePath       string
		fileName         sql.NullString
		fingerprint      sql.NullString
		workDir          string
		statusStr        string
		startFromMS      int64
		translate        int64
		cuesEmitted      int64
		positionMS       int64
		errorMessage     sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		finishedRaw      sql.NullString
		lastHeartbeatRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourcePath,
		&fileName,
		&fingerprint,
		&workDir,
		&statusStr,
		&startFromMS,
		&translate,
		&cuesEmitted,
		&positionMS,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&finishedRaw,
		&lastHeartbeatRaw,
	); err != nil {
		return nil, err
	}

	task := &Task{
		ID:           id,
		SourcePath:   sourcePath,
		FileName:     fileName.String,
		Fingerprint:  fingerprint.String,
		WorkDir:      workDir,
		Status:       Status(statusStr),
		StartFrom:    time.Duration(startFromMS) * time.Millisecond,
		Translate:    translate != 0,
		CuesEmitted:  int(cuesEmitted),
		Position:     time.Duration(positionMS) * time.Millisecond,
		ErrorMessage: errorMessage.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		task.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		task.UpdatedAt = updated
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			task.FinishedAt = &finished
		}
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			task.LastHeartbeat = &heartbeat
		}
	}
	return task, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// Fixed-width timestamps keep string comparison in SQL chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nowString() string {
	return formatTime(time.Now())
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
