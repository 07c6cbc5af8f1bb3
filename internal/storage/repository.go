package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	defaultLimit = 200
	maxLimit     = 5000
)

// RunQuery 为 Run 的检索条件。
type RunQuery struct {
	// SessionID/Agent/Outcome 为可选过滤条件，精确匹配。
	SessionID string
	Agent     string
	Outcome   string
	// From/To 过滤 StartedAt 区间：[From, To]（两端包含）。
	From *time.Time
	To   *time.Time
	// Limit 限制返回条数；<=0 使用默认值。
	Limit int
	// Desc 按 StartedAt 倒序返回（优先返回最新执行）。
	Desc bool
}

func (s *Storage) InsertRun(ctx context.Context, run *Run) error {
	if s == nil || s.db == nil {
		return errors.New("storage not initialized")
	}
	if run == nil {
		return errors.New("run is nil")
	}
	now := time.Now().UTC()
	if run.StartedAt.IsZero() {
		run.StartedAt = now
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = now
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *Storage) InsertStepRecords(ctx context.Context, steps []StepRecord) error {
	if s == nil || s.db == nil {
		return errors.New("storage not initialized")
	}
	if len(steps) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).CreateInBatches(steps, 200).Error; err != nil {
		return fmt.Errorf("insert step records: %w", err)
	}
	return nil
}

func (s *Storage) QueryRuns(ctx context.Context, q RunQuery) ([]Run, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("storage not initialized")
	}

	limit := normalizeLimit(q.Limit)
	db := s.db.WithContext(ctx).Model(&Run{})
	if q.SessionID != "" {
		db = db.Where("session_id = ?", q.SessionID)
	}
	if q.Agent != "" {
		db = db.Where("agent = ?", q.Agent)
	}
	if q.Outcome != "" {
		db = db.Where("outcome = ?", q.Outcome)
	}
	if q.From != nil {
		db = db.Where("started_at >= ?", q.From.UTC())
	}
	if q.To != nil {
		db = db.Where("started_at <= ?", q.To.UTC())
	}
	order := "started_at ASC"
	if q.Desc {
		order = "started_at DESC"
	}

	var runs []Run
	if err := db.Order(order).Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	return runs, nil
}

func (s *Storage) GetRun(ctx context.Context, id uint64) (*Run, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("storage not initialized")
	}
	var run Run
	if err := s.db.WithContext(ctx).First(&run, id).Error; err != nil {
		return nil, fmt.Errorf("get run %d: %w", id, err)
	}
	return &run, nil
}

func (s *Storage) GetRunSteps(ctx context.Context, runID uint64) ([]StepRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("storage not initialized")
	}
	var steps []StepRecord
	if err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("ordinal ASC").
		Find(&steps).Error; err != nil {
		return nil, fmt.Errorf("get run steps: %w", err)
	}
	return steps, nil
}

// DeleteRunsBefore 清理 StartedAt 早于 cutoff 的执行及其步骤，
// 返回删除的 Run 条数。
func (s *Storage) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("storage not initialized")
	}

	var ids []uint64
	if err := s.db.WithContext(ctx).Model(&Run{}).
		Where("started_at < ?", cutoff.UTC()).
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("find expired runs: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := s.db.WithContext(ctx).
		Where("run_id IN ?", ids).
		Delete(&StepRecord{}).Error; err != nil {
		return 0, fmt.Errorf("delete expired steps: %w", err)
	}
	res := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&Run{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired runs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
