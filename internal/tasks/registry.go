// internal/tasks/registry.go
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type TaskState string

const (
	StateQueued   TaskState = "queued"
	StateStarted  TaskState = "started"
	StateProgress TaskState = "progress"
	StateSuccess  TaskState = "success"
	StateFailure  TaskState = "failure"
)

// Terminal reports whether the state is final.
func (s TaskState) Terminal() bool {
	return s == StateSuccess || s == StateFailure
}

// TaskStatus is the externally visible lifecycle record of one queued job.
type TaskStatus struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	State     TaskState       `json:"state"`
	Current   int             `json:"current,omitempty"`
	Total     int             `json:"total,omitempty"`
	Status    string          `json:"status,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Traceback string          `json:"traceback,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Registry tracks task lifecycle state in redis, one record per task id.
// Records are written at enqueue time, so a missing key means the id is
// unknown rather than pending.
type Registry struct {
	rdb       *redis.Client
	retention time.Duration
}

func NewRegistry(rdb *redis.Client, retention time.Duration) *Registry {
	return &Registry{
		rdb:       rdb,
		retention: retention,
	}
}

func (r *Registry) key(id string) string {
	return "harvester:tasks:" + id
}

func (r *Registry) Set(ctx context.Context, status *TaskStatus) error {
	status.UpdatedAt = time.Now().UTC()

	buf, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshaling task status: %w", err)
	}

	if err := r.rdb.Set(ctx, r.key(status.ID), buf, r.retention).Err(); err != nil {
		return fmt.Errorf("writing task status: %w", err)
	}
	return nil
}

// Get returns the status for id, or nil when the id is unknown.
func (r *Registry) Get(ctx context.Context, id string) (*TaskStatus, error) {
	val, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading task status: %w", err)
	}

	var status TaskStatus
	if err := json.Unmarshal(val, &status); err != nil {
		return nil, fmt.Errorf("parsing task status: %w", err)
	}
	return &status, nil
}

func (r *Registry) update(ctx context.Context, id string, mutate func(*TaskStatus)) error {
	status, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if status == nil {
		status = &TaskStatus{ID: id}
	}
	mutate(status)
	return r.Set(ctx, status)
}

func (r *Registry) MarkStarted(ctx context.Context, id, status string) error {
	return r.update(ctx, id, func(s *TaskStatus) {
		s.State = StateStarted
		s.Status = status
	})
}

func (r *Registry) Progress(ctx context.Context, id string, current, total int, status string) error {
	return r.update(ctx, id, func(s *TaskStatus) {
		s.State = StateProgress
		s.Current = current
		s.Total = total
		s.Status = status
	})
}

func (r *Registry) Succeed(ctx context.Context, id string, result interface{}) error {
	buf, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling task result: %w", err)
	}
	return r.update(ctx, id, func(s *TaskStatus) {
		s.State = StateSuccess
		s.Result = buf
	})
}

func (r *Registry) Fail(ctx context.Context, id string, taskErr error, traceback string) error {
	return r.update(ctx, id, func(s *TaskStatus) {
		s.State = StateFailure
		s.Error = taskErr.Error()
		s.Traceback = traceback
	})
}
