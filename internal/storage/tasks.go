package storage

import (
	"context"
	"encoding/json"

	"github.com/agentforge/core/pkg/types"
)

// TaskStore implements the Task Storage external-collaborator contract of
// spec §6: get_task, save_task, list_tasks, each atomic at task
// granularity via the underlying Storage's temp-file+rename writes.
type TaskStore struct {
	storage *Storage
}

// NewTaskStore builds a TaskStore rooted at basePath/tasks.
func NewTaskStore(storage *Storage) *TaskStore {
	return &TaskStore{storage: storage}
}

func (s *TaskStore) GetTask(ctx context.Context, id string) (*types.Task, error) {
	var task types.Task
	if err := s.storage.Get(ctx, []string{"tasks", id}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *TaskStore) SaveTask(ctx context.Context, task *types.Task) error {
	return s.storage.Put(ctx, []string{"tasks", task.ID}, task)
}

func (s *TaskStore) ListTasks(ctx context.Context) ([]types.Task, error) {
	ids, err := s.storage.List(ctx, []string{"tasks"})
	if err != nil {
		return nil, err
	}

	tasks := make([]types.Task, 0, len(ids))
	err = s.storage.Scan(ctx, []string{"tasks"}, func(key string, data json.RawMessage) error {
		var task types.Task
		if unmarshalErr := json.Unmarshal(data, &task); unmarshalErr != nil {
			return unmarshalErr
		}
		tasks = append(tasks, task)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *TaskStore) DeleteTask(ctx context.Context, id string) error {
	return s.storage.Delete(ctx, []string{"tasks", id})
}
