package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"kanban/internal/board"
)

// ImportTasks 将 JSON 种子文件导入存储，已存在的 id 跳过
// ImportTasks loads a JSON seed file into store. The file holds either a
// task array or a {code, message, data} envelope around one, so a saved
// GET /tasks response can be replayed. Tasks whose id already exists are
// skipped; invalid tasks are logged and skipped.
func ImportTasks(ctx context.Context, path string, store Store, lanes board.LaneSet, log logrus.FieldLogger) (int, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, nil
	}
	tasks, err := readSeed(path)
	if err != nil {
		return 0, fmt.Errorf("read seed %s: %w", path, err)
	}

	imported := 0
	for i, t := range tasks {
		t.Title = board.NormalizeTitle(t.Title)
		if t.Title == "" {
			log.WithField("index", i).Warn("skip seed task without title")
			continue
		}
		if strings.TrimSpace(t.ID) == "" {
			t.ID = uuid.NewString()
		}
		if t.Status == "" {
			t.Status = lanes.Default()
		}
		if err := lanes.Validate(t); err != nil {
			log.WithError(err).WithField("task_id", t.ID).Warn("skip seed task")
			continue
		}

		// 检查是否已存在 / Check if already imported
		if _, err := store.GetTask(ctx, t.ID); err == nil {
			continue
		} else if !errors.Is(err, board.ErrNotFound) {
			return imported, err
		}

		if err := store.InsertTask(ctx, t); err != nil {
			return imported, fmt.Errorf("import task %s: %w", t.ID, err)
		}
		imported++
	}
	return imported, nil
}

func readSeed(path string) ([]board.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var env struct {
			Data []board.Task `json:"data"`
		}
		if err := sonic.Unmarshal(data, &env); err != nil {
			return nil, err
		}
		return env.Data, nil
	}
	var tasks []board.Task
	if err := sonic.Unmarshal(data, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}
