package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"

	"kanban/internal/board"
)

// countingStore counts reads that reach the backing store.
type countingStore struct {
	Store
	lists int
}

func (c *countingStore) ListTasks(ctx context.Context) ([]board.Task, error) {
	c.lists++
	return c.Store.ListTasks(ctx)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCacheListTasksMissThenHit(t *testing.T) {
	mr, client := newRedis(t)
	base := &countingStore{Store: newTestStore(t)}
	ctx := context.Background()
	_ = base.InsertTask(ctx, board.Task{ID: "t1", Title: "Write code", Status: "todo", Position: 1})

	cache := NewCache(base, client, time.Minute)
	for i := 0; i < 2; i++ {
		tasks, err := cache.ListTasks(ctx)
		if err != nil {
			t.Fatalf("ListTasks: %v", err)
		}
		if len(tasks) != 1 || tasks[0].ID != "t1" {
			t.Fatalf("unexpected tasks: %#v", tasks)
		}
	}
	if base.lists != 1 {
		t.Fatalf("expected 1 call to backing store, got %d", base.lists)
	}
	if ttl := mr.TTL(tasksCacheKey); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}
}

func TestCacheEvictsOnWrite(t *testing.T) {
	mr, client := newRedis(t)
	base := &countingStore{Store: newTestStore(t)}
	ctx := context.Background()
	cache := NewCache(base, client, time.Minute)

	if _, err := cache.ListTasks(ctx); err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if !mr.Exists(tasksCacheKey) {
		t.Fatalf("list was not cached")
	}
	if err := cache.InsertTask(ctx, board.Task{ID: "t1", Title: "x", Status: "todo", Position: 1}); err != nil {
		t.Fatalf("InsertTask: %v", err)
	}
	if mr.Exists(tasksCacheKey) {
		t.Fatalf("insert did not evict the cache")
	}
	tasks, _ := cache.ListTasks(ctx)
	if len(tasks) != 1 {
		t.Fatalf("stale cache served: %v", tasks)
	}

	if _, err := cache.UpdateTask(ctx, "t1", board.Patch{Title: board.String("y")}); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if mr.Exists(tasksCacheKey) {
		t.Fatalf("update did not evict the cache")
	}
	_, _ = cache.ListTasks(ctx)
	if err := cache.DeleteTask(ctx, "t1"); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if mr.Exists(tasksCacheKey) {
		t.Fatalf("delete did not evict the cache")
	}
}

func TestCacheCorruptEntryFallsBack(t *testing.T) {
	mr, client := newRedis(t)
	base := &countingStore{Store: newTestStore(t)}
	ctx := context.Background()
	cache := NewCache(base, client, time.Minute)

	if err := mr.Set(tasksCacheKey, "not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := cache.ListTasks(ctx); err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if base.lists != 1 {
		t.Fatalf("corrupt cache entry was served")
	}
}

func TestCacheWithoutRedis(t *testing.T) {
	base := &countingStore{Store: newTestStore(t)}
	cache := NewCache(base, nil, time.Minute)
	ctx := context.Background()
	_, _ = cache.ListTasks(ctx)
	_, _ = cache.ListTasks(ctx)
	if base.lists != 2 {
		t.Fatalf("expected pass-through, got %d calls", base.lists)
	}
}

func TestRedisDeduperClaimResolve(t *testing.T) {
	_, client := newRedis(t)
	d := NewRedisDeduper(client, time.Minute)
	ctx := context.Background()

	owned, err := d.Claim(ctx, "k1")
	if err != nil || !owned {
		t.Fatalf("first claim = %v, %v", owned, err)
	}
	again, err := d.Claim(ctx, "k1")
	if err != nil || again {
		t.Fatalf("second claim = %v, %v", again, err)
	}
	id, found, err := d.Lookup(ctx, "k1")
	if err != nil || !found || id != "" {
		t.Fatalf("pending lookup = %q %v %v", id, found, err)
	}
	if err := d.Resolve(ctx, "k1", "task-1"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	id, found, _ = d.Lookup(ctx, "k1")
	if !found || id != "task-1" {
		t.Fatalf("resolved lookup = %q %v", id, found)
	}
	if err := d.Release(ctx, "k1"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, found, _ := d.Lookup(ctx, "k1"); found {
		t.Fatalf("released key still present")
	}
}

func TestImportTasks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_ = store.InsertTask(ctx, board.Task{ID: "keep", Title: "original", Status: "todo", Position: 1})

	dir := t.TempDir()
	seed := filepath.Join(dir, "seed.json")
	data := `{"code":0,"message":"success","data":[
		{"id":"keep","title":"overwritten?","status":"done","position":9},
		{"id":"n1","title":"  new task ","status":"doing","position":10000},
		{"title":"no id"},
		{"id":"bad","title":"bad lane","status":"archived"},
		{"id":"blank","title":"   "}
	]}`
	if err := os.WriteFile(seed, []byte(data), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	logger, hook := test.NewNullLogger()
	n, err := ImportTasks(ctx, seed, store, board.DefaultLanes(), logger)
	if err != nil {
		t.Fatalf("ImportTasks: %v", err)
	}
	if n != 2 {
		t.Fatalf("imported=%d, want 2", n)
	}
	keep, _ := store.GetTask(ctx, "keep")
	if keep.Title != "original" {
		t.Fatalf("existing task overwritten: %+v", keep)
	}
	n1, err := store.GetTask(ctx, "n1")
	if err != nil || n1.Title != "new task" {
		t.Fatalf("n1 = %+v, %v", n1, err)
	}
	if _, err := store.GetTask(ctx, "bad"); !errors.Is(err, board.ErrNotFound) {
		t.Fatalf("task with unknown lane imported")
	}
	if len(hook.AllEntries()) != 2 {
		t.Fatalf("expected 2 skip warnings, got %d", len(hook.AllEntries()))
	}

	array := filepath.Join(dir, "array.json")
	_ = os.WriteFile(array, []byte(`[{"id":"n2","title":"from array"}]`), 0o644)
	if n, err := ImportTasks(ctx, array, store, board.DefaultLanes(), logger); err != nil || n != 1 {
		t.Fatalf("array import = %d, %v", n, err)
	}
	got, _ := store.GetTask(ctx, "n2")
	if got.Status != "todo" {
		t.Fatalf("default lane not applied: %+v", got)
	}
}
