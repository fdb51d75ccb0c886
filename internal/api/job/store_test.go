// internal/api/job/store_test.go
package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stockshastri/shastri/internal/core"
)

func TestStore_CreateAndGet(t *testing.T) {
	store := NewStore(100, time.Hour)

	job := store.Create("train")
	if job.ID == "" {
		t.Error("expected job ID")
	}
	if job.Status != StatusPending {
		t.Errorf("expected pending, got %s", job.Status)
	}

	retrieved, err := store.Get(job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if retrieved.ID != job.ID || retrieved.Type != "train" {
		t.Errorf("unexpected job %+v", retrieved)
	}
}

func TestStore_Update(t *testing.T) {
	store := NewStore(100, time.Hour)
	job := store.Create("train")

	err := store.Update(job.ID, func(j *Job) {
		j.Status = StatusRunning
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	updated, _ := store.Get(job.ID)
	if updated.Status != StatusRunning {
		t.Errorf("expected running, got %s", updated.Status)
	}
}

func TestStore_MaxSize(t *testing.T) {
	store := NewStore(2, time.Hour)

	first := store.Create("train")
	store.Create("train")
	store.Create("update_macro")

	if len(store.List()) != 2 {
		t.Errorf("expected 2 jobs, got %d", len(store.List()))
	}
	if _, err := store.Get(first.ID); !errors.Is(err, core.ErrJobNotFound) {
		t.Errorf("expected oldest job evicted, got %v", err)
	}
}

func TestStore_NotFound(t *testing.T) {
	store := NewStore(100, time.Hour)

	_, err := store.Get("nonexistent")
	if !errors.Is(err, core.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
	if err := store.Update("nonexistent", func(*Job) {}); !errors.Is(err, core.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound on update, got %v", err)
	}
}

func TestStore_ListInOrder(t *testing.T) {
	store := NewStore(100, time.Hour)
	a := store.Create("train")
	b := store.Create("update_macro")

	jobs := store.List()
	if len(jobs) != 2 || jobs[0].ID != a.ID || jobs[1].ID != b.ID {
		t.Errorf("expected creation order, got %+v", jobs)
	}
}

func TestStore_StartComplete(t *testing.T) {
	store := NewStore(10, time.Hour)

	job := store.Start(context.Background(), "train", func(ctx context.Context) (any, error) {
		return map[string]string{"model_id": "m-1"}, nil
	})
	store.Wait()

	done, err := store.Get(job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if done.Status != StatusComplete {
		t.Errorf("expected complete, got %s", done.Status)
	}
	if done.Result.(map[string]string)["model_id"] != "m-1" {
		t.Errorf("unexpected result %v", done.Result)
	}
}

func TestStore_StartFailed(t *testing.T) {
	store := NewStore(10, time.Hour)

	job := store.Start(context.Background(), "train", func(ctx context.Context) (any, error) {
		return nil, core.WrapError(core.ErrTrainingFailed, errors.New("empty split"))
	})
	store.Wait()

	done, _ := store.Get(job.ID)
	if done.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", done.Status)
	}
	if done.Error == nil || done.Error.Code != "TRAINING_FAILED" {
		t.Errorf("unexpected error %+v", done.Error)
	}
}

func TestStore_StartSurvivesCallerCancel(t *testing.T) {
	store := NewStore(10, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})

	job := store.Start(ctx, "train", func(ctx context.Context) (any, error) {
		<-release
		return nil, ctx.Err()
	})
	cancel()
	close(release)
	store.Wait()

	done, _ := store.Get(job.ID)
	if done.Status != StatusComplete {
		t.Errorf("expected job unaffected by caller cancel, got %s", done.Status)
	}
}

func TestStore_EvictsExpiredFinishedJobs(t *testing.T) {
	store := NewStore(10, time.Minute)
	base := time.Date(2023, 1, 13, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	finished := store.Create("train")
	store.Update(finished.ID, func(j *Job) { j.Status = StatusComplete })
	running := store.Create("train")
	store.Update(running.ID, func(j *Job) { j.Status = StatusRunning })

	store.now = func() time.Time { return base.Add(2 * time.Minute) }
	store.Create("update_macro")

	if _, err := store.Get(finished.ID); err == nil {
		t.Error("expected finished job evicted")
	}
	if _, err := store.Get(running.ID); err != nil {
		t.Error("expected running job kept")
	}
}
