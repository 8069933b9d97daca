package pipeline

import (
	"fmt"
	"sync"
	"testing"

	"github.com/anipipe/api/internal/model"
)

func TestRegistrySnapshotIsolation(t *testing.T) {
	r := NewRegistry()
	r.Add(&model.Job{ID: "a", Message: "original"})

	snap, ok := r.Get("a")
	if !ok {
		t.Fatal("expected job")
	}
	snap.Message = "mutated copy"

	again, _ := r.Get("a")
	if again.Message != "original" {
		t.Errorf("snapshot mutation leaked into registry: %q", again.Message)
	}
}

func TestRegistryAllPreservesInsertionOrder(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 5; i++ {
		r.Add(&model.Job{ID: fmt.Sprintf("job-%d", i)})
	}
	r.Delete("job-2")

	all := r.All()
	want := []string{"job-0", "job-1", "job-3", "job-4"}
	if len(all) != len(want) {
		t.Fatalf("got %d jobs, want %d", len(all), len(want))
	}
	for i, id := range want {
		if all[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, all[i].ID, id)
		}
	}
}

func TestRegistryDeleteWhere(t *testing.T) {
	r := NewRegistry()
	r.Add(&model.Job{ID: "a", Status: model.JobStatusError})
	r.Add(&model.Job{ID: "b", Status: model.JobStatusCompleted})
	r.Add(&model.Job{ID: "c", Status: model.JobStatusError})

	removed := r.DeleteWhere(func(j *model.Job) bool {
		return j.Status == model.JobStatusError
	})
	if len(removed) != 2 || removed[0] != "a" || removed[1] != "c" {
		t.Errorf("DeleteWhere = %v, want [a c]", removed)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
	if _, ok := r.Get("b"); !ok {
		t.Error("non-matching job must survive")
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	r.Add(&model.Job{ID: "shared"})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Update("shared", func(job *model.Job) {
					job.Progress.Percent = n
				})
				r.Get("shared")
				r.All()
			}
		}(i)
	}
	wg.Wait()

	if _, ok := r.Get("shared"); !ok {
		t.Fatal("job lost during concurrent access")
	}
}
