// internal/tasks/worker_test.go
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"

	"reddit-harvester/internal/models"
	"reddit-harvester/internal/scraper"
)

type fakeRunner struct {
	result   *models.ScrapeResult
	sweep    *models.SweepResult
	err      error
	lastSort string
	lastName string
	progress scraper.ProgressFunc
}

func (f *fakeRunner) ScrapeSubreddit(ctx context.Context, name, timeFilter string, limit int, progress scraper.ProgressFunc) (*models.ScrapeResult, error) {
	f.lastSort = "top"
	f.lastName = name
	f.progress = progress
	if f.err != nil {
		return nil, f.err
	}
	if progress != nil {
		progress(1, 2, "halfway")
	}
	return f.result, nil
}

func (f *fakeRunner) ScrapeNewPosts(ctx context.Context, name string, limit int, progress scraper.ProgressFunc) (*models.ScrapeResult, error) {
	f.lastSort = "new"
	f.lastName = name
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeRunner) ScrapeAll(ctx context.Context, progress scraper.ProgressFunc) (*models.SweepResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sweep, nil
}

type lifecycleEvent struct {
	kind    string
	current int
	total   int
	status  string
	err     string
}

type fakeRecorder struct {
	events []lifecycleEvent
	result interface{}
}

func (f *fakeRecorder) MarkStarted(ctx context.Context, id, status string) error {
	f.events = append(f.events, lifecycleEvent{kind: "started", status: status})
	return nil
}

func (f *fakeRecorder) Progress(ctx context.Context, id string, current, total int, status string) error {
	f.events = append(f.events, lifecycleEvent{kind: "progress", current: current, total: total, status: status})
	return nil
}

func (f *fakeRecorder) Succeed(ctx context.Context, id string, result interface{}) error {
	f.events = append(f.events, lifecycleEvent{kind: "success"})
	f.result = result
	return nil
}

func (f *fakeRecorder) Fail(ctx context.Context, id string, taskErr error, traceback string) error {
	f.events = append(f.events, lifecycleEvent{kind: "failure", err: taskErr.Error()})
	return nil
}

func mustTask(t *testing.T, taskType string, payload interface{}) *asynq.Task {
	t.Helper()
	buf, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	return asynq.NewTask(taskType, buf)
}

func TestWorkerMirrorsLifecycleOnSuccess(t *testing.T) {
	runner := &fakeRunner{result: &models.ScrapeResult{Subreddit: "golang", PostsScraped: 2}}
	recorder := &fakeRecorder{}
	w := NewWorker(runner, recorder)

	task := mustTask(t, TypeScrapeSubreddit, ScrapeSubredditPayload{TaskID: "t1", Subreddit: "golang", Limit: 5})
	if err := w.HandleScrapeSubreddit(context.Background(), task); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	if runner.lastName != "golang" || runner.lastSort != "top" {
		t.Errorf("unexpected scrape call: %s/%s", runner.lastName, runner.lastSort)
	}

	kinds := []string{}
	for _, e := range recorder.events {
		kinds = append(kinds, e.kind)
	}
	want := []string{"started", "progress", "success"}
	if fmt.Sprint(kinds) != fmt.Sprint(want) {
		t.Fatalf("expected lifecycle %v, got %v", want, kinds)
	}

	if recorder.events[1].current != 1 || recorder.events[1].total != 2 {
		t.Errorf("progress counters not forwarded: %+v", recorder.events[1])
	}
	result, ok := recorder.result.(*models.ScrapeResult)
	if !ok || result.PostsScraped != 2 {
		t.Errorf("result not recorded: %+v", recorder.result)
	}
}

func TestWorkerRecordsFailureAndRetries(t *testing.T) {
	runner := &fakeRunner{err: errors.New("reddit is down")}
	recorder := &fakeRecorder{}
	w := NewWorker(runner, recorder)

	task := mustTask(t, TypeScrapeAll, ScrapeAllPayload{TaskID: "t2"})
	err := w.HandleScrapeAll(context.Background(), task)
	if err == nil {
		t.Fatal("expected error for failed scrape")
	}
	if errors.Is(err, asynq.SkipRetry) {
		t.Error("transient failures should stay retryable")
	}

	last := recorder.events[len(recorder.events)-1]
	if last.kind != "failure" || last.err != "reddit is down" {
		t.Errorf("failure not recorded: %+v", last)
	}
}

func TestWorkerSkipsRetryForConfigErrors(t *testing.T) {
	runner := &fakeRunner{err: fmt.Errorf("%w: golang", scraper.ErrConfigNotFound)}
	recorder := &fakeRecorder{}
	w := NewWorker(runner, recorder)

	task := mustTask(t, TypeScrapeNew, ScrapeNewPayload{TaskID: "t3", Subreddit: "golang"})
	err := w.HandleScrapeNew(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for missing config, got %v", err)
	}

	last := recorder.events[len(recorder.events)-1]
	if last.kind != "failure" {
		t.Errorf("failure not recorded before skipping retry: %+v", last)
	}
}

func TestWorkerRejectsMalformedPayload(t *testing.T) {
	recorder := &fakeRecorder{}
	w := NewWorker(&fakeRunner{}, recorder)

	task := asynq.NewTask(TypeScrapeSubreddit, []byte("{not json"))
	err := w.HandleScrapeSubreddit(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for bad payload, got %v", err)
	}
	if len(recorder.events) != 0 {
		t.Errorf("registry should be untouched for unparseable payloads, got %+v", recorder.events)
	}
}

func TestTaskStateTerminal(t *testing.T) {
	for state, terminal := range map[TaskState]bool{
		StateQueued:   false,
		StateStarted:  false,
		StateProgress: false,
		StateSuccess:  true,
		StateFailure:  true,
	} {
		if state.Terminal() != terminal {
			t.Errorf("Terminal(%s) = %v, want %v", state, state.Terminal(), terminal)
		}
	}
}
