package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"syncworker/internal/job"
	"syncworker/internal/models"
	"syncworker/internal/notify"
	"syncworker/internal/pipeline"
)

// recordingSink keeps every posted state in order.
type recordingSink struct {
	mu     sync.Mutex
	posted []models.NotificationState
}

func (s *recordingSink) CreateChannel(notify.Channel) error { return nil }

func (s *recordingSink) Post(_ int, st models.NotificationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posted = append(s.posted, st)
	return nil
}

func (s *recordingSink) last() models.NotificationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.posted[len(s.posted)-1]
}

// stubFetcher answers every stage with ok, or panics/errs in the named stage.
type stubFetcher struct {
	ok      bool
	panicIn string
	errIn   string
	calls   int
}

func (f *stubFetcher) do(stage string) (bool, error) {
	f.calls++
	if stage == f.panicIn {
		panic("simulated crash in " + stage)
	}
	if stage == f.errIn {
		return false, errors.New("socket timeout")
	}
	return f.ok, nil
}

func (f *stubFetcher) FetchProcesses(context.Context, *pipeline.PageContext) (bool, error) {
	return f.do(models.CategoryProcesses)
}

func (f *stubFetcher) FetchSuppliers(context.Context, *pipeline.PageContext) (bool, error) {
	return f.do(models.CategorySuppliers)
}

func (f *stubFetcher) FetchConceptions(context.Context, *pipeline.PageContext) (bool, error) {
	return f.do(models.CategoryConceptions)
}

// backwardsRunner emits out-of-range and decreasing percents.
type backwardsRunner struct{}

func (backwardsRunner) RunDownload(_ context.Context, progress pipeline.ProgressFunc) (models.JobResult, error) {
	progress(models.ProgressEvent{Percent: 60, Message: "a"})
	progress(models.ProgressEvent{Percent: 30, Message: "b"})
	progress(models.ProgressEvent{Percent: 150, Message: "c"})
	return models.Success("ok"), nil
}

func (backwardsRunner) RunUpload(context.Context) models.JobResult { return models.Failure("no") }

func descriptor(t *testing.T, typ string) job.Descriptor {
	t.Helper()
	d, err := job.NewSyncDescriptor(typ)
	require.NoError(t, err)
	return d
}

func quietLogger() *log.Logger {
	l := log.New()
	l.SetLevel(log.PanicLevel)
	return l
}

// run executes d and drains the progress channel.
func run(t *testing.T, r Runner, d job.Descriptor) (models.JobResult, []models.Report, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	pub := NewChannelPublisher(16)
	ex := New(r, sink, WithLogger(quietLogger()))

	done := make(chan models.JobResult, 1)
	go func() { done <- ex.Execute(context.Background(), d, pub) }()

	var reports []models.Report
	for rep := range pub.Reports() {
		reports = append(reports, rep)
	}
	select {
	case res := <-done:
		return res, reports, sink
	case <-time.After(5 * time.Second):
		t.Fatal("executor did not return")
	}
	return models.JobResult{}, nil, nil
}

func progressPercents(reports []models.Report) []int {
	var out []int
	for _, r := range reports {
		if r.Progress != nil {
			out = append(out, r.Progress.Percent)
		}
	}
	return out
}

func TestExecute_DownloadSuccess(t *testing.T) {
	f := &stubFetcher{ok: true}
	d := descriptor(t, "download")
	res, reports, sink := run(t, pipeline.New(f), d)

	assert.Equal(t, models.Success("Data Downloaded"), res)
	assert.Equal(t, []int{25, 50, 100}, progressPercents(reports))

	last := reports[len(reports)-1]
	require.True(t, last.Done())
	assert.Nil(t, last.Progress, "no extra progress emission with the result")
	assert.Equal(t, res, *last.Result)
	assert.Equal(t, d.ID(), last.JobID)

	first := sink.posted[0]
	assert.True(t, first.Ongoing)
	assert.Equal(t, 0, first.Progress)
	assert.Equal(t, notify.SyncChannelID, first.ChannelID)

	final := sink.last()
	assert.False(t, final.Ongoing)
	assert.Equal(t, 100, final.Progress)
	assert.Equal(t, "Data Downloaded", final.Text)
}

func TestExecute_DownloadStageFailureFreezesAt100(t *testing.T) {
	f := &stubFetcher{ok: false}
	res, reports, sink := run(t, pipeline.New(f), descriptor(t, "download"))

	assert.Equal(t, models.Failure("Failed to download data"), res)
	assert.Equal(t, 3, f.calls)
	assert.Equal(t, []int{25, 50, 100}, progressPercents(reports))
	assert.Equal(t, models.NotificationState{
		ChannelID: notify.SyncChannelID,
		Title:     notify.SyncTitle,
		Text:      "Failed to download data",
		Progress:  100,
		Ongoing:   false,
	}, sink.last())
}

func TestExecute_UploadNotSupported(t *testing.T) {
	f := &stubFetcher{ok: true}
	res, reports, sink := run(t, pipeline.New(f), descriptor(t, "upload"))

	assert.Equal(t, models.Failure("Upload not supported"), res)
	assert.Zero(t, f.calls)
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Done())
	assert.False(t, sink.last().Ongoing)
}

func TestExecute_PanicBecomesFailure(t *testing.T) {
	f := &stubFetcher{ok: true, panicIn: models.CategorySuppliers}
	res, reports, sink := run(t, pipeline.New(f), descriptor(t, "download"))

	assert.Equal(t, models.Failure("simulated crash in suppliers"), res)
	assert.Equal(t, []int{25}, progressPercents(reports))
	assert.True(t, reports[len(reports)-1].Done())
	assert.False(t, sink.last().Ongoing)
	assert.Equal(t, 100, sink.last().Progress)
}

func TestExecute_FaultMessageIsPropagated(t *testing.T) {
	f := &stubFetcher{ok: true, errIn: models.CategoryConceptions}
	res, _, sink := run(t, pipeline.New(f), descriptor(t, "download"))

	assert.Equal(t, models.Failure("socket timeout"), res)
	assert.False(t, sink.last().Ongoing)
}

func TestExecute_ProgressIsMonotonicAndBounded(t *testing.T) {
	_, reports, _ := run(t, backwardsRunner{}, descriptor(t, "download"))
	assert.Equal(t, []int{60, 60, 100}, progressPercents(reports))
}

func TestExecute_ResultObserverCalledOnce(t *testing.T) {
	var got []models.JobResult
	ex := New(pipeline.New(&stubFetcher{ok: true}), &recordingSink{},
		WithLogger(quietLogger()),
		WithResultObserver(func(typ job.Type, res models.JobResult, _ time.Duration) {
			assert.Equal(t, job.TypeDownload, typ)
			got = append(got, res)
		}),
	)
	res := ex.Execute(context.Background(), descriptor(t, "download"), nil)

	assert.Equal(t, []models.JobResult{res}, got)
}

func TestExecute_ZeroDescriptor(t *testing.T) {
	ex := New(pipeline.New(&stubFetcher{ok: true}), nil, WithLogger(quietLogger()))
	res := ex.Execute(context.Background(), job.Descriptor{}, nil)
	assert.Equal(t, models.Failure(MsgUnknownWorkType), res)
}

func TestChannelPublisher_ClosesAfterResult(t *testing.T) {
	pub := NewChannelPublisher(2)
	res := models.Success("done")
	require.NoError(t, pub.Publish(models.Report{Result: &res}))
	assert.ErrorIs(t, pub.Publish(models.Report{}), ErrPublisherClosed)

	_, open := <-pub.Reports()
	assert.True(t, open)
	_, open = <-pub.Reports()
	assert.False(t, open)
}

func TestLifecycle_Current(t *testing.T) {
	lc := newLifecycle(nil, "c", 1, quietLogger().WithField("t", 1))
	lc.start()
	lc.update(models.ProgressEvent{Percent: -5, Message: "x"})
	assert.Equal(t, 0, lc.current().Progress)
	assert.True(t, lc.current().Ongoing)
}
