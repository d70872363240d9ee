package executor

import (
	log "github.com/sirupsen/logrus"
	"syncworker/internal/models"
	"syncworker/internal/notify"
)

// lifecycle is the single update path for an attempt's notification.
// Progress is clamped to [0, ProgressMax] and never moves backwards.
type lifecycle struct {
	sink   notify.Sink
	id     int
	state  models.NotificationState
	logger *log.Entry
}

func newLifecycle(sink notify.Sink, channelID string, id int, logger *log.Entry) *lifecycle {
	return &lifecycle{
		sink: sink,
		id:   id,
		state: models.NotificationState{
			ChannelID: channelID,
			Title:     notify.SyncTitle,
		},
		logger: logger,
	}
}

func (l *lifecycle) start() {
	l.state.Text = "Starting"
	l.state.Progress = 0
	l.state.Ongoing = true
	l.post()
}

// update applies ev and returns it as actually displayed.
func (l *lifecycle) update(ev models.ProgressEvent) models.ProgressEvent {
	p := ev.Percent
	if p < 0 {
		p = 0
	}
	if p > notify.ProgressMax {
		p = notify.ProgressMax
	}
	if p < l.state.Progress {
		p = l.state.Progress
	}
	ev.Percent = p

	l.state.Progress = p
	l.state.Text = ev.Message
	l.post()
	return ev
}

// finish freezes the bar at 100% whether or not the attempt succeeded; the
// outcome is only visible through the text.
func (l *lifecycle) finish(res models.JobResult) {
	l.state.Progress = notify.ProgressMax
	l.state.Text = res.Message
	l.state.Ongoing = false
	l.post()
}

func (l *lifecycle) post() {
	if l.sink == nil {
		return
	}
	if err := l.sink.Post(l.id, l.state); err != nil {
		l.logger.WithError(err).Warn("failed to post sync notification")
	}
}

func (l *lifecycle) current() models.NotificationState { return l.state }
