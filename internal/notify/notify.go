// Package notify is the boundary to whatever displays lifecycle
// notifications. The worker only ever talks to a Sink; LogSink is the
// implementation used by headless worker processes.
package notify

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	log "github.com/sirupsen/logrus"
	"syncworker/internal/models"
)

// ProgressMax is the maximum value of a notification progress bar.
const ProgressMax = 100

// Channel and notification identifiers used by the sync worker.
const (
	SyncChannelID    = "sync_worker_channel"
	SyncChannelName  = "Data Sync"
	SyncNotification = 1
	SyncTitle        = "Syncing Data"
)

var (
	ErrUnknownChannel = errors.New("notification channel does not exist")
	ErrSinkNotPointer = errors.New("notification sink must be a non-nil pointer")
)

// Importance of a notification channel.
type Importance int

const (
	ImportanceLow Importance = iota + 1
	ImportanceDefault
	ImportanceHigh
)

func (i Importance) String() string {
	switch i {
	case ImportanceLow:
		return "low"
	case ImportanceDefault:
		return "default"
	case ImportanceHigh:
		return "high"
	}
	return fmt.Sprintf("importance(%d)", int(i))
}

// Channel groups notifications of the same kind.
type Channel struct {
	ID         string
	Name       string
	Importance Importance
}

// SyncChannel is the channel all sync attempts post to.
var SyncChannel = Channel{ID: SyncChannelID, Name: SyncChannelName, Importance: ImportanceLow}

// Sink accepts lifecycle notifications. Post creates the notification on
// first use and updates it afterwards.
type Sink interface {
	CreateChannel(ch Channel) error
	Post(id int, state models.NotificationState) error
}

type ensureKey struct {
	sink Sink
	id   string
}

var (
	ensureMu sync.Mutex
	ensured  = map[ensureKey]bool{}
)

// EnsureChannel creates ch on s at most once per process. It is meant to be
// called during startup, before any executor runs. s must be a non-nil
// pointer; sinks are tracked by identity.
func EnsureChannel(s Sink, ch Channel) error {
	if v := reflect.ValueOf(s); v.Kind() != reflect.Pointer || v.IsNil() {
		return fmt.Errorf("%w: got %T", ErrSinkNotPointer, s)
	}

	ensureMu.Lock()
	defer ensureMu.Unlock()

	key := ensureKey{sink: s, id: ch.ID}
	if ensured[key] {
		return nil
	}
	if err := s.CreateChannel(ch); err != nil {
		return fmt.Errorf("create notification channel %s: %w", ch.ID, err)
	}
	ensured[key] = true
	return nil
}

// LogSink renders notifications as structured log lines and remembers the
// last state posted for each notification id.
type LogSink struct {
	logger *log.Entry

	mu       sync.Mutex
	channels map[string]Channel
	latest   map[int]models.NotificationState
}

func NewLogSink(logger *log.Logger) *LogSink {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &LogSink{
		logger:   logger.WithField("component", "notify"),
		channels: make(map[string]Channel),
		latest:   make(map[int]models.NotificationState),
	}
}

func (s *LogSink) CreateChannel(ch Channel) error {
	if ch.ID == "" {
		return errors.New("channel id is required")
	}
	s.mu.Lock()
	s.channels[ch.ID] = ch
	s.mu.Unlock()
	s.logger.WithFields(log.Fields{"channel": ch.ID, "name": ch.Name, "importance": ch.Importance}).Debug("notification channel ready")
	return nil
}

func (s *LogSink) Post(id int, state models.NotificationState) error {
	s.mu.Lock()
	ch, ok := s.channels[state.ChannelID]
	if ok {
		s.latest[id] = state
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, state.ChannelID)
	}

	entry := s.logger.WithFields(log.Fields{
		"notification": id,
		"channel":      ch.ID,
		"progress":     fmt.Sprintf("%d/%d", state.Progress, ProgressMax),
		"ongoing":      state.Ongoing,
	})
	if ch.Importance >= ImportanceDefault {
		entry.Infof("%s: %s", state.Title, state.Text)
	} else {
		entry.Debugf("%s: %s", state.Title, state.Text)
	}
	return nil
}

// Latest returns the last state posted for id.
func (s *LogSink) Latest(id int) (models.NotificationState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.latest[id]
	return st, ok
}
