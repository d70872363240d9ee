package app

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"syncworker/internal/config"
	"syncworker/internal/store"
	"syncworker/internal/store/local"
	"syncworker/internal/tasks"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	var cfg config.Config
	require.NoError(t, v.Unmarshal(&cfg))
	cfg.Backend.BaseURL = "http://127.0.0.1:1/api"
	cfg.Database.DSN = "sqlite://:memory:"
	return &cfg
}

func TestOpenRecordStore(t *testing.T) {
	ctx := context.Background()

	s, err := OpenRecordStore(ctx, ":memory:")
	require.NoError(t, err)
	assert.IsType(t, &local.Store{}, s)
	require.NoError(t, s.Close())

	s, err = OpenRecordStore(ctx, "sqlite://:memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = OpenRecordStore(ctx, "mysql://localhost/sync")
	assert.ErrorIs(t, err, store.ErrUnsupportedDSN)
}

func TestNewApp_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.Address = ""
	_, err := NewApp(cfg)
	assert.Error(t, err)
}

func TestNewWorker_RegistersSyncHandler(t *testing.T) {
	a, err := NewApp(testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	w, err := a.NewWorker(context.Background())
	require.NoError(t, err)
	defer w.Store.Close()

	_, pattern := w.Mux.Handler(asynq.NewTask(tasks.TypeSyncJob, nil))
	assert.Equal(t, tasks.TypeSyncJob, pattern)
	assert.Equal(t, []string{"expedited", "default"}, a.Queues())
}

func TestAsynqLogLevel(t *testing.T) {
	assert.Equal(t, asynq.DebugLevel, asynqLogLevel(log.TraceLevel))
	assert.Equal(t, asynq.InfoLevel, asynqLogLevel(log.InfoLevel))
	assert.Equal(t, asynq.ErrorLevel, asynqLogLevel(log.ErrorLevel))
	assert.Equal(t, asynq.FatalLevel, asynqLogLevel(log.PanicLevel))
}
