package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tgolabs/chatkit/internal/activity"
	"github.com/tgolabs/chatkit/internal/api"
	"github.com/tgolabs/chatkit/internal/chat"
	"github.com/tgolabs/chatkit/internal/config"
	"github.com/tgolabs/chatkit/internal/logging"
	"github.com/tgolabs/chatkit/internal/store"
	"github.com/tgolabs/chatkit/internal/transport"
	"github.com/tgolabs/chatkit/internal/upload"
	"github.com/tgolabs/chatkit/internal/visitor"
)

// app holds everything a command needs to drive a conversation.
type app struct {
	cfg      config.Config
	client   *api.Client
	db       *store.DB
	engine   *chat.Engine
	recorder *activity.Recorder

	logFile io.Closer
}

// buildApp loads config, opens the session cache, and wires the engine.
func buildApp() (*app, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return nil, err
	}
	if issues := config.Validate(&cfg); len(issues) > 0 {
		return nil, fmt.Errorf("invalid config: %s", issues[0])
	}
	if err := paths.EnsureDirs(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}

	// --log-level wins over config; a configured file redirects output.
	level := logLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	appLog := log
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, err
		}
		a.logFile = f
		appLog = logging.New(f, level)
	} else if level != logLevel {
		appLog = logging.New(nil, level)
	}

	storePath := cfg.Store.Path
	if storePath == "" {
		storePath = paths.DefaultStorePath()
	}
	db, err := store.Open(storePath, appLog)
	if err != nil {
		return nil, err
	}
	a.db = db

	netTimeout := time.Duration(cfg.Transport.NetworkTimeoutMS) * time.Millisecond
	a.client = api.NewClient(cfg.APIBase, cfg.PlatformAPIKey, netTimeout, appLog)

	provider := visitor.NewProvider(a.client, store.NewVisitorStore(db), visitor.ClientContext{
		UserAgent: cfg.Visitor.UserAgent,
		Referrer:  cfg.Visitor.Referrer,
		PageURL:   cfg.Visitor.PageURL,
		Timezone:  cfg.Visitor.Timezone,
	}, 0, appLog)

	a.recorder = activity.NewRecorder(a.client, appLog)

	a.engine = chat.NewEngine(chat.Options{
		APIBase:         cfg.APIBase,
		PlatformAPIKey:  cfg.PlatformAPIKey,
		HistoryPageSize: cfg.Chat.HistoryPageSize,
		StreamTimeout:   time.Duration(cfg.Chat.StreamTimeoutMS) * time.Millisecond,
		NetworkTimeout:  netTimeout,
		WelcomeMessage:  cfg.Chat.WelcomeMessage,
		PreferSecure:    cfg.Transport.PreferSecure,
	},
		a.client,
		provider,
		transport.New(a.client, appLog),
		upload.New(cfg.APIBase, cfg.PlatformAPIKey, appLog),
		a.recorder,
		appLog,
	)

	return a, nil
}

// close releases app resources, draining pending telemetry first.
func (a *app) close() {
	if a.engine != nil {
		a.engine.Close()
	}
	if a.recorder != nil {
		a.recorder.Flush(2 * time.Second)
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}
