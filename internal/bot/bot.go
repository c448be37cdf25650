// Package bot is the Telegram runtime: it long-polls for updates, serializes
// work per chat, gates every message on the allow-list and runs the chat and
// transcription flows.
package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/access"
	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/dispatch"
	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/history"
	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/models"
	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/settings"
	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/telegram"
)

const (
	defaultPollTimeout   = 30 * time.Second
	defaultMaxConcurrent = 8
	defaultMaxFileBytes  = 20 * 1024 * 1024

	// queue depth per chat before updates are dropped
	chatQueueSize = 16
)

// API is the slice of the Telegram client the runtime needs. *telegram.API
// satisfies it; tests substitute a fake.
type API interface {
	GetMe(ctx context.Context) (*telegram.User, error)
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, int64, error)
	SendHTML(ctx context.Context, chatID int64, text string) error
	SendChatAction(ctx context.Context, chatID int64, action string) error
	GetFile(ctx context.Context, fileID string) (*telegram.File, error)
	DownloadFile(ctx context.Context, filePath, dstPath string, maxBytes int64) error
}

// Transcriber converts a downloaded media file into text.
type Transcriber interface {
	AudioToText(ctx context.Context, path, mimeType string) (string, error)
}

type Config struct {
	PollTimeout         time.Duration
	MaxConcurrent       int
	MessageLimit        int
	MaxFileBytes        int64
	TempDir             string
	DefaultSystemPrompt string
}

type Bot struct {
	api         API
	dispatcher  *dispatch.Dispatcher
	catalog     *models.Catalog
	access      *access.Manager
	history     *history.Manager
	settings    *settings.Manager
	transcriber Transcriber
	logger      *slog.Logger
	cfg         Config

	sem chan struct{}

	mu      sync.Mutex
	workers map[int64]chan telegram.Update
	wg      sync.WaitGroup
}

func New(
	api API,
	dispatcher *dispatch.Dispatcher,
	catalog *models.Catalog,
	accessMgr *access.Manager,
	historyMgr *history.Manager,
	settingsMgr *settings.Manager,
	transcriber Transcriber,
	logger *slog.Logger,
	cfg Config,
) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.MessageLimit <= 0 {
		cfg.MessageLimit = 4000
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = defaultMaxFileBytes
	}
	return &Bot{
		api:         api,
		dispatcher:  dispatcher,
		catalog:     catalog,
		access:      accessMgr,
		history:     historyMgr,
		settings:    settingsMgr,
		transcriber: transcriber,
		logger:      logger,
		cfg:         cfg,
		sem:         make(chan struct{}, cfg.MaxConcurrent),
		workers:     make(map[int64]chan telegram.Update),
	}
}

// Run polls for updates until ctx is canceled, then drains the per-chat
// workers before returning.
func (b *Bot) Run(ctx context.Context) error {
	me, err := b.waitForMe(ctx)
	if err != nil {
		return err
	}
	b.logger.Info("telegram_start", "username", me.Username, "bot_id", me.ID)

	var offset int64
	for {
		select {
		case <-ctx.Done():
			b.shutdown()
			return nil
		default:
		}

		updates, next, err := b.api.GetUpdates(ctx, offset, b.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				b.shutdown()
				return nil
			}
			if telegram.IsPollTimeout(err) {
				b.logger.Debug("telegram_poll_timeout")
				continue
			}
			b.logger.Warn("telegram_poll_error", "error", err.Error())
			time.Sleep(2 * time.Second)
			continue
		}
		offset = next

		for _, upd := range updates {
			b.enqueue(ctx, upd)
		}
	}
}

// waitForMe verifies the token against getMe, retrying transient failures so
// the bot survives starting before the network is up.
func (b *Bot) waitForMe(ctx context.Context) (*telegram.User, error) {
	delay := 2 * time.Second
	for {
		me, err := b.api.GetMe(ctx)
		if err == nil {
			return me, nil
		}
		b.logger.Warn("telegram_getme_error", "error", err.Error(), "retry_in", delay.String())
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
}

// enqueue hands the update to the chat's worker goroutine, creating one on
// first use. Messages within a chat are processed in order; different chats
// run concurrently up to MaxConcurrent.
func (b *Bot) enqueue(ctx context.Context, upd telegram.Update) {
	if upd.Message == nil || upd.Message.Chat == nil {
		return
	}
	chatID := upd.Message.Chat.ID

	b.mu.Lock()
	ch, ok := b.workers[chatID]
	if !ok {
		ch = make(chan telegram.Update, chatQueueSize)
		b.workers[chatID] = ch
		b.wg.Add(1)
		go b.chatWorker(ctx, chatID, ch)
	}
	b.mu.Unlock()

	select {
	case ch <- upd:
	default:
		b.logger.Warn("chat_queue_full", "chat_id", chatID, "update_id", upd.UpdateID)
	}
}

func (b *Bot) chatWorker(ctx context.Context, chatID int64, ch chan telegram.Update) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case upd := <-ch:
			b.sem <- struct{}{}
			b.handleUpdate(ctx, upd)
			<-b.sem
		}
	}
}

func (b *Bot) shutdown() {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		b.logger.Warn("shutdown_timeout")
	}
}
