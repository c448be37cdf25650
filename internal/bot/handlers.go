package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/access"
	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/markup"
	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/models"
	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/telegram"
	"github.com/0FL01/Another-Chat-with-LLM-sub000/llm"
)

// handleUpdate is the error boundary: every failure below it is logged and
// rendered to the user as a message, never allowed to kill the worker.
func (b *Bot) handleUpdate(ctx context.Context, upd telegram.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil || msg.From == nil || msg.From.IsBot {
		return
	}
	chatID := msg.Chat.ID
	userID := msg.From.ID

	logger := b.logger.With("correlation_id", uuid.NewString(), "chat_id", chatID, "user_id", userID)

	role, found, err := b.access.RoleOf(ctx, userID)
	if err != nil {
		logger.Error("access_check_error", "error", err.Error())
		b.reply(ctx, logger, chatID, "Internal error while checking access. Please try again later.")
		return
	}
	if !found {
		logger.Info("access_denied")
		b.reply(ctx, logger, chatID, fmt.Sprintf("You are not authorized to use this bot.\nYour ID: <code>%d</code>", userID))
		return
	}

	if err := b.route(ctx, logger, msg, role); err != nil {
		logger.Error("handler_error", "error", err.Error())
		b.reply(ctx, logger, chatID, userMessage(err))
	}
}

func (b *Bot) route(ctx context.Context, logger *slog.Logger, msg *telegram.Message, role access.Role) error {
	switch {
	case strings.HasPrefix(msg.Text, "/"):
		return b.handleCommand(ctx, logger, msg, role)
	case msg.Voice != nil:
		return b.handleMedia(ctx, logger, msg, msg.Voice.FileID, firstNonEmpty(msg.Voice.MimeType, "audio/ogg"))
	case msg.Audio != nil:
		return b.handleMedia(ctx, logger, msg, msg.Audio.FileID, firstNonEmpty(msg.Audio.MimeType, "audio/mpeg"))
	case msg.VideoNote != nil:
		return b.handleMedia(ctx, logger, msg, msg.VideoNote.FileID, "video/mp4")
	case msg.Video != nil:
		return b.handleMedia(ctx, logger, msg, msg.Video.FileID, firstNonEmpty(msg.Video.MimeType, "video/mp4"))
	case strings.TrimSpace(msg.Text) != "":
		return b.handleText(ctx, logger, msg, msg.Text)
	}
	return nil
}

// handleText runs the chat flow: load settings and history, complete against
// the selected provider, persist both turns, format and send.
func (b *Bot) handleText(ctx context.Context, logger *slog.Logger, msg *telegram.Message, text string) error {
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if err := b.api.SendChatAction(ctx, chatID, "typing"); err != nil {
		logger.Warn("chat_action_error", "error", err.Error())
	}

	desc, systemPrompt, err := b.userModel(ctx, userID)
	if err != nil {
		return err
	}
	turns, err := b.history.Get(ctx, userID)
	if err != nil {
		return err
	}

	reply, err := b.dispatcher.Complete(ctx, desc, systemPrompt, turns, text)
	if err != nil {
		return err
	}

	if err := b.history.Save(ctx, userID, llm.RoleUser, text); err != nil {
		return err
	}
	if err := b.history.Save(ctx, userID, llm.RoleAssistant, reply); err != nil {
		return err
	}

	return b.sendFormatted(ctx, chatID, reply)
}

// handleMedia downloads the attachment to a temp file, transcribes it and
// feeds the transcript through the text flow. The temp file is removed on
// every path.
func (b *Bot) handleMedia(ctx context.Context, logger *slog.Logger, msg *telegram.Message, fileID, mimeType string) error {
	chatID := msg.Chat.ID

	if b.transcriber == nil {
		return errors.New("transcription is not configured")
	}
	if err := b.api.SendChatAction(ctx, chatID, "typing"); err != nil {
		logger.Warn("chat_action_error", "error", err.Error())
	}

	f, err := b.api.GetFile(ctx, fileID)
	if err != nil {
		return fmt.Errorf("fetch file metadata: %w", err)
	}
	if f.FileSize > b.cfg.MaxFileBytes {
		return fmt.Errorf("file too large: %d bytes (limit %d)", f.FileSize, b.cfg.MaxFileBytes)
	}

	dir := b.cfg.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	localPath := filepath.Join(dir, uuid.NewString()+filepath.Ext(f.FilePath))
	if err := b.api.DownloadFile(ctx, f.FilePath, localPath, b.cfg.MaxFileBytes); err != nil {
		return fmt.Errorf("download file: %w", err)
	}
	defer func() {
		if rmErr := os.Remove(localPath); rmErr != nil {
			logger.Warn("temp_file_remove_error", "path", localPath, "error", rmErr.Error())
		}
	}()

	transcript, err := b.transcriber.AudioToText(ctx, localPath, mimeType)
	if err != nil {
		return err
	}
	logger.Info("media_transcribed", "file_id", fileID, "chars", len(transcript))

	preview := "<i>Transcript:</i> " + markup.Format(transcript)
	for _, chunk := range markup.Split(preview, b.cfg.MessageLimit) {
		b.reply(ctx, logger, chatID, chunk)
	}

	text := transcript
	if caption := strings.TrimSpace(msg.Caption); caption != "" {
		text = caption + "\n\n" + transcript
	}
	return b.handleText(ctx, logger, msg, text)
}

// userModel resolves the user's selected model descriptor and system prompt,
// falling back to the catalog default when the stored name no longer exists.
func (b *Bot) userModel(ctx context.Context, userID int64) (models.Descriptor, string, error) {
	prefs, err := b.settings.Get(ctx, userID)
	if err != nil {
		return models.Descriptor{}, "", err
	}
	name := prefs.Model
	if name == "" {
		name = b.catalog.DefaultName()
	}
	desc, err := b.catalog.Lookup(name)
	if errors.Is(err, models.ErrUnknownModel) {
		desc, err = b.catalog.Lookup(b.catalog.DefaultName())
	}
	if err != nil {
		return models.Descriptor{}, "", err
	}
	systemPrompt := prefs.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = b.cfg.DefaultSystemPrompt
	}
	return desc, systemPrompt, nil
}

func (b *Bot) sendFormatted(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range markup.Split(markup.Format(text), b.cfg.MessageLimit) {
		if err := b.api.SendHTML(ctx, chatID, chunk); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

// reply sends best-effort; a failure here has no further recourse.
func (b *Bot) reply(ctx context.Context, logger *slog.Logger, chatID int64, text string) {
	if err := b.api.SendHTML(ctx, chatID, text); err != nil {
		logger.Error("reply_error", "error", err.Error())
	}
}

// userMessage renders an error for the chat without leaking internals beyond
// the provider name and its message.
func userMessage(err error) string {
	if errors.Is(err, access.ErrDenied) {
		return "This command is for admins only."
	}
	var backendErr *llm.BackendError
	if errors.As(err, &backendErr) {
		return fmt.Sprintf("The %s backend failed: %s\nTry again or switch models with /model.", backendErr.Provider, backendErr.Err)
	}
	if errors.Is(err, llm.ErrUnavailable) {
		return "The service is temporarily unavailable. Please try again in a moment."
	}
	return "Error: " + err.Error()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
