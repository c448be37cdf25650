package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/access"
	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/telegram"
)

const helpText = `<b>Commands</b>
/start — introduction
/help — this message
/id — show your Telegram ID
/model — list models, /model &lt;name&gt; to switch
/prompt — show system prompt, /prompt &lt;text&gt; to set, /prompt reset to restore the default
/clear — forget the conversation history

Send text, a voice message, an audio file or a video note and the bot will answer. Voice and video are transcribed first.

<b>Admin</b>
/adduser &lt;id&gt; [admin|user]
/removeuser &lt;id&gt;
/users`

func (b *Bot) handleCommand(ctx context.Context, logger *slog.Logger, msg *telegram.Message, role access.Role) error {
	chatID := msg.Chat.ID
	userID := msg.From.ID

	fields := strings.Fields(msg.Text)
	cmd := strings.ToLower(fields[0])
	// strip the @botname suffix used in groups
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	args := fields[1:]

	logger.Info("command_received", "command", cmd)

	switch cmd {
	case "/start":
		b.reply(ctx, logger, chatID, "Hi! I relay your messages to an LLM and answer here.\n\n"+helpText)
		return nil

	case "/help":
		b.reply(ctx, logger, chatID, helpText)
		return nil

	case "/id":
		b.reply(ctx, logger, chatID, fmt.Sprintf("Your ID: <code>%d</code>", userID))
		return nil

	case "/model":
		return b.cmdModel(ctx, logger, chatID, userID, args)

	case "/prompt":
		return b.cmdPrompt(ctx, logger, chatID, userID, args)

	case "/clear":
		if err := b.history.Clear(ctx, userID); err != nil {
			return err
		}
		b.reply(ctx, logger, chatID, "Conversation history cleared.")
		return nil

	case "/adduser":
		if role != access.RoleAdmin {
			return access.ErrDenied
		}
		return b.cmdAddUser(ctx, logger, chatID, args)

	case "/removeuser":
		if role != access.RoleAdmin {
			return access.ErrDenied
		}
		return b.cmdRemoveUser(ctx, logger, chatID, args)

	case "/users":
		if role != access.RoleAdmin {
			return access.ErrDenied
		}
		return b.cmdListUsers(ctx, logger, chatID)
	}

	b.reply(ctx, logger, chatID, "Unknown command. See /help.")
	return nil
}

func (b *Bot) cmdModel(ctx context.Context, logger *slog.Logger, chatID, userID int64, args []string) error {
	if len(args) == 0 {
		desc, _, err := b.userModel(ctx, userID)
		if err != nil {
			return err
		}
		var sb strings.Builder
		sb.WriteString("<b>Models</b>\n")
		for _, name := range b.catalog.Names() {
			marker := "  "
			if name == desc.Name {
				marker = "▸ "
			}
			fmt.Fprintf(&sb, "%s%s\n", marker, name)
		}
		sb.WriteString("\nSwitch with /model &lt;name&gt;")
		b.reply(ctx, logger, chatID, sb.String())
		return nil
	}

	name := strings.Join(args, " ")
	desc, err := b.catalog.Lookup(name)
	if err != nil {
		b.reply(ctx, logger, chatID, fmt.Sprintf("Unknown model %q. See /model for the list.", name))
		return nil
	}
	if err := b.settings.SetModel(ctx, userID, desc.Name); err != nil {
		return err
	}
	logger.Info("model_selected", "model", desc.Name, "provider", desc.Provider)
	b.reply(ctx, logger, chatID, fmt.Sprintf("Model set to <b>%s</b>.", desc.Name))
	return nil
}

func (b *Bot) cmdPrompt(ctx context.Context, logger *slog.Logger, chatID, userID int64, args []string) error {
	if len(args) == 0 {
		prefs, err := b.settings.Get(ctx, userID)
		if err != nil {
			return err
		}
		current := prefs.SystemPrompt
		if current == "" {
			b.reply(ctx, logger, chatID, "Using the default system prompt. Set your own with /prompt &lt;text&gt;.")
			return nil
		}
		b.reply(ctx, logger, chatID, "Current system prompt:\n<code>"+htmlEscape(current)+"</code>")
		return nil
	}

	if len(args) == 1 && strings.EqualFold(args[0], "reset") {
		if err := b.settings.SetSystemPrompt(ctx, userID, ""); err != nil {
			return err
		}
		b.reply(ctx, logger, chatID, "System prompt reset to the default.")
		return nil
	}

	prompt := strings.Join(args, " ")
	if err := b.settings.SetSystemPrompt(ctx, userID, prompt); err != nil {
		return err
	}
	b.reply(ctx, logger, chatID, "System prompt updated.")
	return nil
}

func (b *Bot) cmdAddUser(ctx context.Context, logger *slog.Logger, chatID int64, args []string) error {
	if len(args) == 0 {
		b.reply(ctx, logger, chatID, "Usage: /adduser &lt;id&gt; [admin|user]")
		return nil
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.reply(ctx, logger, chatID, fmt.Sprintf("%q is not a user ID.", args[0]))
		return nil
	}
	role := access.RoleUser
	if len(args) > 1 {
		role, err = access.ParseRole(args[1])
		if err != nil {
			b.reply(ctx, logger, chatID, "Role must be admin or user.")
			return nil
		}
	}
	if err := b.access.Add(ctx, id, role); err != nil {
		return err
	}
	logger.Info("user_added", "target_id", id, "role", string(role))
	b.reply(ctx, logger, chatID, fmt.Sprintf("User <code>%d</code> added as %s.", id, role))
	return nil
}

func (b *Bot) cmdRemoveUser(ctx context.Context, logger *slog.Logger, chatID int64, args []string) error {
	if len(args) == 0 {
		b.reply(ctx, logger, chatID, "Usage: /removeuser &lt;id&gt;")
		return nil
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.reply(ctx, logger, chatID, fmt.Sprintf("%q is not a user ID.", args[0]))
		return nil
	}
	if err := b.access.Remove(ctx, id); err != nil {
		return err
	}
	logger.Info("user_removed", "target_id", id)
	b.reply(ctx, logger, chatID, fmt.Sprintf("User <code>%d</code> removed.", id))
	return nil
}

func (b *Bot) cmdListUsers(ctx context.Context, logger *slog.Logger, chatID int64) error {
	list, err := b.access.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		b.reply(ctx, logger, chatID, "The allow-list is empty. Only the admin ID can use the bot.")
		return nil
	}
	ids := make([]int64, 0, len(list))
	for id := range list {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var sb strings.Builder
	sb.WriteString("<b>Allowed users</b>\n")
	for _, id := range ids {
		fmt.Fprintf(&sb, "<code>%d</code> — %s\n", id, list[id])
	}
	b.reply(ctx, logger, chatID, sb.String())
	return nil
}

func htmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
