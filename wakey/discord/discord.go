// Package wakey_discord connects the dispatcher to a Discord bot account.
package wakey_discord

import (
	"context"
	"fmt"
	"strings"
	wakey_dispatch "wakey-bot/wakey/dispatch"
	wakey_log "wakey-bot/wakey/log"

	"github.com/bwmarrin/discordgo"
)

const (
	// MaxMessageLength is the longest message Discord accepts.
	MaxMessageLength = 2000

	// EmptyReply stands in for a reply with no visible text, which Discord
	// rejects.
	EmptyReply = "(no output)"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, msg wakey_dispatch.Message, replier wakey_dispatch.Replier)
}

type BotConfig struct {
	Token      string
	Dispatcher Dispatcher
	Logger     *wakey_log.Logger
}

type Bot struct {
	config BotConfig
	logger *wakey_log.Logger
}

func NewBot(config BotConfig) *Bot {
	logger := config.Logger
	if logger == nil {
		logger = wakey_log.Discard()
	}

	return &Bot{
		config: config,
		logger: logger,
	}
}

// Run opens the gateway session and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	session, err := discordgo.New("Bot " + b.config.Token)
	if err != nil {
		return fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsDirectMessages

	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.logger.Info("%s is connected!", r.User.String())
	})
	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		b.handleMessage(ctx, s, m)
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	<-ctx.Done()

	b.logger.Info("Closing discord session")
	if err := session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}
	return nil
}

func (b *Bot) handleMessage(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || (s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID) {
		return
	}

	replier := wakey_dispatch.ReplierFunc(func(_ context.Context, text string) error {
		_, err := s.ChannelMessageSendReply(m.ChannelID, formatReply(text), m.Reference())
		return err
	})

	b.config.Dispatcher.Dispatch(ctx, toMessage(m), replier)
}

// toMessage maps a gateway event onto a dispatcher message. Direct messages
// carry no guild.
func toMessage(m *discordgo.MessageCreate) wakey_dispatch.Message {
	msg := wakey_dispatch.Message{
		Private: m.GuildID == "",
		Content: m.Content,
	}
	if m.Author != nil {
		msg.SenderID = m.Author.ID
	}
	return msg
}

func formatReply(text string) string {
	if strings.TrimSpace(text) == "" {
		return EmptyReply
	}
	return Truncate(text)
}

// Truncate cuts text to MaxMessageLength runes.
func Truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxMessageLength {
		return text
	}
	return string(runes[:MaxMessageLength])
}
