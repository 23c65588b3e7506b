package alert

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/your-org/price-horizon-learner/internal/config"
)

// discordMessageLimit is the maximum length of a Discord message.
const discordMessageLimit = 2000

// discordSession is the part of *discordgo.Session the notifier uses.
type discordSession interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Close() error
}

// DiscordNotifier buffers messages and sends them as one direct message per
// interval, so a burst of promotions does not hit the rate limit.
type DiscordNotifier struct {
	session        discordSession
	userID         string
	bufferInterval time.Duration
	logger         *zap.Logger

	mu      sync.Mutex
	buffer  []string
	closed  bool
	started bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewDiscordNotifier creates a notifier for the configured user.
func NewDiscordNotifier(cfg config.DiscordConfig, logger *zap.Logger) (*DiscordNotifier, error) {
	if cfg.BotToken == "" || cfg.UserID == "" {
		return nil, errors.New("discord bot token and user ID must be configured")
	}
	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	return newDiscordNotifier(session, cfg.UserID, time.Duration(cfg.BufferIntervalMinutes)*time.Minute, logger), nil
}

func newDiscordNotifier(session discordSession, userID string, interval time.Duration, logger *zap.Logger) *DiscordNotifier {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscordNotifier{
		session:        session,
		userID:         userID,
		bufferInterval: interval,
		logger:         logger,
		done:           make(chan struct{}),
	}
}

// Send queues message for the next flush.
func (n *DiscordNotifier) Send(message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return errors.New("notifier is closed")
	}
	n.buffer = append(n.buffer, message)
	if !n.started {
		n.started = true
		n.wg.Add(1)
		go n.run(n.bufferInterval)
	}
	return nil
}

func (n *DiscordNotifier) run(interval time.Duration) {
	defer n.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n.flush()
		case <-n.done:
			return
		}
	}
}

func (n *DiscordNotifier) flush() {
	n.mu.Lock()
	messages := n.buffer
	n.buffer = nil
	n.mu.Unlock()

	if len(messages) == 0 {
		return
	}

	channel, err := n.session.UserChannelCreate(n.userID)
	if err != nil {
		n.logger.Error("Failed to open discord DM channel", zap.Error(err), zap.Int("dropped", len(messages)))
		return
	}
	if _, err := n.session.ChannelMessageSend(channel.ID, formatReport(messages)); err != nil {
		n.logger.Error("Failed to send discord message", zap.Error(err), zap.Int("dropped", len(messages)))
	}
}

func formatReport(messages []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- **Model Promotions (%d)** ---\n", len(messages))
	for _, m := range messages {
		b.WriteString("- ")
		b.WriteString(m)
		b.WriteString("\n")
	}
	out := b.String()
	if len(out) > discordMessageLimit {
		out = out[:discordMessageLimit-3] + "..."
	}
	return out
}

// Close stops the flush loop, sends what is still buffered and closes the session.
func (n *DiscordNotifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.done)
	n.mu.Unlock()

	n.wg.Wait()
	n.flush()
	return n.session.Close()
}

var (
	_ Notifier = (*NoOpNotifier)(nil)
	_ Notifier = (*DiscordNotifier)(nil)
)
