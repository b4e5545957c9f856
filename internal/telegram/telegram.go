// Package telegram hosts the Telegram client: long polling, update-to-message
// conversion, reply delivery, and file downloads.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"github.com/siberianesports-creator/chatbotbecks/internal/config"
	"github.com/siberianesports-creator/chatbotbecks/internal/logging"
	"github.com/siberianesports-creator/chatbotbecks/internal/router"
)

// maxDownloadBytes caps a single file download read.
const maxDownloadBytes = 64 << 20

type botAPI interface {
	Start(ctx context.Context)
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	GetFile(ctx context.Context, params *bot.GetFileParams) (*models.File, error)
	FileDownloadLink(f *models.File) string
}

// Handler processes one converted inbound message and returns the reply text.
type Handler interface {
	Handle(ctx context.Context, msg router.Message) string
}

var (
	defaultAllowedUpdates = bot.AllowedUpdates{
		"message",
	}

	createBot = func(token string, options ...bot.Option) (botAPI, error) {
		return bot.New(token, options...)
	}
)

// Client wraps the Telegram bot instance, the message handler, and logging.
type Client struct {
	bot        botAPI
	handler    Handler
	httpClient *http.Client
	logger     *logrus.Entry
}

// NewClient initializes the Telegram bot with long polling; every inbound
// message update is converted and passed to the handler, whose reply is sent
// back to the originating chat as HTML.
func NewClient(cfg config.Config, handler Handler, logger *logrus.Entry) (*Client, error) {
	if strings.TrimSpace(cfg.TelegramToken) == "" {
		return nil, errors.New("telegram token is required")
	}
	if handler == nil {
		return nil, errors.New("message handler is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	client := &Client{
		handler:    handler,
		httpClient: http.DefaultClient,
		logger:     logger,
	}

	tgBot, err := createBot(cfg.TelegramToken,
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithDefaultHandler(client.onUpdate),
		bot.WithErrorsHandler(errorHandler(logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}

	client.bot = tgBot
	return client, nil
}

// Start begins receiving updates via long polling until the context is canceled.
func (c *Client) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_listen",
		"allowed_updates": defaultAllowedUpdates,
	}).Info("starting telegram long polling")

	c.bot.Start(ctx)

	c.logger.WithField("event", "telegram_stopped").Info("telegram polling stopped")
}

func (c *Client) onUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update == nil || update.Message == nil {
		c.logger.WithField("event", "telegram_update_skipped").Debug("update without message payload")
		return
	}

	msg := toRouterMessage(update.Message)
	reply := c.handler.Handle(ctx, msg)
	if reply == "" {
		return
	}

	if _, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    msg.Sender.ChatID,
		Text:      reply,
		ParseMode: models.ParseModeHTML,
	}); err != nil {
		c.logger.WithFields(logging.Fields{
			"event":   "telegram_send_failed",
			"chat_id": msg.Sender.ChatID,
			"user_id": msg.Sender.UserID,
		}).WithError(err).Error("failed to deliver reply")
	}
}

// Fetch downloads a file's bytes by its file_id via the Bot API file endpoint.
func (c *Client) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	if c == nil || c.bot == nil {
		return nil, errors.New("telegram client is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(fileID) == "" {
		return nil, errors.New("file id is required")
	}

	file, err := c.bot.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("resolve telegram file %q: %w", fileID, err)
	}

	link := c.bot.FileDownloadLink(file)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("build file download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download telegram file %q: %w", fileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download telegram file %q: unexpected status %d", fileID, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("read telegram file %q: %w", fileID, err)
	}

	return data, nil
}

// toRouterMessage converts a Telegram message into the transport-agnostic
// inbound message, picking the largest photo rendition when several arrive.
func toRouterMessage(m *models.Message) router.Message {
	msg := router.Message{
		Sender: router.Sender{
			UserID:    userID(m.From),
			ChatID:    m.Chat.ID,
			MessageID: int64(m.ID),
			FullName:  fullName(m.From),
			Username:  username(m.From),
		},
	}

	text := strings.TrimSpace(m.Text)
	switch {
	case strings.HasPrefix(text, "/"):
		msg.Command = parseCommand(text)
	case text != "":
		msg.Text = text
	case len(m.Photo) > 0:
		best := largestPhoto(m.Photo)
		msg.Photo = &router.Photo{
			FileID:    best.FileID,
			SizeBytes: int64(best.FileSize),
			Width:     best.Width,
			Height:    best.Height,
		}
	case m.Video != nil:
		msg.Video = &router.Video{
			FileID:      m.Video.FileID,
			SizeBytes:   m.Video.FileSize,
			DurationSec: m.Video.Duration,
			Width:       m.Video.Width,
			Height:      m.Video.Height,
		}
	case m.Document != nil:
		msg.Document = &router.Document{
			FileID:    m.Document.FileID,
			FileName:  m.Document.FileName,
			SizeBytes: m.Document.FileSize,
			MimeType:  m.Document.MimeType,
		}
	case m.Voice != nil:
		msg.Voice = &router.Voice{
			FileID:      m.Voice.FileID,
			SizeBytes:   m.Voice.FileSize,
			DurationSec: m.Voice.Duration,
		}
	}

	return msg
}

// parseCommand splits "/name@botname args" into its name and argument string.
func parseCommand(text string) *router.Command {
	fields := strings.Fields(text)
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.Index(name, "@"); at >= 0 {
		name = name[:at]
	}

	return &router.Command{
		Name: strings.ToLower(name),
		Args: strings.TrimSpace(strings.TrimPrefix(text, fields[0])),
	}
}

func largestPhoto(sizes []models.PhotoSize) models.PhotoSize {
	best := sizes[0]
	for _, size := range sizes[1:] {
		if size.FileSize > best.FileSize {
			best = size
		}
	}
	return best
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram polling error")
	}
}

func userID(user *models.User) int64 {
	if user == nil {
		return 0
	}

	return user.ID
}

func username(user *models.User) string {
	if user == nil {
		return ""
	}

	return user.Username
}

func fullName(user *models.User) string {
	if user == nil {
		return ""
	}

	return strings.TrimSpace(strings.TrimSpace(user.FirstName) + " " + strings.TrimSpace(user.LastName))
}
