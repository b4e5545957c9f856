// Package router classifies inbound messages and drives the per-message
// pipeline: record the user, persist the message, enrich through the AI
// gateway when applicable, and compose the reply. Classification follows a
// fixed order so a message carrying several payloads is handled exactly once.
package router

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/siberianesports-creator/chatbotbecks/internal/ai"
	"github.com/siberianesports-creator/chatbotbecks/internal/compose"
	"github.com/siberianesports-creator/chatbotbecks/internal/config"
	"github.com/siberianesports-creator/chatbotbecks/internal/domain"
	"github.com/siberianesports-creator/chatbotbecks/internal/logging"
)

// activeWindow bounds the "active users" aggregate in the stats reply.
const activeWindow = 24 * time.Hour

// Sender identifies who sent the message and where to answer.
type Sender struct {
	UserID    int64
	ChatID    int64
	MessageID int64
	FullName  string
	Username  string
}

// Command is a slash command with its name lowercased and leading slash
// stripped.
type Command struct {
	Name string
	Args string
}

// Photo is the largest available rendition of an inbound photo.
type Photo struct {
	FileID    string
	SizeBytes int64
	Width     int
	Height    int
}

type Video struct {
	FileID      string
	SizeBytes   int64
	DurationSec int
	Width       int
	Height      int
}

type Document struct {
	FileID    string
	FileName  string
	SizeBytes int64
	MimeType  string
}

type Voice struct {
	FileID      string
	SizeBytes   int64
	DurationSec int
}

// Message is the transport-agnostic inbound message. At most one payload
// field is expected to be set; when several are, classification picks the
// first in order: command, text, photo, video, document, voice.
type Message struct {
	Sender   Sender
	Command  *Command
	Text     string
	Photo    *Photo
	Video    *Video
	Document *Document
	Voice    *Voice
}

// UserRecords is the slice of the user store the router needs.
type UserRecords interface {
	GetByID(ctx context.Context, userID int64) (domain.User, bool)
	GetOrCreate(ctx context.Context, userID int64, fullName, username string) (domain.User, bool)
	TouchActivity(ctx context.Context, userID int64)
	IncrementMessageCount(ctx context.Context, userID int64)
}

// MessageSink receives one append-only record per persisted message.
type MessageSink interface {
	Append(ctx context.Context, entry domain.MessageLogEntry)
}

// AIClient produces optional enrichments; absent results never fail a message.
type AIClient interface {
	CompleteText(ctx context.Context, prompt string) (string, bool)
	AnalyzeImage(ctx context.Context, image []byte, prompt string) (string, bool)
}

// FileFetcher downloads a file's bytes by its provider-assigned reference.
type FileFetcher interface {
	Fetch(ctx context.Context, fileID string) ([]byte, error)
}

// StatsSource supplies the durable aggregates for the stats reply.
type StatsSource interface {
	CountUsers(ctx context.Context) (int64, error)
	CountActiveUsers(ctx context.Context, since time.Time) (int64, error)
	CountMessages(ctx context.Context) (int64, error)
}

// Counters is the in-process traffic recorder; implemented by metrics.InMemory.
type Counters interface {
	RecordMessage(kind string)
	RecordCommand(name string)
	TotalMessages() int64
	TotalCommands() int64
}

// Router wires the pipeline together. All collaborators are optional except
// users; a nil collaborator degrades the matching feature instead of failing
// the message.
type Router struct {
	cfg      config.Config
	users    UserRecords
	sink     MessageSink
	ai       AIClient
	files    FileFetcher
	stats    StatsSource
	counters Counters
	logger   *logrus.Entry
}

func New(cfg config.Config, users UserRecords, sink MessageSink, aiClient AIClient, files FileFetcher, stats StatsSource, counters Counters, logger *logrus.Entry) *Router {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Router{
		cfg:      cfg,
		users:    users,
		sink:     sink,
		ai:       aiClient,
		files:    files,
		stats:    stats,
		counters: counters,
		logger:   logger,
	}
}

// SetFileFetcher wires the file fetcher after construction. The transport
// that downloads files also delivers replies, so it is built after the router
// it serves.
func (r *Router) SetFileFetcher(files FileFetcher) {
	if r == nil {
		return
	}
	r.files = files
}

// Handle processes one inbound message and returns the reply text. It never
// panics: a handler panic is recovered and answered with the apology reply.
func (r *Router) Handle(ctx context.Context, msg Message) (reply string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.WithFields(logging.Fields{
				"event":   "handler_panic",
				"user_id": msg.Sender.UserID,
				"panic":   rec,
			}).Error("recovered from handler panic")
			reply = compose.Compose(compose.Classification{Kind: compose.KindApology}, domain.User{}, "")
		}
	}()

	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case msg.Command != nil:
		return r.handleCommand(ctx, msg)
	case strings.TrimSpace(msg.Text) != "":
		return r.handleText(ctx, msg)
	case msg.Photo != nil:
		return r.handlePhoto(ctx, msg)
	case msg.Video != nil:
		return r.handleVideo(ctx, msg)
	case msg.Document != nil:
		return r.handleDocument(ctx, msg)
	case msg.Voice != nil:
		return r.handleVoice(ctx, msg)
	default:
		r.logger.WithFields(logging.Fields{
			"event":   "message_unrecognized",
			"user_id": msg.Sender.UserID,
		}).Debug("no handler for payload")
		return compose.Compose(compose.Classification{Kind: compose.KindUnrecognized}, domain.User{}, "")
	}
}

func (r *Router) handleCommand(ctx context.Context, msg Message) string {
	name := strings.ToLower(msg.Command.Name)
	if r.counters != nil {
		r.counters.RecordCommand(name)
	}

	switch name {
	case "start":
		user, created := r.users.GetOrCreate(ctx, msg.Sender.UserID, msg.Sender.FullName, msg.Sender.Username)
		if !created {
			r.users.TouchActivity(ctx, msg.Sender.UserID)
		}
		return compose.Compose(compose.Classification{Kind: compose.KindWelcome}, user, "")

	case "help":
		r.users.TouchActivity(ctx, msg.Sender.UserID)
		return compose.Compose(compose.Classification{Kind: compose.KindHelp}, domain.User{}, "")

	case "profile":
		// Lookup only: an unregistered sender is told to run /start, not
		// registered on the spot.
		user, found := r.users.GetByID(ctx, msg.Sender.UserID)
		if !found {
			return compose.Compose(compose.Classification{Kind: compose.KindProfileMissing}, domain.User{}, "")
		}
		return compose.Compose(compose.Classification{Kind: compose.KindProfile}, user, "")

	case "admin":
		if !r.cfg.IsAdmin(msg.Sender.UserID) {
			r.denied(msg.Sender.UserID, name)
			return compose.Compose(compose.Classification{Kind: compose.KindAccessDenied}, domain.User{}, "")
		}
		r.users.TouchActivity(ctx, msg.Sender.UserID)
		return compose.Compose(compose.Classification{Kind: compose.KindAdminPanel}, domain.User{}, "")

	case "stats":
		if !r.cfg.IsAdmin(msg.Sender.UserID) {
			r.denied(msg.Sender.UserID, name)
			return compose.Compose(compose.Classification{Kind: compose.KindAccessDenied}, domain.User{}, "")
		}
		r.users.TouchActivity(ctx, msg.Sender.UserID)
		return compose.Compose(compose.Classification{Kind: compose.KindStats, Stats: r.collectStats(ctx)}, domain.User{}, "")

	default:
		return compose.Compose(compose.Classification{Kind: compose.KindUnrecognized}, domain.User{}, "")
	}
}

func (r *Router) handleText(ctx context.Context, msg Message) string {
	text := strings.TrimSpace(msg.Text)
	user := r.ensureUser(ctx, msg.Sender)
	r.users.IncrementMessageCount(ctx, msg.Sender.UserID)
	r.persist(ctx, msg.Sender, domain.MessageLogEntry{Kind: domain.MessageKindText, Content: text})

	kind := classifyText(text)
	aiResult := ""
	if kind == compose.KindEcho && r.ai != nil {
		if smart, ok := r.ai.CompleteText(ctx, ai.SmartReplyPrompt(text)); ok {
			aiResult = smart
		}
	}

	return compose.Compose(compose.Classification{Kind: kind, Text: text}, user, aiResult)
}

func (r *Router) handlePhoto(ctx context.Context, msg Message) string {
	photo := msg.Photo
	if reply, ok := r.rejectOversized(photo.SizeBytes, msg.Sender); !ok {
		return reply
	}

	user := r.ensureUser(ctx, msg.Sender)
	r.persist(ctx, msg.Sender, domain.MessageLogEntry{Kind: domain.MessageKindPhoto, FileID: photo.FileID})

	aiResult := r.analyzePhoto(ctx, photo.FileID, msg.Sender.UserID)

	return compose.Compose(compose.Classification{
		Kind:     compose.KindPhoto,
		FileID:   photo.FileID,
		FileSize: photo.SizeBytes,
	}, user, aiResult)
}

func (r *Router) handleVideo(ctx context.Context, msg Message) string {
	video := msg.Video
	if reply, ok := r.rejectOversized(video.SizeBytes, msg.Sender); !ok {
		return reply
	}

	user := r.ensureUser(ctx, msg.Sender)
	r.persist(ctx, msg.Sender, domain.MessageLogEntry{Kind: domain.MessageKindVideo, FileID: video.FileID})

	return compose.Compose(compose.Classification{
		Kind:        compose.KindVideo,
		FileID:      video.FileID,
		FileSize:    video.SizeBytes,
		DurationSec: video.DurationSec,
		Width:       video.Width,
		Height:      video.Height,
	}, user, "")
}

func (r *Router) handleDocument(ctx context.Context, msg Message) string {
	doc := msg.Document
	if reply, ok := r.rejectOversized(doc.SizeBytes, msg.Sender); !ok {
		return reply
	}
	if !r.extensionAllowed(doc.FileName) {
		r.logger.WithFields(logging.Fields{
			"event":     "document_rejected",
			"user_id":   msg.Sender.UserID,
			"file_name": doc.FileName,
		}).Info("document extension not allowed")
		return compose.Compose(compose.Classification{
			Kind:              compose.KindExtensionNotAllowed,
			AllowedExtensions: r.cfg.AllowedExtensions,
		}, domain.User{}, "")
	}

	user := r.ensureUser(ctx, msg.Sender)
	r.persist(ctx, msg.Sender, domain.MessageLogEntry{Kind: domain.MessageKindDocument, FileID: doc.FileID, Content: doc.FileName})

	return compose.Compose(compose.Classification{
		Kind:     compose.KindDocument,
		FileID:   doc.FileID,
		FileName: doc.FileName,
		FileSize: doc.SizeBytes,
		MimeType: doc.MimeType,
	}, user, "")
}

func (r *Router) handleVoice(ctx context.Context, msg Message) string {
	voice := msg.Voice
	if reply, ok := r.rejectOversized(voice.SizeBytes, msg.Sender); !ok {
		return reply
	}

	user := r.ensureUser(ctx, msg.Sender)
	r.persist(ctx, msg.Sender, domain.MessageLogEntry{Kind: domain.MessageKindVoice, FileID: voice.FileID})

	return compose.Compose(compose.Classification{
		Kind:        compose.KindVoice,
		FileID:      voice.FileID,
		FileSize:    voice.SizeBytes,
		DurationSec: voice.DurationSec,
	}, user, "")
}

// ensureUser registers the sender if needed and marks the activity that this
// message represents. The message counter is not touched here: it counts
// routed text messages only, so handleText owns the increment.
func (r *Router) ensureUser(ctx context.Context, sender Sender) domain.User {
	user, created := r.users.GetOrCreate(ctx, sender.UserID, sender.FullName, sender.Username)
	if !created {
		r.users.TouchActivity(ctx, sender.UserID)
	}
	return user
}

// persist appends the message record and records the in-process counter.
// Runs before any AI call so the durable trail never depends on provider
// availability.
func (r *Router) persist(ctx context.Context, sender Sender, entry domain.MessageLogEntry) {
	entry.UserID = sender.UserID
	entry.ChatID = sender.ChatID
	entry.MessageID = sender.MessageID

	if r.sink != nil {
		r.sink.Append(ctx, entry)
	}
	if r.counters != nil {
		r.counters.RecordMessage(entry.Kind)
	}
}

// rejectOversized is the pre-validation gate: an oversized file is answered
// immediately, before any persistence or provider call.
func (r *Router) rejectOversized(sizeBytes int64, sender Sender) (string, bool) {
	limit := r.cfg.MaxFileSizeBytes()
	if limit <= 0 || sizeBytes <= limit {
		return "", true
	}

	r.logger.WithFields(logging.Fields{
		"event":      "file_rejected",
		"user_id":    sender.UserID,
		"size_bytes": sizeBytes,
	}).Info("file exceeds size limit")

	return compose.Compose(compose.Classification{
		Kind:          compose.KindFileTooBig,
		MaxFileSizeMB: r.cfg.MaxFileSizeMB,
	}, domain.User{}, ""), false
}

func (r *Router) extensionAllowed(fileName string) bool {
	if len(r.cfg.AllowedExtensions) == 0 {
		return true
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		return false
	}
	for _, allowed := range r.cfg.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// analyzePhoto fetches the photo bytes and asks the vision model to describe
// them. Any failure along the way yields an absent result.
func (r *Router) analyzePhoto(ctx context.Context, fileID string, userID int64) string {
	if r.files == nil || r.ai == nil {
		return ""
	}

	image, err := r.files.Fetch(ctx, fileID)
	if err != nil || len(image) == 0 {
		r.logger.WithFields(logging.Fields{
			"event":   "photo_fetch_failed",
			"user_id": userID,
			"file_id": fileID,
		}).WithError(err).Warn("photo download failed, replying without analysis")
		return ""
	}

	result, ok := r.ai.AnalyzeImage(ctx, image, ai.DefaultImagePrompt)
	if !ok {
		return ""
	}
	return result
}

// collectStats gathers durable aggregates best-effort; a failed count renders
// as zero rather than failing the command.
func (r *Router) collectStats(ctx context.Context) compose.StatsReport {
	report := compose.StatsReport{}
	if r.counters != nil {
		report.ProcessedMessages = r.counters.TotalMessages()
		report.ProcessedCommands = r.counters.TotalCommands()
	}
	if r.stats == nil {
		return report
	}

	if n, err := r.stats.CountUsers(ctx); err == nil {
		report.TotalUsers = n
	} else {
		r.statsWarn("stats_users_failed", err)
	}
	if n, err := r.stats.CountActiveUsers(ctx, time.Now().UTC().Add(-activeWindow)); err == nil {
		report.ActiveUsers = n
	} else {
		r.statsWarn("stats_active_failed", err)
	}
	if n, err := r.stats.CountMessages(ctx); err == nil {
		report.TotalMessages = n
	} else {
		r.statsWarn("stats_messages_failed", err)
	}

	return report
}

func (r *Router) statsWarn(event string, err error) {
	r.logger.WithFields(logging.Fields{"event": event}).WithError(err).Warn("stats aggregate unavailable")
}

func (r *Router) denied(userID int64, command string) {
	r.logger.WithFields(logging.Fields{
		"event":   "command_denied",
		"user_id": userID,
		"command": command,
	}).Info("non-admin attempted admin command")
}

// classifyText maps a text body to its reply kind by trigger phrases; the
// first match in order wins.
func classifyText(text string) compose.Kind {
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "привет"):
		return compose.KindGreeting
	case strings.Contains(lower, "как дела"):
		return compose.KindMood
	case strings.Contains(lower, "спасибо"):
		return compose.KindThanks
	case strings.Contains(lower, "пока"), strings.Contains(lower, "до свидания"):
		return compose.KindFarewell
	case strings.Contains(lower, "помощь"), strings.Contains(lower, "help"):
		return compose.KindTextHelp
	default:
		return compose.KindEcho
	}
}
