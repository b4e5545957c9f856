// Package compose builds the outgoing reply text. Everything here is a pure
// function of its arguments: no I/O, no clock reads, no randomness, so
// identical inputs always produce byte-identical replies. AI results are
// strictly additive; every reply is complete without one.
package compose

import (
	"fmt"
	"strings"

	"github.com/siberianesports-creator/chatbotbecks/internal/domain"
)

// Kind names the classification of the inbound message being answered.
type Kind string

const (
	KindWelcome             Kind = "welcome"
	KindHelp                Kind = "help"
	KindProfile             Kind = "profile"
	KindProfileMissing      Kind = "profile_missing"
	KindAdminPanel          Kind = "admin_panel"
	KindStats               Kind = "stats"
	KindAccessDenied        Kind = "access_denied"
	KindGreeting            Kind = "greeting"
	KindMood                Kind = "mood"
	KindThanks              Kind = "thanks"
	KindFarewell            Kind = "farewell"
	KindTextHelp            Kind = "text_help"
	KindEcho                Kind = "echo"
	KindPhoto               Kind = "photo"
	KindVideo               Kind = "video"
	KindDocument            Kind = "document"
	KindVoice               Kind = "voice"
	KindFileTooBig          Kind = "file_too_big"
	KindExtensionNotAllowed Kind = "extension_not_allowed"
	KindUnrecognized        Kind = "unrecognized"
	KindApology             Kind = "apology"
)

// StatsReport carries the aggregates rendered by the stats reply.
type StatsReport struct {
	TotalUsers        int64
	ActiveUsers       int64
	TotalMessages     int64
	ProcessedMessages int64
	ProcessedCommands int64
}

// Classification is the tagged input describing what arrived and the
// constraint values any validation reply should name.
type Classification struct {
	Kind              Kind
	Text              string
	FileName          string
	FileID            string
	FileSize          int64
	DurationSec       int
	Width             int
	Height            int
	MimeType          string
	MaxFileSizeMB     int64
	AllowedExtensions []string
	Stats             StatsReport
}

const timestampLayout = "02.01.2006 15:04"

// Compose maps (classification, user record, optional AI result) to the
// outgoing reply. An empty aiResult means the enrichment is absent and the
// self-sufficient fallback body is used.
func Compose(c Classification, user domain.User, aiResult string) string {
	switch c.Kind {
	case KindWelcome:
		return welcome(user)
	case KindHelp:
		return helpText
	case KindProfile:
		return profile(user)
	case KindProfileMissing:
		return "Профиль не найден. Используйте /start для регистрации."
	case KindAdminPanel:
		return adminPanelText
	case KindStats:
		return stats(c.Stats)
	case KindAccessDenied:
		return "⛔ У вас нет доступа к этой команде."
	case KindGreeting:
		return fmt.Sprintf("Привет, %s! 👋", displayName(user))
	case KindMood:
		return "Спасибо, у меня все отлично! А у вас как дела? 😊"
	case KindThanks:
		return "Пожалуйста! Рад быть полезным! 🙏"
	case KindFarewell:
		return "До свидания! Буду ждать нашего следующего разговора! 👋"
	case KindTextHelp:
		return textHelpText
	case KindEcho:
		return echo(c.Text, aiResult)
	case KindPhoto:
		return photo(c, user, aiResult)
	case KindVideo:
		return video(c)
	case KindDocument:
		return document(c)
	case KindVoice:
		return voice(c)
	case KindFileTooBig:
		return fmt.Sprintf("⚠️ Файл слишком большой. Максимальный размер: %d MB", c.MaxFileSizeMB)
	case KindExtensionNotAllowed:
		return fmt.Sprintf("⚠️ Тип файла не поддерживается. Разрешенные форматы: %s", strings.Join(c.AllowedExtensions, ", "))
	case KindUnrecognized:
		return "🤔 Я получил сообщение, но не знаю, как его обработать.\nПопробуйте отправить текстовое сообщение или используйте команду /help"
	case KindApology:
		return "Произошла ошибка. Попробуйте позже."
	default:
		return "🤔 Я получил сообщение, но не знаю, как его обработать.\nПопробуйте отправить текстовое сообщение или используйте команду /help"
	}
}

func displayName(user domain.User) string {
	name := strings.TrimSpace(user.FullName)
	if name == "" {
		return "друг"
	}
	return name
}

func welcome(user domain.User) string {
	return fmt.Sprintf(`🎉 <b>Добро пожаловать в ChatBot Becks!</b>

Привет, %s! Я современный Telegram бот с множеством возможностей.

<b>Доступные команды:</b>
/start - Начать работу с ботом
/help - Показать справку
/profile - Ваш профиль

<b>Возможности:</b>
• Обработка текстовых сообщений
• Поддержка медиа-файлов
• AI-анализ фотографий

Выберите действие или напишите мне сообщение!`, displayName(user))
}

const helpText = `📚 <b>Справка по ChatBot Becks</b>

<b>Основные команды:</b>
/start - Начать работу с ботом
/help - Показать эту справку
/profile - Ваш профиль

<b>Для администраторов:</b>
/admin - Панель администратора
/stats - Статистика бота

<b>Как использовать:</b>
1. Отправьте текстовое сообщение - бот ответит
2. Отправьте фото - бот опишет изображение
3. Отправьте документ или видео - бот проверит и подтвердит прием`

func profile(user domain.User) string {
	username := user.Username
	if username == "" {
		username = "Не указан"
	}

	return fmt.Sprintf(`👤 <b>Ваш профиль</b>

<b>Имя:</b> %s
<b>Username:</b> @%s
<b>ID:</b> %d
<b>Дата регистрации:</b> %s
<b>Сообщений отправлено:</b> %d
<b>Последняя активность:</b> %s`,
		user.FullName,
		username,
		user.UserID,
		user.CreatedAt.Format(timestampLayout),
		user.MessagesCount,
		user.LastActivity.Format(timestampLayout),
	)
}

const adminPanelText = `🔧 <b>Панель администратора</b>

<b>Статистика:</b>
/stats - Общая статистика бота

<b>Прочее:</b>
Резервное копирование и рассылка настраиваются на сервере.`

func stats(report StatsReport) string {
	return fmt.Sprintf(`📊 <b>Статистика бота</b>

<b>Общая информация:</b>
• Всего пользователей: %d
• Активных за сутки: %d
• Сообщений в журнале: %d

<b>С момента запуска:</b>
• Обработано сообщений: %d
• Обработано команд: %d`,
		report.TotalUsers,
		report.ActiveUsers,
		report.TotalMessages,
		report.ProcessedMessages,
		report.ProcessedCommands,
	)
}

const textHelpText = `📚 <b>Как я могу помочь?</b>

<b>Основные команды:</b>
/start - Начать работу
/help - Подробная справка
/profile - Ваш профиль

Просто напишите мне что-нибудь, и я постараюсь помочь!`

// echo is the one kind where an AI result substitutes for the body rather
// than extending it: a smart reply supersedes the canned acknowledgment.
func echo(text, aiResult string) string {
	if aiResult != "" {
		return aiResult
	}

	return fmt.Sprintf(`💬 <b>Получено ваше сообщение:</b>
"%s"

Я обработал ваше сообщение и готов помочь!
Задайте вопрос, отправьте /help для справки или пришлите медиа-файл. 😊`, text)
}

func photo(c Classification, user domain.User, aiResult string) string {
	base := fmt.Sprintf(`📸 <b>Получено фото!</b>

<b>Информация:</b>
• Размер: %d байт
• ID файла: %s
• Отправитель: %s`, c.FileSize, c.FileID, displayName(user))

	if aiResult != "" {
		return fmt.Sprintf("%s\n\n🤖 <b>AI анализ:</b>\n%s\n\nСпасибо за фото! 😊", base, aiResult)
	}

	return base + "\n\nСпасибо за фото! 😊"
}

func video(c Classification) string {
	return fmt.Sprintf(`🎥 <b>Получено видео!</b>

<b>Информация:</b>
• Размер: %d байт
• Длительность: %d секунд
• Разрешение: %dx%d
• ID файла: %s

Отличное видео! 🎬`, c.FileSize, c.DurationSec, c.Width, c.Height, c.FileID)
}

func document(c Classification) string {
	mimeType := c.MimeType
	if mimeType == "" {
		mimeType = "Неизвестно"
	}

	return fmt.Sprintf(`📄 <b>Получен документ!</b>

<b>Информация:</b>
• Название: %s
• Размер: %d байт
• Тип: %s

Документ получен! 📋`, c.FileName, c.FileSize, mimeType)
}

func voice(c Classification) string {
	return fmt.Sprintf(`🎤 <b>Получено голосовое сообщение!</b>

<b>Информация:</b>
• Длительность: %d секунд
• Размер: %d байт

Голосовое сообщение получено! 🎵`, c.DurationSec, c.FileSize)
}
