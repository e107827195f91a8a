// Package telegram exposes the classifier as a Telegram bot: users send a
// photo and get the label and confidence back.
package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/apex/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Brownie44l1/catdog-api/internal/model"
	"github.com/Brownie44l1/catdog-api/internal/pipeline"
)

const (
	msgStart = `👋 Hi! I tell cats and dogs apart.

📸 Send me a photo of a cat or a dog and I'll classify it.

📋 Commands:
/help - how to use the bot
/stats - predictions so far`

	msgHelp = `ℹ️ How to use the bot:

1️⃣ Send a photo (or an image file)
2️⃣ Wait a second while the model looks at it
3️⃣ Get the label and how confident the model is

💡 Tips:
• One animal per photo
• Good lighting, no heavy filters
• The pet should be the main subject`

	msgSendPhoto       = "📸 Please send a photo of a cat or a dog."
	msgUnknownCommand  = "❓ Unknown command. Use /help."
	msgProcessingError = "⚠️ Could not process the image. Please try another photo."
)

// Classifier is the pipeline the bot forwards uploads to.
type Classifier interface {
	Classify(ctx context.Context, u pipeline.Upload) (*pipeline.Result, error)
	Stats() pipeline.StatsSnapshot
}

type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Bot struct {
	api        botAPI
	token      string
	classifier Classifier
	maxBytes   int64
	// download fetches a file by Telegram file ID.
	download func(ctx context.Context, fileID string) ([]byte, error)
}

func NewBot(token string, classifier Classifier, maxBytes int64) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize bot: %w", err)
	}

	log.Infof("Authorized on account %s", api.Self.UserName)

	b := &Bot{
		api:        api,
		token:      token,
		classifier: classifier,
		maxBytes:   maxBytes,
	}
	b.download = b.downloadFile
	return b, nil
}

// Run processes updates until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}

	if len(msg.Photo) > 0 {
		// last size is the largest
		photo := msg.Photo[len(msg.Photo)-1]
		b.classify(ctx, msg, photo.FileID, "", int64(photo.FileSize))
		return
	}

	if doc := msg.Document; doc != nil && strings.HasPrefix(doc.MimeType, "image/") {
		b.classify(ctx, msg, doc.FileID, doc.FileName, int64(doc.FileSize))
		return
	}

	b.reply(msg, msgSendPhoto)
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.reply(msg, msgStart)
	case "help":
		b.reply(msg, msgHelp)
	case "stats":
		s := b.classifier.Stats()
		b.reply(msg, fmt.Sprintf("📈 Predictions: %d\n🐱 Cats: %d\n🐶 Dogs: %d\n🤔 Uncertain: %d", s.Predictions, s.Cats, s.Dogs, s.Uncertain))
	default:
		b.reply(msg, msgUnknownCommand)
	}
}

func (b *Bot) classify(ctx context.Context, msg *tgbotapi.Message, fileID, filename string, size int64) {
	if b.maxBytes > 0 && size > b.maxBytes {
		b.reply(msg, ErrorReply(fmt.Errorf("%w: limit is %d MB", pipeline.ErrFileTooLarge, b.maxBytes>>20)))
		return
	}

	data, err := b.download(ctx, fileID)
	if err != nil {
		log.WithError(err).Error("Error downloading photo")
		b.reply(msg, msgProcessingError)
		return
	}

	res, err := b.classifier.Classify(ctx, pipeline.Upload{Filename: filename, Data: data})
	if err != nil {
		b.reply(msg, ErrorReply(err))
		return
	}
	b.reply(msg, FormatReply(res, b.classifier.Stats().Predictions))
}

func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.token), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %s", resp.Status)
	}

	var r io.Reader = resp.Body
	if b.maxBytes > 0 {
		r = io.LimitReader(resp.Body, b.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

func (b *Bot) reply(to *tgbotapi.Message, text string) {
	msg := tgbotapi.NewMessage(to.Chat.ID, text)
	msg.ReplyToMessageID = to.MessageID
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).Error("Error sending message")
	}
}

// FormatReply renders a result as a chat message. n rotates the fun fact.
func FormatReply(res *pipeline.Result, n int) string {
	icon := "🐱"
	if res.Label == model.LabelDog {
		icon = "🐶"
	}

	var sb strings.Builder
	if res.Reliable {
		fmt.Fprintf(&sb, "%s It's a %s!\n", icon, res.Label)
	} else {
		fmt.Fprintf(&sb, "🤔 Uncertain prediction, best guess: %s %s\n", res.Label, icon)
	}
	fmt.Fprintf(&sb, "Confidence: %s (%s)\n", res.ConfidenceText(), res.Level)
	fmt.Fprintf(&sb, "Cat %s / Dog %s\n", model.FormatPercent(res.CatProbability*100), model.FormatPercent(res.DogProbability*100))
	sb.WriteString(res.Level.Description())
	if !res.Reliable {
		fmt.Fprintf(&sb, "\n⚠️ Below the %s threshold, treat this result as uncertain.", model.FormatPercent(res.Threshold*100))
	}
	if fact := pipeline.FactFor(res.Label, n); fact != "" {
		fmt.Fprintf(&sb, "\n\n💡 Fun fact: %s", fact)
	}
	return sb.String()
}

// ErrorReply turns a classification error into a user-facing message.
func ErrorReply(err error) string {
	if !pipeline.IsUserError(err) {
		return msgProcessingError
	}
	return "⚠️ " + err.Error()
}
