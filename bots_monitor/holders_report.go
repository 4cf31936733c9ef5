package bots_monitor

// Telegram report for a finished holders export: summary message + the CSV as a document.

import (
	"errors"
	"fmt"
	"html"
	"os"
	"strconv"
	"strings"
	"time"

	"dog-holders/internal/features/holders"
	log "dog-holders/internal/infra/log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender is the part of *tgbotapi.BotAPI the reporter uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// RunReport describes one export run.
type RunReport struct {
	StartRank  int
	NumHolders int
	Result     *holders.Result
	CSVPath    string
	ChartPath  string // optional, sent as photo when present
	Duration   time.Duration
}

type HoldersReporter struct {
	bot    Sender
	chatID int64
}

// NewHoldersReporter connects to the Bot API with token and reports to chatID.
func NewHoldersReporter(token, chatID string) (*HoldersReporter, error) {
	id, err := parseChatID(chatID)
	if err != nil {
		return nil, err
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	log.LogInfo("Telegram bot authorized", zap.String("username", bot.Self.UserName))
	return NewHoldersReporterWithSender(bot, id), nil
}

func NewHoldersReporterWithSender(bot Sender, chatID int64) *HoldersReporter {
	return &HoldersReporter{bot: bot, chatID: chatID}
}

// Send posts the summary, then the chart and CSV when the files exist.
// A failed summary aborts; attachment failures are logged and joined into the error.
func (r *HoldersReporter) Send(report RunReport) error {
	msg := tgbotapi.NewMessage(r.chatID, formatHoldersReport(report))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := r.bot.Send(msg); err != nil {
		log.LogError("Failed to send holders report", zap.Int64("chatID", r.chatID), zap.Error(err))
		return fmt.Errorf("failed to send holders report: %w", err)
	}

	var errs []error
	if report.ChartPath != "" && fileExists(report.ChartPath) {
		photo := tgbotapi.NewPhoto(r.chatID, tgbotapi.FilePath(report.ChartPath))
		if _, err := r.bot.Send(photo); err != nil {
			log.LogWarn("Failed to send holders chart", zap.String("chartPath", report.ChartPath), zap.Error(err))
			errs = append(errs, fmt.Errorf("failed to send holders chart: %w", err))
		}
	}
	if report.CSVPath != "" && fileExists(report.CSVPath) {
		doc := tgbotapi.NewDocument(r.chatID, tgbotapi.FilePath(report.CSVPath))
		if _, err := r.bot.Send(doc); err != nil {
			log.LogWarn("Failed to send holders csv", zap.String("csvPath", report.CSVPath), zap.Error(err))
			errs = append(errs, fmt.Errorf("failed to send holders csv: %w", err))
		}
	}

	if len(errs) == 0 {
		log.LogInfo("Holders report sent", zap.Int64("chatID", r.chatID))
	}
	return errors.Join(errs...)
}

func formatHoldersReport(report RunReport) string {
	var b strings.Builder
	b.WriteString("🐕 <b>DOG holders export</b>\n\n")

	rows := 0
	if report.Result != nil {
		rows = len(report.Result.Rows)
	}
	fmt.Fprintf(&b, "Requested: %d holders from rank #%d\n", report.NumHolders, report.StartRank)
	fmt.Fprintf(&b, "Exported: %d rows\n", rows)

	if report.Result != nil {
		res := report.Result
		if rows > 0 {
			fmt.Fprintf(&b, "Ranks: #%d - #%d\n", res.Rows[0].Rank, res.Rows[rows-1].Rank)
			top := res.Rows[0]
			fmt.Fprintf(&b, "Top: <code>%s</code> %s\n", html.EscapeString(top.Address), top.Percentage)
		}
		fmt.Fprintf(&b, "Requests: %d\n", res.Attempts)
		if len(res.FailedOffsets) > 0 {
			offsets := make([]string, 0, len(res.FailedOffsets))
			for _, o := range res.FailedOffsets {
				offsets = append(offsets, strconv.Itoa(o))
			}
			fmt.Fprintf(&b, "⚠️ Failed offsets: %s\n", strings.Join(offsets, ", "))
		}
	}

	fmt.Fprintf(&b, "Duration: %s\n", report.Duration.Round(time.Second))
	return b.String()
}

func parseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram chat id %q: %w", chatID, err)
	}
	return id, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
