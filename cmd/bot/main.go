// cmd/bot/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"golang.org/x/text/encoding/charmap"

	"favorites-tracker/internal/config"
	"favorites-tracker/internal/domain"
	"favorites-tracker/internal/storage/sqlite"
	"favorites-tracker/internal/tracker"
	"favorites-tracker/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	logging.Setup()

	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		slog.Error("TELEGRAM_BOT_TOKEN not set")
		os.Exit(1)
	}

	cfg := config.MustLoad()
	store, err := sqlite.New(cfg.SQLitePath)
	if err != nil {
		slog.Error("Failed to open store", "path", cfg.SQLitePath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	t := tracker.New(context.Background(), store)

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		slog.Error("Failed to start Telegram bot", "error", err)
		os.Exit(1)
	}
	slog.Info("Bot started", "username", bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		chatID := update.Message.Chat.ID
		text := strings.TrimSpace(fixEncoding(update.Message.Text))
		slog.Info("Message received", "chat_id", chatID, "text", text)

		msg := tgbotapi.NewMessage(chatID, dispatch(t, text))
		msg.ParseMode = "Markdown"
		if _, err := bot.Send(msg); err != nil {
			slog.Error("Failed to send reply", "chat_id", chatID, "error", err)
		}
	}
}

func dispatch(t *tracker.Tracker, text string) string {
	ctx := context.Background()

	switch {
	case text == "/start" || text == "/help":
		return "⭐ *Favorites tracker*\n\n" +
			"Commands:\n" +
			"`/people` — list active people\n" +
			"`/categories` — list active categories\n" +
			"`/addperson Mia` — add a person\n" +
			"`/addcategory Board game` — add a category\n" +
			"`/set Candy | Mia | Gummy bears` — set a favorite\n" +
			"`/fav Candy` — show one category's favorites\n" +
			"`/pick_person`, `/pick_category`, `/pick_fav` — random pick\n" +
			"`/export` — dump a backup document"

	case text == "/people":
		return renderPeople(t)

	case text == "/categories":
		return renderCategories(t)

	case strings.HasPrefix(text, "/addperson "):
		name := strings.TrimSpace(strings.TrimPrefix(text, "/addperson "))
		if name == "" {
			return "❌ Usage: /addperson Name"
		}
		p := t.AddPerson(ctx, name)
		return fmt.Sprintf("✅ Added *%s*", p.Name)

	case strings.HasPrefix(text, "/addcategory "):
		name := strings.TrimSpace(strings.TrimPrefix(text, "/addcategory "))
		if name == "" {
			return "❌ Usage: /addcategory Name"
		}
		c := t.AddCategory(ctx, name)
		return fmt.Sprintf("✅ Added *%s*", c.Name)

	case strings.HasPrefix(text, "/set "):
		return handleSet(t, strings.TrimPrefix(text, "/set "))

	case strings.HasPrefix(text, "/fav "):
		return renderCategoryColumn(t, strings.TrimSpace(strings.TrimPrefix(text, "/fav ")))

	case text == "/pick_person":
		p, err := t.PickRandomPerson()
		if err != nil {
			return "📭 No active people to pick from"
		}
		return fmt.Sprintf("🎲 *%s*", p.Name)

	case text == "/pick_category":
		c, err := t.PickRandomCategory()
		if err != nil {
			return "📭 No active categories to pick from"
		}
		return fmt.Sprintf("🎲 *%s*", c.Name)

	case text == "/pick_fav":
		fav, err := t.PickRandomFilledFavorite()
		if err != nil {
			return "📭 No filled favorites to pick from"
		}
		return fmt.Sprintf("🎲 *%s*: %s — %s", fav.Person.Name, fav.Category.Name, fav.Value)

	case text == "/export":
		return handleExport(t, ctx)

	default:
		return "Unknown command. Try /help"
	}
}

// handleSet parses "Category | Person | value". Names match case-insensitively
// against active entities; the value may be empty to clear an entry.
func handleSet(t *tracker.Tracker, input string) string {
	parts := strings.SplitN(input, "|", 3)
	if len(parts) < 3 {
		return "❌ Usage: /set Category | Person | value"
	}
	catName := strings.TrimSpace(parts[0])
	personName := strings.TrimSpace(parts[1])
	value := strings.TrimSpace(parts[2])

	cat, ok := findCategory(t, catName)
	if !ok {
		return fmt.Sprintf("📭 No active category named *%s*", catName)
	}
	person, ok := findPerson(t, personName)
	if !ok {
		return fmt.Sprintf("📭 No active person named *%s*", personName)
	}

	t.SetFavorite(context.Background(), cat.ID, person.ID, value)
	if value == "" {
		return fmt.Sprintf("✅ Cleared %s's %s favorite", person.Name, cat.Name)
	}
	return fmt.Sprintf("✅ %s's %s favorite is now *%s*", person.Name, cat.Name, value)
}

func handleExport(t *tracker.Tracker, ctx context.Context) string {
	snap := t.ExportSnapshot()
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "❌ Export failed: " + err.Error()
	}
	t.MarkBackedUp(ctx)
	// Telegram is the manual-copy path: the document is shown for the user
	// to copy and keep.
	return "📋 Copy and keep this backup:\n```\n" + string(raw) + "\n```"
}

func renderPeople(t *tracker.Tracker) string {
	people := t.ActivePeople()
	if len(people) == 0 {
		return "📭 No people yet. Add one with /addperson"
	}
	lines := []string{"👤 *People*"}
	for _, p := range people {
		lines = append(lines, "- "+p.Name)
	}
	return strings.Join(lines, "\n")
}

func renderCategories(t *tracker.Tracker) string {
	categories := t.ActiveCategories()
	if len(categories) == 0 {
		return "📭 No categories yet. Add one with /addcategory"
	}
	selected, hasSelected := t.SelectedCategory()
	lines := []string{"🗂 *Categories*"}
	for _, c := range categories {
		marker := "-"
		if hasSelected && c.ID == selected.ID {
			marker = "▶"
		}
		lines = append(lines, fmt.Sprintf("%s %s", marker, c.Name))
	}
	return strings.Join(lines, "\n")
}

func renderCategoryColumn(t *tracker.Tracker, catName string) string {
	cat, ok := findCategory(t, catName)
	if !ok {
		return fmt.Sprintf("📭 No active category named *%s*", catName)
	}

	column := t.FavoritesFor(cat.ID)
	lines := []string{fmt.Sprintf("⭐ *%s*", cat.Name)}
	for _, p := range t.ActivePeople() {
		value, ok := column[p.ID]
		if !ok || strings.TrimSpace(value) == "" {
			lines = append(lines, fmt.Sprintf("- %s: —", p.Name))
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", p.Name, value))
	}
	if len(lines) == 1 {
		return fmt.Sprintf("📭 No people to show for *%s*", cat.Name)
	}
	return strings.Join(lines, "\n")
}

func findCategory(t *tracker.Tracker, name string) (domain.Category, bool) {
	for _, c := range t.ActiveCategories() {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return domain.Category{}, false
}

func findPerson(t *tracker.Tracker, name string) (domain.Person, bool) {
	for _, p := range t.ActivePeople() {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return domain.Person{}, false
}

// fixEncoding recovers text some clients deliver as windows-1251.
func fixEncoding(s string) string {
	if utf8.ValidString(s) {
		return s
	}

	decoder := charmap.Windows1251.NewDecoder()
	fixed, err := decoder.String(s)
	if err == nil && utf8.ValidString(fixed) {
		return fixed
	}

	return strings.ToValidUTF8(s, "")
}
