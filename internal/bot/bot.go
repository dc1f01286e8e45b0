package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/medekzamen/medbot-api/internal/models"
	"github.com/medekzamen/medbot-api/internal/service"
	"github.com/medekzamen/medbot-api/internal/session"
	"github.com/medekzamen/medbot-api/internal/telegram"
)

// messenger is the outbound surface the conversation handlers use.
type messenger interface {
	Send(msg tgbotapi.Chattable) error
	SendText(chatID int64, text string) error
	SendMaterial(chatID int64, material models.Material, caption string) error
}

// Bot drives the long-polling conversation frontend: registration, material
// browsing and the admin console, all as a keyboard-button state machine over
// the session store.
type Bot struct {
	client     *telegram.Client
	api        messenger
	sessions   session.Store
	users      *service.UserService
	materials  *service.MaterialService
	broadcasts *service.BroadcastService
	admins     map[int64]bool
	logger     *zap.Logger
}

// Deps collects everything the bot needs.
type Deps struct {
	Client     *telegram.Client
	Sessions   session.Store
	Users      *service.UserService
	Materials  *service.MaterialService
	Broadcasts *service.BroadcastService
	AdminIDs   []int64
	Logger     *zap.Logger
}

// New wires the bot.
func New(deps Deps) *Bot {
	admins := make(map[int64]bool, len(deps.AdminIDs))
	for _, id := range deps.AdminIDs {
		admins[id] = true
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		client:     deps.Client,
		api:        deps.Client,
		sessions:   deps.Sessions,
		users:      deps.Users,
		materials:  deps.Materials,
		broadcasts: deps.Broadcasts,
		admins:     admins,
		logger:     logger,
	}
}

// Run consumes updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context, pollTimeout int) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout

	updates := b.client.API().GetUpdatesChan(cfg)
	b.logger.Sugar().Infow("bot started", "username", b.client.Self())

	for {
		select {
		case <-ctx.Done():
			b.client.API().StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate dispatches one incoming update through the state machine.
// Handler errors are logged, never propagated: a broken update must not stop
// the poll loop.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	chatID := msg.Chat.ID
	isAdmin := b.admins[msg.From.ID]

	state, err := b.sessions.Get(ctx, chatID)
	if err != nil {
		b.logger.Sugar().Warnw("session load failed", "chat_id", chatID, "error", err)
		state = &session.State{}
	}

	if msg.IsCommand() {
		err = b.handleCommand(ctx, msg, state, isAdmin)
	} else {
		err = b.handleMessage(ctx, msg, state, isAdmin)
	}
	if err != nil {
		b.logger.Sugar().Errorw("update handling failed",
			"chat_id", chatID, "step", state.Step, "error", err)
		_ = b.api.SendText(chatID, "Произошла ошибка, попробуйте ещё раз.")
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, state *session.State, isAdmin bool) error {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg, isAdmin)
	case "cancel":
		if err := b.sessions.Delete(ctx, chatID); err != nil {
			return err
		}
		return b.showMainMenuOrRegister(ctx, msg, isAdmin)
	case "admin_menu":
		if !isAdmin {
			return b.api.SendText(chatID, "Команда не распознана.")
		}
		return b.showAdminMenu(ctx, chatID)
	case "admin_stats":
		if !isAdmin {
			return b.api.SendText(chatID, "Команда не распознана.")
		}
		return b.sendStats(ctx, chatID)
	case "admin_materials":
		if !isAdmin {
			return b.api.SendText(chatID, "Команда не распознана.")
		}
		return b.startDelete(ctx, chatID, state)
	case "broadcast":
		if !isAdmin {
			return b.api.SendText(chatID, "Команда не распознана.")
		}
		return b.startBroadcast(ctx, chatID, state)
	default:
		return b.api.SendText(chatID, "Команда не распознана.")
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message, state *session.State, isAdmin bool) error {
	switch state.Step {
	case session.StepAwaitingCourse, session.StepAwaitingGroup, session.StepAwaitingConfirmation:
		return b.handleRegistration(ctx, msg, state, isAdmin)
	case session.StepSectionGroup, session.StepSectionCourse, session.StepSectionType, session.StepSectionSubject:
		return b.handleSection(ctx, msg, state, isAdmin)
	case session.StepAdminMenu,
		session.StepUploadTag, session.StepUploadCourse, session.StepUploadGroup, session.StepUploadContent,
		session.StepDeleteTag, session.StepDeleteIDs,
		session.StepBroadcastGroup, session.StepBroadcastCourse, session.StepBroadcastMessage:
		if !isAdmin {
			// Demoted mid-conversation; drop the stale admin state.
			if err := b.sessions.Delete(ctx, msg.Chat.ID); err != nil {
				return err
			}
			return b.showMainMenuOrRegister(ctx, msg, false)
		}
		return b.handleAdmin(ctx, msg, state)
	default:
		return b.handleMainMenu(ctx, msg, isAdmin)
	}
}

// handleStart greets the user: admins and registered students land on the
// main menu, everyone else enters the registration flow.
func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message, isAdmin bool) error {
	chatID := msg.Chat.ID
	if err := b.sessions.Delete(ctx, chatID); err != nil {
		return err
	}

	if isAdmin {
		if _, err := b.users.EnsureAdmin(ctx, msg.From.ID, username(msg), fullName(msg)); err != nil {
			return err
		}
		return b.showMainMenu(chatID, true, "Добро пожаловать! Выберите раздел:")
	}

	user, err := b.users.Get(ctx, msg.From.ID)
	if err == nil && user.Registered() {
		return b.showMainMenu(chatID, false, "С возвращением! Выберите раздел:")
	}
	return b.startRegistration(ctx, chatID)
}

func (b *Bot) showMainMenuOrRegister(ctx context.Context, msg *tgbotapi.Message, isAdmin bool) error {
	if isAdmin {
		return b.showMainMenu(msg.Chat.ID, true, "Главное меню:")
	}
	user, err := b.users.Get(ctx, msg.From.ID)
	if err == nil && user.Registered() {
		return b.showMainMenu(msg.Chat.ID, false, "Главное меню:")
	}
	return b.startRegistration(ctx, msg.Chat.ID)
}

func (b *Bot) showMainMenu(chatID int64, isAdmin bool, text string) error {
	reply := tgbotapi.NewMessage(chatID, text)
	reply.ReplyMarkup = mainMenuKeyboard(isAdmin)
	return b.api.Send(reply)
}

// handleMainMenu routes top-level menu buttons when no flow is active.
func (b *Bot) handleMainMenu(ctx context.Context, msg *tgbotapi.Message, isAdmin bool) error {
	chatID := msg.Chat.ID

	var section string
	switch msg.Text {
	case btnExams:
		section = sectionExams
	case btnSummaries:
		section = sectionSummaries
	case btnMaterials:
		section = sectionMaterials
	case btnAdminMenu:
		if isAdmin {
			return b.showAdminMenu(ctx, chatID)
		}
		return b.showMainMenu(chatID, false, "Выберите пункт меню:")
	default:
		return b.showMainMenuOrRegister(ctx, msg, isAdmin)
	}

	return b.enterSection(ctx, msg, section, isAdmin)
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, keyboard tgbotapi.ReplyKeyboardMarkup) error {
	reply := tgbotapi.NewMessage(chatID, text)
	reply.ReplyMarkup = keyboard
	return b.api.Send(reply)
}

func (b *Bot) saveState(ctx context.Context, chatID int64, state *session.State) error {
	return b.sessions.Set(ctx, chatID, state)
}

func (b *Bot) sendStats(ctx context.Context, chatID int64) error {
	stats, err := b.users.Stats(ctx)
	if err != nil {
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Статистика\n\nПользователей: %d\nМатериалов: %d\n\nПо курсам:\n", stats.Total, stats.Materials)
	for c := models.MinCourse; c <= models.MaxCourse; c++ {
		fmt.Fprintf(&sb, "  %d курс: %d\n", c, stats.ByCourse[c])
	}
	sb.WriteString("\nПо группам:\n")
	fmt.Fprintf(&sb, "  Русская: %d\n  Таджикская: %d\n",
		stats.ByGroup[models.GroupRussian], stats.ByGroup[models.GroupTajik])
	return b.api.SendText(chatID, sb.String())
}

func username(msg *tgbotapi.Message) *string {
	if msg.From.UserName == "" {
		return nil
	}
	name := msg.From.UserName
	return &name
}

func fullName(msg *tgbotapi.Message) string {
	name := msg.From.FirstName
	if msg.From.LastName != "" {
		name += " " + msg.From.LastName
	}
	return name
}
