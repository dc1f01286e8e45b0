package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/medekzamen/medbot-api/internal/models"
	"github.com/medekzamen/medbot-api/internal/service"
	"github.com/medekzamen/medbot-api/internal/session"
)

func (b *Bot) startRegistration(ctx context.Context, chatID int64) error {
	if err := b.saveState(ctx, chatID, &session.State{Step: session.StepAwaitingCourse}); err != nil {
		return err
	}
	return b.sendWithKeyboard(chatID, "Добро пожаловать! На каком курсе вы учитесь?", courseKeyboard(false))
}

// handleRegistration walks course → group → confirmation. Unmatched input
// re-prompts the current step without advancing.
func (b *Bot) handleRegistration(ctx context.Context, msg *tgbotapi.Message, state *session.State, isAdmin bool) error {
	chatID := msg.Chat.ID

	switch state.Step {
	case session.StepAwaitingCourse:
		course, ok := parseCourse(msg.Text)
		if !ok {
			return b.sendWithKeyboard(chatID, "Выберите курс от 1 до 6:", courseKeyboard(false))
		}
		state.DraftCourse = course
		state.Step = session.StepAwaitingGroup
		if err := b.saveState(ctx, chatID, state); err != nil {
			return err
		}
		return b.sendWithKeyboard(chatID, "Выберите вашу группу:", groupKeyboard(false))

	case session.StepAwaitingGroup:
		group, ok := groupButtons[msg.Text]
		if !ok {
			return b.sendWithKeyboard(chatID, "Выберите группу кнопкой ниже:", groupKeyboard(false))
		}
		state.DraftGroup = group
		state.Step = session.StepAwaitingConfirmation
		if err := b.saveState(ctx, chatID, state); err != nil {
			return err
		}
		summary := fmt.Sprintf("Курс: %d\nГруппа: %s\n\nВсё верно?", state.DraftCourse, groupLabel(group))
		return b.sendWithKeyboard(chatID, summary, confirmKeyboard())

	case session.StepAwaitingConfirmation:
		switch msg.Text {
		case btnYes:
			_, err := b.users.Register(ctx, service.RegisterRequest{
				UserID:    msg.From.ID,
				Username:  username(msg),
				FullName:  fullName(msg),
				Course:    state.DraftCourse,
				GroupLang: string(state.DraftGroup),
			})
			if err != nil {
				return err
			}
			if err := b.sessions.Delete(ctx, chatID); err != nil {
				return err
			}
			return b.showMainMenu(chatID, isAdmin, "Регистрация завершена! Выберите раздел:")
		case btnNo:
			state.Step = session.StepAwaitingCourse
			state.DraftCourse = 0
			state.DraftGroup = ""
			if err := b.saveState(ctx, chatID, state); err != nil {
				return err
			}
			return b.sendWithKeyboard(chatID, "Начнём заново. На каком курсе вы учитесь?", courseKeyboard(false))
		default:
			return b.sendWithKeyboard(chatID, "Ответьте кнопкой ниже:", confirmKeyboard())
		}
	}
	return nil
}

func groupLabel(group models.GroupLang) string {
	switch group {
	case models.GroupRussian:
		return btnGroupRu
	case models.GroupTajik:
		return btnGroupTj
	}
	return string(group)
}
