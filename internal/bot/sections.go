package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/medekzamen/medbot-api/internal/models"
	"github.com/medekzamen/medbot-api/internal/session"
)

// enterSection starts a browsing flow. Students jump straight to the subject
// list scoped by their own course and group; admins first pick the group and
// course they want to inspect.
func (b *Bot) enterSection(ctx context.Context, msg *tgbotapi.Message, section string, isAdmin bool) error {
	chatID := msg.Chat.ID
	state := &session.State{Section: section}

	if isAdmin {
		state.Step = session.StepSectionGroup
		if err := b.saveState(ctx, chatID, state); err != nil {
			return err
		}
		return b.sendWithKeyboard(chatID, "Для какой группы?", groupKeyboard(false))
	}

	user, err := b.users.Get(ctx, msg.From.ID)
	if err != nil || !user.Registered() {
		return b.startRegistration(ctx, chatID)
	}
	state.Course = *user.Course
	state.GroupLang = *user.GroupLang

	if section == sectionMaterials {
		state.Step = session.StepSectionType
		if err := b.saveState(ctx, chatID, state); err != nil {
			return err
		}
		return b.sendWithKeyboard(chatID, "Что вам нужно?", kindKeyboard())
	}

	state.Step = session.StepSectionSubject
	if err := b.saveState(ctx, chatID, state); err != nil {
		return err
	}
	return b.showSubjectList(chatID, state)
}

// handleSection advances the browsing state machine one step.
func (b *Bot) handleSection(ctx context.Context, msg *tgbotapi.Message, state *session.State, isAdmin bool) error {
	chatID := msg.Chat.ID

	if msg.Text == btnBack {
		return b.sectionBack(ctx, msg, state, isAdmin)
	}

	switch state.Step {
	case session.StepSectionGroup:
		group, ok := groupButtons[msg.Text]
		if !ok {
			return b.sendWithKeyboard(chatID, "Выберите группу кнопкой ниже:", groupKeyboard(false))
		}
		state.GroupLang = group
		state.Step = session.StepSectionCourse
		if err := b.saveState(ctx, chatID, state); err != nil {
			return err
		}
		return b.sendWithKeyboard(chatID, "Какой курс?", courseKeyboard(false))

	case session.StepSectionCourse:
		course, ok := parseCourse(msg.Text)
		if !ok {
			return b.sendWithKeyboard(chatID, "Выберите курс от 1 до 6:", courseKeyboard(false))
		}
		state.Course = course
		if state.Section == sectionMaterials {
			state.Step = session.StepSectionType
			if err := b.saveState(ctx, chatID, state); err != nil {
				return err
			}
			return b.sendWithKeyboard(chatID, "Что вам нужно?", kindKeyboard())
		}
		state.Step = session.StepSectionSubject
		if err := b.saveState(ctx, chatID, state); err != nil {
			return err
		}
		return b.showSubjectList(chatID, state)

	case session.StepSectionType:
		kind, ok := materialKinds[msg.Text]
		if !ok {
			return b.sendWithKeyboard(chatID, "Выберите тип кнопкой ниже:", kindKeyboard())
		}
		state.MaterialKind = kind
		state.Step = session.StepSectionSubject
		if err := b.saveState(ctx, chatID, state); err != nil {
			return err
		}
		return b.showSubjectList(chatID, state)

	case session.StepSectionSubject:
		tag, ok := b.resolveTag(state, msg.Text)
		if !ok {
			return b.showSubjectList(chatID, state)
		}
		return b.deliver(ctx, chatID, tag, state, isAdmin)
	}
	return nil
}

// sectionBack pops one level of the browsing tree.
func (b *Bot) sectionBack(ctx context.Context, msg *tgbotapi.Message, state *session.State, isAdmin bool) error {
	chatID := msg.Chat.ID

	toMainMenu := func() error {
		if err := b.sessions.Delete(ctx, chatID); err != nil {
			return err
		}
		return b.showMainMenu(chatID, isAdmin, "Главное меню:")
	}

	switch state.Step {
	case session.StepSectionGroup:
		return toMainMenu()

	case session.StepSectionCourse:
		state.Step = session.StepSectionGroup
		state.Course = 0
		if err := b.saveState(ctx, chatID, state); err != nil {
			return err
		}
		return b.sendWithKeyboard(chatID, "Для какой группы?", groupKeyboard(false))

	case session.StepSectionType:
		if !isAdmin {
			return toMainMenu()
		}
		state.Step = session.StepSectionCourse
		state.MaterialKind = ""
		if err := b.saveState(ctx, chatID, state); err != nil {
			return err
		}
		return b.sendWithKeyboard(chatID, "Какой курс?", courseKeyboard(false))

	case session.StepSectionSubject:
		if state.Section == sectionMaterials {
			state.Step = session.StepSectionType
			state.MaterialKind = ""
			if err := b.saveState(ctx, chatID, state); err != nil {
				return err
			}
			return b.sendWithKeyboard(chatID, "Что вам нужно?", kindKeyboard())
		}
		if !isAdmin {
			return toMainMenu()
		}
		state.Step = session.StepSectionCourse
		if err := b.saveState(ctx, chatID, state); err != nil {
			return err
		}
		return b.sendWithKeyboard(chatID, "Какой курс?", courseKeyboard(false))
	}
	return toMainMenu()
}

// resolveTag maps a subject-list button onto the storage tag for the current
// section.
func (b *Bot) resolveTag(state *session.State, text string) (string, bool) {
	switch state.Section {
	case sectionSummaries:
		n, ok := summarySectionByLabel(state.Course, text)
		if !ok {
			return "", false
		}
		return summaryTag(state.Course, n), true
	case sectionMaterials:
		subject, ok := subjectByName(state.Course, text)
		if !ok {
			return "", false
		}
		return materialTag(state.MaterialKind, subject.Tag), true
	default:
		subject, ok := subjectByName(state.Course, text)
		if !ok {
			return "", false
		}
		return subject.Tag, true
	}
}

func (b *Bot) showSubjectList(chatID int64, state *session.State) error {
	if state.Section == sectionSummaries {
		return b.sendWithKeyboard(chatID, "Выберите раздел:", summaryKeyboard(state.Course))
	}
	return b.sendWithKeyboard(chatID, "Выберите предмет:", subjectKeyboard(state.Course))
}

// deliver fetches and sends every material visible under the tag. The chat
// stays on the subject list so the user can pick another entry.
func (b *Bot) deliver(ctx context.Context, chatID int64, tag string, state *session.State, isAdmin bool) error {
	course := state.Course
	group := state.GroupLang
	filter := models.MaterialFilter{
		Tag:       tag,
		Course:    &course,
		GroupLang: &group,
		IsAdmin:   isAdmin,
	}

	materials, err := b.materials.ListByTag(ctx, filter)
	if err != nil {
		return err
	}
	if len(materials) == 0 {
		return b.api.SendText(chatID, "Пока здесь ничего нет.")
	}

	for _, material := range materials {
		caption := ""
		if material.Caption != nil {
			caption = stripHashtag(*material.Caption, tag)
		}
		if err := b.api.SendMaterial(chatID, material, caption); err != nil {
			b.logger.Sugar().Warnw("material send failed",
				"chat_id", chatID, "material_id", material.ID, "error", err)
		}
	}
	return nil
}
