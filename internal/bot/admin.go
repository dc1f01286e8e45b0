package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/medekzamen/medbot-api/internal/models"
	"github.com/medekzamen/medbot-api/internal/service"
	"github.com/medekzamen/medbot-api/internal/session"
)

func (b *Bot) showAdminMenu(ctx context.Context, chatID int64) error {
	if err := b.saveState(ctx, chatID, &session.State{Step: session.StepAdminMenu}); err != nil {
		return err
	}
	return b.sendWithKeyboard(chatID, "🛠 Админ-меню:", adminKeyboard())
}

// handleAdmin advances the admin console state machine. The back button from
// any inner step returns to the admin menu.
func (b *Bot) handleAdmin(ctx context.Context, msg *tgbotapi.Message, state *session.State) error {
	chatID := msg.Chat.ID

	if msg.Text == btnBack && state.Step != session.StepAdminMenu {
		return b.showAdminMenu(ctx, chatID)
	}

	switch state.Step {
	case session.StepAdminMenu:
		return b.handleAdminMenu(ctx, msg)
	case session.StepUploadTag, session.StepUploadCourse, session.StepUploadGroup, session.StepUploadContent:
		return b.handleUpload(ctx, msg, state)
	case session.StepDeleteTag, session.StepDeleteIDs:
		return b.handleDelete(ctx, msg, state)
	case session.StepBroadcastGroup, session.StepBroadcastCourse, session.StepBroadcastMessage:
		return b.handleBroadcast(ctx, msg, state)
	}
	return nil
}

func (b *Bot) handleAdminMenu(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID

	switch msg.Text {
	case btnUpload:
		return b.startUpload(ctx, chatID, &session.State{})
	case btnDelete:
		return b.startDelete(ctx, chatID, &session.State{})
	case btnBroadcast:
		return b.startBroadcast(ctx, chatID, &session.State{})
	case btnStats:
		return b.sendStats(ctx, chatID)
	case btnBack:
		if err := b.sessions.Delete(ctx, chatID); err != nil {
			return err
		}
		return b.showMainMenu(chatID, true, "Главное меню:")
	default:
		return b.sendWithKeyboard(chatID, "Выберите действие кнопкой ниже:", adminKeyboard())
	}
}

// Upload flow: tag → course scope → group scope → content.

func (b *Bot) startUpload(ctx context.Context, chatID int64, state *session.State) error {
	state.Step = session.StepUploadTag
	if err := b.saveState(ctx, chatID, state); err != nil {
		return err
	}
	return b.api.SendText(chatID, "Введите тег для нового материала:")
}

func (b *Bot) handleUpload(ctx context.Context, msg *tgbotapi.Message, state *session.State) error {
	chatID := msg.Chat.ID

	switch state.Step {
	case session.StepUploadTag:
		tag := strings.TrimSpace(msg.Text)
		if tag == "" {
			return b.api.SendText(chatID, "Тег не может быть пустым. Введите тег:")
		}
		state.Tag = tag
		state.Step = session.StepUploadCourse
		if err := b.saveState(ctx, chatID, state); err != nil {
			return err
		}
		return b.sendWithKeyboard(chatID, "Для какого курса? («Все курсы» — без ограничения)", courseKeyboard(true))

	case session.StepUploadCourse:
		if msg.Text != btnAllCourses {
			course, ok := parseCourse(msg.Text)
			if !ok {
				return b.sendWithKeyboard(chatID, "Выберите курс кнопкой ниже:", courseKeyboard(true))
			}
			state.ScopeCourse = course
		}
		state.Step = session.StepUploadGroup
		if err := b.saveState(ctx, chatID, state); err != nil {
			return err
		}
		return b.sendWithKeyboard(chatID, "Для какой группы? («Все группы» — без ограничения)", groupKeyboard(true))

	case session.StepUploadGroup:
		if msg.Text != btnAllGroups {
			group, ok := groupButtons[msg.Text]
			if !ok {
				return b.sendWithKeyboard(chatID, "Выберите группу кнопкой ниже:", groupKeyboard(true))
			}
			state.ScopeGroup = group
		}
		state.Step = session.StepUploadContent
		if err := b.saveState(ctx, chatID, state); err != nil {
			return err
		}
		return b.api.SendText(chatID, "Отправьте материал: текст, фото, видео, документ, аудио, голосовое или GIF.")

	case session.StepUploadContent:
		material, ok := materialFromMessage(msg, state)
		if !ok {
			return b.api.SendText(chatID, "Этот тип сообщения не поддерживается. Отправьте текст, фото, видео, документ, аудио, голосовое или GIF.")
		}
		if err := b.materials.Upload(ctx, material); err != nil {
			return err
		}
		if err := b.saveState(ctx, chatID, &session.State{Step: session.StepAdminMenu}); err != nil {
			return err
		}
		confirmation := fmt.Sprintf("✅ Сохранено (id %d, тег #%s).", material.ID, material.Tag)
		return b.sendWithKeyboard(chatID, confirmation, adminKeyboard())
	}
	return nil
}

// materialFromMessage classifies an incoming admin message into a material
// row, carrying the upload scope from the conversation state.
func materialFromMessage(msg *tgbotapi.Message, state *session.State) (*models.Material, bool) {
	material := &models.Material{Tag: state.Tag}
	if state.ScopeCourse != 0 {
		course := state.ScopeCourse
		material.Course = &course
	}
	if state.ScopeGroup != "" {
		group := state.ScopeGroup
		material.GroupLang = &group
	}

	setCaption := func(caption string) {
		if caption != "" {
			material.Caption = &caption
		}
	}

	switch {
	case msg.Document != nil:
		material.Type = models.MaterialDocument
		material.FileID = &msg.Document.FileID
		if msg.Document.FileName != "" {
			material.FileName = &msg.Document.FileName
		}
		setCaption(msg.Caption)
	case len(msg.Photo) > 0:
		material.Type = models.MaterialPhoto
		// Telegram lists photo sizes smallest first.
		fileID := msg.Photo[len(msg.Photo)-1].FileID
		material.FileID = &fileID
		setCaption(msg.Caption)
	case msg.Video != nil:
		material.Type = models.MaterialVideo
		material.FileID = &msg.Video.FileID
		if msg.Video.FileName != "" {
			material.FileName = &msg.Video.FileName
		}
		setCaption(msg.Caption)
	case msg.Audio != nil:
		material.Type = models.MaterialAudio
		material.FileID = &msg.Audio.FileID
		if msg.Audio.FileName != "" {
			material.FileName = &msg.Audio.FileName
		}
		setCaption(msg.Caption)
	case msg.Voice != nil:
		material.Type = models.MaterialVoice
		material.FileID = &msg.Voice.FileID
		setCaption(msg.Caption)
	case msg.Animation != nil:
		material.Type = models.MaterialAnimation
		material.FileID = &msg.Animation.FileID
		if msg.Animation.FileName != "" {
			material.FileName = &msg.Animation.FileName
		}
		setCaption(msg.Caption)
	case msg.Text != "":
		material.Type = models.MaterialText
		setCaption(msg.Text)
	default:
		return nil, false
	}
	return material, true
}

// Delete flow: tag → review listing → id selection.

func (b *Bot) startDelete(ctx context.Context, chatID int64, state *session.State) error {
	state.Step = session.StepDeleteTag
	if err := b.saveState(ctx, chatID, state); err != nil {
		return err
	}
	return b.api.SendText(chatID, "Введите тег для просмотра материалов:")
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message, state *session.State) error {
	chatID := msg.Chat.ID

	switch state.Step {
	case session.StepDeleteTag:
		tag := strings.TrimSpace(msg.Text)
		if tag == "" {
			return b.api.SendText(chatID, "Тег не может быть пустым. Введите тег:")
		}

		materials, err := b.materials.ListForReview(ctx, tag)
		if err != nil {
			return err
		}
		if len(materials) == 0 {
			return b.api.SendText(chatID, fmt.Sprintf("По тегу #%s ничего не найдено. Введите другой тег:", tag))
		}

		state.Tag = tag
		state.Step = session.StepDeleteIDs
		if err := b.saveState(ctx, chatID, state); err != nil {
			return err
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Материалы #%s:\n\n", tag)
		for _, m := range materials {
			fmt.Fprintf(&sb, "%d. [%s] %s\n", m.ID, m.Type, materialTitle(m))
		}
		sb.WriteString("\nОтправьте id для удаления через пробел, либо «все» для удаления всех.")
		return b.api.SendText(chatID, sb.String())

	case session.StepDeleteIDs:
		if deleteAllToken(msg.Text) {
			count, err := b.materials.DeleteAll(ctx, state.Tag)
			if err != nil {
				return err
			}
			if err := b.saveState(ctx, chatID, &session.State{Step: session.StepAdminMenu}); err != nil {
				return err
			}
			return b.sendWithKeyboard(chatID, fmt.Sprintf("🗑 Удалено материалов: %d.", count), adminKeyboard())
		}

		ids, bad := parseIDList(msg.Text)
		if len(bad) > 0 {
			return b.api.SendText(chatID, fmt.Sprintf("Не похоже на id: %s. Отправьте числа через пробел или «все».", strings.Join(bad, ", ")))
		}
		if len(ids) == 0 {
			return b.api.SendText(chatID, "Отправьте id через пробел, либо «все».")
		}

		deleted, missing, err := b.materials.DeleteMany(ctx, ids)
		if err != nil {
			return err
		}
		if err := b.saveState(ctx, chatID, &session.State{Step: session.StepAdminMenu}); err != nil {
			return err
		}

		report := fmt.Sprintf("🗑 Удалено: %d.", len(deleted))
		if len(missing) > 0 {
			report += fmt.Sprintf(" Не найдено: %s.", joinIDs(missing))
		}
		return b.sendWithKeyboard(chatID, report, adminKeyboard())
	}
	return nil
}

func materialTitle(m models.Material) string {
	if m.FileName != nil && *m.FileName != "" {
		return *m.FileName
	}
	if m.Caption != nil && *m.Caption != "" {
		caption := *m.Caption
		if len([]rune(caption)) > 40 {
			caption = string([]rune(caption)[:40]) + "…"
		}
		return caption
	}
	return "без названия"
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ", ")
}

// Broadcast flow: group scope → course scope → message.

func (b *Bot) startBroadcast(ctx context.Context, chatID int64, state *session.State) error {
	state.Step = session.StepBroadcastGroup
	if err := b.saveState(ctx, chatID, state); err != nil {
		return err
	}
	return b.sendWithKeyboard(chatID, "Кому отправить? Выберите группу:", groupKeyboard(true))
}

func (b *Bot) handleBroadcast(ctx context.Context, msg *tgbotapi.Message, state *session.State) error {
	chatID := msg.Chat.ID

	switch state.Step {
	case session.StepBroadcastGroup:
		if msg.Text != btnAllGroups {
			group, ok := groupButtons[msg.Text]
			if !ok {
				return b.sendWithKeyboard(chatID, "Выберите группу кнопкой ниже:", groupKeyboard(true))
			}
			state.BroadcastGroup = group
		}
		state.Step = session.StepBroadcastCourse
		if err := b.saveState(ctx, chatID, state); err != nil {
			return err
		}
		return b.sendWithKeyboard(chatID, "Какой курс?", courseKeyboard(true))

	case session.StepBroadcastCourse:
		if msg.Text != btnAllCourses {
			course, ok := parseCourse(msg.Text)
			if !ok {
				return b.sendWithKeyboard(chatID, "Выберите курс кнопкой ниже:", courseKeyboard(true))
			}
			state.BroadcastCourse = course
		}
		state.Step = session.StepBroadcastMessage
		if err := b.saveState(ctx, chatID, state); err != nil {
			return err
		}
		return b.api.SendText(chatID, "Отправьте сообщение для рассылки (любой тип):")

	case session.StepBroadcastMessage:
		var filter models.AudienceFilter
		if state.BroadcastCourse != 0 {
			course := state.BroadcastCourse
			filter.Course = &course
		}
		if state.BroadcastGroup != "" {
			group := state.BroadcastGroup
			filter.GroupLang = &group
		}

		if err := b.broadcasts.Enqueue(service.BroadcastRequest{
			AdminChatID: chatID,
			FromChatID:  chatID,
			MessageID:   msg.MessageID,
			Filter:      filter,
		}); err != nil {
			return err
		}
		if err := b.saveState(ctx, chatID, &session.State{Step: session.StepAdminMenu}); err != nil {
			return err
		}
		return b.sendWithKeyboard(chatID, "📢 Рассылка запущена. Итог придёт отдельным сообщением.", adminKeyboard())
	}
	return nil
}
