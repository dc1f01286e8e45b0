package bot

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medekzamen/medbot-api/internal/models"
	"github.com/medekzamen/medbot-api/internal/service"
	"github.com/medekzamen/medbot-api/internal/session"
)

type delivered struct {
	chatID   int64
	material models.Material
	caption  string
}

// fakeAPI records everything the bot sends. It doubles as the broadcast
// Sender.
type fakeAPI struct {
	mu        sync.Mutex
	texts     []string
	delivered []delivered
	copies    []int64
}

func (f *fakeAPI) Send(msg tgbotapi.Chattable) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := msg.(tgbotapi.MessageConfig); ok {
		f.texts = append(f.texts, m.Text)
	}
	return nil
}

func (f *fakeAPI) SendText(chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeAPI) SendMaterial(chatID int64, material models.Material, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, delivered{chatID: chatID, material: material, caption: caption})
	return nil
}

func (f *fakeAPI) CopyMessage(toChatID, fromChatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copies = append(f.copies, toChatID)
	return nil
}

func (f *fakeAPI) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

func (f *fakeAPI) allTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakeUserRepo struct {
	users    map[int64]*models.User
	audience []int64
}

func (r *fakeUserRepo) FindByID(ctx context.Context, userID int64) (*models.User, error) {
	if user, ok := r.users[userID]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *fakeUserRepo) Upsert(ctx context.Context, user *models.User) error {
	copy := *user
	r.users[user.UserID] = &copy
	return nil
}

func (r *fakeUserRepo) ListByAudience(ctx context.Context, filter models.AudienceFilter) ([]int64, error) {
	return r.audience, nil
}

func (r *fakeUserRepo) Stats(ctx context.Context) (*models.UserStats, error) {
	return &models.UserStats{
		Total:    len(r.users),
		ByCourse: map[int]int{},
		ByGroup:  map[models.GroupLang]int{},
	}, nil
}

type fakeMaterialRepo struct {
	materials  []models.Material
	lastFilter models.MaterialFilter
	byID       map[int64]*models.Material
	inserted   []*models.Material
	deletedTag string
}

func (r *fakeMaterialRepo) ListByTag(ctx context.Context, filter models.MaterialFilter) ([]models.Material, error) {
	r.lastFilter = filter
	return r.materials, nil
}

func (r *fakeMaterialRepo) ListForReview(ctx context.Context, tag string) ([]models.Material, error) {
	var out []models.Material
	for _, m := range r.byID {
		if m.Tag == tag {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *fakeMaterialRepo) ListFiles(ctx context.Context, tag string, course *int, limit int) ([]models.Material, error) {
	return nil, nil
}

func (r *fakeMaterialRepo) GetByID(ctx context.Context, id int64) (*models.Material, error) {
	if m, ok := r.byID[id]; ok {
		return m, nil
	}
	return nil, sql.ErrNoRows
}

func (r *fakeMaterialRepo) Insert(ctx context.Context, material *models.Material) error {
	material.ID = int64(len(r.inserted) + 1)
	r.inserted = append(r.inserted, material)
	return nil
}

func (r *fakeMaterialRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.byID[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.byID, id)
	return nil
}

func (r *fakeMaterialRepo) DeleteByTag(ctx context.Context, tag string) (int64, error) {
	r.deletedTag = tag
	var count int64
	for id, m := range r.byID {
		if m.Tag == tag {
			delete(r.byID, id)
			count++
		}
	}
	return count, nil
}

func (r *fakeMaterialRepo) Ping(ctx context.Context) error { return nil }

type testEnv struct {
	bot        *Bot
	api        *fakeAPI
	users      *fakeUserRepo
	materials  *fakeMaterialRepo
	broadcasts *service.BroadcastService
	sessions   session.Store
}

func newTestEnv(adminIDs ...int64) *testEnv {
	api := &fakeAPI{}
	userRepo := &fakeUserRepo{users: map[int64]*models.User{}}
	matRepo := &fakeMaterialRepo{byID: map[int64]*models.Material{}}
	broadcasts := service.NewBroadcastService(userRepo, api, 0, zap.NewNop())
	sessions := session.NewMemoryStore()

	admins := make(map[int64]bool)
	for _, id := range adminIDs {
		admins[id] = true
	}

	b := &Bot{
		api:        api,
		sessions:   sessions,
		users:      service.NewUserService(userRepo, validator.New(), zap.NewNop()),
		materials:  service.NewMaterialService(matRepo, nil, 1, zap.NewNop()),
		broadcasts: broadcasts,
		admins:     admins,
		logger:     zap.NewNop(),
	}
	return &testEnv{bot: b, api: api, users: userRepo, materials: matRepo, broadcasts: broadcasts, sessions: sessions}
}

func textUpdate(chatID, userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 10,
		From:      &tgbotapi.User{ID: userID, FirstName: "Test"},
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      text,
	}}
}

func commandUpdate(chatID, userID int64, command string) tgbotapi.Update {
	update := textUpdate(chatID, userID, "/"+command)
	update.Message.Entities = []tgbotapi.MessageEntity{
		{Type: "bot_command", Offset: 0, Length: len(command) + 1},
	}
	return update
}

func (e *testEnv) send(t *testing.T, update tgbotapi.Update) {
	t.Helper()
	e.bot.HandleUpdate(context.Background(), update)
}

func (e *testEnv) step(t *testing.T, chatID int64) session.Step {
	t.Helper()
	state, err := e.sessions.Get(context.Background(), chatID)
	require.NoError(t, err)
	return state.Step
}

func registerStudent(env *testEnv, userID int64, course int, group models.GroupLang) {
	env.users.users[userID] = &models.User{
		UserID:    userID,
		FullName:  "Test Student",
		Course:    &course,
		GroupLang: &group,
	}
}

func TestRegistrationFlow(t *testing.T) {
	env := newTestEnv()

	env.send(t, commandUpdate(42, 42, "start"))
	assert.Equal(t, session.StepAwaitingCourse, env.step(t, 42))

	env.send(t, textUpdate(42, 42, "3"))
	assert.Equal(t, session.StepAwaitingGroup, env.step(t, 42))

	env.send(t, textUpdate(42, 42, btnGroupRu))
	assert.Equal(t, session.StepAwaitingConfirmation, env.step(t, 42))
	assert.Contains(t, env.api.lastText(), "Курс: 3")

	env.send(t, textUpdate(42, 42, btnYes))
	assert.Equal(t, session.StepNone, env.step(t, 42))

	user := env.users.users[42]
	require.NotNil(t, user)
	assert.Equal(t, 3, *user.Course)
	assert.Equal(t, models.GroupRussian, *user.GroupLang)
}

func TestRegistrationRejectsInvalidCourse(t *testing.T) {
	env := newTestEnv()

	env.send(t, commandUpdate(42, 42, "start"))
	env.send(t, textUpdate(42, 42, "девятый"))

	assert.Equal(t, session.StepAwaitingCourse, env.step(t, 42))
	assert.Contains(t, env.api.lastText(), "от 1 до 6")
}

func TestRegistrationRestartOnDecline(t *testing.T) {
	env := newTestEnv()

	env.send(t, commandUpdate(42, 42, "start"))
	env.send(t, textUpdate(42, 42, "2"))
	env.send(t, textUpdate(42, 42, btnGroupTj))
	env.send(t, textUpdate(42, 42, btnNo))

	assert.Equal(t, session.StepAwaitingCourse, env.step(t, 42))
	assert.Empty(t, env.users.users)
}

func TestStudentBrowsesExamSubjects(t *testing.T) {
	env := newTestEnv()
	registerStudent(env, 42, 2, models.GroupRussian)

	caption := "Билеты #physio2"
	env.materials.materials = []models.Material{
		{ID: 1, Tag: "physio2", Type: models.MaterialDocument, FileID: strptr("f1"), Caption: &caption},
	}

	env.send(t, textUpdate(42, 42, btnExams))
	assert.Equal(t, session.StepSectionSubject, env.step(t, 42))

	env.send(t, textUpdate(42, 42, "Физиология"))

	require.Len(t, env.api.delivered, 1)
	assert.Equal(t, "Билеты", env.api.delivered[0].caption)

	filter := env.materials.lastFilter
	assert.Equal(t, "physio2", filter.Tag)
	assert.False(t, filter.IsAdmin)
	require.NotNil(t, filter.Course)
	assert.Equal(t, 2, *filter.Course)
	require.NotNil(t, filter.GroupLang)
	assert.Equal(t, models.GroupRussian, *filter.GroupLang)
}

func TestStudentMaterialsSectionBuildsTypedTag(t *testing.T) {
	env := newTestEnv()
	registerStudent(env, 42, 2, models.GroupTajik)

	env.send(t, textUpdate(42, 42, btnMaterials))
	assert.Equal(t, session.StepSectionType, env.step(t, 42))

	env.send(t, textUpdate(42, 42, btnKindLectures))
	assert.Equal(t, session.StepSectionSubject, env.step(t, 42))

	env.send(t, textUpdate(42, 42, "Физиология"))
	assert.Equal(t, "lecture_physio2", env.materials.lastFilter.Tag)
}

func TestAdminPicksGroupAndCourseBeforeSubjects(t *testing.T) {
	env := newTestEnv(7)

	env.send(t, textUpdate(7, 7, btnExams))
	assert.Equal(t, session.StepSectionGroup, env.step(t, 7))

	env.send(t, textUpdate(7, 7, btnGroupTj))
	assert.Equal(t, session.StepSectionCourse, env.step(t, 7))

	env.send(t, textUpdate(7, 7, "5"))
	assert.Equal(t, session.StepSectionSubject, env.step(t, 7))

	env.send(t, textUpdate(7, 7, "Неврология"))

	filter := env.materials.lastFilter
	assert.Equal(t, "neuro5", filter.Tag)
	assert.True(t, filter.IsAdmin)
	require.NotNil(t, filter.GroupLang)
	assert.Equal(t, models.GroupTajik, *filter.GroupLang)
}

func TestAdminUploadTextMaterial(t *testing.T) {
	env := newTestEnv(7)

	env.send(t, commandUpdate(7, 7, "admin_menu"))
	env.send(t, textUpdate(7, 7, btnUpload))
	env.send(t, textUpdate(7, 7, "chem1"))
	env.send(t, textUpdate(7, 7, btnAllCourses))
	env.send(t, textUpdate(7, 7, btnGroupRu))
	env.send(t, textUpdate(7, 7, "Формулы к экзамену"))

	require.Len(t, env.materials.inserted, 1)
	material := env.materials.inserted[0]
	assert.Equal(t, "chem1", material.Tag)
	assert.Equal(t, models.MaterialText, material.Type)
	assert.Nil(t, material.Course)
	require.NotNil(t, material.GroupLang)
	assert.Equal(t, models.GroupRussian, *material.GroupLang)
	require.NotNil(t, material.Caption)
	assert.Equal(t, "Формулы к экзамену", *material.Caption)

	assert.Equal(t, session.StepAdminMenu, env.step(t, 7))
	assert.Contains(t, env.api.lastText(), "Сохранено")
}

func TestAdminUploadDocument(t *testing.T) {
	env := newTestEnv(7)

	env.send(t, commandUpdate(7, 7, "admin_menu"))
	env.send(t, textUpdate(7, 7, btnUpload))
	env.send(t, textUpdate(7, 7, "lecture_chem1"))
	env.send(t, textUpdate(7, 7, "1"))
	env.send(t, textUpdate(7, 7, btnAllGroups))

	update := textUpdate(7, 7, "")
	update.Message.Document = &tgbotapi.Document{FileID: "doc-1", FileName: "lecture.pdf"}
	update.Message.Caption = "Лекция 1 #lecture_chem1"
	env.send(t, update)

	require.Len(t, env.materials.inserted, 1)
	material := env.materials.inserted[0]
	assert.Equal(t, models.MaterialDocument, material.Type)
	require.NotNil(t, material.FileID)
	assert.Equal(t, "doc-1", *material.FileID)
	require.NotNil(t, material.FileName)
	assert.Equal(t, "lecture.pdf", *material.FileName)
	require.NotNil(t, material.Course)
	assert.Equal(t, 1, *material.Course)
	assert.Nil(t, material.GroupLang)
}

func TestAdminDeleteByIDs(t *testing.T) {
	env := newTestEnv(7)
	name := "old.pdf"
	env.materials.byID[1] = &models.Material{ID: 1, Tag: "chem1", Type: models.MaterialDocument, FileName: &name}
	env.materials.byID[2] = &models.Material{ID: 2, Tag: "chem1", Type: models.MaterialText}

	env.send(t, commandUpdate(7, 7, "admin_materials"))
	env.send(t, textUpdate(7, 7, "chem1"))
	assert.Equal(t, session.StepDeleteIDs, env.step(t, 7))
	assert.Contains(t, env.api.lastText(), "old.pdf")

	env.send(t, textUpdate(7, 7, "1 9"))

	assert.NotContains(t, env.materials.byID, int64(1))
	assert.Contains(t, env.materials.byID, int64(2))
	assert.Contains(t, env.api.lastText(), "Удалено: 1")
	assert.Contains(t, env.api.lastText(), "Не найдено: 9")
	assert.Equal(t, session.StepAdminMenu, env.step(t, 7))
}

func TestAdminDeleteAll(t *testing.T) {
	env := newTestEnv(7)
	env.materials.byID[1] = &models.Material{ID: 1, Tag: "chem1", Type: models.MaterialText}
	env.materials.byID[2] = &models.Material{ID: 2, Tag: "chem1", Type: models.MaterialText}

	env.send(t, commandUpdate(7, 7, "admin_materials"))
	env.send(t, textUpdate(7, 7, "chem1"))
	env.send(t, textUpdate(7, 7, "все"))

	assert.Empty(t, env.materials.byID)
	assert.Equal(t, "chem1", env.materials.deletedTag)
	assert.Contains(t, env.api.lastText(), "Удалено материалов: 2")
}

func TestAdminBroadcastFlow(t *testing.T) {
	env := newTestEnv(7)
	env.users.audience = []int64{100, 200}

	env.broadcasts.Start(context.Background())
	defer env.broadcasts.Stop()

	env.send(t, commandUpdate(7, 7, "broadcast"))
	assert.Equal(t, session.StepBroadcastGroup, env.step(t, 7))

	env.send(t, textUpdate(7, 7, btnAllGroups))
	env.send(t, textUpdate(7, 7, btnAllCourses))
	env.send(t, textUpdate(7, 7, "Завтра консультация в 10:00"))

	assert.Equal(t, session.StepAdminMenu, env.step(t, 7))

	require.Eventually(t, func() bool {
		env.api.mu.Lock()
		defer env.api.mu.Unlock()
		return len(env.api.copies) == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		for _, text := range env.api.allTexts() {
			if strings.Contains(text, "2 из 2") {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAdminCommandsHiddenFromStudents(t *testing.T) {
	env := newTestEnv()
	registerStudent(env, 42, 1, models.GroupRussian)

	for _, command := range []string{"broadcast", "admin_menu", "admin_stats", "admin_materials"} {
		env.send(t, commandUpdate(42, 42, command))
		assert.Equal(t, "Команда не распознана.", env.api.lastText(), "command %s", command)
		assert.Equal(t, session.StepNone, env.step(t, 42))
	}
}

func TestCancelResetsState(t *testing.T) {
	env := newTestEnv()
	registerStudent(env, 42, 2, models.GroupRussian)

	env.send(t, textUpdate(42, 42, btnExams))
	require.Equal(t, session.StepSectionSubject, env.step(t, 42))

	env.send(t, commandUpdate(42, 42, "cancel"))
	assert.Equal(t, session.StepNone, env.step(t, 42))
	assert.Contains(t, env.api.lastText(), "Главное меню")
}

func strptr(s string) *string { return &s }
