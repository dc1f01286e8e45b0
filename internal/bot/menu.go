package bot

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/medekzamen/medbot-api/internal/models"
)

// Menu button labels. These double as the state machine inputs: free-text
// messages are matched against them exactly.
const (
	btnExams     = "📝 Экзамены"
	btnSummaries = "📚 Конспекты"
	btnMaterials = "📖 Материалы"
	btnAdminMenu = "🛠 Админ-меню"
	btnBack      = "⬅️ Назад"

	btnGroupRu = "🇷🇺 Русская группа"
	btnGroupTj = "🇹🇯 Тоҷикӣ гурӯҳ"

	btnYes = "✅ Да"
	btnNo  = "❌ Нет"

	btnUpload    = "📤 Загрузить"
	btnDelete    = "🗑 Удалить"
	btnBroadcast = "📢 Рассылка"
	btnStats     = "📊 Статистика"

	btnAllGroups  = "Все группы"
	btnAllCourses = "Все курсы"

	btnKindLectures = "Лекции"
	btnKindBooks    = "Книги"
	btnKindVideos   = "Видео"
)

// Section identifiers kept in transient state.
const (
	sectionExams     = "exams"
	sectionSummaries = "summaries"
	sectionMaterials = "materials"
)

// Subject is one entry of the per-course subject table.
type Subject struct {
	Name string
	Tag  string
}

// subjectsByCourse is the static curriculum lookup: which subjects each
// course sees in the Exams and Materials sections. Tags follow the agreed
// naming convention (subject abbreviation + course number).
var subjectsByCourse = map[int][]Subject{
	1: {
		{Name: "Химия", Tag: "chem1"},
		{Name: "Биология", Tag: "bio1"},
		{Name: "Анатомия", Tag: "anat1"},
		{Name: "Гистология", Tag: "hist1"},
	},
	2: {
		{Name: "Биохимия", Tag: "biochem2"},
		{Name: "Физиология", Tag: "physio2"},
		{Name: "Микробиология", Tag: "micro2"},
		{Name: "Анатомия", Tag: "anat2"},
	},
	3: {
		{Name: "Патофизиология", Tag: "patphys3"},
		{Name: "Патанатомия", Tag: "patanat3"},
		{Name: "Фармакология", Tag: "pharma3"},
		{Name: "Пропедевтика", Tag: "proped3"},
	},
	4: {
		{Name: "Внутренние болезни", Tag: "intmed4"},
		{Name: "Хирургия", Tag: "surg4"},
		{Name: "Акушерство", Tag: "obst4"},
	},
	5: {
		{Name: "Внутренние болезни", Tag: "intmed5"},
		{Name: "Хирургия", Tag: "surg5"},
		{Name: "Неврология", Tag: "neuro5"},
		{Name: "Педиатрия", Tag: "ped5"},
	},
	6: {
		{Name: "Терапия", Tag: "ther6"},
		{Name: "Хирургия", Tag: "surg6"},
		{Name: "Инфекционные болезни", Tag: "infect6"},
	},
}

// summarySections is how many numbered summary sections each course has.
var summarySections = map[int]int{
	1: 4, 2: 4, 3: 4, 4: 3, 5: 3, 6: 3,
}

// materialKinds maps the Materials-section type buttons onto tag prefixes.
var materialKinds = map[string]string{
	btnKindLectures: "lecture",
	btnKindBooks:    "book",
	btnKindVideos:   "video",
}

var groupButtons = map[string]models.GroupLang{
	btnGroupRu: models.GroupRussian,
	btnGroupTj: models.GroupTajik,
}

func subjectByName(course int, name string) (Subject, bool) {
	for _, s := range subjectsByCourse[course] {
		if s.Name == name {
			return s, true
		}
	}
	return Subject{}, false
}

func summarySectionLabel(n int) string {
	return fmt.Sprintf("Раздел %d", n)
}

func summarySectionByLabel(course int, label string) (int, bool) {
	for n := 1; n <= summarySections[course]; n++ {
		if summarySectionLabel(n) == label {
			return n, true
		}
	}
	return 0, false
}

// summaryTag builds the tag for one summary section of a course.
func summaryTag(course, section int) string {
	return fmt.Sprintf("summary%d.%d", course, section)
}

// materialTag builds the tag for a typed material of a subject.
func materialTag(kind, subjectTag string) string {
	return kind + "_" + subjectTag
}

// parseCourse matches a course button label.
func parseCourse(text string) (int, bool) {
	course, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || course < models.MinCourse || course > models.MaxCourse {
		return 0, false
	}
	return course, true
}

// stripHashtag removes the upload-time #tag marker from a caption before the
// material is re-displayed to a user.
func stripHashtag(caption, tag string) string {
	cleaned := strings.ReplaceAll(caption, "#"+tag, "")
	return strings.TrimSpace(cleaned)
}

// parseIDList parses the admin's space-separated id list for the delete
// flow. The second return lists tokens that are not numbers.
func parseIDList(text string) ([]int64, []string) {
	var ids []int64
	var bad []string
	for _, token := range strings.Fields(text) {
		id, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			bad = append(bad, token)
			continue
		}
		ids = append(ids, id)
	}
	return ids, bad
}

// deleteAllToken reports whether the admin asked to wipe the whole tag.
func deleteAllToken(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "все", "all":
		return true
	}
	return false
}

// Keyboards.

func mainMenuKeyboard(isAdmin bool) tgbotapi.ReplyKeyboardMarkup {
	rows := [][]tgbotapi.KeyboardButton{
		{tgbotapi.NewKeyboardButton(btnExams), tgbotapi.NewKeyboardButton(btnSummaries)},
		{tgbotapi.NewKeyboardButton(btnMaterials)},
	}
	if isAdmin {
		rows = append(rows, []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(btnAdminMenu)})
	}
	return tgbotapi.NewReplyKeyboard(rows...)
}

func courseKeyboard(withAll bool) tgbotapi.ReplyKeyboardMarkup {
	var labels []string
	for c := models.MinCourse; c <= models.MaxCourse; c++ {
		labels = append(labels, strconv.Itoa(c))
	}
	rows := [][]tgbotapi.KeyboardButton{
		{tgbotapi.NewKeyboardButton(labels[0]), tgbotapi.NewKeyboardButton(labels[1]), tgbotapi.NewKeyboardButton(labels[2])},
		{tgbotapi.NewKeyboardButton(labels[3]), tgbotapi.NewKeyboardButton(labels[4]), tgbotapi.NewKeyboardButton(labels[5])},
	}
	if withAll {
		rows = append(rows, []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(btnAllCourses)})
	}
	rows = append(rows, []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(btnBack)})
	return tgbotapi.NewReplyKeyboard(rows...)
}

func groupKeyboard(withAll bool) tgbotapi.ReplyKeyboardMarkup {
	rows := [][]tgbotapi.KeyboardButton{
		{tgbotapi.NewKeyboardButton(btnGroupRu), tgbotapi.NewKeyboardButton(btnGroupTj)},
	}
	if withAll {
		rows = append(rows, []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(btnAllGroups)})
	}
	rows = append(rows, []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(btnBack)})
	return tgbotapi.NewReplyKeyboard(rows...)
}

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		[]tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(btnYes), tgbotapi.NewKeyboardButton(btnNo)},
	)
}

func subjectKeyboard(course int) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	for _, s := range subjectsByCourse[course] {
		rows = append(rows, []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(s.Name)})
	}
	rows = append(rows, []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(btnBack)})
	return tgbotapi.NewReplyKeyboard(rows...)
}

func summaryKeyboard(course int) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	for n := 1; n <= summarySections[course]; n++ {
		rows = append(rows, []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(summarySectionLabel(n))})
	}
	rows = append(rows, []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(btnBack)})
	return tgbotapi.NewReplyKeyboard(rows...)
}

func kindKeyboard() tgbotapi.ReplyKeyboardMarkup {
	var labels []string
	for label := range materialKinds {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	var buttons []tgbotapi.KeyboardButton
	for _, label := range labels {
		buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
	}
	return tgbotapi.NewReplyKeyboard(
		buttons,
		[]tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(btnBack)},
	)
}

func adminKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		[]tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(btnUpload), tgbotapi.NewKeyboardButton(btnDelete)},
		[]tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(btnBroadcast), tgbotapi.NewKeyboardButton(btnStats)},
		[]tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(btnBack)},
	)
}
