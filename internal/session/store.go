package session

import (
	"context"

	"github.com/medekzamen/medbot-api/internal/models"
)

// Step identifies where a chat currently sits in the conversation tree.
type Step string

const (
	StepNone Step = ""

	// Registration flow.
	StepAwaitingCourse       Step = "awaiting_course"
	StepAwaitingGroup        Step = "awaiting_group"
	StepAwaitingConfirmation Step = "awaiting_confirmation"

	// Section browsing.
	StepSectionGroup   Step = "section_group"
	StepSectionCourse  Step = "section_course"
	StepSectionType    Step = "section_type"
	StepSectionSubject Step = "section_subject"

	// Admin flows.
	StepAdminMenu        Step = "admin_menu"
	StepUploadTag        Step = "upload_tag"
	StepUploadCourse     Step = "upload_course"
	StepUploadGroup      Step = "upload_group"
	StepUploadContent    Step = "upload_content"
	StepDeleteTag        Step = "delete_tag"
	StepDeleteIDs        Step = "delete_ids"
	StepBroadcastGroup   Step = "broadcast_group"
	StepBroadcastCourse  Step = "broadcast_course"
	StepBroadcastMessage Step = "broadcast_message"
)

// State is the transient per-chat conversation state. Losing it (process
// restart, Redis flush) resets the user to the top-level menu, which is
// accepted behavior.
type State struct {
	Step Step `json:"step"`

	// Registration draft.
	DraftCourse int              `json:"draft_course,omitempty"`
	DraftGroup  models.GroupLang `json:"draft_group,omitempty"`

	// Section browsing selections.
	Section      string           `json:"section,omitempty"`
	Course       int              `json:"course,omitempty"`
	GroupLang    models.GroupLang `json:"group_lang,omitempty"`
	MaterialKind string           `json:"material_kind,omitempty"`

	// Admin flow selections.
	Tag             string           `json:"tag,omitempty"`
	ScopeCourse     int              `json:"scope_course,omitempty"`
	ScopeGroup      models.GroupLang `json:"scope_group,omitempty"`
	BroadcastCourse int              `json:"broadcast_course,omitempty"`
	BroadcastGroup  models.GroupLang `json:"broadcast_group,omitempty"`
}

// Store keeps conversation state keyed by chat id. Implementations must be
// safe for concurrent use.
type Store interface {
	Get(ctx context.Context, chatID int64) (*State, error)
	Set(ctx context.Context, chatID int64, state *State) error
	Delete(ctx context.Context, chatID int64) error
}
