// Package viewstate is the contract between the holder flows and whatever renders them.
package viewstate

import "healthwallet/internal/holder/models"

// Kind discriminates State.
type Kind string

const (
	KindLoading    Kind = "loading"
	KindListEvents Kind = "listEvents"
	KindFeedback   Kind = "feedback"
	// KindCompleted has no screen: the renderer returns to the overview.
	KindCompleted  Kind = "completed"
)

// ActionKind names what a button does. Renderers map kinds onto navigation.
type ActionKind string

const (
	ActionMakeQR          ActionKind = "make_qr"
	ActionBackToOverview  ActionKind = "back_to_overview"
	ActionRetry           ActionKind = "retry"
	ActionSomethingWrong  ActionKind = "something_wrong"
	ActionReplace         ActionKind = "replace"
	ActionCancel          ActionKind = "cancel"
	ActionConfirmBack     ActionKind = "confirm_back"
	ActionContinue        ActionKind = "continue"
	ActionAddPairedResult ActionKind = "add_paired_certificate"
)

type Action struct {
	Title string     `json:"title"`
	Kind  ActionKind `json:"kind"`
}

// Content is the copy of a screen.
type Content struct {
	Title           string  `json:"title"`
	Body            string  `json:"body,omitempty"`
	PrimaryAction   *Action `json:"primary_action,omitempty"`
	SecondaryAction *Action `json:"secondary_action,omitempty"`
}

// Detail is one event behind a row, for the drill-down view.
type Detail struct {
	ProviderIdentifier string           `json:"provider_identifier"`
	Identity           *models.Identity `json:"identity,omitempty"`
	Event              models.Event     `json:"event"`
}

// Row is one entry of the event list.
type Row struct {
	Title     string   `json:"title"`
	Subtitle  string   `json:"subtitle"`
	Footer    string   `json:"footer,omitempty"`
	Providers []string `json:"providers"`
	Details   []Detail `json:"details"`
}

// State is the screen to show.
type State struct {
	Kind    Kind    `json:"kind"`
	Content Content `json:"content"`
	Rows    []Row   `json:"rows,omitempty"`
}

func Loading(content Content) State {
	return State{Kind: KindLoading, Content: content}
}

func ListEvents(content Content, rows []Row) State {
	return State{Kind: KindListEvents, Content: content, Rows: rows}
}

func Feedback(content Content) State {
	return State{Kind: KindFeedback, Content: content}
}

func Completed() State {
	return State{Kind: KindCompleted}
}

// IsTerminal reports whether the session behind the state has nothing left to do.
func (s State) IsTerminal() bool {
	return s.Kind == KindFeedback || s.Kind == KindCompleted
}

// Alert is a modal dialog.
type Alert struct {
	Title        string     `json:"title"`
	Subtitle     string     `json:"subtitle"`
	OkTitle      string     `json:"ok_title"`
	OkAction     ActionKind `json:"ok_action"`
	CancelTitle  string     `json:"cancel_title,omitempty"`
	CancelAction ActionKind `json:"cancel_action,omitempty"`
}
