// File: internal/command/command.go

// Package command implements the typed command surface: every operation a
// caller can drive a session with, its argument decoding, its safety class,
// and the dispatcher that serializes execution per session and turns
// outcomes into structured results.
package command

// Name identifies one command. The set is closed; anything else is rejected
// before a session is touched.
type Name string

// Navigation.
const (
	Goto    Name = "goto"
	Back    Name = "back"
	Forward Name = "forward"
	Reload  Name = "reload"
	GetURL  Name = "get_url"
)

// Interaction.
const (
	Click    Name = "click"
	ClickNth Name = "click_nth"
	Fill     Name = "fill"
	Type     Name = "type"
	Select   Name = "select"
	Hover    Name = "hover"
	Focus    Name = "focus"
	Press    Name = "press"
	Upload   Name = "upload"
	Scroll   Name = "scroll"
)

// Waiting.
const (
	Wait             Name = "wait"
	WaitFor          Name = "wait_for"
	WaitForText      Name = "wait_for_text"
	WaitForURL       Name = "wait_for_url"
	WaitForLoadState Name = "wait_for_load_state"
	WaitForChange    Name = "wait_for_change"
)

// Extraction.
const (
	Screenshot   Name = "screenshot"
	Text         Name = "text"
	Value        Name = "value"
	Attr         Name = "attr"
	Count        Name = "count"
	Evaluate     Name = "evaluate"
	FindElements Name = "find_elements"
	PageState    Name = "page_state"
)

// Assertions.
const (
	AssertVisible Name = "assert_visible"
	AssertText    Name = "assert_text"
	AssertURL     Name = "assert_url"
)

// Environment and debugging.
const (
	Viewport       Name = "viewport"
	Cookies        Name = "cookies"
	Storage        Name = "storage"
	Clear          Name = "clear"
	Console        Name = "console"
	Network        Name = "network"
	Dialog         Name = "dialog"
	BrowserStatus  Name = "browser_status"
	CheckLocalPort Name = "check_local_port"
	AgentGuide     Name = "get_agent_guide"
	StartRecording Name = "start_recording"
	StopRecording  Name = "stop_recording"
	CloseSession   Name = "close_session"
)

// Class is a command's safety classification.
type Class string

const (
	// ClassSafe commands only read page or session state.
	ClassSafe Class = "SAFE"
	// ClassMutating commands change page, session, or sandbox state.
	ClassMutating Class = "MUTATING"
	// ClassExternal commands cause the browser to reach a caller-chosen
	// network target and pass through the target validator first.
	ClassExternal Class = "EXTERNAL"
)

// ClassOf returns the safety class for a known command and false for
// anything outside the closed set.
func ClassOf(n Name) (Class, bool) {
	switch n {
	case GetURL, Wait, WaitFor, WaitForText, WaitForURL, WaitForLoadState, WaitForChange,
		Text, Value, Attr, Count, FindElements, PageState,
		AssertVisible, AssertText, AssertURL,
		Cookies, Storage, Console, Network, BrowserStatus, AgentGuide:
		return ClassSafe, true
	case Back, Forward, Reload,
		Click, ClickNth, Fill, Type, Select, Hover, Focus, Press, Upload, Scroll,
		Screenshot, Evaluate, Viewport, Clear, Dialog,
		StartRecording, StopRecording, CloseSession:
		return ClassMutating, true
	case Goto, CheckLocalPort:
		return ClassExternal, true
	default:
		return "", false
	}
}

// needsSession reports whether a command operates on a session. The few
// that do not answer from the server's own state.
func needsSession(n Name) bool {
	switch n {
	case BrowserStatus, CheckLocalPort, AgentGuide:
		return false
	default:
		return true
	}
}
