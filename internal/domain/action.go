package domain

import "strings"

// Action is the side effect an approved task asks for. The set is closed:
// every implementation lives in this file and consumers switch over it
// exhaustively.
type Action interface {
	action()
}

// MarkAttendance marks the operator present for Date (YYYY-MM-DD).
type MarkAttendance struct {
	Date string
}

// SendEmail sends a message. To is required by the handler.
type SendEmail struct {
	To      string
	Subject string
	Body    string
}

// Unsupported is any approved (type, action) pair without a handler.
type Unsupported struct {
	Type   string
	Action string
}

func (MarkAttendance) action() {}
func (SendEmail) action()      {}
func (Unsupported) action()    {}

// ActionFor maps an approved task to its action. today is used when an
// attendance task carries no date.
func ActionFor(t Task, today string) Action {
	kind := t.Kind()
	action := strings.ToLower(strings.TrimSpace(t.Get(FieldAction)))

	switch {
	case kind == KindAttendanceMarking:
		date := strings.TrimSpace(t.Get(FieldDate))
		if date == "" {
			date = today
		}
		return MarkAttendance{Date: date}
	case kind == KindEmail || action == "send_email":
		return SendEmail{
			To:      strings.TrimSpace(t.Get(FieldTo)),
			Subject: t.Get(FieldSubject),
			Body:    strings.TrimSpace(t.Body),
		}
	}
	return Unsupported{Type: string(kind), Action: action}
}
