package report

import (
	"strings"
	"unicode"

	"github.com/caffeineduck/code2doc/layout"
)

// Metadata describes the submission a report is for.
type Metadata struct {
	// Title overrides the "<Course> <Assignment>" document title.
	Title      string
	Name       string
	RegNo      string
	Course     string
	Assignment string
	Group      string
	Semester   string
}

// DocTitle is Title, or "<Course> <Assignment>" when Title is empty.
func (m Metadata) DocTitle() string {
	if t := strings.TrimSpace(m.Title); t != "" {
		return t
	}
	t := strings.TrimSpace(strings.TrimSpace(m.Course) + " " + strings.TrimSpace(m.Assignment))
	if t == "" {
		return "Report"
	}
	return t
}

// FileName is "<FirstName>_<Course>_<Assignment>.docx" with empty parts
// left out and characters unsafe in file names replaced.
func (m Metadata) FileName() string {
	var parts []string
	if fields := strings.Fields(m.Name); len(fields) > 0 {
		parts = append(parts, fields[0])
	}
	for _, p := range []string{m.Course, m.Assignment} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		parts = []string{"report"}
	}
	return sanitizeFileName(strings.Join(parts, "_")) + ".docx"
}

func sanitizeFileName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_', r == '.':
			return r
		case unicode.IsSpace(r):
			return '-'
		default:
			return '_'
		}
	}, s)
}

// Rows returns the "Submitted By" table, skipping empty fields.
func (m Metadata) Rows() []layout.Row {
	all := []layout.Row{
		{Key: "Name", Value: m.Name},
		{Key: "Registration Number", Value: m.RegNo},
		{Key: "Course", Value: m.Course},
		{Key: "Assignment", Value: m.Assignment},
		{Key: "Semester", Value: m.Semester},
		{Key: "Group", Value: m.Group},
	}
	rows := all[:0]
	for _, r := range all {
		if r.Value = strings.TrimSpace(r.Value); r.Value != "" {
			rows = append(rows, r)
		}
	}
	return rows
}
