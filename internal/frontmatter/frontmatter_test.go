package frontmatter_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/92Bilal26/ai-junior-bilal/internal/frontmatter"
)

func TestParse_ReadsHeaderAndBody(t *testing.T) {
	text := "---\ntype: email\nstatus: planned\n---\n\n# Reply to Bob\nbody line\n"

	fields, body := frontmatter.Parse(text)

	assert.Equal(t, map[string]string{"type": "email", "status": "planned"}, fields)
	assert.Equal(t, "\n# Reply to Bob\nbody line", body)
}

func TestParse_NoDelimiterReturnsWholeText(t *testing.T) {
	text := "# Just a note\nno header here\n"

	fields, body := frontmatter.Parse(text)

	assert.Empty(t, fields)
	assert.Equal(t, text, body)
}

func TestParse_UnterminatedHeaderReturnsWholeText(t *testing.T) {
	text := "---\ntype: email\nstill header\n"

	fields, body := frontmatter.Parse(text)

	assert.Empty(t, fields)
	assert.Equal(t, text, body)
}

func TestParse_SkipsLinesWithoutColon(t *testing.T) {
	fields, _ := frontmatter.Parse("---\ntype: task\ngarbage line\n  title :  Hello  \n---\nbody")

	assert.Equal(t, map[string]string{"type": "task", "title": "Hello"}, fields)
}

func TestParse_SplitsOnFirstColonOnly(t *testing.T) {
	fields, _ := frontmatter.Parse("---\ncreated_at: 2024-05-01T10:00:00Z\ntitle: Scaffold html app: calc\n---\n")

	assert.Equal(t, "2024-05-01T10:00:00Z", fields["created_at"])
	assert.Equal(t, "Scaffold html app: calc", fields["title"])
}

func TestParse_HandlesCRLF(t *testing.T) {
	fields, body := frontmatter.Parse("---\r\ntype: task\r\n---\r\nhello\r\n")

	assert.Equal(t, "task", fields["type"])
	assert.Equal(t, "hello", body)
}

func TestRender_SortsKeysAndTrimsBody(t *testing.T) {
	out := frontmatter.Render(map[string]string{"type": "task", "status": "new", "created_at": "x"}, "\n\n# Title\n\ntext\n\n\n")

	assert.Equal(t, "---\ncreated_at: x\nstatus: new\ntype: task\n---\n# Title\n\ntext\n", out)
}

func TestRender_EmptyBody(t *testing.T) {
	out := frontmatter.Render(map[string]string{"type": "plan"}, "")

	assert.Equal(t, "---\ntype: plan\n---\n", out)
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		body   string
	}{
		{"simple", map[string]string{"type": "task", "status": "new"}, "# Hello\n\nworld"},
		{"empty fields", map[string]string{}, "only body"},
		{"empty body", map[string]string{"a": "1"}, ""},
		{"colon in value", map[string]string{"title": "Scaffold html app: calc"}, "## Instruction\nBuild it"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, body := frontmatter.Parse(frontmatter.Render(tt.fields, tt.body))
			assert.Equal(t, tt.fields, fields)
			assert.Equal(t, tt.body, body)
		})
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Scaffold html app: calculator", "scaffold_html_app_calculator"},
		{"Report Q3 (final).docx", "report_q3_final_docx"},
		{"already-fine_name", "already-fine_name"},
		{"__edge__", "edge"},
		{"!!!", "task"},
		{"", "task"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, frontmatter.Slugify(tt.in))
		})
	}
}

func TestStamp_IsFilenameSafe(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 30, 15, 123000000, time.UTC)

	assert.Equal(t, "2024-05-01T10:30:15.123Z", frontmatter.Timestamp(ts))
	assert.Equal(t, "2024-05-01T103015123Z", frontmatter.Stamp(ts))
}

func TestParseTimestamp_AcceptsOffsetForms(t *testing.T) {
	want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for _, in := range []string{"2024-05-01T10:00:00Z", "2024-05-01T10:00:00+00:00", "2024-05-01T12:00:00+02:00"} {
		got, err := frontmatter.ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), in)
	}

	_, err := frontmatter.ParseTimestamp("yesterday")
	assert.Error(t, err)
}
