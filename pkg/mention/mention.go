// Package mention parses the @[Display Name] mention syntax used in
// notes and comments.
package mention

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

var mentionPattern = regexp.MustCompile(`@\[([^\[\]]+)\]`)

// Mention is one occurrence of @[Display Name] in a text
type Mention struct {
	// Display is the text between the brackets
	Display string
	// Start and End are byte offsets of the full @[...] token
	Start int
	End   int
}

// User is the subset of a user record mentions resolve against
type User struct {
	ID       uuid.UUID
	FullName string
	Email    string
}

// Parse returns every mention in text, in order of appearance
func Parse(text string) []Mention {
	matches := mentionPattern.FindAllStringSubmatchIndex(text, -1)
	if matches == nil {
		return nil
	}

	mentions := make([]Mention, 0, len(matches))
	for _, m := range matches {
		mentions = append(mentions, Mention{
			Display: text[m[2]:m[3]],
			Start:   m[0],
			End:     m[1],
		})
	}
	return mentions
}

// Highlight renders text as HTML with each mention wrapped in a styled
// span. Every piece of user text is escaped, including the mention
// display names, so the output is safe to inject into a page.
func Highlight(text string) string {
	var b strings.Builder
	last := 0

	for _, m := range Parse(text) {
		b.WriteString(html.EscapeString(text[last:m.Start]))
		b.WriteString(`<span class="mention">@`)
		b.WriteString(html.EscapeString(m.Display))
		b.WriteString(`</span>`)
		last = m.End
	}
	b.WriteString(html.EscapeString(text[last:]))

	return b.String()
}

// ExtractUserIDs resolves mention display names against users by full
// name or email, case-insensitively. Unresolvable mentions are skipped;
// each user appears at most once.
func ExtractUserIDs(text string, users []User) []uuid.UUID {
	var ids []uuid.UUID
	seen := map[uuid.UUID]bool{}

	for _, m := range Parse(text) {
		for _, u := range users {
			if !strings.EqualFold(m.Display, u.FullName) && !strings.EqualFold(m.Display, u.Email) {
				continue
			}
			if !seen[u.ID] {
				seen[u.ID] = true
				ids = append(ids, u.ID)
			}
			break
		}
	}
	return ids
}

// Insert replaces the partial @query before cursor with a complete
// mention token and returns the new text plus the cursor position just
// after the inserted mention.
func Insert(text string, cursor int, display string) (string, int) {
	if cursor > len(text) {
		cursor = len(text)
	}

	start := mentionStart(text, cursor)
	if start < 0 {
		return text, cursor
	}

	token := "@[" + display + "] "
	out := text[:start] + token + text[cursor:]
	return out, start + len(token)
}

// IsInMentionContext reports whether the cursor sits inside a partial
// mention, i.e. after an @ that has not been completed yet.
func IsInMentionContext(text string, cursor int) bool {
	return mentionStart(text, cursor) >= 0
}

// Query returns the partial text typed after the @ at the cursor, or ""
// when the cursor is not in a mention context.
func Query(text string, cursor int) string {
	start := mentionStart(text, cursor)
	if start < 0 {
		return ""
	}
	return text[start+1 : cursor]
}

// mentionStart finds the @ that the cursor's partial mention began at.
// The @ must start the text or follow whitespace, and the text between
// it and the cursor must not contain brackets or a line break.
func mentionStart(text string, cursor int) int {
	if cursor > len(text) {
		cursor = len(text)
	}

	for i := cursor - 1; i >= 0; i-- {
		ch := rune(text[i])

		if ch == '@' {
			if i > 0 && !unicode.IsSpace(rune(text[i-1])) {
				return -1
			}
			return i
		}

		if ch == '[' || ch == ']' || ch == '\n' {
			return -1
		}
	}
	return -1
}
