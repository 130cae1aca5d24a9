package input

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/botweaver/botweaver/internal/session"
)

// Semantic kinds a node may declare for its text input.
const (
	SemanticEmail  = "email"
	SemanticPhone  = "phone"
	SemanticNumber = "number"
)

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]{2,}$`)
	phoneRe = regexp.MustCompile(`^\+?[0-9][0-9 ()-]{5,18}[0-9]$`)
)

// validate applies length bounds and the declared semantic shape check to a
// text payload. Media events carry no text to validate beyond presence.
func validate(s *session.InputSession, kind session.EventKind, text string) error {
	if kind != session.KindText {
		return nil
	}

	runes := utf8.RuneCountInString(text)
	if s.MinLen > 0 && runes < s.MinLen {
		return fmt.Errorf("input shorter than %d characters", s.MinLen)
	}
	if s.MaxLen > 0 && runes > s.MaxLen {
		return fmt.Errorf("input longer than %d characters", s.MaxLen)
	}

	switch s.Semantic {
	case SemanticEmail:
		if !emailRe.MatchString(strings.TrimSpace(text)) {
			return fmt.Errorf("not a valid email address")
		}
	case SemanticPhone:
		if !phoneRe.MatchString(strings.TrimSpace(text)) {
			return fmt.Errorf("not a valid phone number")
		}
	case SemanticNumber:
		if _, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err != nil {
			return fmt.Errorf("not a number")
		}
	}

	return nil
}
