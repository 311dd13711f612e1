package composer

import (
	"slices"
	"strings"

	"sociofi/internal/models"
)

// Mode is the composer behaviour derived from the draft text.
type Mode string

const (
	ModeNone     Mode = "none"
	ModeAssign   Mode = "assign"
	ModeMention  Mode = "mention"
	ModeAnnounce Mode = "announce"
)

const (
	tokenAssign   = "@assign"
	tokenAnnounce = "@announce"
)

// Classification is what the chat screen renders for the current draft.
type Classification struct {
	Mode       Mode          `json:"mode"`
	Candidates []models.User `json:"candidates"`
	// ShowMenu opens the assign/mention/announce command menu.
	ShowMenu bool `json:"show_menu"`
	// Overlay is true when the suggestion popup is visible.
	Overlay bool `json:"overlay"`
}

// Classify derives the composer mode and candidate list from text.
// Rules are evaluated in order; the first match wins.
func Classify(text string, roster []models.User) Classification {
	switch {
	case strings.HasSuffix(text, "@"):
		return Classification{
			Mode:       ModeNone,
			Candidates: slices.Clone(roster),
			ShowMenu:   true,
			Overlay:    true,
		}
	case strings.Contains(text, tokenAssign):
		// Only the segment up to a second @assign is used as the search term.
		term := strings.Split(text, tokenAssign)[1]
		return Classification{
			Mode:       ModeAssign,
			Candidates: FilterRoster(roster, strings.TrimSpace(term)),
			Overlay:    true,
		}
	case strings.Contains(text, tokenAnnounce):
		return Classification{Mode: ModeAnnounce}
	case strings.Contains(text, "@"):
		term := text[strings.LastIndex(text, "@")+1:]
		return Classification{
			Mode:       ModeMention,
			Candidates: FilterRoster(roster, term),
			Overlay:    true,
		}
	default:
		return Classification{Mode: ModeNone}
	}
}

// FilterRoster keeps users whose first or last name contains term, ignoring case.
func FilterRoster(roster []models.User, term string) []models.User {
	term = strings.ToLower(term)
	out := make([]models.User, 0, len(roster))
	for _, user := range roster {
		if strings.Contains(strings.ToLower(user.FirstName), term) ||
			strings.Contains(strings.ToLower(user.LastName), term) {
			out = append(out, user)
		}
	}
	return out
}

// DeriveTitle takes the first five space-separated words of details and
// upper-cases the first character.
func DeriveTitle(details string) string {
	words := strings.Split(details, " ")
	if len(words) > 5 {
		words = words[:5]
	}
	title := strings.Join(words, " ")
	if title == "" {
		return ""
	}
	first, rest := splitFirstRune(title)
	return strings.ToUpper(first) + rest
}

func splitFirstRune(s string) (string, string) {
	for i := range s {
		if i > 0 {
			return s[:i], s[i:]
		}
	}
	return s, ""
}

// StripAnnounce removes the first @announce token and trims the result.
func StripAnnounce(text string) string {
	return strings.TrimSpace(strings.Replace(text, tokenAnnounce, "", 1))
}
