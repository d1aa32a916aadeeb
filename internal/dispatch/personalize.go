package dispatch

import (
	"math/rand"
	"regexp"
	"strings"

	"github.com/coldreach/campaign-backend/internal/models"
)

var (
	// {option a|option b|option c} resolves to one random alternative per
	// rendering. Matched before placeholders so a pipe always means spintax.
	spintaxPattern = regexp.MustCompile(`\{([^{}|]*(?:\|[^{}|]*)+)\}`)

	placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)
)

// Personalize renders a subject or body for one recipient: spintax
// alternatives are resolved first, then placeholders are substituted from
// recipient and sender fields. Unknown placeholders collapse to empty.
func Personalize(content string, recipient models.Recipient, sender models.Sender) string {
	result := ExpandSpintax(content)

	firstName := recipient.DisplayName()
	if i := strings.IndexAny(firstName, " \t"); i > 0 {
		firstName = firstName[:i]
	}

	fields := map[string]string{
		"name":         recipient.DisplayName(),
		"first_name":   firstName,
		"email":        recipient.Email,
		"sender_name":  sender.DisplayName,
		"sender_email": sender.Email,
	}

	return placeholderPattern.ReplaceAllStringFunc(result, func(match string) string {
		key := strings.Trim(match, "{}")
		if value, ok := fields[key]; ok {
			return value
		}
		return ""
	})
}

// ExpandSpintax resolves every {a|b|c} group to one random choice. Groups do
// not nest.
func ExpandSpintax(content string) string {
	return spintaxPattern.ReplaceAllStringFunc(content, func(match string) string {
		options := strings.Split(strings.Trim(match, "{}"), "|")
		return options[rand.Intn(len(options))]
	})
}

// ValidateTemplate checks that every plain placeholder in the template is a
// known field. Spintax groups are exempt.
func ValidateTemplate(template string) error {
	if template == "" {
		return models.ErrInvalidInput("template cannot be empty")
	}

	stripped := spintaxPattern.ReplaceAllString(template, "")

	valid := map[string]bool{
		"name":         true,
		"first_name":   true,
		"email":        true,
		"sender_name":  true,
		"sender_email": true,
	}

	var invalid []string
	for _, match := range placeholderPattern.FindAllStringSubmatch(stripped, -1) {
		if len(match) > 1 && !valid[match[1]] {
			invalid = append(invalid, match[1])
		}
	}

	if len(invalid) > 0 {
		return models.ErrInvalidInput(
			"invalid placeholders: " + strings.Join(invalid, ", ") +
				". Valid placeholders are: name, first_name, email, sender_name, sender_email")
	}

	return nil
}
