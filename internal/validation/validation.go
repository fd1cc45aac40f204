// Package validation checks an invitation's content before it may be saved or submitted.
//
// Validate is pure: it has no I/O and returns every issue found, in the order of
// the editor sections, so the editor can highlight all of them at once.
package validation

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
	"wedlink/entity"
	"wedlink/internal/richtext"

	"github.com/biter777/countries"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"golang.org/x/text/unicode/norm"
)

const maxNameLength = 40

var ErrFailed = errors.New("validation failed")

// Error carries the complete issue list; its message is the first issue only.
type Error struct {
	Issues []entity.Issue
}

func (e *Error) Error() string {
	if len(e.Issues) == 0 {
		return ErrFailed.Error()
	}
	return e.Issues[0].Message
}

func (e *Error) Is(target error) bool {
	return target == ErrFailed
}

// form is the flattened view of entity.Content that the struct tags are declared on.
type form struct {
	GroomName     string    `validate:"realname"`
	BrideName     string    `validate:"realname"`
	MainImage     string    `validate:"notblank"`
	EventDate     string    `validate:"notblank"`
	EventTime     string    `validate:"notblank"`
	VenueName     string    `validate:"notblank"`
	VenueAddress  string    `validate:"notblank"`
	VenueCountry  string    `validate:"omitempty,country"`
	GreetingTitle string    `validate:"notblank"`
	GreetingBody  string    `validate:"richtext"`
	Gallery       []string  `validate:"min=1"`
	Accounts      []account `validate:"dive"`
}

// account is complete or empty: any one field set makes the other two required.
type account struct {
	Bank   string `validate:"required_with=Number Holder"`
	Number string `validate:"required_with=Bank Holder"`
	Holder string `validate:"required_with=Bank Number"`
}

type rule struct {
	section string
	field   string
	label   string
	message string
}

var rules = map[string]rule{
	"GroomName":     {entity.SectionNames, "groom-name", "Groom's name", "Enter the groom's name using letters only."},
	"BrideName":     {entity.SectionNames, "bride-name", "Bride's name", "Enter the bride's name using letters only."},
	"MainImage":     {entity.SectionMainImage, "main-image", "Main photo", "Upload a main photo."},
	"EventDate":     {entity.SectionEvent, "event-date", "Date", "Choose the wedding date."},
	"EventTime":     {entity.SectionEvent, "event-time", "Time", "Choose the wedding time."},
	"VenueName":     {entity.SectionVenue, "venue-name", "Venue", "Enter the venue name."},
	"VenueAddress":  {entity.SectionVenue, "venue-address", "Address", "Enter the venue address."},
	"VenueCountry":  {entity.SectionVenue, "venue-country", "Country", "Choose a valid country for the venue."},
	"GreetingTitle": {entity.SectionGreeting, "greeting-title", "Greeting title", "Enter a greeting title."},
	"GreetingBody":  {entity.SectionGreeting, "greeting-body", "Greeting message", "Write a greeting message."},
	"Gallery":       {entity.SectionGallery, "gallery", "Gallery", "Add at least one gallery photo."},
}

var (
	engine *validator.Validate
	once   sync.Once
)

func get() *validator.Validate {
	once.Do(func() {
		engine = validator.New(validator.WithRequiredStructEnabled())
		_ = engine.RegisterValidation("notblank", validators.NotBlank)
		_ = engine.RegisterValidation("realname", isRealName)
		_ = engine.RegisterValidation("richtext", hasText)
		_ = engine.RegisterValidation("country", isCountry)
	})
	return engine
}

// Validate returns all issues of content; an empty, non-nil slice means it may be saved.
func Validate(content entity.Content) []entity.Issue {
	issues := make([]entity.Issue, 0)

	err := get().Struct(newForm(content))
	if err == nil {
		return issues
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		// only reachable on a programming error in form
		return append(issues, entity.Issue{SectionKey: entity.SectionNames, Message: err.Error()})
	}

	seenAccounts := make(map[int]bool)
	for _, fe := range fieldErrors {
		if idx, ok := accountIndex(fe.StructNamespace()); ok {
			if seenAccounts[idx] {
				continue
			}
			seenAccounts[idx] = true
			issues = append(issues, accountIssue(idx))
			continue
		}
		r, ok := rules[fe.StructField()]
		if !ok {
			continue
		}
		issues = append(issues, entity.Issue{
			SectionKey: r.section,
			FieldID:    r.field,
			FieldLabel: r.label,
			Message:    r.message,
		})
	}
	return issues
}

// Check returns *Error when content has issues.
func Check(content entity.Content) error {
	issues := Validate(content)
	if len(issues) == 0 {
		return nil
	}
	return &Error{Issues: issues}
}

// Sections lists the distinct section keys of issues in first-seen order.
func Sections(issues []entity.Issue) []string {
	seen := make(map[string]bool, len(issues))
	var out []string
	for _, issue := range issues {
		if seen[issue.SectionKey] {
			continue
		}
		seen[issue.SectionKey] = true
		out = append(out, issue.SectionKey)
	}
	return out
}

func newForm(c entity.Content) form {
	f := form{
		GroomName:     c.Groom.Name,
		BrideName:     c.Bride.Name,
		MainImage:     c.MainImage,
		EventDate:     c.Event.Date,
		EventTime:     c.Event.Time,
		VenueName:     c.Venue.Name,
		VenueAddress:  c.Venue.Address,
		VenueCountry:  strings.TrimSpace(c.Venue.Country),
		GreetingTitle: c.Greeting.Title,
		GreetingBody:  c.Greeting.Body,
	}
	for _, img := range c.Gallery {
		if strings.TrimSpace(img.URL) != "" {
			f.Gallery = append(f.Gallery, img.URL)
		}
	}
	for _, a := range c.Accounts {
		f.Accounts = append(f.Accounts, account{
			Bank:   strings.TrimSpace(a.Bank),
			Number: strings.TrimSpace(a.Number),
			Holder: strings.TrimSpace(a.Holder),
		})
	}
	return f
}

func accountIssue(idx int) entity.Issue {
	return entity.Issue{
		SectionKey: entity.SectionAccount,
		FieldID:    "account-" + strconv.Itoa(idx),
		FieldLabel: "Account " + strconv.Itoa(idx+1),
		Message:    "Fill in bank, account number and holder, or leave the account empty.",
	}
}

// accountIndex extracts i from a namespace like "form.Accounts[i].Bank".
func accountIndex(namespace string) (int, bool) {
	const marker = ".Accounts["
	start := strings.Index(namespace, marker)
	if start < 0 {
		return 0, false
	}
	rest := namespace[start+len(marker):]
	end := strings.IndexByte(rest, ']')
	if end < 0 {
		return 0, false
	}
	idx, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0, false
	}
	return idx, true
}

// isRealName accepts Hangul, Han and Latin letters with single inner separators.
func isRealName(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	name := norm.NFC.String(strings.TrimSpace(fl.Field().String()))
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return false
	}
	letters := 0
	prevSep := true
	for _, r := range name {
		switch {
		case unicode.In(r, unicode.Hangul, unicode.Han, unicode.Latin):
			letters++
			prevSep = false
		case r == ' ' || r == '-' || r == '\'' || r == '.':
			if prevSep {
				return false
			}
			prevSep = true
		default:
			return false
		}
	}
	return letters > 0 && (!prevSep || strings.HasSuffix(name, "."))
}

func hasText(fl validator.FieldLevel) bool {
	return !richtext.IsBlank(fl.Field().String())
}

func isCountry(fl validator.FieldLevel) bool {
	return countries.ByName(fl.Field().String()) != countries.Unknown
}
