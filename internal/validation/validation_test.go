package validation

import (
	"errors"
	"testing"
	"wedlink/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeContent() entity.Content {
	return entity.Content{
		Groom:     entity.Person{Name: "김민준"},
		Bride:     entity.Person{Name: "Emily Park"},
		MainImage: "https://cdn.example.com/main.jpg",
		Event:     entity.Event{Date: "2026-05-16", Time: "13:30"},
		Venue:     entity.Venue{Name: "Grand Hall", Address: "1 Main St, Seoul", Country: "KR"},
		Greeting:  entity.Greeting{Title: "We are getting married", Body: "<p>Please join us.</p>"},
		Gallery:   []entity.Image{{URL: "https://cdn.example.com/1.jpg"}},
		Accounts: []entity.Account{
			{Side: entity.SideGroom, Bank: "KB", Number: "123-456", Holder: "김민준"},
			{},
		},
	}
}

func sections(issues []entity.Issue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.SectionKey)
	}
	return out
}

func TestValidateComplete(t *testing.T) {
	issues := Validate(completeContent())
	assert.NotNil(t, issues)
	assert.Empty(t, issues)
	assert.NoError(t, Check(completeContent()))
}

func TestValidateEmptyReportsEverySection(t *testing.T) {
	issues := Validate(entity.Content{})

	assert.Equal(t, []string{
		entity.SectionNames,
		entity.SectionMainImage,
		entity.SectionEvent,
		entity.SectionVenue,
		entity.SectionGreeting,
		entity.SectionGallery,
	}, Sections(issues))
	assert.Len(t, issues, 10)
}

func TestValidateIsIdempotent(t *testing.T) {
	c := completeContent()
	c.MainImage = ""
	c.Venue.Address = " "

	first := Validate(c)
	second := Validate(c)
	assert.Equal(t, first, second)
}

func TestValidateMissingImageAndAddress(t *testing.T) {
	c := completeContent()
	c.MainImage = ""
	c.Venue.Address = ""

	issues := Validate(c)
	require.Len(t, issues, 2)
	assert.ElementsMatch(t, []string{entity.SectionMainImage, entity.SectionVenue}, sections(issues))
	assert.Equal(t, "venue-address", issues[1].FieldID)
}

func TestValidateAccounts(t *testing.T) {
	tests := []struct {
		name     string
		accounts []entity.Account
		want     []string
	}{
		{"only bank", []entity.Account{{Bank: "KB"}}, []string{"account-0"}},
		{"all empty", []entity.Account{{}}, nil},
		{"blank strings are empty", []entity.Account{{Bank: " ", Number: "", Holder: "  "}}, nil},
		{"complete", []entity.Account{{Bank: "KB", Number: "1", Holder: "Kim"}}, nil},
		{"second incomplete", []entity.Account{{Bank: "KB", Number: "1", Holder: "Kim"}, {Number: "2", Holder: "Lee"}}, []string{"account-1"}},
		{"two incomplete", []entity.Account{{Holder: "Kim"}, {Bank: "NH", Number: "9"}}, []string{"account-0", "account-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := completeContent()
			c.Accounts = tt.accounts

			var got []string
			for _, issue := range Validate(c) {
				assert.Equal(t, entity.SectionAccount, issue.SectionKey)
				got = append(got, issue.FieldID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateNames(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"김민준", true},
		{"Emily Park", true},
		{"Mary-Jane O'Neil", true},
		{"John Smith Jr.", true},
		{"e\u0301milie", true}, // decomposed accent
		{"", false},
		{"   ", false},
		{"R2D2", false},
		{"<b>Kim</b>", false},
		{"Kim  Lee", false},
		{"-Kim", false},
		{"😀", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := completeContent()
			c.Groom.Name = tt.name
			issues := Validate(c)
			if tt.valid {
				assert.Empty(t, issues)
			} else {
				require.Len(t, issues, 1)
				assert.Equal(t, "groom-name", issues[0].FieldID)
			}
		})
	}
}

func TestValidateGreetingBodyMarkup(t *testing.T) {
	c := completeContent()
	c.Greeting.Body = "<p><br></p><p><strong></strong></p>"

	issues := Validate(c)
	require.Len(t, issues, 1)
	assert.Equal(t, "greeting-body", issues[0].FieldID)
}

func TestValidateGalleryIgnoresBlankURLs(t *testing.T) {
	c := completeContent()
	c.Gallery = []entity.Image{{URL: " "}}

	issues := Validate(c)
	require.Len(t, issues, 1)
	assert.Equal(t, entity.SectionGallery, issues[0].SectionKey)
}

func TestValidateCountry(t *testing.T) {
	c := completeContent()
	c.Venue.Country = "Atlantis"

	issues := Validate(c)
	require.Len(t, issues, 1)
	assert.Equal(t, "venue-country", issues[0].FieldID)

	c.Venue.Country = ""
	assert.Empty(t, Validate(c))
}

func TestErrorCarriesFirstMessage(t *testing.T) {
	c := completeContent()
	c.MainImage = ""
	c.Gallery = nil

	err := Check(c)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFailed))

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Issues, 2)
	assert.Equal(t, "Upload a main photo.", err.Error())
}
