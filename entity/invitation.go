package entity

import (
	"net/http"
	"time"
	"wedlink/lib/validate"

	"github.com/biter777/countries"
)

// Status is the lifecycle state of an invitation.
// Rejection and revocation are not states: they are recorded on ApprovalRequest
// and the invitation itself goes back to StatusDraft.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPendingApproval, StatusApproved:
		return true
	}
	return false
}

// Invitation is the document edited by its owner and served publicly by Slug once approved.
// ID and OwnerID never change after creation. Slug may change only while Published is false.
type Invitation struct {
	ID        string    `json:"id" bson:"_id"`
	OwnerID   string    `json:"owner_id" bson:"owner_id"`
	Slug      string    `json:"slug" bson:"slug,omitempty"`
	Content   Content   `json:"content" bson:"content"`
	Status    Status    `json:"status" bson:"status"`
	Published bool      `json:"published" bson:"published"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

func (i *Invitation) IsOwner(user *User) bool {
	return user != nil && user.ID != "" && user.ID == i.OwnerID
}

// Clone returns a deep copy, so callers may mutate slices without touching the original.
func (i *Invitation) Clone() *Invitation {
	if i == nil {
		return nil
	}
	c := *i
	c.Content = i.Content.Clone()
	return &c
}

// InvitationPatch lists the fields a single write may change; nil fields are left as stored.
type InvitationPatch struct {
	Slug      *string
	Content   *Content
	Status    *Status
	Published *bool
}

type Person struct {
	Name   string `json:"name" bson:"name"`
	Father string `json:"father,omitempty" bson:"father,omitempty"`
	Mother string `json:"mother,omitempty" bson:"mother,omitempty"`
}

type Event struct {
	Date string `json:"date" bson:"date"`
	Time string `json:"time" bson:"time"`
}

type Venue struct {
	Name    string `json:"name" bson:"name"`
	Address string `json:"address" bson:"address"`
	Detail  string `json:"detail,omitempty" bson:"detail,omitempty"`
	Country string `json:"country,omitempty" bson:"country,omitempty"`
}

// CountryCode returns the ISO alpha-2 code of the venue country, or "" when unknown.
func (v Venue) CountryCode() string {
	if v.Country == "" {
		return ""
	}
	country := countries.ByName(v.Country)
	if country == countries.Unknown {
		return ""
	}
	return country.Alpha2()
}

type Greeting struct {
	Title string `json:"title" bson:"title"`
	// Body is rich-text markup produced by the editor.
	Body string `json:"body" bson:"body"`
}

type Image struct {
	URL     string `json:"url" bson:"url"`
	Caption string `json:"caption,omitempty" bson:"caption,omitempty"`
}

type AccountSide string

const (
	SideGroom AccountSide = "groom"
	SideBride AccountSide = "bride"
)

// Account is a bank account guests may send gifts to.
type Account struct {
	Side   AccountSide `json:"side,omitempty" bson:"side,omitempty"`
	Bank   string      `json:"bank" bson:"bank"`
	Number string      `json:"number" bson:"number"`
	Holder string      `json:"holder" bson:"holder"`
}

// Empty reports whether none of bank, number and holder is set.
func (a Account) Empty() bool {
	return a.Bank == "" && a.Number == "" && a.Holder == ""
}

type Share struct {
	Title       string `json:"title,omitempty" bson:"title,omitempty"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty" bson:"image_url,omitempty"`
}

// Content is the editable payload of an invitation.
type Content struct {
	Groom     Person    `json:"groom" bson:"groom"`
	Bride     Person    `json:"bride" bson:"bride"`
	MainImage string    `json:"main_image" bson:"main_image"`
	Event     Event     `json:"event" bson:"event"`
	Venue     Venue     `json:"venue" bson:"venue"`
	Greeting  Greeting  `json:"greeting" bson:"greeting"`
	Gallery   []Image   `json:"gallery" bson:"gallery"`
	Accounts  []Account `json:"accounts" bson:"accounts"`
	Share     Share     `json:"share" bson:"share"`
}

func (c Content) Clone() Content {
	out := c
	if c.Gallery != nil {
		out.Gallery = make([]Image, len(c.Gallery))
		copy(out.Gallery, c.Gallery)
	}
	if c.Accounts != nil {
		out.Accounts = make([]Account, len(c.Accounts))
		copy(out.Accounts, c.Accounts)
	}
	return out
}

// Snapshot is the in-memory state of an edit session handed to the save pipeline.
type Snapshot struct {
	Slug    string  `json:"slug" validate:"max=120"`
	Content Content `json:"content"`
}

func (s *Snapshot) Bind(_ *http.Request) error {
	return validate.Struct(s)
}

// NewInvitationRequest is the body of the create call; everything is optional.
type NewInvitationRequest struct {
	Slug    string  `json:"slug" validate:"max=120"`
	Content Content `json:"content"`
}

func (n *NewInvitationRequest) Bind(_ *http.Request) error {
	return validate.Struct(n)
}
