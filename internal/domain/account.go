package domain

import (
	"regexp"
	"strings"
	"time"
)

type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountSuspended AccountStatus = "suspended"
)

type Account struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Slug      string        `json:"slug"`
	Phone     string        `json:"phone,omitempty"`
	Status    AccountStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

type User struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"account_id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Phone        string    `json:"phone,omitempty"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session backs a refresh token. Revoked sessions cannot be refreshed.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	RevokedAt *time.Time
}

func (s Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

var (
	phoneRe = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	slugRe  = regexp.MustCompile(`[^a-z0-9]+`)
)

// Slugify lowercases name and collapses every non-alphanumeric run into a dash.
func Slugify(name string) string {
	s := slugRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	return strings.Trim(s, "-")
}

// NormalizePhone strips spaces, dashes and parentheses.
func NormalizePhone(p string) string {
	return strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(p))
}

func validPhone(p string) bool { return phoneRe.MatchString(NormalizePhone(p)) }

func validEmail(e string) bool {
	at := strings.Index(e, "@")
	return at > 0 && at < len(e)-1 && !strings.ContainsAny(e, " \t")
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return invalid("name", "is required")
	}
	if a.Phone != "" && !validPhone(a.Phone) {
		return invalid("phone", "must be an international phone number")
	}
	return nil
}

func (u User) Validate() error {
	if !validEmail(u.Email) {
		return invalid("email", "must be a valid email address")
	}
	if strings.TrimSpace(u.FullName) == "" {
		return invalid("full_name", "is required")
	}
	if !u.Role.Valid() {
		return invalid("role", "must be admin, owner or agent")
	}
	if u.Phone != "" && !validPhone(u.Phone) {
		return invalid("phone", "must be an international phone number")
	}
	return nil
}
