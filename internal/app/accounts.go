package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"rentdesk/internal/auth"
	"rentdesk/internal/domain"
)

type Accounts struct {
	base
	repo   domain.AccountRepository
	tokens *auth.Issuer
	plans  PlanSource
}

func NewAccounts(r domain.AccountRepository, tokens *auth.Issuer, plans PlanSource, d Deps) *Accounts {
	return &Accounts{base: d.base(), repo: r, tokens: tokens, plans: plans}
}

type SignUpInput struct {
	AccountName string `json:"account_name"`
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Password    string `json:"password"`
}

type UserInput struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// Session is what sign-up, login and refresh hand back to the client.
type Session struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	TokenType    string         `json:"token_type"`
	ExpiresAt    time.Time      `json:"expires_at"`
	User         domain.User    `json:"user"`
	Account      domain.Account `json:"account"`
}

type Profile struct {
	User    domain.User    `json:"user"`
	Account domain.Account `json:"account"`
}

// SignUp is the account-creation procedure: a new account, its owner and a
// trial subscription are stored together, then a session is opened.
func (s *Accounts) SignUp(ctx context.Context, in SignUpInput) (Session, error) {
	now := s.now()
	acc := domain.Account{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.AccountName),
		Phone:     domain.NormalizePhone(in.Phone),
		Status:    domain.AccountActive,
		CreatedAt: now,
	}
	acc.Slug = uniqueSlug(acc.Name, acc.ID)
	if err := acc.Validate(); err != nil {
		return Session{}, err
	}
	owner, err := s.newUser(acc.ID, domain.RoleOwner, UserInput{FullName: in.FullName, Email: in.Email, Phone: in.Phone, Password: in.Password}, now)
	if err != nil {
		return Session{}, err
	}

	plan, days := s.plans.Trial()
	sub := &domain.Subscription{
		ID:                 uuid.NewString(),
		PlanCode:           plan.Code,
		Status:             domain.SubTrialing,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 0, days),
		UpdatedAt:          now,
	}
	if err := s.repo.CreateAccountWithOwner(ctx, acc, owner, sub); err != nil {
		return Session{}, err
	}
	s.changed(ctx, acc.ID, domain.EntityAccount, acc.ID, domain.OpInsert)
	return s.open(ctx, owner, acc)
}

// CreateAdmin provisions a platform operator in its own account.
func (s *Accounts) CreateAdmin(ctx context.Context, in UserInput) (domain.User, error) {
	now := s.now()
	acc := domain.Account{ID: uuid.NewString(), Name: "Platform", Status: domain.AccountActive, CreatedAt: now}
	acc.Slug = uniqueSlug("platform", acc.ID)
	u, err := s.newUser(acc.ID, domain.RoleAdmin, in, now)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.repo.CreateAccountWithOwner(ctx, acc, u, nil); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (s *Accounts) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.repo.UserByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return Session{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}
	if err != nil {
		return Session{}, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return Session{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}
	acc, err := s.activeAccount(ctx, u)
	if err != nil {
		return Session{}, err
	}
	return s.open(ctx, u, acc)
}

// Refresh rotates the session behind refreshToken: the old session is revoked
// and a new pair of tokens is issued.
func (s *Accounts) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	c, err := s.tokens.Parse(refreshToken, auth.TypeRefresh)
	if err != nil {
		return Session{}, err
	}
	sess, err := s.repo.GetSession(ctx, c.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return Session{}, fmt.Errorf("%w: unknown session", domain.ErrUnauthorized)
	}
	if err != nil {
		return Session{}, err
	}
	if !sess.Active(s.now()) || sess.UserID != c.Subject {
		return Session{}, fmt.Errorf("%w: session expired or revoked", domain.ErrUnauthorized)
	}
	u, err := s.repo.GetUser(ctx, sess.UserID)
	if err != nil {
		return Session{}, err
	}
	acc, err := s.activeAccount(ctx, u)
	if err != nil {
		return Session{}, err
	}
	if err := s.repo.RevokeSession(ctx, sess.ID, s.now()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Session{}, fmt.Errorf("%w: session already rotated", domain.ErrUnauthorized)
		}
		return Session{}, err
	}
	return s.open(ctx, u, acc)
}

// Logout revokes the session; an already revoked session is not an error.
func (s *Accounts) Logout(ctx context.Context, refreshToken string) error {
	c, err := s.tokens.Parse(refreshToken, auth.TypeRefresh)
	if err != nil {
		return err
	}
	if err := s.repo.RevokeSession(ctx, c.ID, s.now()); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

// Authorize verifies an access token and returns the caller scope. Members of
// a suspended account are refused.
func (s *Accounts) Authorize(ctx context.Context, accessToken string) (domain.Scope, error) {
	c, err := s.tokens.Parse(accessToken, auth.TypeAccess)
	if err != nil {
		return domain.Scope{}, err
	}
	sc := c.Scope()
	if !sc.Role.Valid() {
		return domain.Scope{}, fmt.Errorf("%w: unknown role", domain.ErrUnauthorized)
	}
	acc, err := s.account(ctx, sc.AccountID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Scope{}, fmt.Errorf("%w: account no longer exists", domain.ErrUnauthorized)
	}
	if err != nil {
		return domain.Scope{}, err
	}
	if acc.Status == domain.AccountSuspended && !sc.IsAdmin() {
		return domain.Scope{}, domain.ErrAccountSuspended
	}
	return sc, nil
}

func (s *Accounts) Me(ctx context.Context) (Profile, error) {
	sc, err := scope(ctx)
	if err != nil {
		return Profile{}, err
	}
	u, err := s.repo.GetUser(ctx, sc.UserID)
	if err != nil {
		return Profile{}, err
	}
	acc, err := s.account(ctx, sc.AccountID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{User: u, Account: acc}, nil
}

// InviteAgent adds a staff user to the owner's account.
func (s *Accounts) InviteAgent(ctx context.Context, in UserInput) (domain.User, error) {
	sc, err := requireRole(ctx, domain.RoleOwner)
	if err != nil {
		return domain.User{}, err
	}
	u, err := s.newUser(sc.AccountID, domain.RoleAgent, in, s.now())
	if err != nil {
		return domain.User{}, err
	}
	out, err := s.repo.CreateUser(ctx, u)
	if err != nil {
		return domain.User{}, err
	}
	s.changed(ctx, sc.AccountID, domain.EntityUser, out.ID, domain.OpInsert)
	return out, nil
}

func (s *Accounts) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.repo.ListUsers(ctx)
}

func (s *Accounts) newUser(accountID string, role domain.Role, in UserInput, now time.Time) (domain.User, error) {
	u := domain.User{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		FullName:  strings.TrimSpace(in.FullName),
		Phone:     domain.NormalizePhone(in.Phone),
		Role:      role,
		CreatedAt: now,
	}
	if err := u.Validate(); err != nil {
		return domain.User{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, err
	}
	u.PasswordHash = hash
	return u, nil
}

func (s *Accounts) account(ctx context.Context, id string) (domain.Account, error) {
	return cached(ctx, &s.base, itemKey(domain.EntityAccount, id, id), func() (domain.Account, error) {
		return s.repo.GetAccount(ctx, id)
	})
}

func (s *Accounts) activeAccount(ctx context.Context, u domain.User) (domain.Account, error) {
	acc, err := s.account(ctx, u.AccountID)
	if err != nil {
		return domain.Account{}, err
	}
	if acc.Status == domain.AccountSuspended && u.Role != domain.RoleAdmin {
		return domain.Account{}, domain.ErrAccountSuspended
	}
	return acc, nil
}

func (s *Accounts) open(ctx context.Context, u domain.User, acc domain.Account) (Session, error) {
	sid := uuid.NewString()
	if err := s.repo.CreateSession(ctx, domain.Session{
		ID:        sid,
		UserID:    u.ID,
		ExpiresAt: s.now().Add(s.tokens.RefreshTTL()),
	}); err != nil {
		return Session{}, err
	}
	access, exp, err := s.tokens.IssueAccess(u)
	if err != nil {
		return Session{}, err
	}
	refresh, _, err := s.tokens.IssueRefresh(u, sid)
	if err != nil {
		return Session{}, err
	}
	return Session{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresAt:    exp,
		User:         u,
		Account:      acc,
	}, nil
}

// uniqueSlug suffixes the slug with part of the account id so two accounts
// with the same name never collide on the unique slug.
func uniqueSlug(name, id string) string {
	base := domain.Slugify(name)
	if base == "" {
		base = "account"
	}
	return base + "-" + strings.ReplaceAll(id, "-", "")[:6]
}
