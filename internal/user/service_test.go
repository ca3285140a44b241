// AngelaMos | 2026
// service_test.go

package user

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/carterperez-dev/edu-platform/auth-service/internal/core"
)

type memRepo struct {
	mu    sync.Mutex
	users map[string]*User
}

func newMemRepo() *memRepo {
	return &memRepo{users: map[string]*User{}}
}

func (m *memRepo) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Email == u.Email {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (m *memRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
}

func (m *memRepo) UpdateProfile(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.users[u.ID]
	if !ok {
		return fmt.Errorf("update user: %w", core.ErrNotFound)
	}
	stored.FirstName = u.FirstName
	stored.LastName = u.LastName
	return nil
}

func (m *memRepo) UpdatePassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.users[id]
	if !ok {
		return fmt.Errorf("update password: %w", core.ErrNotFound)
	}
	stored.PasswordHash = hash
	return nil
}

func (m *memRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name         string
		role         string
		wantApproved bool
		wantErr      error
	}{
		{"student approved", RoleStudent, true, nil},
		{"teacher pending", RoleTeacher, false, nil},
		{"unknown role", "admin", false, core.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(newMemRepo())

			u, err := svc.Register(context.Background(), CreateUserRequest{
				Email:     "  New.User@Example.com ",
				Password:  "secret1",
				FirstName: "New",
				LastName:  "User",
				Role:      tt.role,
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Register() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}

			if u.Email != "new.user@example.com" {
				t.Errorf("Email = %q", u.Email)
			}
			if u.Approved != tt.wantApproved {
				t.Errorf("Approved = %v, want %v", u.Approved, tt.wantApproved)
			}
			if u.Tier != TierFree {
				t.Errorf("Tier = %q, want %q", u.Tier, TierFree)
			}
			if ok, _ := core.VerifyPassword("secret1", u.PasswordHash); !ok {
				t.Error("stored hash does not verify")
			}
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	svc := NewService(newMemRepo())
	req := CreateUserRequest{
		Email:     "dup@example.com",
		Password:  "secret1",
		FirstName: "D",
		LastName:  "U",
		Role:      RoleStudent,
	}

	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	req.Email = "DUP@example.com"
	if _, err := svc.Register(context.Background(), req); !errors.Is(err, ErrEmailExists) {
		t.Errorf("Register() error = %v, want %v", err, ErrEmailExists)
	}
}

func TestUserProvider(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.Register(ctx, CreateUserRequest{
		Email:     "t@example.com",
		Password:  "secret1",
		FirstName: "T",
		LastName:  "Teacher",
		Role:      RoleTeacher,
	})
	if err != nil {
		t.Fatal(err)
	}

	info, err := svc.GetByEmail(ctx, " T@Example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if info.ID != created.ID || info.Role != RoleTeacher || info.Approved {
		t.Errorf("GetByEmail() = %+v", info)
	}

	if err := svc.UpdatePassword(ctx, created.ID, "new-hash"); err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}
	info, err = svc.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if info.PasswordHash != "new-hash" {
		t.Errorf("PasswordHash = %q", info.PasswordHash)
	}

	if _, err := svc.GetByID(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetByID(missing) error = %v, want ErrNotFound", err)
	}
}

func TestUpdateMe(t *testing.T) {
	svc := NewService(newMemRepo())
	ctx := context.Background()

	u, err := svc.Register(ctx, CreateUserRequest{
		Email:     "me@example.com",
		Password:  "secret1",
		FirstName: "Old",
		LastName:  "Name",
		Role:      RoleStudent,
	})
	if err != nil {
		t.Fatal(err)
	}

	first := "New"
	updated, err := svc.UpdateMe(ctx, u.ID, UpdateUserRequest{FirstName: &first})
	if err != nil {
		t.Fatalf("UpdateMe() error = %v", err)
	}
	if updated.FirstName != "New" || updated.LastName != "Name" {
		t.Errorf("UpdateMe() = %+v", updated)
	}

	if _, err := svc.UpdateMe(ctx, "", UpdateUserRequest{}); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("UpdateMe(\"\") error = %v, want ErrUnauthorized", err)
	}
}
