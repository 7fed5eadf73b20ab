// Package memory implementa el directorio de usuarios en memoria (dev/tests).
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/civicauth/internal/domain/repository"
	"github.com/google/uuid"
)

type entry struct {
	user    repository.User
	profile repository.Profile
}

// Directory guarda usuarios y perfiles indexados por email normalizado.
type Directory struct {
	mu    sync.RWMutex
	users map[string]*entry
	now   func() time.Time
}

var _ repository.Directory = (*Directory)(nil)

func New() *Directory {
	return &Directory{users: make(map[string]*entry), now: time.Now}
}

func normEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func (d *Directory) GetByEmail(_ context.Context, email string) (*repository.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.users[normEmail(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := e.user
	return &u, nil
}

func (d *Directory) FindOrCreate(_ context.Context, p repository.ExternalProfile, provider string) (*repository.User, bool, error) {
	email := normEmail(p.Email)
	if email == "" {
		return nil, false, repository.ErrInvalidInput
	}
	now := d.now().UTC()

	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.users[email]; ok {
		if p.Name != "" && p.Name != e.user.Name {
			e.user.Name = p.Name
			e.user.UpdatedAt = now
			e.profile.Name = p.Name
		}
		u := e.user
		return &u, false, nil
	}

	id := uuid.NewString()
	e := &entry{
		user: repository.User{
			ID:         id,
			Email:      email,
			Name:       p.Name,
			Provider:   provider,
			ProviderID: p.ExternalID,
			Role:       repository.RoleUser,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		profile: repository.Profile{
			UserID:    id,
			Email:     email,
			Name:      p.Name,
			AvatarURL: p.Picture,
			UpdatedAt: now,
		},
	}
	d.users[email] = e
	u := e.user
	return &u, true, nil
}

func (d *Directory) GetProfile(_ context.Context, email string) (*repository.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.users[normEmail(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p := e.profile
	return &p, nil
}

func (d *Directory) UpdateProfile(_ context.Context, email string, in repository.ProfileUpdate) (*repository.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.users[normEmail(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	e.profile.Bio = in.Bio
	e.profile.Location = in.Location
	e.profile.Website = in.Website
	e.profile.PhoneNumber = in.PhoneNumber
	e.profile.AvatarURL = in.AvatarURL
	e.profile.UpdatedAt = d.now().UTC()
	p := e.profile
	return &p, nil
}

// SetRole cambia el rol de un usuario (seed/admin manual).
func (d *Directory) SetRole(email, role string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.users[normEmail(email)]
	if !ok {
		return repository.ErrNotFound
	}
	e.user.Role = role
	return nil
}

func (d *Directory) Ping(context.Context) error { return nil }
func (d *Directory) Close()                     {}
