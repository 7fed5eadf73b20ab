package repository

import (
	"context"
	"time"
)

const (
	// RoleUser es el rol por defecto de un usuario nuevo.
	RoleUser = "USER"
	// ProviderGoogle identifica cuentas creadas vía Google.
	ProviderGoogle = "GOOGLE"
)

// User es el registro local de un usuario. El email es la clave natural y
// va como "sub" en los tokens.
type User struct {
	ID         string
	Email      string
	Name       string
	Provider   string
	ProviderID string
	Role       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ExternalProfile es lo que devuelve el proveedor de identidad tras el canje del code.
type ExternalProfile struct {
	Email      string
	Name       string
	ExternalID string
	Picture    string
}

// Profile son los datos editables por el propio usuario.
type Profile struct {
	UserID      string    `json:"-"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Bio         string    `json:"bio"`
	Location    string    `json:"location"`
	Website     string    `json:"website"`
	PhoneNumber string    `json:"phone_number"`
	AvatarURL   string    `json:"avatar_url"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProfileUpdate reemplaza los campos editables (PUT semántico: vacío = vacío).
type ProfileUpdate struct {
	Bio         string `json:"bio"`
	Location    string `json:"location"`
	Website     string `json:"website"`
	PhoneNumber string `json:"phone_number"`
	AvatarURL   string `json:"avatar_url"`
}

// UserRepository es el directorio local de usuarios.
type UserRepository interface {
	// GetByEmail retorna ErrNotFound si no existe.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// FindOrCreate busca por email; si no existe crea el usuario (rol USER) junto con
	// su perfil inicial (avatar del proveedor). Si existe, refresca el nombre.
	// created indica si el usuario es nuevo.
	FindOrCreate(ctx context.Context, p ExternalProfile, provider string) (u *User, created bool, err error)
}

// ProfileRepository gestiona los perfiles.
type ProfileRepository interface {
	// GetProfile retorna ErrNotFound si el usuario no existe.
	GetProfile(ctx context.Context, email string) (*Profile, error)
	UpdateProfile(ctx context.Context, email string, in ProfileUpdate) (*Profile, error)
}

// Directory agrupa ambos repositorios (una implementación por driver).
type Directory interface {
	UserRepository
	ProfileRepository
	Ping(ctx context.Context) error
	Close()
}
