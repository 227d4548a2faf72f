package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/AnshRaj112/astroguide-backend/internal/kvstore"
	"github.com/AnshRaj112/astroguide-backend/internal/models"
)

const (
	userFlagsPrefix = "user_flags:"
	sealedPrefix    = "enc:"
)

var ErrInvalidEmail = errors.New("invalid email")

// EmailSealer encrypts the stored email.
type EmailSealer interface {
	Seal(plaintext string) (string, error)
	Open(ciphertext string) (string, error)
}

// UserFlags keeps the placeholder account flags per client identity. There
// is no password or session behind a login.
type UserFlags struct {
	store  kvstore.Store
	logger *zap.Logger
	sealer EmailSealer
}

type UserFlagsOption func(*UserFlags)

// WithEmailSealer stores emails encrypted.
func WithEmailSealer(s EmailSealer) UserFlagsOption {
	return func(u *UserFlags) { u.sealer = s }
}

func NewUserFlags(store kvstore.Store, logger *zap.Logger, opts ...UserFlagsOption) *UserFlags {
	if logger == nil {
		logger = zap.NewNop()
	}
	u := &UserFlags{store: store, logger: logger}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func userFlagsKey(identity string) string {
	return userFlagsPrefix + identity
}

// Get returns the stored flags. Missing or unreadable values read as a
// signed-out free user.
func (u *UserFlags) Get(ctx context.Context, identity string) models.UserFlags {
	var flags models.UserFlags
	raw, found, err := u.store.Get(ctx, userFlagsKey(identity))
	if err != nil {
		u.logger.Warn("user flags read failed", zap.Error(err))
		return flags
	}
	if !found {
		return flags
	}
	if err := json.Unmarshal([]byte(raw), &flags); err != nil {
		u.logger.Warn("user flags corrupt, ignoring", zap.Error(err))
		return models.UserFlags{}
	}
	flags.Email = u.openEmail(flags.Email)
	return flags
}

func (u *UserFlags) openEmail(stored string) string {
	sealed, ok := strings.CutPrefix(stored, sealedPrefix)
	if !ok {
		return stored
	}
	if u.sealer == nil {
		u.logger.Warn("stored email is encrypted but no key is configured")
		return ""
	}
	email, err := u.sealer.Open(sealed)
	if err != nil {
		u.logger.Warn("failed to decrypt stored email", zap.Error(err))
		return ""
	}
	return email
}

// Login marks the identity as signed in with email. Premium status survives.
func (u *UserFlags) Login(ctx context.Context, identity, email string) (models.UserFlags, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return models.UserFlags{}, ErrInvalidEmail
	}
	flags := u.Get(ctx, identity)
	flags.IsAuthenticated = true
	flags.Email = strings.ToLower(email)
	return flags, u.put(ctx, identity, flags)
}

// Logout resets every flag.
func (u *UserFlags) Logout(ctx context.Context, identity string) (models.UserFlags, error) {
	flags := models.UserFlags{}
	return flags, u.put(ctx, identity, flags)
}

func (u *UserFlags) UpgradeToPremium(ctx context.Context, identity string) (models.UserFlags, error) {
	flags := u.Get(ctx, identity)
	flags.IsPremiumUser = true
	return flags, u.put(ctx, identity, flags)
}

func (u *UserFlags) put(ctx context.Context, identity string, flags models.UserFlags) error {
	if u.sealer != nil && flags.Email != "" {
		sealed, err := u.sealer.Seal(flags.Email)
		if err != nil {
			return err
		}
		flags.Email = sealedPrefix + sealed
	}
	data, err := json.Marshal(flags)
	if err != nil {
		return err
	}
	return u.store.Set(ctx, userFlagsKey(identity), string(data))
}
