package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"taskdeck/internal/model"
)

// ErrNoSession is returned when no credential is stored.
var ErrNoSession = errors.New("no active session")

// SessionRepository keeps the single bearer credential of the signed-in user.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Save stores token as the current credential, replacing any previous one.
func (r *SessionRepository) Save(ctx context.Context, token string) (*model.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("empty token")
	}

	var session model.Session
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Order("id ASC").First(&session).Error
		switch {
		case err == nil:
			if err := tx.Model(&session).Update("token", token).Error; err != nil {
				return fmt.Errorf("update session: %w", err)
			}
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			session = model.Session{Token: token}
			if err := tx.Create(&session).Error; err != nil {
				return fmt.Errorf("create session: %w", err)
			}
			return nil
		default:
			return fmt.Errorf("find session: %w", err)
		}
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Current returns the stored credential or ErrNoSession.
func (r *SessionRepository) Current(ctx context.Context) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).Order("id ASC").First(&session).Error
	switch {
	case err == nil:
		return &session, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNoSession
	default:
		return nil, fmt.Errorf("find session: %w", err)
	}
}

// Invalidate forgets the credential. It is not an error when none is stored.
func (r *SessionRepository) Invalidate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Where("1 = 1").Delete(&model.Session{}).Error; err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
