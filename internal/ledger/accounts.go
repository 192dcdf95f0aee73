package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/autolink/internal/models"
)

// RegisterInput carries the fields needed to open an account.
type RegisterInput struct {
	FullName     string
	Username     string
	Email        string
	Phone        string
	Hcode        string
	PasswordHash string
}

// RegisterUser creates an unverified account and emails the one-time
// verification code. A phone number may back at most one verified account
// per email-provider domain; a second registration on the same provider
// is rejected with ErrDuplicateIdentity.
func (l *Ledger) RegisterUser(in RegisterInput) (*models.User, error) {
	if in.FullName == "" || in.Username == "" || in.Email == "" || in.Phone == "" {
		return nil, fmt.Errorf("%w: full name, username, email and phone are required", ErrValidation)
	}

	domain := emailDomain(in.Email)

	var user models.User
	err := l.db.Transaction(func(tx *gorm.DB) error {
		var clashes []models.User
		if err := tx.Where("phone = ? AND is_verified = ?", in.Phone, true).Find(&clashes).Error; err != nil {
			return err
		}
		for _, u := range clashes {
			if emailDomain(u.Email) == domain {
				return ErrDuplicateIdentity
			}
		}

		var existing models.User
		if err := tx.Where("username = ?", in.Username).First(&existing).Error; err == nil {
			return fmt.Errorf("%w: username is taken", ErrValidation)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		code, err := randomDigits(6)
		if err != nil {
			return err
		}

		user = models.User{
			FullName:         in.FullName,
			Username:         in.Username,
			Email:            in.Email,
			Phone:            in.Phone,
			Hcode:            in.Hcode,
			PasswordHash:     in.PasswordHash,
			IsVerified:       false,
			VerificationCode: code,
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, err
	}

	l.notify(
		user.Email,
		"Verify your Auto-Link Account",
		fmt.Sprintf("Hello %s, welcome to Auto-Link! Your verification code is: %s. Enter this code in the app to activate your account.",
			user.FullName, user.VerificationCode),
	)

	return &user, nil
}

// VerifyUser matches the supplied code against the account's one-time
// code. On success the code is cleared and the account becomes active.
// A code redeems exactly once: verifying an already-active account is
// rejected, so this path can never be replayed to obtain a session.
func (l *Ledger) VerifyUser(userID uuid.UUID, code string) (*models.User, error) {
	var user models.User
	err := l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if user.IsVerified {
			return ErrInvalidCode
		}
		if user.VerificationCode != code {
			return ErrInvalidCode
		}

		user.IsVerified = true
		user.VerificationCode = ""
		return tx.Model(&models.User{}).Where("id = ?", user.ID).
			Updates(map[string]any{"is_verified": true, "verification_code": ""}).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateGroup creates a group and auto-enrolls the creator as admin.
func (l *Ledger) CreateGroup(creatorID uuid.UUID, name, handle, hcode string) (*models.Group, error) {
	if name == "" || handle == "" {
		return nil, fmt.Errorf("%w: group name and handle are required", ErrValidation)
	}

	shortID, err := randomDigits(4)
	if err != nil {
		return nil, err
	}

	group := models.Group{
		Name:      name,
		Username:  handle,
		UniqueID:  "AL-" + shortID,
		Hcode:     hcode,
		CreatedBy: creatorID,
	}

	err = l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.User{}, "id = ?", creatorID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Where("username = ?", handle).First(&models.Group{}).Error; err == nil {
			return fmt.Errorf("%w: group handle is taken", ErrValidation)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		member := models.GroupMember{
			GroupID:  group.ID,
			UserID:   creatorID,
			Role:     models.RoleAdmin,
			JoinedAt: time.Now(),
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// JoinGroup enrolls a user into the group behind the handle. Joining a
// group the user already belongs to is an idempotent no-op.
func (l *Ledger) JoinGroup(userID uuid.UUID, handle string) (*models.Group, error) {
	var group models.Group
	err := l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("username = ?", handle).First(&group).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var existing models.GroupMember
		err := tx.Where("group_id = ? AND user_id = ?", group.ID, userID).First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		member := models.GroupMember{
			GroupID:  group.ID,
			UserID:   userID,
			Role:     models.RoleMember,
			JoinedAt: time.Now(),
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// IsMember reports whether the user holds a membership row in the group.
func (l *Ledger) IsMember(groupID, userID uuid.UUID) (bool, error) {
	var count int64
	err := l.db.Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	return count > 0, err
}

func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}
