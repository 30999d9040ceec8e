package store

import (
	"time"

	"arview/pkg/domain"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string
	FullName     string `gorm:"not null"`
	Role         string `gorm:"not null"`
	PlanType     string `gorm:"not null"`
	Avatar       string
	Provider     string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

type ItemModel struct {
	ID           string `gorm:"primaryKey"`
	MerchantID   string `gorm:"not null;index"`
	Name         string `gorm:"not null"`
	Slug         string `gorm:"uniqueIndex;not null"`
	Description  string
	ModelURL     string `gorm:"not null"`
	USDZURL      string
	ThumbnailURL string
	CreatedAt    time.Time `gorm:"not null;index"`
	UpdatedAt    time.Time `gorm:"not null"`
}

type ScanEventModel struct {
	ID         string `gorm:"primaryKey"`
	ItemID     string `gorm:"not null;index"`
	DeviceType string `gorm:"not null"`
	SessionID  string `gorm:"not null"`
	UserAgent  string
	Duration   int       `gorm:"not null;default:0"`
	CreatedAt  time.Time `gorm:"not null;index"`
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FullName:     u.FullName,
		Role:         string(u.Role),
		PlanType:     string(u.PlanType),
		Avatar:       u.Avatar,
		Provider:     string(u.Provider),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		FullName:     m.FullName,
		Role:         domain.UserRole(m.Role),
		PlanType:     domain.PlanType(m.PlanType),
		Avatar:       m.Avatar,
		Provider:     domain.AuthProvider(m.Provider),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func itemToModel(it domain.Item) ItemModel {
	return ItemModel{
		ID:           it.ID,
		MerchantID:   it.MerchantID,
		Name:         it.Name,
		Slug:         it.Slug,
		Description:  it.Description,
		ModelURL:     it.ModelURL,
		USDZURL:      it.USDZURL,
		ThumbnailURL: it.ThumbnailURL,
		CreatedAt:    it.CreatedAt,
		UpdatedAt:    it.UpdatedAt,
	}
}

func itemFromModel(m ItemModel) domain.Item {
	return domain.Item{
		ID:           m.ID,
		MerchantID:   m.MerchantID,
		Name:         m.Name,
		Slug:         m.Slug,
		Description:  m.Description,
		ModelURL:     m.ModelURL,
		USDZURL:      m.USDZURL,
		ThumbnailURL: m.ThumbnailURL,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func scanEventToModel(e domain.ScanEvent) ScanEventModel {
	return ScanEventModel{
		ID:         e.ID,
		ItemID:     e.ItemID,
		DeviceType: e.DeviceType,
		SessionID:  e.SessionID,
		UserAgent:  e.UserAgent,
		Duration:   e.Duration,
		CreatedAt:  e.CreatedAt,
	}
}

func scanEventFromModel(m ScanEventModel) domain.ScanEvent {
	return domain.ScanEvent{
		ID:         m.ID,
		ItemID:     m.ItemID,
		DeviceType: m.DeviceType,
		SessionID:  m.SessionID,
		UserAgent:  m.UserAgent,
		Duration:   m.Duration,
		CreatedAt:  m.CreatedAt,
	}
}
