package model

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username     string    `gorm:"size:64;uniqueIndex;not null"`
	Email        string    `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string    `gorm:"size:255;not null"`
	Status       string    `gorm:"size:16;not null;default:offline"`
	Avatar       string    `gorm:"size:512;not null;default:''"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

type Room struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey"`
	Name        string       `gorm:"size:255;uniqueIndex;not null"`
	Description string       `gorm:"type:text"`
	IsPrivate   bool         `gorm:"not null;default:false;index"`
	CreatedBy   uuid.UUID    `gorm:"type:uuid;index;not null"`
	Creator     User         `gorm:"foreignKey:CreatedBy"`
	Members     []RoomMember `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time    `gorm:"not null"`
}

type RoomMember struct {
	RoomID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	JoinedAt time.Time `gorm:"not null"`
}

type Message struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	SenderID  uuid.UUID `gorm:"type:uuid;index;not null"`
	Sender    User      `gorm:"foreignKey:SenderID"`
	RoomID    uuid.UUID `gorm:"type:uuid;index:idx_messages_room_created,priority:1;not null"`
	Content   string    `gorm:"type:text;not null"`
	Kind      string    `gorm:"size:16;not null;default:text"`
	FileURL   string    `gorm:"size:1024"`
	FileName  string    `gorm:"size:255"`
	CreatedAt time.Time `gorm:"index:idx_messages_room_created,priority:2;not null"`
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{&User{}, &Room{}, &RoomMember{}, &Message{}}
}
