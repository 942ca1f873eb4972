package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/huddle/internal/domain"
	"github.com/immxrtalbeast/huddle/internal/repository/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user == nil {
		return errors.New("user is nil")
	}

	userModel := toModelUser(user)

	if err := r.db.WithContext(ctx).Create(userModel).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *GormUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var user model.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return toDomainUser(&user), nil
}

func (r *GormUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var user model.User
	err := r.db.WithContext(ctx).First(&user, "email = ?", strings.ToLower(email)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return toDomainUser(&user), nil
}

func (r *GormUserRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.UserStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(map[string]any{
		"status":     string(status),
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update user status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

type GormRoomRepository struct {
	db *gorm.DB
}

func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	return &GormRoomRepository{db: db}
}

func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if room == nil {
		return errors.New("room is nil")
	}

	roomModel := toModelRoom(room)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(roomModel).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrRoomNameExists
			}
			return fmt.Errorf("failed to create room: %w", err)
		}
		if len(roomModel.Members) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&roomModel.Members).Error; err != nil {
				return fmt.Errorf("failed to add room members: %w", err)
			}
		}
		return nil
	})
}

func (r *GormRoomRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return r.getByID(r.db.WithContext(ctx), id)
}

func (r *GormRoomRepository) getByID(db *gorm.DB, id uuid.UUID) (*domain.Room, error) {
	var room model.Room
	err := db.Preload("Creator").
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at asc") }).
		First(&room, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to find room: %w", err)
	}

	return toDomainRoom(&room), nil
}

func (r *GormRoomRepository) ListVisible(ctx context.Context, userID uuid.UUID) ([]*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db := r.db.WithContext(ctx)
	memberOf := db.Model(&model.RoomMember{}).Select("room_id").Where("user_id = ?", userID)

	var rooms []model.Room
	err := db.Preload("Creator").
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at asc") }).
		Where("is_private = ? OR id IN (?)", false, memberOf).
		Order("created_at asc").
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	result := make([]*domain.Room, 0, len(rooms))
	for i := range rooms {
		result = append(result, toDomainRoom(&rooms[i]))
	}
	return result, nil
}

func (r *GormRoomRepository) AddMember(ctx context.Context, roomID, userID uuid.UUID) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var room *domain.Room
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Room{}).Where("id = ?", roomID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to find room: %w", err)
		}
		if count == 0 {
			return ErrRoomNotFound
		}

		member := model.RoomMember{RoomID: roomID, UserID: userID, JoinedAt: time.Now().UTC()}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error; err != nil {
			return fmt.Errorf("failed to add room member: %w", err)
		}

		var err error
		room, err = r.getByID(tx, roomID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(toModelMessage(msg)).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (r *GormMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var msg model.Message
	err := r.db.WithContext(ctx).Preload("Sender").First(&msg, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to find message: %w", err)
	}

	return toDomainMessage(&msg), nil
}

func (r *GormMessageRepository) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var msgs []model.Message
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("room_id = ?", roomID).
		Order("created_at asc").
		Order("id asc").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	result := make([]*domain.Message, 0, len(msgs))
	for i := range msgs {
		result = append(result, toDomainMessage(&msgs[i]))
	}
	return result, nil
}

func toModelUser(user *domain.User) *model.User {
	status := user.Status
	if status == "" {
		status = domain.UserStatusOffline
	}
	return &model.User{
		ID:           user.ID,
		Username:     user.Username,
		Email:        strings.ToLower(user.Email),
		PasswordHash: user.PasswordHash,
		Status:       string(status),
		Avatar:       user.Avatar,
		CreatedAt:    user.CreatedAt.UTC(),
		UpdatedAt:    user.UpdatedAt.UTC(),
	}
}

func toDomainUser(user *model.User) *domain.User {
	return &domain.User{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Status:       domain.UserStatus(user.Status),
		Avatar:       user.Avatar,
		CreatedAt:    user.CreatedAt.UTC(),
		UpdatedAt:    user.UpdatedAt.UTC(),
	}
}

func toModelRoom(room *domain.Room) *model.Room {
	createdAt := room.CreatedAt.UTC()
	members := make([]model.RoomMember, 0, len(room.Members))
	for i, userID := range room.Members {
		members = append(members, model.RoomMember{
			RoomID: room.ID,
			UserID: userID,
			// keep declaration order stable for equal timestamps
			JoinedAt: createdAt.Add(time.Duration(i) * time.Microsecond),
		})
	}

	return &model.Room{
		ID:          room.ID,
		Name:        room.Name,
		Description: room.Description,
		IsPrivate:   room.IsPrivate,
		CreatedBy:   room.CreatedBy,
		Members:     members,
		CreatedAt:   createdAt,
	}
}

func toDomainRoom(room *model.Room) *domain.Room {
	members := make([]uuid.UUID, 0, len(room.Members))
	for _, m := range room.Members {
		members = append(members, m.UserID)
	}

	return &domain.Room{
		ID:          room.ID,
		Name:        room.Name,
		Description: room.Description,
		IsPrivate:   room.IsPrivate,
		CreatedBy:   room.CreatedBy,
		CreatorName: room.Creator.Username,
		Members:     members,
		CreatedAt:   room.CreatedAt.UTC(),
	}
}

func toModelMessage(msg *domain.Message) *model.Message {
	return &model.Message{
		ID:        msg.ID,
		SenderID:  msg.SenderID,
		RoomID:    msg.RoomID,
		Content:   msg.Content,
		Kind:      string(msg.Kind),
		FileURL:   msg.FileURL,
		FileName:  msg.FileName,
		CreatedAt: msg.CreatedAt.UTC(),
	}
}

func toDomainMessage(msg *model.Message) *domain.Message {
	out := &domain.Message{
		ID:        msg.ID,
		SenderID:  msg.SenderID,
		RoomID:    msg.RoomID,
		Content:   msg.Content,
		Kind:      domain.MessageKind(msg.Kind),
		FileURL:   msg.FileURL,
		FileName:  msg.FileName,
		CreatedAt: msg.CreatedAt.UTC(),
	}
	if msg.Sender.ID != uuid.Nil {
		out.Sender = &domain.MessageSender{
			ID:       msg.Sender.ID,
			Username: msg.Sender.Username,
			Avatar:   msg.Sender.Avatar,
		}
	}
	return out
}
