package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/reportdeck/reportdeck/internal/model"
	"github.com/reportdeck/reportdeck/internal/repository"
	"github.com/reportdeck/reportdeck/internal/storage"
	"github.com/reportdeck/reportdeck/internal/validation"
)

var ErrAvatarStorageDisabled = errors.New("avatar storage is not configured")

type UserService struct {
	userRepo  repository.UserRepository
	fileRepo  repository.FileRepository
	blobStore storage.BlobStore // nil when S3 is not configured
}

func NewUserService(userRepo repository.UserRepository, fileRepo repository.FileRepository, blobStore storage.BlobStore) *UserService {
	return &UserService{
		userRepo:  userRepo,
		fileRepo:  fileRepo,
		blobStore: blobStore,
	}
}

// ByID loads a user with the avatar URL attached when one exists.
func (s *UserService) ByID(id string) (*model.User, error) {
	user, err := s.userRepo.ByID(id)
	if err != nil {
		return nil, err
	}

	if s.blobStore != nil {
		if avatar, err := s.fileRepo.ByUserAndType(user.ID, model.FileTypeAvatar); err == nil {
			user.AvatarURL = s.blobStore.URL(avatar.StoragePath)
		}
	}

	return user, nil
}

// UploadAvatar stores the image and replaces any previous avatar.
func (s *UserService) UploadAvatar(userID, originalName, mimeType string, size int64, content io.Reader) (*model.File, error) {
	if s.blobStore == nil {
		return nil, ErrAvatarStorageDisabled
	}

	if err := validation.ValidateAvatarUpload(mimeType, size); err != nil {
		return nil, err
	}

	file := &model.File{
		ID:           uuid.New().String(),
		UserID:       userID,
		Type:         model.FileTypeAvatar,
		Filename:     uuid.New().String() + filepath.Ext(originalName),
		OriginalName: originalName,
		MimeType:     mimeType,
		Size:         size,
		CreatedAt:    time.Now(),
	}
	file.StoragePath = fmt.Sprintf("avatars/%s/%s", userID, file.Filename)

	if err := s.blobStore.Save(file.StoragePath, content); err != nil {
		return nil, fmt.Errorf("failed to store avatar: %w", err)
	}

	s.removeExistingAvatar(userID)

	if err := s.fileRepo.Create(file); err != nil {
		return nil, fmt.Errorf("failed to record avatar: %w", err)
	}

	slog.Info("avatar uploaded", "user_id", userID, "file_id", file.ID)
	return file, nil
}

func (s *UserService) DeleteAvatar(userID string) error {
	if s.blobStore == nil {
		return ErrAvatarStorageDisabled
	}

	s.removeExistingAvatar(userID)
	return nil
}

func (s *UserService) removeExistingAvatar(userID string) {
	existing, err := s.fileRepo.ByUserAndType(userID, model.FileTypeAvatar)
	if err != nil {
		return
	}

	if err := s.blobStore.Delete(existing.StoragePath); err != nil {
		slog.Warn("failed to delete old avatar object", "user_id", userID, "path", existing.StoragePath, "error", err)
	}
	if err := s.fileRepo.Delete(existing.ID); err != nil {
		slog.Warn("failed to delete old avatar record", "user_id", userID, "file_id", existing.ID, "error", err)
	}
}
