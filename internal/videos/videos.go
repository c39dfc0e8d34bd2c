package videos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"vidtube/internal/auth"
	sl "vidtube/internal/lib/logger"
	"vidtube/internal/models"
	"vidtube/internal/storage"

	"github.com/google/uuid"
)

var ErrValidation = errors.New("validation failed")

type VideoStore interface {
	SaveVideo(ctx context.Context, v models.Video) (models.Video, error)
	VideoByID(ctx context.Context, id string) (models.Video, error)
}

type Service struct {
	log   *slog.Logger
	store VideoStore
	media auth.MediaHost
}

func New(log *slog.Logger, store VideoStore, mediaHost auth.MediaHost) *Service {
	return &Service{
		log:   log,
		store: store,
		media: mediaHost,
	}
}

type PublishInput struct {
	Title       string
	Description string
	Duration    string
	VideoFile   *auth.File
	Thumbnail   *auth.File
}

// Publish uploads the video file and thumbnail to the media host and stores
// the video record for the owner.
func (s *Service) Publish(ctx context.Context, ownerID string, in PublishInput) (models.Video, error) {
	const op = "videos.Publish"

	log := s.log.With(slog.String("op", op))

	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Duration = strings.TrimSpace(in.Duration)

	if in.Title == "" || in.Description == "" || in.Duration == "" {
		return models.Video{}, fmt.Errorf("%w: title, description and duration are required", ErrValidation)
	}
	if in.VideoFile == nil || in.Thumbnail == nil {
		return models.Video{}, fmt.Errorf("%w: video file and thumbnail are required", ErrValidation)
	}

	videoAsset, err := s.media.Upload(ctx, "videos", in.VideoFile.Name, in.VideoFile.Reader, in.VideoFile.Size, in.VideoFile.ContentType)
	if err != nil {
		log.Error("failed to upload video file", sl.Err(err))
		return models.Video{}, auth.ErrUploadFailed
	}

	thumbAsset, err := s.media.Upload(ctx, "thumbnails", in.Thumbnail.Name, in.Thumbnail.Reader, in.Thumbnail.Size, in.Thumbnail.ContentType)
	if err != nil {
		log.Error("failed to upload thumbnail", sl.Err(err))
		return models.Video{}, auth.ErrUploadFailed
	}

	video, err := s.store.SaveVideo(ctx, models.Video{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		VideoFile:   videoAsset.URL,
		Thumbnail:   thumbAsset.URL,
		Title:       in.Title,
		Description: in.Description,
		Duration:    in.Duration,
		IsPublished: true,
	})
	if err != nil {
		log.Error("failed to save video", sl.Err(err))
		return models.Video{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("video published", slog.String("id", video.ID), slog.String("owner", ownerID))

	return video, nil
}

func (s *Service) Get(ctx context.Context, id string) (models.Video, error) {
	const op = "videos.Get"

	video, err := s.store.VideoByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrVideoNotFound) {
			return models.Video{}, storage.ErrVideoNotFound
		}

		s.log.With(slog.String("op", op)).Error("failed to load video", sl.Err(err))
		return models.Video{}, fmt.Errorf("%s: %w", op, err)
	}

	return video, nil
}
