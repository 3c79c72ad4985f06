package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nabeul-archive/poemap/internal/image"
	"github.com/nabeul-archive/poemap/internal/location"
	"github.com/nabeul-archive/poemap/internal/validate"
)

// Validation errors.
var (
	ErrInvalidDetails = errors.New("invalid submission details")
)

// FileUploader stores an attachment and returns its public URL.
type FileUploader interface {
	UploadObject(ctx context.Context, folder, filename string, data []byte) (string, error)
}

// Synthesizer produces generated content. Both methods degrade to static
// fallbacks internally, so callers always get usable output.
type Synthesizer interface {
	Poem(ctx context.Context, locationName, poetName string) string
	Mural(ctx context.Context, poemText, locationName string) string
}

// Service drives submission drafts from details to launch.
type Service struct {
	mu     sync.Mutex
	drafts map[string]*Draft

	locations location.Repository
	uploader  FileUploader
	synth     Synthesizer
	logger    *slog.Logger
}

// NewService creates a submission service.
func NewService(locations location.Repository, uploader FileUploader, synth Synthesizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		drafts:    make(map[string]*Draft),
		locations: locations,
		uploader:  uploader,
		synth:     synth,
		logger:    logger,
	}
}

// Begin opens a fresh draft for the user.
func (s *Service) Begin(userID string) *Draft {
	d := &Draft{
		ID:     uuid.New().String(),
		UserID: userID,
		State:  StateDetails,
	}
	s.mu.Lock()
	s.drafts[d.ID] = d
	s.mu.Unlock()
	return d.snapshot()
}

// BeginEdit opens a draft pre-populated from a stored location. Only the
// submitting user may edit their location.
func (s *Service) BeginEdit(ctx context.Context, userID, locationID string) (*Draft, error) {
	loc, err := s.locations.GetByID(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if loc.UserID != userID {
		return nil, ErrNotOwner
	}

	d := &Draft{
		ID:      uuid.New().String(),
		UserID:  userID,
		State:   StateDetails,
		Details: DetailsFromLocation(loc),
	}
	s.mu.Lock()
	s.drafts[d.ID] = d
	s.mu.Unlock()
	return d.snapshot(), nil
}

// Get returns a copy of the user's draft by ID. Drafts are mutated by upload
// goroutines, so live pointers never leave the service.
func (s *Service) Get(userID, draftID string) (*Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.lookup(userID, draftID)
	if err != nil {
		return nil, err
	}
	return d.snapshot(), nil
}

// lookup resolves a draft and checks ownership. Callers hold s.mu.
func (s *Service) lookup(userID, draftID string) (*Draft, error) {
	d, ok := s.drafts[draftID]
	if !ok {
		return nil, ErrDraftNotFound
	}
	if d.UserID != userID {
		return nil, ErrNotOwner
	}
	return d, nil
}

// SubmitDetails records the first wizard step. Drafts with attachments move
// to uploading, attachment-free drafts go straight to review. Returns the
// updated draft.
func (s *Service) SubmitDetails(ctx context.Context, userID, draftID string, det Details) (*Draft, error) {
	if err := validateDetails(&det); err != nil {
		return nil, err
	}

	s.mu.Lock()
	d, err := s.lookup(userID, draftID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	next := StateReview
	if len(det.Attachments) > 0 {
		next = StateUploadingFiles
	}
	if err := d.transition(next); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	d.Details = det
	d.StatusMessage = ""
	d.Tasks = d.Tasks[:0]
	for _, a := range det.Attachments {
		d.Tasks = append(d.Tasks, &Task{
			Kind:     a.Kind,
			Filename: a.Filename,
			Status:   TaskIdle,
		})
	}
	s.mu.Unlock()

	if next == StateReview {
		s.fillPoem(ctx, d)
	}
	return s.Get(userID, draftID)
}

// UploadFiles runs the attachment batch, one goroutine per file, and joins
// before moving on. A failed upload marks its task and leaves the URL empty;
// it never blocks progression to review. Returns the reviewed draft.
func (s *Service) UploadFiles(ctx context.Context, userID, draftID string) (*Draft, error) {
	s.mu.Lock()
	d, err := s.lookup(userID, draftID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if d.State != StateUploadingFiles {
		state := d.State
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, state, StateReview)
	}
	attachments := append([]Attachment(nil), d.Details.Attachments...)
	tasks := append([]*Task(nil), d.Tasks...)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for i, a := range attachments {
		task := tasks[i]
		wg.Add(1)
		go func(a Attachment, task *Task) {
			defer wg.Done()
			s.setTask(task, TaskLoading, "", "")
			if s.uploader == nil {
				s.setTask(task, TaskError, "", "object storage is not configured")
				return
			}
			url, err := s.uploader.UploadObject(ctx, a.Kind, a.Filename, a.Data)
			if err != nil {
				s.setTask(task, TaskError, "", err.Error())
				s.logger.Warn("attachment upload failed",
					slog.String("draft_id", draftID),
					slog.String("kind", a.Kind),
					slog.String("filename", a.Filename),
					slog.String("error", err.Error()))
				return
			}
			s.setTask(task, TaskSuccess, url, "")
		}(a, task)
	}
	wg.Wait()

	s.mu.Lock()
	for _, task := range d.Tasks {
		if task.Status != TaskSuccess {
			continue
		}
		switch task.Kind {
		case KindPoetImage:
			d.Details.PoetImageURL = task.URL
		case KindAudio:
			d.Details.AudioURL = task.URL
		case KindVideo:
			d.Details.MuralURL = task.URL
		}
	}
	if err := d.transition(StateReview); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	s.fillPoem(ctx, d)
	return s.Get(userID, draftID)
}

// setTask updates one upload task under the service lock. Tasks are shared
// with concurrent Get snapshots via the draft, never written bare.
func (s *Service) setTask(task *Task, status TaskStatus, url, errMsg string) {
	s.mu.Lock()
	task.Status = status
	task.URL = url
	task.Error = errMsg
	s.mu.Unlock()
}

// fillPoem synthesizes poem text for a draft entering review with an empty
// poem. The lock is dropped around the synthesis call, which can take
// seconds against the real backend.
func (s *Service) fillPoem(ctx context.Context, d *Draft) {
	s.mu.Lock()
	name, poet := d.Details.Name, d.Details.Poet
	empty := d.Details.PoemText == ""
	s.mu.Unlock()
	if !empty {
		return
	}

	poem := s.synth.Poem(ctx, name, poet)

	s.mu.Lock()
	if d.Details.PoemText == "" {
		d.Details.PoemText = poem
	}
	s.mu.Unlock()
}

// Launch finalizes the draft: synthesizes the mural when needed, derives the
// preview and thumbnail, and persists the location. On a persistence failure
// the draft falls back to review carrying the error text. Synthesis and
// storage run on a local copy of the details; the draft only sees the result
// when the launch fails and the copy is written back for the review retry.
func (s *Service) Launch(ctx context.Context, userID, draftID string) (*location.Location, error) {
	s.mu.Lock()
	d, err := s.lookup(userID, draftID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := d.transition(StateLaunchCenter); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	det := d.Details
	s.mu.Unlock()

	muralType := location.MuralTypeImage
	if det.MuralMode == MuralModeVideo {
		muralType = location.MuralTypeVideo
	}
	if det.MuralMode != MuralModeVideo && det.MuralURL == "" {
		det.MuralURL = s.synth.Mural(ctx, det.PoemText, det.Name)
	}

	thumbnail := det.MuralURL
	if muralURL, thumbURL, err := s.storeMural(ctx, draftID, det.MuralURL); err == nil {
		det.MuralURL = muralURL
		thumbnail = thumbURL
	} else if !errors.Is(err, image.ErrNotDataURL) {
		s.logger.Warn("mural processing failed, keeping inline mural",
			slog.String("draft_id", draftID),
			slog.String("error", err.Error()))
	}
	if det.DriveFileID != "" {
		thumbnail = location.DriveThumbnailURL(det.DriveFileID)
	}

	loc := &location.Location{
		ID:              det.EditID,
		Name:            det.Name,
		Lat:             det.Lat,
		Lng:             det.Lng,
		Description:     det.Description,
		Poet:            det.Poet,
		Preview:         location.PreviewOf(det.PoemText),
		FullPoem:        det.PoemText,
		Price:           det.Price,
		AudioURL:        det.AudioURL,
		MuralURL:        det.MuralURL,
		MuralType:       muralType,
		PoetImageURL:    det.PoetImageURL,
		ThumbnailURL:    thumbnail,
		DriveFileID:     det.DriveFileID,
		IsUserSubmitted: true,
		UserID:          userID,
	}

	if det.EditID != "" {
		err = s.locations.Update(ctx, loc)
	} else {
		err = s.locations.Insert(ctx, loc)
	}
	if err != nil {
		s.mu.Lock()
		d.Details = det
		d.StatusMessage = err.Error()
		terr := d.transition(StateReview)
		s.mu.Unlock()
		if terr != nil {
			return nil, terr
		}
		return nil, err
	}

	s.mu.Lock()
	delete(s.drafts, draftID)
	s.mu.Unlock()

	s.logger.Info("submission launched",
		slog.String("location_id", loc.ID),
		slog.String("user_id", userID),
		slog.Bool("edit", det.EditID != ""))
	return loc, nil
}

// storeMural converts a synthesized data URL mural into stored assets: the
// re-encoded mural and its map thumbnail, both uploaded to object storage.
// Non data URL murals (already hosted, or the static fallback) pass through
// untouched via ErrNotDataURL.
func (s *Service) storeMural(ctx context.Context, draftID, muralURL string) (string, string, error) {
	raw, err := image.FromDataURL(muralURL)
	if err != nil {
		return "", "", err
	}
	if s.uploader == nil {
		return "", "", errors.New("object storage is not configured")
	}

	processed, err := image.ProcessMural(raw)
	if err != nil {
		return "", "", err
	}
	storedMural, err := s.uploader.UploadObject(ctx, "murals", draftID+".jpg", processed)
	if err != nil {
		return "", "", err
	}

	thumb, err := image.Thumbnail(processed)
	if err != nil {
		return "", "", err
	}
	storedThumb, err := s.uploader.UploadObject(ctx, "thumbnails", draftID+".jpg", thumb)
	if err != nil {
		return "", "", err
	}
	return storedMural, storedThumb, nil
}

// ListOwn returns the user's published submissions, newest first.
func (s *Service) ListOwn(ctx context.Context, userID string) ([]*location.Location, error) {
	return s.locations.ListByUser(ctx, userID)
}

// Delete removes one of the user's submissions.
func (s *Service) Delete(ctx context.Context, userID, locationID string) error {
	loc, err := s.locations.GetByID(ctx, locationID)
	if err != nil {
		return err
	}
	if loc.UserID != userID {
		return ErrNotOwner
	}
	return s.locations.Delete(ctx, locationID)
}

func validateDetails(det *Details) error {
	name, err := validate.String(det.Name, validate.StringConstraints{
		MinLength: 1,
		MaxLength: 120,
		TrimSpace: true,
	})
	if err != nil {
		return fmt.Errorf("%w: name: %w", ErrInvalidDetails, err)
	}
	det.Name = name

	poet, err := validate.String(det.Poet, validate.StringConstraints{
		MinLength: 1,
		MaxLength: 80,
		TrimSpace: true,
	})
	if err != nil {
		return fmt.Errorf("%w: poet: %w", ErrInvalidDetails, err)
	}
	det.Poet = poet

	if det.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidDetails)
	}
	// Hosted mural URLs are fetched later, so block private targets up front.
	// Synthesized data URLs are validated by the mural decoder instead.
	if det.MuralURL != "" && !strings.HasPrefix(det.MuralURL, "data:") {
		muralURL, err := validate.MediaURL(det.MuralURL)
		if err != nil {
			return fmt.Errorf("%w: mural_url: %w", ErrInvalidDetails, err)
		}
		det.MuralURL = muralURL
	}
	if det.Lat < 0 || det.Lat > location.CanvasHeight || det.Lng < 0 || det.Lng > location.CanvasWidth {
		return fmt.Errorf("%w: coordinates outside the canvas", ErrInvalidDetails)
	}
	for _, a := range det.Attachments {
		switch a.Kind {
		case KindPoetImage, KindAudio, KindVideo:
		default:
			return fmt.Errorf("%w: unknown attachment kind %q", ErrInvalidDetails, a.Kind)
		}
	}
	return nil
}
