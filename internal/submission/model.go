// Package submission implements the poet submission wizard as a server-side
// workflow: details are collected, attachments uploaded concurrently, the
// poem reviewed (with generated text filling any gap), and the finished
// location launched into the catalog.
package submission

import (
	"errors"
	"fmt"

	"github.com/nabeul-archive/poemap/internal/location"
)

// State identifies a step of the submission workflow.
type State string

const (
	StateDetails        State = "details"
	StateUploadingFiles State = "uploading_files"
	StateReview         State = "review"
	StateLaunchCenter   State = "launch_center"
)

// Mural modes. In "ai" mode a mural image is synthesized at launch when no
// mural URL is present; in "video" mode the poet attaches a video file.
const (
	MuralModeAI    = "ai"
	MuralModeVideo = "video"
)

// Attachment kinds, which double as storage folder names.
const (
	KindPoetImage = "poets"
	KindAudio     = "audio"
	KindVideo     = "videos"
)

// TaskStatus tracks one attachment upload.
type TaskStatus string

const (
	TaskIdle    TaskStatus = "idle"
	TaskLoading TaskStatus = "loading"
	TaskSuccess TaskStatus = "success"
	TaskError   TaskStatus = "error"
)

// Workflow errors.
var (
	ErrInvalidTransition = errors.New("invalid submission state transition")
	ErrDraftNotFound     = errors.New("submission draft not found")
	ErrNotOwner          = errors.New("submission belongs to another user")
)

// Attachment is a file handed over with the details step.
type Attachment struct {
	Kind     string
	Filename string
	Data     []byte
}

// Task is the upload state of one attachment.
type Task struct {
	Kind     string     `json:"kind"`
	Filename string     `json:"filename"`
	Status   TaskStatus `json:"status"`
	URL      string     `json:"url,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// Details carries the fields collected in the first wizard step.
type Details struct {
	// EditID is set when re-submitting an existing location; launch then
	// updates the stored row instead of inserting a new one.
	EditID string `json:"edit_id,omitempty"`

	Name        string  `json:"name"`
	Poet        string  `json:"poet"`
	Description string  `json:"description,omitempty"`
	PoemText    string  `json:"poem_text,omitempty"`
	Price       int64   `json:"price"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	DriveFileID string  `json:"drive_file_id,omitempty"`
	MuralMode   string  `json:"mural_mode,omitempty"`

	// Pre-existing asset URLs, populated when editing a stored location.
	PoetImageURL string `json:"poet_image_url,omitempty"`
	AudioURL     string `json:"audio_url,omitempty"`
	MuralURL     string `json:"mural_url,omitempty"`

	Attachments []Attachment `json:"-"`
}

// Draft is one in-flight submission.
type Draft struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	State  State  `json:"state"`

	Details Details `json:"details"`
	Tasks   []*Task `json:"tasks,omitempty"`

	// StatusMessage carries the launch error text when the workflow falls
	// back to review.
	StatusMessage string `json:"status_message,omitempty"`
}

// snapshot deep-copies the draft so callers can read and marshal it without
// holding the service lock. Attachment payloads are shared; they are never
// mutated after the details step records them.
func (d *Draft) snapshot() *Draft {
	c := *d
	c.Tasks = make([]*Task, len(d.Tasks))
	for i, t := range d.Tasks {
		tc := *t
		c.Tasks[i] = &tc
	}
	c.Details.Attachments = append([]Attachment(nil), d.Details.Attachments...)
	return &c
}

// transition moves the draft to next, enforcing the workflow order.
func (d *Draft) transition(next State) error {
	allowed := map[State][]State{
		StateDetails:        {StateUploadingFiles, StateReview},
		StateUploadingFiles: {StateReview},
		StateReview:         {StateLaunchCenter},
		StateLaunchCenter:   {StateReview},
	}
	for _, s := range allowed[d.State] {
		if s == next {
			d.State = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.State, next)
}

// DetailsFromLocation pre-populates the wizard from a stored location so an
// edit round-trip lands on the same row.
func DetailsFromLocation(loc *location.Location) Details {
	mode := MuralModeAI
	if loc.MuralType == location.MuralTypeVideo {
		mode = MuralModeVideo
	}
	return Details{
		EditID:       loc.ID,
		Name:         loc.Name,
		Poet:         loc.Poet,
		Description:  loc.Description,
		PoemText:     loc.FullPoem,
		Price:        loc.Price,
		Lat:          loc.Lat,
		Lng:          loc.Lng,
		DriveFileID:  loc.DriveFileID,
		MuralMode:    mode,
		PoetImageURL: loc.PoetImageURL,
		AudioURL:     loc.AudioURL,
		MuralURL:     loc.MuralURL,
	}
}
