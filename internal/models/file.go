package models

import "time"

// FileStatus is the lifecycle state of an uploaded file.
type FileStatus string

const (
	StatusUploading  FileStatus = "uploading"
	StatusProcessing FileStatus = "processing"
	StatusReady      FileStatus = "ready"
	StatusFailed     FileStatus = "failed"
)

// Valid reports whether s is a known status value.
func (s FileStatus) Valid() bool {
	switch s {
	case StatusUploading, StatusProcessing, StatusReady, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal state. Terminal files are
// never re-processed; re-processing means a new File record.
func (s FileStatus) Terminal() bool {
	return s == StatusReady || s == StatusFailed
}

// CanTransition reports whether moving from s to next is a legal
// lifecycle transition. Self-transitions while processing carry
// incremental progress updates.
func (s FileStatus) CanTransition(next FileStatus) bool {
	switch s {
	case StatusUploading:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusProcessing || next == StatusReady || next == StatusFailed
	default:
		return false
	}
}

// File is the central record of the ingestion pipeline.
type File struct {
	ID           string         `json:"id"`
	OriginalName string         `json:"original_filename"`
	Size         int64          `json:"file_size"`
	TypeTag      string         `json:"file_type"`
	Status       FileStatus     `json:"status"`
	Progress     int            `json:"progress"`
	Content      map[string]any `json:"parsed_content,omitempty"`
	Error        string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Clone returns a deep-enough copy so callers never share the stored
// record's mutable fields.
func (f *File) Clone() *File {
	c := *f
	if f.Content != nil {
		c.Content = make(map[string]any, len(f.Content))
		for k, v := range f.Content {
			c.Content[k] = v
		}
	}
	return &c
}

// FileProgress is the polling projection of a file's state.
type FileProgress struct {
	FileID   string     `json:"file_id"`
	Status   FileStatus `json:"status"`
	Progress int        `json:"progress"`
	Error    string     `json:"error_message,omitempty"`
}

// ProgressView builds the progress projection for f.
func (f *File) ProgressView() *FileProgress {
	return &FileProgress{
		FileID:   f.ID,
		Status:   f.Status,
		Progress: f.Progress,
		Error:    f.Error,
	}
}

// FileContent is the projection returned once parsing is complete.
type FileContent struct {
	FileID    string         `json:"file_id"`
	Filename  string         `json:"filename"`
	Status    FileStatus     `json:"status"`
	Content   map[string]any `json:"parsed_content,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ContentView builds the content projection for f.
func (f *File) ContentView() *FileContent {
	return &FileContent{
		FileID:    f.ID,
		Filename:  f.OriginalName,
		Status:    f.Status,
		Content:   f.Content,
		CreatedAt: f.CreatedAt,
	}
}

// FileList is the paginated listing projection.
type FileList struct {
	Files []*File `json:"files"`
	Total int     `json:"total"`
}
