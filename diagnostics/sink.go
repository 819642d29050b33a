package diagnostics

import (
	"bytes"
	"context"
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/grafana/pagekit/storage"
)

// Attachment is a named artifact produced for a test.
type Attachment struct {
	Name        string
	ContentType string
	Body        []byte
}

// NewScreenshot returns the PNG attachment for testID.
func NewScreenshot(testID string, png []byte) Attachment {
	return Attachment{
		Name:        "screenshot_" + testID,
		ContentType: "image/png",
		Body:        png,
	}
}

// Sink receives attachments.
type Sink interface {
	Attach(ctx context.Context, a Attachment) error
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeName makes name usable as a single file name or object key
// segment.
func SanitizeName(name string) string {
	s := strings.Trim(unsafeChars.ReplaceAllString(name, "_"), "_.")
	if s == "" {
		return "unnamed"
	}
	return s
}

// FileSink writes attachments as files under Dir.
type FileSink struct {
	Dir       string
	Persister storage.FilePersister
}

var _ Sink = &FileSink{}

// NewFileSink returns a sink writing under dir through p.
func NewFileSink(dir string, p storage.FilePersister) *FileSink {
	return &FileSink{Dir: dir, Persister: p}
}

// Path returns where a is written.
func (s *FileSink) Path(a Attachment) string {
	return path.Join(s.Dir, SanitizeName(a.Name)+extension(a.ContentType))
}

func (s *FileSink) Attach(ctx context.Context, a Attachment) error {
	return s.Persister.Persist(ctx, s.Path(a), bytes.NewReader(a.Body))
}

func extension(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "application/json":
		return ".json"
	}
	return ""
}

// MemorySink keeps attachments in memory.
type MemorySink struct {
	mu          sync.Mutex
	attachments []Attachment
}

var _ Sink = &MemorySink{}

func (s *MemorySink) Attach(_ context.Context, a Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments = append(s.attachments, a)
	return nil
}

// Attachments returns what was attached so far.
func (s *MemorySink) Attachments() []Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Attachment(nil), s.attachments...)
}
