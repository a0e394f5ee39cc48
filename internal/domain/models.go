package domain

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UploadDateLayout is the date format used in source object paths.
const UploadDateLayout = "2006-01-02"

// Status is the processing state of a newspaper.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// GSPaper is one of the four UPSC General Studies papers.
type GSPaper string

const (
	GS1 GSPaper = "GS1"
	GS2 GSPaper = "GS2"
	GS3 GSPaper = "GS3"
	GS4 GSPaper = "GS4"
)

// GSPapers lists every paper in taxonomy order.
var GSPapers = []GSPaper{GS1, GS2, GS3, GS4}

// ParseGSPaper normalizes a model-supplied tag such as "gs 2" or "GS2".
func ParseGSPaper(s string) (GSPaper, bool) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	for _, p := range GSPapers {
		if normalized == string(p) {
			return p, true
		}
	}
	return "", false
}

// Newspaper is one uploaded source document.
type Newspaper struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"userId"`
	FilePath     string    `json:"filePath"`
	FileName     string    `json:"fileName"`
	FileSize     int64     `json:"fileSize"`
	UploadDate   time.Time `json:"uploadDate"`
	Status       Status    `json:"status"`
	TotalPages   *int      `json:"totalPages"`
	ErrorMessage *string   `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PageCount returns the committed page count, or 0 when the newspaper
// has not been split.
func (n *Newspaper) PageCount() int {
	if n.TotalPages == nil || *n.TotalPages < 0 {
		return 0
	}
	return *n.TotalPages
}

// OwnedBy reports whether user owns the newspaper.
func (n *Newspaper) OwnedBy(user uuid.UUID) bool {
	return user != uuid.Nil && n.UserID == user
}

// Pages returns a reference for every page 1..TotalPages.
func (n *Newspaper) Pages() []PageRef {
	count := n.PageCount()
	refs := make([]PageRef, 0, count)
	for i := 1; i <= count; i++ {
		refs = append(refs, NewPageRef(n.UserID, n.ID, i))
	}
	return refs
}

// Article is one extracted UPSC-relevant unit of content.
type Article struct {
	ID                uuid.UUID `json:"id"`
	NewspaperID       uuid.UUID `json:"newspaperId"`
	PageNumber        int       `json:"pageNumber"`
	PageFilePath      string    `json:"pageFilePath"`
	Title             string    `json:"title"`
	Content           string    `json:"content"`
	GSPapers          []GSPaper `json:"gsPapers"`
	GSSyllabusTopics  []string  `json:"gsSyllabusTopics"`
	Keywords          []string  `json:"keywords"`
	OneLiner          *string   `json:"oneLiner"`
	KeyPoints         *string   `json:"keyPoints"`
	PrelimsCard       *string   `json:"prelimsCard"`
	StaticTopics      []string  `json:"staticTopics"`
	StaticExplanation *string   `json:"staticExplanation"`
	IsImportant       bool      `json:"isImportant"`
	IsRevised         bool      `json:"isRevised"`
	CreatedAt         time.Time `json:"createdAt"`
}

// PageRef addresses one page artifact of a newspaper.
type PageRef struct {
	NewspaperID uuid.UUID
	OwnerID     uuid.UUID
	PageNumber  int
	Path        string
}

// NewPageRef builds the deterministic reference for page n.
func NewPageRef(owner, newspaper uuid.UUID, n int) PageRef {
	return PageRef{
		NewspaperID: newspaper,
		OwnerID:     owner,
		PageNumber:  n,
		Path:        PagePath(owner, newspaper, n),
	}
}

// PagePath returns the object path of page n: {owner}/pages/{newspaper}_page_{n}.pdf
func PagePath(owner, newspaper uuid.UUID, n int) string {
	return fmt.Sprintf("%s/pages/%s_page_%d.pdf", owner, newspaper, n)
}

// SourcePath returns the object path of an uploaded source PDF:
// {owner}/{yyyy-mm-dd}-{fileName}
func SourcePath(owner uuid.UUID, date time.Time, fileName string) string {
	return fmt.Sprintf("%s/%s-%s", owner, date.Format(UploadDateLayout), path.Base(fileName))
}

// PageInput is the page content handed to the extraction capability.
// Exactly one of URL or Data is set.
type PageInput struct {
	NewspaperID uuid.UUID
	PageNumber  int
	URL         string
	Data        []byte
	MIMEType    string
}

// ArticleFilter narrows article listings.
type ArticleFilter struct {
	NewspaperID uuid.UUID
	OwnerID     uuid.UUID
	PageNumber  int
	GSPaper     GSPaper
	Limit       int
}

// TopicCount is a static topic and how many articles reference it.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// ProgressStats summarises a user's revision progress.
type ProgressStats struct {
	TotalNewspapers   int            `json:"totalNewspapers"`
	TotalArticles     int            `json:"totalArticles"`
	ImportantArticles int            `json:"importantArticles"`
	RevisedArticles   int            `json:"revisedArticles"`
	UploadedThisMonth int            `json:"uploadedThisMonth"`
	ArticlesByPaper   map[string]int `json:"articlesByPaper"`
	TopicsAllTime     []TopicCount   `json:"topicsAllTime"`
	TopicsThisMonth   []TopicCount   `json:"topicsThisMonth"`
}

// EventType identifies a pipeline progress event
type EventType string

const (
	EventSplitCompleted      EventType = "split.completed"
	EventProcessingStarted   EventType = "processing.started"
	EventPageCompleted       EventType = "page.completed"
	EventPageFailed          EventType = "page.failed"
	EventProcessingCompleted EventType = "processing.completed"
	EventProcessingFailed    EventType = "processing.failed"
)

// Event is published as the pipeline makes progress on a newspaper.
type Event struct {
	Type        EventType `json:"type"`
	NewspaperID uuid.UUID `json:"newspaperId"`
	PageNumber  int       `json:"pageNumber,omitempty"`
	TotalPages  int       `json:"totalPages,omitempty"`
	Articles    int       `json:"articles,omitempty"`
	Message     string    `json:"message,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
