package domain

// BookFormat is the file format a book's content is stored in.
type BookFormat string

const (
	// FormatNone marks a catalog entry without a readable file.
	FormatNone BookFormat = ""
	// FormatEPUB is a reflowable EPUB 2/3 package.
	FormatEPUB BookFormat = "epub"
)

// Book is a catalog entry, optionally backed by an EPUB file.
type Book struct {
	Syncable
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description,omitempty"`
	ISBN        string `json:"isbn,omitempty"`
	Language    string `json:"language,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
	PublishYear string `json:"publish_year,omitempty"`
	Slug        string `json:"slug"`

	// TotalPages is fixed when content is attached and never changes for a
	// stored file, so saved reading positions stay meaningful.
	TotalPages int `json:"total_pages"`
	WordCount  int `json:"word_count,omitempty"`

	Format      BookFormat     `json:"format,omitempty"`
	FilePath    string         `json:"file_path,omitempty"`
	FileSize    int64          `json:"file_size,omitempty"`
	ContentHash string         `json:"content_hash,omitempty"`
	CoverImage  *ImageFileInfo `json:"cover_image,omitempty"`

	// Active books are visible to members; inactive ones only to admins.
	Active  bool   `json:"active"`
	AddedBy string `json:"added_by,omitempty"`
}

// HasContent reports whether the book can be opened in the reader.
func (b *Book) HasContent() bool {
	return b.Format == FormatEPUB && b.FilePath != ""
}

// VisibleTo reports whether user may see the book.
func (b *Book) VisibleTo(user *User) bool {
	return b.Active || (user != nil && user.IsAdmin())
}

// ImageFileInfo describes a stored cover image.
type ImageFileInfo struct {
	Format   string `json:"format"`
	Size     int64  `json:"size"`
	Hash     string `json:"hash"`
	BlurHash string `json:"blur_hash,omitempty"`
}

// BookCounts summarizes the catalog.
type BookCounts struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

// BookFilter narrows book listings.
type BookFilter struct {
	ActiveOnly bool
	AddedBy    string
}
