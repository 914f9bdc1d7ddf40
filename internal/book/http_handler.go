package book

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"bookshelf/internal/apperr"
	"bookshelf/internal/httpx"
)

// multipart parts above this size are spooled to disk
const multipartMemory = 32 << 20

type HTTPHandler struct {
	service *Service
	cache   Invalidator
}

func NewHTTPHandler(service *Service, cache Invalidator) *HTTPHandler {
	return &HTTPHandler{service: service, cache: cache}
}

func (h *HTTPHandler) invalidate(r *http.Request) {
	if h.cache != nil {
		h.cache.InvalidateNamespace(r.Context(), Namespace)
	}
}

// ParseID validates a book id from the path.
func ParseID(raw string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", apperr.Validation("Invalid book id", apperr.Detail{Field: "bookId", Message: "bookId must be a valid id"})
	}
	return id.String(), nil
}

func parseForm(r *http.Request) error {
	err := r.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation("Upload exceeds the maximum allowed size")
		}
		return apperr.Validation("Invalid form data")
	}
	return nil
}

// formAsset opens an uploaded file and checks its sniffed type against
// want, a MIME type or a "type/" prefix. A missing file returns nil.
func formAsset(r *http.Request, field, want string) (*Asset, io.Closer, error) {
	if r.MultipartForm == nil {
		return nil, nil, nil
	}
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, apperr.Validation("Invalid upload", apperr.Detail{Field: field, Message: err.Error()})
	}

	contentType, err := sniff(file)
	if err != nil {
		file.Close()
		return nil, nil, apperr.Validation("Invalid upload", apperr.Detail{Field: field, Message: "file could not be read"})
	}
	if !matchesType(contentType, want) {
		file.Close()
		return nil, nil, apperr.Validation("Invalid file type", apperr.Detail{
			Field:   field,
			Message: field + " must be " + describeType(want),
		})
	}
	return &Asset{Filename: header.Filename, ContentType: contentType, Body: file}, file, nil
}

func sniff(f multipart.File) (string, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	ct, _, _ := strings.Cut(http.DetectContentType(buf[:n]), ";")
	return ct, nil
}

func matchesType(got, want string) bool {
	if strings.HasSuffix(want, "/") {
		return strings.HasPrefix(got, want)
	}
	return got == want
}

func describeType(want string) string {
	switch want {
	case "image/":
		return "an image"
	case "application/pdf":
		return "a PDF document"
	}
	return want
}

func closeAll(closers ...io.Closer) {
	for _, c := range closers {
		if c != nil {
			c.Close()
		}
	}
}

type createdResp struct {
	Message       string `json:"message"`
	CreatedBookID string `json:"created_book_id"`
	CoverURL      string `json:"cover_url"`
	BookURL       string `json:"book_url"`
}

// Upload handles POST /books/upload
// @Summary Upload a book
// @Description Multipart upload of title, genre, coverImage and file
// @Tags books
// @Accept multipart/form-data
// @Produce json
// @Security Bearer
// @Success 201 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 401 {object} httpx.ErrorResponse
// @Failure 502 {object} httpx.ErrorResponse
// @Router /books/upload [post]
func (h *HTTPHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	fields := Fields{
		Title: strings.TrimSpace(r.FormValue("title")),
		Genre: strings.TrimSpace(r.FormValue("genre")),
	}
	if err := validateFields(fields); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	cover, coverCloser, err := formAsset(r, "coverImage", "image/")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	content, contentCloser, err := formAsset(r, "file", "application/pdf")
	defer closeAll(coverCloser, contentCloser)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if cover == nil || content == nil {
		var details []apperr.Detail
		if cover == nil {
			details = append(details, apperr.Detail{Field: "coverImage", Message: "coverImage is required"})
		}
		if content == nil {
			details = append(details, apperr.Detail{Field: "file", Message: "file is required"})
		}
		httpx.WriteError(w, r, apperr.Validation("Missing files", details...))
		return
	}

	b, err := h.service.Create(r.Context(), CreateInput{
		Fields:   fields,
		AuthorID: httpx.UserIDFrom(r),
		Cover:    *cover,
		Content:  *content,
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	h.invalidate(r)
	httpx.JSONSuccessCreated(w, createdResp{
		Message:       "Book uploaded successfully",
		CreatedBookID: b.ID,
		CoverURL:      b.CoverURL,
		BookURL:       b.BookURL,
	})
}

// Update handles PATCH /books/update/{bookId}
// @Summary Update a book
// @Description Partial multipart update; omitted fields keep their values
// @Tags books
// @Accept multipart/form-data
// @Produce json
// @Security Bearer
// @Param bookId path string true "Book ID"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 403 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /books/update/{bookId} [patch]
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r.PathValue("bookId"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := parseForm(r); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	cover, coverCloser, err := formAsset(r, "coverImage", "image/")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	content, contentCloser, err := formAsset(r, "file", "application/pdf")
	defer closeAll(coverCloser, contentCloser)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	b, err := h.service.Update(r.Context(), UpdateInput{
		BookID:  id,
		UserID:  httpx.UserIDFrom(r),
		Title:   r.FormValue("title"),
		Genre:   r.FormValue("genre"),
		Cover:   cover,
		Content: content,
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	h.invalidate(r)
	httpx.JSONSuccess(w, map[string]any{"book": b})
}

// GetByID handles GET /books/id/{bookId}
// @Summary Get a book
// @Tags books
// @Produce json
// @Param bookId path string true "Book ID"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /books/id/{bookId} [get]
func (h *HTTPHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r.PathValue("bookId"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	b, err := h.service.Find(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if b == nil {
		httpx.WriteError(w, r, apperr.NotFound("Book not found"))
		return
	}

	httpx.JSONSuccess(w, map[string]any{"book": b})
}

// List handles GET /books
// @Summary List books
// @Description Ten books per page, most recently updated first
// @Tags books
// @Produce json
// @Param page query int false "Page number (1-based)"
// @Param author query string false "Author id"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Router /books [get]
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	authorID := ""
	if raw := query.Get("author"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.WriteError(w, r, apperr.Validation("Invalid author id",
				apperr.Detail{Field: "author", Message: "author must be a valid id"}))
			return
		}
		authorID = id.String()
	}

	page, err := h.service.ListPage(r.Context(), ParsePage(query.Get("page")), authorID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	httpx.JSONSuccess(w, page)
}

// Delete handles DELETE /books/{bookId}
// @Summary Delete a book
// @Tags books
// @Security Bearer
// @Param bookId path string true "Book ID"
// @Success 204
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /books/{bookId} [delete]
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r.PathValue("bookId"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	b, err := h.service.Delete(r.Context(), httpx.UserIDFrom(r), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if b == nil {
		httpx.WriteError(w, r, apperr.NotFound("Book not found"))
		return
	}

	h.invalidate(r)
	httpx.JSONSuccessNoContent(w)
}
