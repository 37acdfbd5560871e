package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/entrans/backend/src/database"
	"github.com/entrans/backend/src/logger"
	"github.com/entrans/backend/src/models"
	"github.com/entrans/backend/src/security/validation"
)

type BlogHandler struct{}

func NewBlogHandler() *BlogHandler {
	return &BlogHandler{}
}

const blogColumns = `id, slug, title, COALESCE(excerpt, ''), body, COALESCE(cover_url, ''), published, COALESCE(author_id, 0), created_at, updated_at`

func scanBlogPost(scanner interface{ Scan(...interface{}) error }) (models.BlogPost, error) {
	var p models.BlogPost
	err := scanner.Scan(&p.ID, &p.Slug, &p.Title, &p.Excerpt, &p.Body, &p.CoverURL,
		&p.Published, &p.AuthorID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// HandleListPublished serves the public blog index. Drafts never appear
// here regardless of who asks.
func (h *BlogHandler) HandleListPublished(w http.ResponseWriter, r *http.Request) {
	rows, err := database.DB.Query(`SELECT ` + blogColumns + ` FROM blog_posts WHERE published = TRUE ORDER BY created_at DESC, id DESC`)
	if err != nil {
		logger.L.Error("Failed to query blog posts", "error", err)
		sendJSONError(w, "Failed to list posts", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	posts := []models.BlogPost{}
	for rows.Next() {
		post, scanErr := scanBlogPost(rows)
		if scanErr != nil {
			sendJSONError(w, "Failed to list posts", http.StatusInternalServerError)
			return
		}
		posts = append(posts, post)
	}
	if err = rows.Err(); err != nil {
		sendJSONError(w, "Failed to list posts", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(posts)
}

func (h *BlogHandler) HandleGetPublished(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	post, err := scanBlogPost(database.DB.QueryRow(`SELECT `+blogColumns+` FROM blog_posts WHERE slug = ? AND published = TRUE`, slug))
	if err != nil {
		if err == sql.ErrNoRows {
			sendJSONError(w, "post not found", http.StatusNotFound)
		} else {
			logger.L.Error("Failed to load blog post", "slug", slug, "error", err)
			sendJSONError(w, "Failed to load post", http.StatusInternalServerError)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(post)
}

// HandleListAll is the staff view and includes drafts.
func (h *BlogHandler) HandleListAll(w http.ResponseWriter, r *http.Request) {
	rows, err := database.DB.Query(`SELECT ` + blogColumns + ` FROM blog_posts ORDER BY created_at DESC, id DESC`)
	if err != nil {
		logger.L.Error("Failed to query blog posts", "error", err)
		sendJSONError(w, "Failed to list posts", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	posts := []models.BlogPost{}
	for rows.Next() {
		post, scanErr := scanBlogPost(rows)
		if scanErr != nil {
			sendJSONError(w, "Failed to list posts", http.StatusInternalServerError)
			return
		}
		posts = append(posts, post)
	}
	if err = rows.Err(); err != nil {
		sendJSONError(w, "Failed to list posts", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(posts)
}

type blogPayload struct {
	Slug      string `json:"slug"`
	Title     string `json:"title"`
	Excerpt   string `json:"excerpt"`
	Body      string `json:"body"`
	CoverURL  string `json:"cover_url"`
	Published bool   `json:"published"`
}

func (p *blogPayload) normalize() {
	p.Title = strings.TrimSpace(p.Title)
	p.Excerpt = validation.StripUnprintable(strings.TrimSpace(p.Excerpt))
	p.Body = strings.TrimSpace(p.Body)
	if p.Slug == "" {
		p.Slug = validation.Slugify(p.Title)
	} else {
		p.Slug = validation.Slugify(p.Slug)
	}
}

func (h *BlogHandler) HandleCreatePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var payload blogPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	payload.normalize()
	if payload.Title == "" || payload.Body == "" {
		sendJSONError(w, "title and body are required", http.StatusBadRequest)
		return
	}
	if payload.Slug == "" {
		sendJSONError(w, "title does not yield a usable slug", http.StatusBadRequest)
		return
	}

	res, err := database.DB.Exec(`
		INSERT INTO blog_posts (slug, title, excerpt, body, cover_url, published, author_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		payload.Slug, payload.Title, payload.Excerpt, payload.Body, payload.CoverURL, payload.Published, userID)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			sendJSONError(w, "a post with this slug already exists", http.StatusConflict)
			return
		}
		logger.L.Error("Failed to insert blog post", "slug", payload.Slug, "error", err)
		sendJSONError(w, "Failed to create post", http.StatusInternalServerError)
		return
	}
	id, _ := res.LastInsertId()

	logger.L.Info("Blog post created", "postID", id, "slug", payload.Slug, "published", payload.Published)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{"id": id, "slug": payload.Slug})
}

func (h *BlogHandler) HandleUpdatePost(w http.ResponseWriter, r *http.Request) {
	postID, err := parseIDPathValue(r, "id")
	if err != nil {
		sendJSONError(w, "invalid post id", http.StatusBadRequest)
		return
	}

	var payload blogPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	payload.normalize()
	if payload.Title == "" || payload.Body == "" || payload.Slug == "" {
		sendJSONError(w, "title and body are required", http.StatusBadRequest)
		return
	}

	res, err := database.DB.Exec(`
		UPDATE blog_posts SET slug = ?, title = ?, excerpt = ?, body = ?, cover_url = ?, published = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		payload.Slug, payload.Title, payload.Excerpt, payload.Body, payload.CoverURL, payload.Published, postID)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			sendJSONError(w, "a post with this slug already exists", http.StatusConflict)
			return
		}
		logger.L.Error("Failed to update blog post", "postID", postID, "error", err)
		sendJSONError(w, "Failed to update post", http.StatusInternalServerError)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		sendJSONError(w, "post not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"id": postID, "slug": payload.Slug})
}

func (h *BlogHandler) HandleDeletePost(w http.ResponseWriter, r *http.Request) {
	postID, err := parseIDPathValue(r, "id")
	if err != nil {
		sendJSONError(w, "invalid post id", http.StatusBadRequest)
		return
	}

	res, err := database.DB.Exec(`DELETE FROM blog_posts WHERE id = ?`, postID)
	if err != nil {
		logger.L.Error("Failed to delete blog post", "postID", postID, "error", err)
		sendJSONError(w, "Failed to delete post", http.StatusInternalServerError)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		sendJSONError(w, "post not found", http.StatusNotFound)
		return
	}

	logger.L.Info("Blog post deleted", "postID", postID)
	w.WriteHeader(http.StatusNoContent)
}
