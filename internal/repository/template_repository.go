package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/memflow/lowcode-backend/internal/model"
)

const templateColumns = "id,template_key,template_name,template_json,username,status,created_at,updated_at"

// templateCacheTTL bounds staleness of the read-through cache.  Writes
// refresh the entry, so the TTL only matters for out-of-band mutations.
const templateCacheTTL = time.Minute

// TemplateRepo persists low-code templates.  Lookups by template key go
// through an optional Redis read-through cache because the editor polls the
// same template repeatedly while a user works on it.  Cache is nil-safe:
// when no Redis client is configured every call hits MySQL.
type TemplateRepo struct {
	DB    *sql.DB
	Cache *redis.Client
}

func NewTemplateRepo(db *sql.DB, cache *redis.Client) *TemplateRepo {
	return &TemplateRepo{DB: db, Cache: cache}
}

// PendingTemplate is a pending row joined with its owner's contact info for
// the review queue.
type PendingTemplate struct {
	model.Template
	User struct {
		Email  string `json:"email"`
		Avatar string `json:"avatar"`
	} `json:"user"`
}

// Create inserts a new draft template owned by username and returns it.
// The template key is generated here and never supplied by the client.
func (r *TemplateRepo) Create(ctx context.Context, name, body, username string) (model.Template, error) {
	key := "memory_flow_" + uuid.NewString()
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO lowcode_templates (template_key, template_name, template_json, username, status) VALUES (?,?,?,?,?)",
		key, name, body, username, string(model.StatusDraft))
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return model.Template{}, ErrTemplateExists
		}
		return model.Template{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Template{}, err
	}
	return model.Template{
		ID:           uint64(id),
		TemplateKey:  key,
		TemplateName: name,
		TemplateJSON: body,
		Username:     username,
		Status:       model.StatusDraft,
	}, nil
}

// GetByKey fetches a template by its opaque key, consulting the cache first.
func (r *TemplateRepo) GetByKey(ctx context.Context, key string) (model.Template, error) {
	if t, ok := r.cacheGet(ctx, key); ok {
		return t, nil
	}
	var t model.Template
	var status string
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+templateColumns+" FROM lowcode_templates WHERE template_key=? LIMIT 1", key).
		Scan(&t.ID, &t.TemplateKey, &t.TemplateName, &t.TemplateJSON, &t.Username, &status, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Template{}, ErrNotFound
	}
	if err != nil {
		return model.Template{}, err
	}
	t.Status = model.TemplateStatus(status)
	r.cacheSet(ctx, t)
	return t, nil
}

// ListAll returns every template (admin-tier view).
func (r *TemplateRepo) ListAll(ctx context.Context) ([]model.Template, error) {
	return r.list(ctx, "SELECT "+templateColumns+" FROM lowcode_templates ORDER BY updated_at DESC")
}

// ListByOwner returns the templates owned by username.
func (r *TemplateRepo) ListByOwner(ctx context.Context, username string) ([]model.Template, error) {
	return r.list(ctx,
		"SELECT "+templateColumns+" FROM lowcode_templates WHERE username=? ORDER BY updated_at DESC", username)
}

func (r *TemplateRepo) list(ctx context.Context, query string, args ...any) ([]model.Template, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Template
	for rows.Next() {
		var t model.Template
		var status string
		if err := rows.Scan(&t.ID, &t.TemplateKey, &t.TemplateName, &t.TemplateJSON, &t.Username, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		t.Status = model.TemplateStatus(status)
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListPending returns a page of pending templates joined with owner contact
// info, newest first, plus whether more pages exist.
func (r *TemplateRepo) ListPending(ctx context.Context, page, pageSize int) ([]PendingTemplate, bool, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 5
	}
	var total int
	if err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM lowcode_templates WHERE status=?", string(model.StatusPending)).Scan(&total); err != nil {
		return nil, false, err
	}

	rows, err := r.DB.QueryContext(ctx,
		`SELECT t.id,t.template_key,t.template_name,t.template_json,t.username,t.status,t.created_at,t.updated_at,
		        u.email,u.avatar
		 FROM lowcode_templates t JOIN users u ON u.username = t.username
		 WHERE t.status=? ORDER BY t.updated_at DESC LIMIT ? OFFSET ?`,
		string(model.StatusPending), pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var out []PendingTemplate
	for rows.Next() {
		var p PendingTemplate
		var status string
		if err := rows.Scan(&p.ID, &p.TemplateKey, &p.TemplateName, &p.TemplateJSON, &p.Username, &status,
			&p.CreatedAt, &p.UpdatedAt, &p.User.Email, &p.User.Avatar); err != nil {
			return nil, false, err
		}
		p.Status = model.TemplateStatus(status)
		out = append(out, p)
	}
	return out, page*pageSize < total, rows.Err()
}

// UpdateStatus moves a template to the given lifecycle state.
func (r *TemplateRepo) UpdateStatus(ctx context.Context, key string, status model.TemplateStatus) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE lowcode_templates SET status=? WHERE template_key=?", string(status), key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	r.cacheDel(ctx, key)
	return err
}

// UpdateContent rewrites the name and body of a template.
func (r *TemplateRepo) UpdateContent(ctx context.Context, key, name, body string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE lowcode_templates SET template_name=?, template_json=? WHERE template_key=?", name, body, key)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrTemplateExists
		}
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	r.cacheDel(ctx, key)
	return err
}

// DeleteByKey removes a template.
func (r *TemplateRepo) DeleteByKey(ctx context.Context, key string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM lowcode_templates WHERE template_key=?", key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	r.cacheDel(ctx, key)
	return err
}

func templateCacheKey(key string) string { return "lowcode:template:" + key }

func (r *TemplateRepo) cacheGet(ctx context.Context, key string) (model.Template, bool) {
	if r.Cache == nil {
		return model.Template{}, false
	}
	raw, err := r.Cache.Get(ctx, templateCacheKey(key)).Bytes()
	if err != nil {
		return model.Template{}, false
	}
	var t model.Template
	if err := json.Unmarshal(raw, &t); err != nil {
		return model.Template{}, false
	}
	return t, true
}

func (r *TemplateRepo) cacheSet(ctx context.Context, t model.Template) {
	if r.Cache == nil {
		return
	}
	if raw, err := json.Marshal(t); err == nil {
		r.Cache.Set(ctx, templateCacheKey(t.TemplateKey), raw, templateCacheTTL)
	}
}

func (r *TemplateRepo) cacheDel(ctx context.Context, key string) {
	if r.Cache == nil {
		return
	}
	r.Cache.Del(ctx, templateCacheKey(key))
}
