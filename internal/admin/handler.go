package admin

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// WriteHook is called after a row of res was inserted or updated.
type WriteHook func(ctx context.Context, res *Resource, id int64)

// Handler serves the admin panel.
type Handler struct {
	store     Store
	resources []*Resource
	byName    map[string]*Resource
	tmpl      *template.Template
	onWrite   WriteHook
}

// Option configures a Handler.
type Option func(*Handler)

// WithWriteHook registers fn to run after every successful write.
func WithWriteHook(fn WriteHook) Option {
	return func(h *Handler) { h.onWrite = fn }
}

// NewHandler returns a Handler serving resources from store.
func NewHandler(store Store, resources []*Resource, opts ...Option) (*Handler, error) {
	tmpl, err := template.New("admin").Funcs(template.FuncMap{
		"display":  display,
		"checkbox": func(f Field) bool { return f.Kind == KindBool },
		"inc":      func(n int) int { return n + 1 },
		"dec":      func(n int) int { return n - 1 },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "parse templates")
	}

	h := &Handler{
		store:     store,
		resources: resources,
		byName:    make(map[string]*Resource, len(resources)),
		tmpl:      tmpl,
		onWrite:   func(context.Context, *Resource, int64) {},
	}
	for _, r := range resources {
		h.byName[r.Name] = r
	}
	for _, o := range opts {
		o(h)
	}
	return h, nil
}

// Register adds the admin routes to mux under /admin/.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/{$}", h.index)
	mux.HandleFunc("GET /admin/{resource}", h.list)
	mux.HandleFunc("GET /admin/{resource}/new", h.newForm)
	mux.HandleFunc("GET /admin/{resource}/{id}", h.show)
	mux.HandleFunc("POST /admin/{resource}", h.create)
	mux.HandleFunc("POST /admin/{resource}/{id}", h.update)
}

type pageData struct {
	Title     string
	Resources []*Resource
	Resource  *Resource
	Page      *Page
	Row       *Row
	Action    string
	Writable  bool
	Error     string
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "index", pageData{Title: "Admin"})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}

	page, size := 1, defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && v > 0 {
		size = min(v, maxPageSize)
	}

	p, err := h.store.List(r.Context(), res, page, size)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "list", pageData{Title: res.Title, Resource: res, Page: p})
}

func (h *Handler) newForm(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}
	if !res.CanCreate {
		h.notAllowed(w, r, res, "create")
		return
	}
	h.render(w, r, http.StatusOK, "form", pageData{
		Title:    "New " + res.Title,
		Resource: res,
		Action:   "/admin/" + res.Name,
		Writable: true,
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}
	id, ok := h.rowID(w, r)
	if !ok {
		return
	}

	row, err := h.store.Get(r.Context(), res, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "form", pageData{
		Title:    res.Title,
		Resource: res,
		Row:      row,
		Action:   fmt.Sprintf("/admin/%s/%d", res.Name, id),
		Writable: res.CanEdit,
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}
	if !res.CanCreate {
		h.notAllowed(w, r, res, "create")
		return
	}

	values, err := parseForm(r, res)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := h.store.Insert(r.Context(), res, values)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.onWrite(r.Context(), res, id)
	zctx.From(r.Context()).Info("Admin row created", zap.String("resource", res.Name), zap.Int64("id", id))
	http.Redirect(w, r, fmt.Sprintf("/admin/%s/%d", res.Name, id), http.StatusSeeOther)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}
	if !res.CanEdit {
		h.notAllowed(w, r, res, "edit")
		return
	}
	id, ok := h.rowID(w, r)
	if !ok {
		return
	}

	values, err := parseForm(r, res)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.Update(r.Context(), res, id, values); err != nil {
		h.fail(w, r, err)
		return
	}

	h.onWrite(r.Context(), res, id)
	zctx.From(r.Context()).Info("Admin row updated", zap.String("resource", res.Name), zap.Int64("id", id))
	http.Redirect(w, r, fmt.Sprintf("/admin/%s/%d", res.Name, id), http.StatusSeeOther)
}

// parseForm reads the editable columns of res from the request form.
func parseForm(r *http.Request, res *Resource) (map[string]any, error) {
	if err := r.ParseForm(); err != nil {
		return nil, &FieldError{Column: "form", Reason: err.Error()}
	}
	values := make(map[string]any)
	for _, f := range res.EditableFields() {
		v, err := ParseValue(f, r.PostForm.Get(f.Column))
		if err != nil {
			return nil, err
		}
		values[f.Column] = v
	}
	return values, nil
}

func (h *Handler) resource(w http.ResponseWriter, r *http.Request) (*Resource, bool) {
	res, ok := h.byName[r.PathValue("resource")]
	if !ok {
		h.renderError(w, r, http.StatusNotFound, "Unknown resource")
		return nil, false
	}
	return res, true
}

func (h *Handler) rowID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.renderError(w, r, http.StatusNotFound, "Unknown row")
		return 0, false
	}
	return id, true
}

func (h *Handler) notAllowed(w http.ResponseWriter, r *http.Request, res *Resource, action string) {
	h.renderError(w, r, http.StatusMethodNotAllowed, fmt.Sprintf("%s: %s is not allowed", res.Title, action))
}

// fail maps store and form errors to an error page.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErr *FieldError
	switch {
	case errors.As(err, &fieldErr):
		h.renderError(w, r, http.StatusBadRequest, fieldErr.Error())
	case errors.Is(err, ErrNotFound):
		h.renderError(w, r, http.StatusNotFound, "Row not found")
	case errors.Is(err, ErrConflict):
		h.renderError(w, r, http.StatusConflict, err.Error())
	default:
		zctx.From(r.Context()).Error("Admin request failed", zap.Error(err))
		h.renderError(w, r, http.StatusInternalServerError, "Internal error")
	}
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.render(w, r, status, "error", pageData{Title: http.StatusText(status), Error: msg})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	data.Resources = h.resources
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.tmpl.ExecuteTemplate(w, name, data); err != nil {
		zctx.From(r.Context()).Error("Render admin template", zap.String("template", name), zap.Error(err))
	}
}

// display formats a column value for HTML output.
func display(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case *string:
		if v == nil {
			return ""
		}
		return *v
	case time.Time:
		return v.Format(time.DateTime)
	default:
		return fmt.Sprint(v)
	}
}
