package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/dernek/pkg/apierror"
)

// DefaultMaxBodyBytes caps JSON request bodies
const DefaultMaxBodyBytes int64 = 1 << 20

// ErrInvalidJSON is returned when a request body is not valid JSON
var ErrInvalidJSON = &apierror.Error{
	Kind:    apierror.KindBadRequest,
	Title:   "İstek gövdesi geçersiz",
	Message: "Geçersiz JSON formatı",
	Code:    "INVALID_JSON",
}

// ParseJSONBody decodes the request body into dest. The body is capped at
// DefaultMaxBodyBytes and must hold exactly one JSON value.
func ParseJSONBody(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return ErrInvalidJSON
	}
	body := http.MaxBytesReader(w, r.Body, DefaultMaxBodyBytes)
	dec := json.NewDecoder(body)

	if err := dec.Decode(dest); err != nil {
		return wrapJSONError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return wrapJSONError(fmt.Errorf("trailing data after JSON value"))
	}
	return nil
}

func wrapJSONError(err error) error {
	e := *ErrInvalidJSON
	e.Err = err
	return &e
}

// DecodeAndValidate parses the JSON body into dest and validates its struct tags
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	if err := ParseJSONBody(w, r, dest); err != nil {
		return err
	}
	return Validate(dest)
}

// ValidateMethod returns a 405 error and sets Allow when r.Method is not allowed
func ValidateMethod(w http.ResponseWriter, r *http.Request, allowed ...string) error {
	for _, m := range allowed {
		if r.Method == m {
			return nil
		}
	}
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	return apierror.MethodNotAllowed(r.Method)
}

// PathVars returns all route variables of the request
func PathVars(r *http.Request) map[string]string {
	vars := mux.Vars(r)
	if vars == nil {
		return map[string]string{}
	}
	return vars
}

// ParsePathInt64 parses a numeric route variable from vars
func ParsePathInt64(vars map[string]string, key string) (int64, error) {
	str := vars[key]
	if str == "" {
		return 0, fmt.Errorf("missing path parameter: %s", key)
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %s", key, str)
	}
	return val, nil
}

// ParseQueryInt extracts and parses an integer query parameter
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for query param %s: %s", key, str)
	}
	return val, nil
}

// ParseQueryString extracts a trimmed string query parameter
func ParseQueryString(r *http.Request, key string, defaultVal string) string {
	val := strings.TrimSpace(r.URL.Query().Get(key))
	if val == "" {
		return defaultVal
	}
	return val
}

// Pagination limits
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
	// MaxPage keeps (page-1)*limit well inside int range
	MaxPage          = 1_000_000
)

// Page is a validated page request
type Page struct {
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
	Search string `json:"-"`
}

// Offset returns the number of rows to skip
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// PageMeta is the meta object of list responses
type PageMeta struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// Meta builds the response meta for total matching rows
func (p Page) Meta(total int) PageMeta {
	return PageMeta{Page: p.Page, Limit: p.Limit, Total: total}
}

// ParsePage reads page, limit and search. Out of range values are validation errors.
func ParsePage(r *http.Request) (Page, error) {
	var verr apierror.ValidationError

	page, err := ParseQueryInt(r, "page", 1)
	if err != nil || page < 1 || page > MaxPage {
		verr.Add("page", fmt.Sprintf("Sayfa numarası 1 ile %d arasında olmalıdır", MaxPage))
	}
	limit, err := ParseQueryInt(r, "limit", DefaultPageLimit)
	if err != nil || limit < 1 || limit > MaxPageLimit {
		verr.Add("limit", fmt.Sprintf("Limit 1 ile %d arasında olmalıdır", MaxPageLimit))
	}
	if err := verr.OrNil(); err != nil {
		return Page{}, err
	}

	return Page{Page: page, Limit: limit, Search: ParseQueryString(r, "search", "")}, nil
}
