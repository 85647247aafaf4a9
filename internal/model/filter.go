package model

// Sort directions accepted by the list endpoint.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// ListFilter controls filtering, sorting, and pagination of the notification
// list. Page is 1-based; Total is the server-reported match count for the
// current filter.
type ListFilter struct {
	Type       *NotificationType `json:"type,omitempty"`
	UnreadOnly bool              `json:"unread_only"`
	SortBy     string            `json:"sort_by"`
	SortOrder  string            `json:"sort_order"`
	Page       int               `json:"page"`
	Size       int               `json:"size"`
	Total      int               `json:"total"`
}

// DefaultListFilter returns the filter applied on startup and after a reset:
// all types, newest first, first page.
func DefaultListFilter() ListFilter {
	return ListFilter{
		SortBy:    "created_at",
		SortOrder: SortDesc,
		Page:      1,
		Size:      20,
	}
}

// FilterPatch is a partial update to a ListFilter. Nil fields are left
// unchanged. Changing any field other than Page resets Page to 1.
type FilterPatch struct {
	Type       **NotificationType
	UnreadOnly *bool
	SortBy     *string
	SortOrder  *string
	Page       *int
	Size       *int
}

// Apply merges the patch into f and returns the result, enforcing the
// page-reset rule: any change besides Page itself moves the view back to
// the first page.
func (p FilterPatch) Apply(f ListFilter) ListFilter {
	pageOnly := true

	if p.Type != nil {
		f.Type = *p.Type
		pageOnly = false
	}
	if p.UnreadOnly != nil {
		f.UnreadOnly = *p.UnreadOnly
		pageOnly = false
	}
	if p.SortBy != nil {
		f.SortBy = *p.SortBy
		pageOnly = false
	}
	if p.SortOrder != nil {
		f.SortOrder = *p.SortOrder
		pageOnly = false
	}
	if p.Size != nil {
		f.Size = *p.Size
		pageOnly = false
	}

	if p.Page != nil && pageOnly {
		f.Page = *p.Page
	} else if !pageOnly {
		f.Page = 1
	}

	return f
}
