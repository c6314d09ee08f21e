package dto

// ErrorResponse is the uniform error body all endpoints return.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// Scope identifies the tenant/project partition a request operates on.
// Every data-plane endpoint requires it, either in the body or as query
// parameters.
type Scope struct {
	TenantID  string `json:"tenant_id" form:"tenant_id" binding:"required"`
	ProjectID string `json:"project_id" form:"project_id" binding:"required"`
}
