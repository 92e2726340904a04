package dto

type CreateReportRequest struct {
	Collection string `json:"collection"`
	Parent     string `json:"parent,omitempty"`
	ContentID  string `json:"content_id"`
	Reason     string `json:"reason"`
}

type ActionReportRequest struct {
	Status    string `json:"status"`
	AdminNote string `json:"admin_note"`
}

type TransitionResponse struct {
	User    UserResponse `json:"user"`
	Changed bool         `json:"changed"`
}
