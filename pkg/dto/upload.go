package dto

// UploadStatus is the outcome of one submitted photo.
type UploadStatus struct {
	Filename string `json:"filename"`
	Success  bool   `json:"success"`
	Message  string `json:"message"`
}

// UploadResponse lists one status per attachment, in submission order.
type UploadResponse struct {
	UploadStatuses []UploadStatus `json:"uploadStatuses"`
}
