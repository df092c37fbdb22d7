package models

// DocumentStatus tracks one required document of a process.
type DocumentStatus string

const (
	DocumentApproved      DocumentStatus = "APPROVED"
	DocumentPendingUpload DocumentStatus = "PENDING_UPLOAD"
	DocumentReviewing     DocumentStatus = "REVIEWING"
)

// Valid reports whether s is one of the known document statuses.
func (s DocumentStatus) Valid() bool {
	switch s {
	case DocumentApproved, DocumentPendingUpload, DocumentReviewing:
		return true
	}
	return false
}

// UploadedDocument is the runtime status of a document named in
// Config.Requirements.DocumentsList.
type UploadedDocument struct {
	DocName string         `json:"doc_name"`
	Status  DocumentStatus `json:"status"`
	Date    *string        `json:"date"`
}

// DocumentsFromConfig projects the required documents list into pending uploads.
func DocumentsFromConfig(cfg ProcessConfig) []UploadedDocument {
	docs := make([]UploadedDocument, 0, len(cfg.Requirements.DocumentsList))
	for _, d := range cfg.Requirements.DocumentsList {
		docs = append(docs, UploadedDocument{
			DocName: d.Name,
			Status:  DocumentPendingUpload,
			Date:    nil,
		})
	}
	return docs
}

// DocumentProgress counts approved documents against the checklist size.
type DocumentProgress struct {
	Approved int `json:"approved"`
	Total    int `json:"total"`
}

// DocumentProgress is recomputed on every call; the checklist is small.
func (p *ImmigrationProcess) DocumentProgress() DocumentProgress {
	progress := DocumentProgress{Total: len(p.UploadedDocuments)}
	for _, d := range p.UploadedDocuments {
		if d.Status == DocumentApproved {
			progress.Approved++
		}
	}
	return progress
}

// PendingUploads lists documents still waiting for an upload.
func (p *ImmigrationProcess) PendingUploads() []UploadedDocument {
	var pending []UploadedDocument
	for _, d := range p.UploadedDocuments {
		if d.Status == DocumentPendingUpload {
			pending = append(pending, d)
		}
	}
	return pending
}

// HasBlockingUploads reports whether any document is still PENDING_UPLOAD.
func (p *ImmigrationProcess) HasBlockingUploads() bool {
	return len(p.PendingUploads()) > 0
}
