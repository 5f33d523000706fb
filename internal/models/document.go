package models

import "time"

// Document types accepted by the verification pipeline.
const (
	DocumentTypeIdentity       = "identity"
	DocumentTypeWorkPermit     = "work_permit"
	DocumentTypeDiploma        = "diploma"
	DocumentTypeBilling        = "billing"
	DocumentTypeCommercialReg  = "commercial_registry"
	DocumentTypeGLNCertificate = "gln_certificate"
	DocumentTypeGeneric        = "generic"
)

// DocumentRecord is the metadata entry kept on a profile for every uploaded
// document. Records for the same subfolder replace each other; the blob
// itself lives in object storage under the URL.
type DocumentRecord struct {
	ID          string    `bson:"id" json:"id"`
	Type        string    `bson:"type" json:"type"`
	Subfolder   string    `bson:"subfolder" json:"subfolder"`
	FileName    string    `bson:"file_name" json:"file_name"`
	URL         string    `bson:"url" json:"url"`
	Size        int64     `bson:"size" json:"size"`
	ContentType string    `bson:"content_type" json:"content_type"`
	UploadedAt  time.Time `bson:"uploaded_at" json:"uploaded_at"`
}

// ExpiryCheck is the outcome of the document expiry policy.
type ExpiryCheck struct {
	Expired         bool `json:"expired"`
	ExpiringSoon    bool `json:"expiring_soon"`
	DaysUntilExpiry int  `json:"days_until_expiry"`
}
