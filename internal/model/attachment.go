package model

// Attachment is a binary file referenced by a transaction, such as a receipt photo.
type Attachment struct {
	ID       string `json:"id"`
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}
