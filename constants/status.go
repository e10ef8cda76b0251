package constants

// ImageStatus is the outcome recorded for one input image.
type ImageStatus string

// Stable values (stored as-is in the ledger).
const (
	ImageStatusProcessed ImageStatus = "processed" // sheet written, image archived
	ImageStatusCorrupt   ImageStatus = "corrupt"   // failed structural check, archived with prefix
	ImageStatusFailed    ImageStatus = "failed"    // extraction failed, left in place
	ImageStatusEmpty     ImageStatus = "empty"     // model returned no items, left in place
	ImageStatusDuplicate ImageStatus = "duplicate" // same content already processed
)
