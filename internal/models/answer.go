package models

type AnswerStatus string

const (
	StatusAnswered    AnswerStatus = "answered"
	StatusNoDocuments AnswerStatus = "no_documents"
	StatusFailed      AnswerStatus = "failed"
)

type Answer struct {
	Question string
	Text     string
	Status   AnswerStatus
	Sources  []ChunkMetadata
	Err      error
}
