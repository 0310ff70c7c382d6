package models

const (
	NoDocumentsAnswer = "No relevant documents found."
	ErrorAnswerPrefix = "Error processing your question: "
	ContextSeparator  = "\n\n"
	IDPrefix          = "doc_"
)

// metadata keys stored alongside every chunk
const (
	MetaSource      = "source"
	MetaFilePath    = "file_path"
	MetaTotalChunks = "total_chunks"
	MetaChunkIndex  = "chunk_index"
)

var (
	PromptTemplate = `Based on the following context, answer the question.

Context:
%s

Question: %s

Answer:`
)
