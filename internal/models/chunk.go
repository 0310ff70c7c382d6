package models

import (
	"strconv"
)

// ChunkMetadata describes where a chunk came from.
type ChunkMetadata struct {
	Source      string `json:"source"`
	FilePath    string `json:"file_path"`
	TotalChunks int    `json:"total_chunks"`
	ChunkIndex  int    `json:"chunk_index"`
}

// Chunk represents a parsed chunk with metadata
type Chunk struct {
	Content  string
	Metadata ChunkMetadata
}

// Entry is one record of the vector collection.
type Entry struct {
	ID        string
	Content   string
	Metadata  ChunkMetadata
	Embedding []float32
}

// RetrievedChunk is a search hit. Similarity is cosine similarity, higher is closer.
type RetrievedChunk struct {
	ID         string
	Content    string
	Metadata   ChunkMetadata
	Similarity float32
}

// SearchResult holds hits ranked by descending similarity.
type SearchResult struct {
	Chunks []RetrievedChunk
}

func (r SearchResult) Empty() bool {
	return len(r.Chunks) == 0
}

// Documents returns the hit texts in rank order.
func (r SearchResult) Documents() []string {
	docs := make([]string, 0, len(r.Chunks))
	for _, c := range r.Chunks {
		docs = append(docs, c.Content)
	}
	return docs
}

// ToMap flattens metadata for stores that only keep string values.
func (m ChunkMetadata) ToMap() map[string]string {
	return map[string]string{
		MetaSource:      m.Source,
		MetaFilePath:    m.FilePath,
		MetaTotalChunks: strconv.Itoa(m.TotalChunks),
		MetaChunkIndex:  strconv.Itoa(m.ChunkIndex),
	}
}

// MetadataFromMap is the inverse of ToMap. Unparsable numbers become zero.
func MetadataFromMap(m map[string]string) ChunkMetadata {
	total, _ := strconv.Atoi(m[MetaTotalChunks])
	index, _ := strconv.Atoi(m[MetaChunkIndex])
	return ChunkMetadata{
		Source:      m[MetaSource],
		FilePath:    m[MetaFilePath],
		TotalChunks: total,
		ChunkIndex:  index,
	}
}
