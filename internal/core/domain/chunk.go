package domain

// Chunk is one retrievable unit of the knowledge corpus. Index is the
// global ordinal assigned at corpus load and is unique across sources.
type Chunk struct {
	Index           int    `json:"chunk_index"`
	Text            string `json:"text"`
	Source          string `json:"source"`
	Chapter         string `json:"chapter,omitempty"`
	Topic           string `json:"topic,omitempty"`
	Dosha           string `json:"dosha,omitempty"`
	Category        string `json:"category,omitempty"`
	DiseaseType     string `json:"disease_type,omitempty"`
	Srotas          string `json:"srotas,omitempty"`
	TreatmentType   string `json:"treatment_type,omitempty"`
	LevelOfCare     string `json:"level_of_care,omitempty"`
	FormulationType string `json:"formulation_type,omitempty"`
}

type SearchFilter struct {
	Source string
}

// ScoredChunk is a single-retriever hit before fusion.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// ChapterText is one parsed chapter of a source document.
type ChapterText struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// RetrievalCandidate carries a chunk through the hybrid pipeline. Ranks are
// 1-based; zero means the chunk was absent from that ranking.
type RetrievalCandidate struct {
	Chunk        Chunk   `json:"chunk"`
	DenseRank    int     `json:"dense_rank,omitempty"`
	DenseScore   float64 `json:"dense_score,omitempty"`
	LexicalRank  int     `json:"lexical_rank,omitempty"`
	LexicalScore float64 `json:"lexical_score,omitempty"`
	FusedScore   float64 `json:"fused_score,omitempty"`
	RerankScore  float64 `json:"rerank_score,omitempty"`
}
