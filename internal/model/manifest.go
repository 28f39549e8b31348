package model

import "fmt"

// DefaultRepo hosts the cased multilingual WordPiece vocabulary that the
// embedding model was trained with.
const DefaultRepo = "google-bert/bert-base-multilingual-cased"

type Manifest struct {
	Repo  string      `json:"repo"`
	Files []ModelFile `json:"files"`
}

type ModelFile struct {
	Filename string `json:"filename"`
	Revision string `json:"revision"`
	// SHA256 may be empty; the checksum is then resolved from HF metadata or
	// taken from the first verified download and kept in the lock manifest.
	SHA256 string `json:"sha256"`
}

// Repos lists the repositories PinnedManifest knows about.
func Repos() []string {
	return []string{DefaultRepo, "FacebookAI/xlm-roberta-base"}
}

func PinnedManifest(repo string) (Manifest, error) {
	switch repo {
	case DefaultRepo:
		return Manifest{
			Repo: repo,
			Files: []ModelFile{
				{Filename: "vocab.txt", Revision: "main"},
				{Filename: "tokenizer.json", Revision: "main"},
			},
		}, nil
	case "FacebookAI/xlm-roberta-base":
		return Manifest{
			Repo: repo,
			Files: []ModelFile{
				{Filename: "sentencepiece.bpe.model", Revision: "main"},
			},
		}, nil
	default:
		return Manifest{}, fmt.Errorf("no pinned manifest for repo %q", repo)
	}
}
