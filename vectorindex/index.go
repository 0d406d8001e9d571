// Package vectorindex matches product descriptions against stored
// influencers. A flat inner-product index over L2-normalized vectors
// gives cosine ranking; a keyword scorer stands in when no index or
// embedder is available.
package vectorindex

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

// Errors returned by the index.
var (
	ErrEmptyIndex    = errors.New("index holds no vectors")
	ErrDimMismatch   = errors.New("vector dimension mismatch")
	ErrCountMismatch = errors.New("usernames must match vectors one to one")
)

// Hit is one search result: a username and its cosine similarity.
type Hit struct {
	Username string
	Score    float32
}

// Index is a flat inner-product index. Vectors must be L2-normalized
// so the inner product equals cosine similarity. Exhaustive scan; the
// store holds thousands of profiles at most, not millions.
type Index struct {
	vectors   [][]float32
	usernames []string
	dim       int
}

// Build creates an index from vectors and their usernames, aligned by
// position.
func Build(vectors [][]float32, usernames []string) (*Index, error) {
	if len(vectors) == 0 {
		return nil, ErrEmptyIndex
	}
	if len(vectors) != len(usernames) {
		return nil, ErrCountMismatch
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d: %w", i, len(v), dim, ErrDimMismatch)
		}
	}
	return &Index{vectors: vectors, usernames: usernames, dim: dim}, nil
}

// Len returns the number of indexed vectors.
func (ix *Index) Len() int {
	return len(ix.vectors)
}

// Usernames returns the indexed usernames in position order.
func (ix *Index) Usernames() []string {
	return append([]string(nil), ix.usernames...)
}

// Dim returns the vector dimension.
func (ix *Index) Dim() int {
	return ix.dim
}

// Search returns the topK most similar usernames to query, best first.
func (ix *Index) Search(query []float32, topK int) ([]Hit, error) {
	if len(ix.vectors) == 0 {
		return nil, ErrEmptyIndex
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query has dimension %d, want %d: %w", len(query), ix.dim, ErrDimMismatch)
	}
	if topK <= 0 {
		return nil, nil
	}

	hits := make([]Hit, 0, len(ix.vectors))
	for i, v := range ix.vectors {
		var dot float32
		for j := range v {
			dot += v[j] * query[j]
		}
		hits = append(hits, Hit{Username: ix.usernames[i], Score: dot})
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })

	if topK > len(hits) {
		topK = len(hits)
	}
	return hits[:topK], nil
}

// Binary blob layout: "CLIX" magic, then count and dim as uint32
// little-endian, then count*dim float32 values.
var blobMagic = [4]byte{'C', 'L', 'I', 'X'}

// Save writes the vectors to indexPath and the username mapping to
// mappingPath. The two files are a pair; loading one without the other
// produces misaligned results.
func (ix *Index) Save(indexPath, mappingPath string) error {
	f, err := os.Create(indexPath)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close() //nolint:errcheck // double close on success path

	if _, err := f.Write(blobMagic[:]); err != nil {
		return fmt.Errorf("write index header: %w", err)
	}
	header := []uint32{uint32(len(ix.vectors)), uint32(ix.dim)} //nolint:gosec // sizes are small
	if err := binary.Write(f, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("write index header: %w", err)
	}
	for _, v := range ix.vectors {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write index vectors: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close index file: %w", err)
	}

	mapping, err := json.MarshalIndent(ix.usernames, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal username mapping: %w", err)
	}
	if err := os.WriteFile(mappingPath, mapping, 0o600); err != nil {
		return fmt.Errorf("write username mapping: %w", err)
	}
	return nil
}

// Load reads an index pair written by Save.
func Load(indexPath, mappingPath string) (*Index, error) {
	f, err := os.Open(indexPath)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return nil, fmt.Errorf("read index header: %w", err)
	}
	if magic != blobMagic {
		return nil, errors.New("not an index file")
	}
	header := make([]uint32, 2)
	if err := binary.Read(f, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("read index header: %w", err)
	}
	count, dim := int(header[0]), int(header[1])
	if count <= 0 || dim <= 0 || dim > 1<<16 {
		return nil, fmt.Errorf("implausible index header: count=%d dim=%d", count, dim)
	}

	vectors := make([][]float32, count)
	for i := range vectors {
		v := make([]float32, dim)
		if err := binary.Read(f, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("read index vectors: %w", err)
		}
		vectors[i] = v
	}

	raw, err := os.ReadFile(mappingPath)
	if err != nil {
		return nil, fmt.Errorf("read username mapping: %w", err)
	}
	var usernames []string
	if err := json.Unmarshal(raw, &usernames); err != nil {
		// Older mappings used an object keyed by row number.
		var byRow map[string]string
		if err2 := json.Unmarshal(raw, &byRow); err2 != nil {
			return nil, fmt.Errorf("decode username mapping: %w", err)
		}
		usernames = make([]string, len(byRow))
		for i := range usernames {
			usernames[i] = byRow[fmt.Sprint(i)]
		}
	}

	return Build(vectors, usernames)
}
