// Package index owns the on-disk file formats: per-shard dictionary and
// postings files plus the three document-store files. All integers are
// little-endian; the directory layout is self-describing and carries no magic
// numbers or version bytes.
package index

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

const (
	DictFileName     = "dict.dat"
	PostingsFileName = "postings.dat"
	DocumentsFile    = "documents.dat"
	DocOffsetsFile   = "doc_offsets.dat"
	DocNamesFile     = "doc_names.dat"
	TempDirName      = "temp"
)

// ShardDir returns the directory for shard k under the index root.
func ShardDir(root string, k int) string {
	return filepath.Join(root, fmt.Sprintf("shard_%d", k))
}

// ShardForTerm routes a term to its shard: hash(term) mod numShards. The
// builder and the retriever must agree on this function so every term lives
// in exactly one shard.
func ShardForTerm(term string, numShards int) int {
	return int(xxhash.Sum64String(term) % uint64(numShards))
}

// Exists reports whether every required index file is present for the given
// shard count.
func Exists(root string, numShards int) bool {
	for _, name := range []string{DocumentsFile, DocOffsetsFile, DocNamesFile} {
		if _, err := os.Stat(filepath.Join(root, name)); err != nil {
			return false
		}
	}
	for k := 0; k < numShards; k++ {
		dir := ShardDir(root, k)
		for _, name := range []string{DictFileName, PostingsFileName} {
			if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
				return false
			}
		}
	}
	return true
}
