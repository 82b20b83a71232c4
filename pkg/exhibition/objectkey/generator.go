package objectkey

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator defines the interface for asset name strategies. Names are
// derived from a fresh asset id and never from caller input.
type Generator interface {
	GenerateKey(assetID uuid.UUID, ext string) string
}

// FlatGenerator stores every asset at the root: {uuid}.{ext}
type FlatGenerator struct {
	// Prefix is an optional directory in front of the name
	Prefix string
}

func NewFlatGenerator() *FlatGenerator {
	return &FlatGenerator{}
}

func (g *FlatGenerator) GenerateKey(assetID uuid.UUID, ext string) string {
	name := assetID.String() + normalizeExt(ext)
	if g.Prefix == "" {
		return name
	}
	return fmt.Sprintf("%s/%s", sanitizePathComponent(g.Prefix), name)
}

// ShardedGenerator provides Git-style sharding to keep directories small
// Layout: {prefix}/ab/cd1234ef5678....{ext}
type ShardedGenerator struct {
	Prefix string
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewShardedGenerator(prefix string) *ShardedGenerator {
	return &ShardedGenerator{
		Prefix:      prefix,
		ShardLength: 2,
	}
}

func (g *ShardedGenerator) GenerateKey(assetID uuid.UUID, ext string) string {
	idStr := strings.ReplaceAll(assetID.String(), "-", "")

	shardLength := g.ShardLength
	if shardLength <= 0 || shardLength > len(idStr) {
		shardLength = 2
	}

	shardDir := idStr[:shardLength]
	filename := idStr[shardLength:] + normalizeExt(ext)

	if g.Prefix == "" {
		return fmt.Sprintf("%s/%s", shardDir, filename)
	}
	return fmt.Sprintf("%s/%s/%s", sanitizePathComponent(g.Prefix), shardDir, filename)
}

func normalizeExt(ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if ext == "" {
		return ""
	}
	return "." + sanitizePathComponent(ext)
}

func sanitizePathComponent(component string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
		"..", "_",
	)
	return replacer.Replace(component)
}
