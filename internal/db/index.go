package db

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DistanceMetric used by vector similarity queries.
type DistanceMetric string

const (
	// DistanceL2 is Euclidean distance.
	DistanceL2 DistanceMetric = "L2"
	// DistanceIP is inner product distance.
	DistanceIP DistanceMetric = "IP"
	// DistanceCosine is cosine distance.
	DistanceCosine DistanceMetric = "COSINE"
)

// VectorAlgorithm selects the indexing algorithm for vector fields.
type VectorAlgorithm string

const (
	// VectorHNSW uses the HNSW algorithm.
	VectorHNSW VectorAlgorithm = "HNSW"
	// VectorFlat uses the FLAT (brute-force) algorithm.
	VectorFlat VectorAlgorithm = "FLAT"
)

// IndexFieldType enumerates supported index field types.
type IndexFieldType int

const (
	// IndexFieldNumeric is a numeric field.
	IndexFieldNumeric IndexFieldType = iota
	// IndexFieldTag is a tag field.
	IndexFieldTag
	// IndexFieldVector is a vector field.
	IndexFieldVector
)

// TagOptions configures a TAG field. The zero value is Valkey's default (comma, case-folded).
type TagOptions struct {
	Separator     string
	CaseSensitive bool
}

// VectorSpec configures a vector field. A zero Algorithm means HNSW, a zero Distance COSINE.
type VectorSpec struct {
	Algorithm   VectorAlgorithm
	Dim         int
	Distance    DistanceMetric
	M           int // HNSW max edges per node
	EFConstruct int // HNSW build-time candidate list size
	BlockSize   int // FLAT only
}

// Resolved returns the spec with zero Algorithm and Distance filled in.
func (v VectorSpec) Resolved() VectorSpec {
	if v.Algorithm == "" {
		v.Algorithm = VectorHNSW
	}
	if v.Distance == "" {
		v.Distance = DistanceCosine
	}
	return v
}

func (v VectorSpec) validate() error {
	if v.Dim <= 0 {
		return errors.New("vector field requires positive DIM")
	}
	switch v.Resolved().Algorithm {
	case VectorHNSW, VectorFlat:
	default:
		return errors.New("unknown vector algorithm: " + string(v.Algorithm))
	}
	return nil
}

// IndexField describes a single field in an index schema. Tag is read for TAG fields,
// Vector for VECTOR fields.
type IndexField struct {
	Name   string
	Type   IndexFieldType
	Tag    TagOptions
	Vector VectorSpec
}

// IndexDefinition is a complete index definition. Valkey renders it as FT.CREATE over
// hashes under Prefixes; Postgres renders it as a table plus one HNSW index per vector field.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

// VectorFields returns the names of all vector fields in declaration order.
func (idx *IndexDefinition) VectorFields() []string {
	var names []string
	for i := range idx.Fields {
		if idx.Fields[i].Type == IndexFieldVector {
			names = append(names, idx.Fields[i].Name)
		}
	}
	return names
}

// Validate checks that the index definition is well-formed.
func (idx *IndexDefinition) Validate() error {
	if idx.Name == "" {
		return errors.New("index name is required")
	}
	if !IsValidIdentifier(idx.Name) {
		return errors.New("index name contains invalid characters")
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}

	seen := make(map[string]bool)
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Name == "" {
			return errors.New("field name is required at index " + strconv.Itoa(i))
		}
		if !IsValidIdentifier(f.Name) || strings.Contains(f.Name, ":") {
			return errors.New("field name contains invalid characters: " + f.Name)
		}
		if seen[f.Name] {
			return errors.New("duplicate field name: " + f.Name)
		}
		seen[f.Name] = true

		if f.Type == IndexFieldVector {
			if err := f.Vector.validate(); err != nil {
				return fmt.Errorf("field %s: %w", f.Name, err)
			}
		}
	}

	return nil
}

// IsValidIdentifier returns true if s matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		isSpecial := r == '_' || r == ':' || r == '-'
		if !isAlpha && !isDigit && !isSpecial {
			return false
		}
	}
	return true
}
