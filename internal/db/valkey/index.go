package valkey

import (
	"context"
	"errors"
	"strconv"

	"github.com/kailas-cloud/adoptapet/internal/db"
)

// CreateIndex creates an FT index over hashes from the given definition.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := buildCreateArgs(def)
	if err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "already exists") {
			return db.ErrIndexExists
		}
		return wrapErr(db.OpCreateIndex, err)
	}
	return nil
}

// DropIndex removes an FT index by name. Indexed hashes are kept.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") || isRedisErr(err, "not found") {
			return db.ErrIndexNotFound
		}
		return wrapErr(db.OpDropIndex, err)
	}
	return nil
}

// IndexExists probes index existence via FT.INFO; "unknown index name" means absent.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") || isRedisErr(err, "not found") {
			return false, nil
		}
		return false, wrapErr(db.OpIndexInfo, err)
	}
	return true, nil
}

func buildCreateArgs(idx *db.IndexDefinition) ([]string, error) {
	if idx.Name == "" {
		return nil, errors.New("index name is required")
	}
	if len(idx.Fields) == 0 {
		return nil, errors.New("at least one field is required")
	}

	args := []string{idx.Name, "ON", "HASH"}

	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}

	args = append(args, "SCHEMA")

	for i := range idx.Fields {
		fieldArgs, err := buildFieldArgs(&idx.Fields[i])
		if err != nil {
			return nil, err
		}
		args = append(args, fieldArgs...)
	}

	return args, nil
}

func buildFieldArgs(f *db.IndexField) ([]string, error) {
	if f.Name == "" {
		return nil, errors.New("field name is required")
	}

	switch f.Type {
	case db.IndexFieldNumeric:
		return []string{f.Name, "NUMERIC"}, nil
	case db.IndexFieldTag:
		return append([]string{f.Name, "TAG"}, tagAttrs(f.Tag)...), nil
	case db.IndexFieldVector:
		attrs, err := vectorAttrs(f.Vector)
		if err != nil {
			return nil, err
		}
		return append([]string{f.Name}, attrs...), nil
	default:
		return nil, errors.New("unknown field type")
	}
}

func tagAttrs(opts db.TagOptions) []string {
	var attrs []string
	if opts.Separator != "" {
		attrs = append(attrs, "SEPARATOR", opts.Separator)
	}
	if opts.CaseSensitive {
		attrs = append(attrs, "CASESENSITIVE")
	}
	return attrs
}

// vectorAttrs renders "VECTOR <algo> <nargs> <attr value>...". Vectors are stored as
// little-endian FLOAT32 blobs.
func vectorAttrs(spec db.VectorSpec) ([]string, error) {
	if spec.Dim <= 0 {
		return nil, errors.New("vector DIM must be positive")
	}
	spec = spec.Resolved()

	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(spec.Dim),
		"DISTANCE_METRIC", string(spec.Distance),
	}
	optional := func(name string, v int) {
		if v > 0 {
			attrs = append(attrs, name, strconv.Itoa(v))
		}
	}
	switch spec.Algorithm {
	case db.VectorHNSW:
		optional("M", spec.M)
		optional("EF_CONSTRUCTION", spec.EFConstruct)
	case db.VectorFlat:
		optional("BLOCK_SIZE", spec.BlockSize)
	default:
		return nil, errors.New("unknown vector algorithm: " + string(spec.Algorithm))
	}

	return append([]string{"VECTOR", string(spec.Algorithm), strconv.Itoa(len(attrs))}, attrs...), nil
}
