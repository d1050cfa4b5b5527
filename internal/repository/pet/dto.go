package pet

import (
	"encoding/json"
	"strconv"
	"strings"

	dompet "github.com/kailas-cloud/adoptapet/internal/domain/pet"
)

// Stored field names. The vector fields carry the precomputed embeddings.
const (
	fieldID          = "pet_id"
	fieldSource      = "source"
	fieldName        = "name"
	fieldSpecies     = "species"
	fieldBreed       = "breed"
	fieldAgeMonths   = "age_months"
	fieldGender      = "gender"
	fieldDescription = "description"
	fieldImagePath   = "image_path"
	fieldMetadata    = "metadata"

	fieldTextEmbedding  = "text_embedding"
	fieldImageEmbedding = "image_embedding"
)

// returnFields lists every scalar field a search hit needs to rebuild a Pet.
var returnFields = []string{
	fieldID, fieldSource, fieldName, fieldSpecies, fieldBreed,
	fieldAgeMonths, fieldGender, fieldDescription, fieldImagePath, fieldMetadata,
}

// buildFields flattens a Pet into string fields. Nil optionals are omitted.
func buildFields(p *dompet.Pet) (map[string]string, error) {
	m := map[string]string{
		fieldID:          p.ID,
		fieldSource:      string(p.Partition),
		fieldName:        p.Name,
		fieldSpecies:     p.Species,
		fieldBreed:       p.Breed,
		fieldDescription: p.Description,
		fieldImagePath:   p.ImagePath,
	}
	if p.AgeMonths != nil {
		m[fieldAgeMonths] = strconv.Itoa(*p.AgeMonths)
	}
	if p.Gender != nil {
		m[fieldGender] = *p.Gender
	}
	if len(p.Metadata) > 0 {
		raw, err := json.Marshal(p.Metadata)
		if err != nil {
			return nil, err
		}
		m[fieldMetadata] = string(raw)
	}
	return m, nil
}

// parseFields rebuilds a Pet from stored fields. The key suffix is the fallback ID.
func parseFields(keySuffix string, m map[string]string) dompet.Pet {
	p := dompet.Pet{
		ID:          m[fieldID],
		Partition:   dompet.Partition(m[fieldSource]),
		Name:        m[fieldName],
		Species:     m[fieldSpecies],
		Breed:       m[fieldBreed],
		Description: m[fieldDescription],
		ImagePath:   m[fieldImagePath],
	}
	if p.ID == "" {
		p.ID = keySuffix
	}
	if p.Name == "" {
		p.Name = "Unknown"
	}
	if v, ok := m[fieldAgeMonths]; ok && v != "" {
		// Postgres renders DOUBLE PRECISION as "14" or "14.5".
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			age := int(f)
			p.AgeMonths = &age
		}
	}
	if v, ok := m[fieldGender]; ok && v != "" {
		gender := v
		p.Gender = &gender
	}
	if v := m[fieldMetadata]; v != "" {
		var meta map[string]any
		if err := json.Unmarshal([]byte(v), &meta); err == nil {
			p.Metadata = meta
		}
	}
	if p.Partition == "" {
		p.Partition = partitionFromID(p.ID)
	}
	return p
}

func partitionFromID(id string) dompet.Partition {
	for _, part := range dompet.Known() {
		if strings.HasPrefix(id, part.IDPrefix()) {
			return part
		}
	}
	return ""
}
