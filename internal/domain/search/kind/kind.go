package kind

// Kind is the modality of the caller's query.
type Kind string

// Query kinds.
const (
	Text  Kind = "text"
	Image Kind = "image"
)

// Weights is the per-field weighting of the combined similarity score.
type Weights struct {
	Text  float64
	Image float64
}

// Same-modality similarity is the stronger signal, so it is upweighted.
var weightTable = map[Kind]Weights{
	Text:  {Text: 1.5, Image: 1.0},
	Image: {Text: 0.5, Image: 2.0},
}

// IsValid checks if the kind is one of the supported values.
func (k Kind) IsValid() bool {
	_, ok := weightTable[k]
	return ok
}

// Weights returns the fixed field weights for queries of this kind.
func (k Kind) Weights() Weights { return weightTable[k] }
