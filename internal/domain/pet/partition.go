package pet

import "fmt"

// Partition is the data origin of an indexed pet. Partitions are disjoint.
type Partition string

// Known partitions.
const (
	// PetFinder holds adoption listings with full adoption metadata.
	PetFinder Partition = "petfinder"
	// OxfordIIIT holds breed-labelled photos without adoption metadata.
	OxfordIIIT Partition = "oxford_iiit"
)

var idPrefixes = map[Partition]string{
	PetFinder:  "pf-",
	OxfordIIIT: "ox-",
}

// Known returns all known partitions in declaration order.
func Known() []Partition {
	return []Partition{PetFinder, OxfordIIIT}
}

// IsValid checks if the partition is one of the known origins.
func (p Partition) IsValid() bool {
	_, ok := idPrefixes[p]
	return ok
}

// IDPrefix returns the identifier prefix of items from this partition.
func (p Partition) IDPrefix() string { return idPrefixes[p] }

// ParsePartition validates a partition name.
func ParsePartition(s string) (Partition, error) {
	p := Partition(s)
	if !p.IsValid() {
		return "", fmt.Errorf("unknown partition %q", s)
	}
	return p, nil
}
