package crawler

// MetadataKeyCrawler is always present in a Metadata record and names the
// crawler that produced the discovered unit.
const MetadataKeyCrawler = "crawler"

// Metadata is the provenance record attached to every discovered unit of
// content. Records are passed by value between the crawler and the
// ingestion pipeline; use Clone before handing a record to another
// consumer so mutations never leak between units.
type Metadata map[string]string

// NewMetadata builds a Metadata record tagged with the given crawler name.
func NewMetadata(crawlerName string) Metadata {
	return Metadata{MetadataKeyCrawler: crawlerName}
}

// Clone returns a deep copy of the record. A nil receiver yields an empty,
// usable record.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Crawler returns the originating crawler name, or "" if untagged.
func (m Metadata) Crawler() string {
	return m[MetadataKeyCrawler]
}

// With returns a copy of the record with one additional key set.
func (m Metadata) With(key, value string) Metadata {
	out := m.Clone()
	out[key] = value
	return out
}
