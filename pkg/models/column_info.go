package models

// MaxSampleValues bounds the number of sample values kept on a ColumnInfo.
const MaxSampleValues = 20

// ColumnInfo describes one column of an imported dataset.
// It is a read-only snapshot produced by the data-processing layer and is
// recreated whenever the dataset schema or sample values are refreshed.
type ColumnInfo struct {
	Name         string   `json:"name"`
	StorageType  string   `json:"storage_type"` // VARCHAR, INTEGER, DATE, ...
	Nullable     bool     `json:"nullable"`
	SampleValues []string `json:"sample_values,omitempty"`
	UniqueCount  *int64   `json:"unique_count,omitempty"` // approximate
}

// Mapping returns the persisted link for this column.
func (c ColumnInfo) Mapping() ColumnMapping {
	return ColumnMapping{ColumnName: c.Name, StorageType: c.StorageType}
}

// BoundSamples returns a copy of the column with at most MaxSampleValues samples.
func (c ColumnInfo) BoundSamples() ColumnInfo {
	if len(c.SampleValues) > MaxSampleValues {
		c.SampleValues = append([]string(nil), c.SampleValues[:MaxSampleValues]...)
	}
	return c
}
