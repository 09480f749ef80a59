package storage

// Sink receives routing results, one record per line.
type Sink interface {
	Put(records ...any) error
}
