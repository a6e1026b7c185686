// Package registry implements the in-memory mirror of alarm records.
//
// The Registry holds exactly one record per alarm id. Records arrive from
// paginated fetches, from the push channel and from local transitions; every
// write stamps the record with a monotonically increasing revision so a fetch
// that started before a local write cannot overwrite it when it completes.
// Active and historical partitions are derived from status on read. New
// active records come only from page 1, pushes and single fetches, since
// only page 1 evicts them again.
//
// Producers that run concurrently (the poll task and the push subscriber)
// submit Updates to a Loop, which applies them one at a time.
package registry
