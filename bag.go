package rosbag

// ConnectionTable is the connection map of spec.md §3.2/§4.4: a lookup by
// connection id plus the order connections were first declared in, since
// several derivation helpers (§4.7) are order-sensitive ("order of output
// is input order of first appearance").
type ConnectionTable struct {
	ByID  map[uint32]ConnectionRecord
	Order []uint32
}

// NewConnectionTable returns an empty, ready-to-populate table.
func NewConnectionTable() *ConnectionTable {
	return &ConnectionTable{ByID: make(map[uint32]ConnectionRecord)}
}

// Add records a connection, appending to Order only the first time a given
// id is seen (matching the "last write wins" duplicate rule elsewhere in the
// format: later Add calls for the same id update ByID but don't reorder).
func (t *ConnectionTable) Add(rec ConnectionRecord) {
	if _, exists := t.ByID[rec.Conn]; !exists {
		t.Order = append(t.Order, rec.Conn)
	}
	t.ByID[rec.Conn] = rec
}

// InOrder returns the connections in first-appearance order.
func (t *ConnectionTable) InOrder() []ConnectionRecord {
	out := make([]ConnectionRecord, 0, len(t.Order))
	for _, id := range t.Order {
		out = append(out, t.ByID[id])
	}
	return out
}

// Bag is the in-memory model of one bag file: its global header, the
// connection table, and the ordered chunk-info trailer. It owns all of its
// records; there is no aliasing between components (spec.md §4.4).
//
// Connection.reader and ChunkInfo.nextChunk style back-references from the
// original format description are modeled here as plain indices (a map key,
// a slice position), never as owning pointers, so the model stays acyclic
// per the design note in spec.md §9.
type Bag struct {
	Header      BagHeaderRecord
	Connections *ConnectionTable
	ChunkInfos  []ChunkInfoRecord
}

// NewBag returns an empty bag model, ready to be populated by a Reader or by
// direct construction (producer tooling per spec.md §3.5).
func NewBag() *Bag {
	return &Bag{Connections: NewConnectionTable()}
}
