package graph_test

import (
	"os"
	"path/filepath"
	"testing"

	"catchup/pkg/graph"
	"catchup/pkg/plf"
)

// constPLF returns a one-point-per-period-boundary constant travel time.
func constPLF(cfg plf.Config, millis float64) []plf.Point {
	return []plf.Point{{At: 0, Val: millis}, {At: cfg.PeriodMillis, Val: millis}}
}

func buildTestGraph(t *testing.T, cfg plf.Config) *graph.Graph {
	t.Helper()

	// 0 <-> 1 <-> 2, plus 0 -> 3, four nodes, five directed arcs, listed in
	// tail order so the IPP pool below lines up with the CSR arc slots.
	type arc struct {
		from, to uint32
		millis   float64
	}
	arcs := []arc{
		{0, 1, 100},
		{0, 3, 300},
		{1, 0, 100},
		{1, 2, 200},
		{2, 1, 200},
	}

	numNodes := uint32(4)
	firstOut := make([]uint32, numNodes+1)
	for _, a := range arcs {
		firstOut[a.from+1]++
	}
	for i := uint32(1); i <= numNodes; i++ {
		firstOut[i] += firstOut[i-1]
	}

	numArcs := uint32(len(arcs))
	head := make([]uint32, numArcs)
	firstIPP := make([]uint32, numArcs+1)
	var ipp []plf.Point

	pos := append([]uint32(nil), firstOut[:numNodes]...)
	for _, a := range arcs {
		idx := pos[a.from]
		head[idx] = a.to
		firstIPP[idx] = uint32(len(ipp))
		ipp = append(ipp, constPLF(cfg, a.millis)...)
		pos[a.from]++
	}
	firstIPP[numArcs] = uint32(len(ipp))

	g := &graph.Graph{
		NumNodes: numNodes,
		NumArcs:  numArcs,
		FirstOut: firstOut,
		Head:     head,
		FirstIPP: firstIPP,
		IPP:      ipp,
		NodeLat:  []float64{1.30, 1.31, 1.32, 1.29},
		NodeLon:  []float64{103.80, 103.81, 103.82, 103.79},
	}
	if err := g.Sanitize(cfg); err != nil {
		t.Fatalf("Sanitize on constructed test graph: %v", err)
	}
	return g
}

func TestBinaryRoundTrip(t *testing.T) {
	cfg := plf.DefaultConfig()
	original := buildTestGraph(t, cfg)

	dir := t.TempDir()
	path := filepath.Join(dir, "test.graph.bin")

	if err := graph.WriteBinary(path, original); err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}

	loaded, err := graph.ReadBinary(path, cfg)
	if err != nil {
		t.Fatalf("ReadBinary: %v", err)
	}

	if loaded.NumNodes != original.NumNodes {
		t.Errorf("NumNodes: got %d, want %d", loaded.NumNodes, original.NumNodes)
	}
	if loaded.NumArcs != original.NumArcs {
		t.Errorf("NumArcs: got %d, want %d", loaded.NumArcs, original.NumArcs)
	}

	for i := uint32(0); i < original.NumNodes; i++ {
		if loaded.NodeLat[i] != original.NodeLat[i] {
			t.Errorf("NodeLat[%d]: got %f, want %f", i, loaded.NodeLat[i], original.NodeLat[i])
		}
		if loaded.NodeLon[i] != original.NodeLon[i] {
			t.Errorf("NodeLon[%d]: got %f, want %f", i, loaded.NodeLon[i], original.NodeLon[i])
		}
	}

	if len(loaded.Head) != len(original.Head) {
		t.Fatalf("Head length: got %d, want %d", len(loaded.Head), len(original.Head))
	}
	for i := range original.Head {
		if loaded.Head[i] != original.Head[i] {
			t.Errorf("Head[%d]: got %d, want %d", i, loaded.Head[i], original.Head[i])
		}
	}

	if len(loaded.IPP) != len(original.IPP) {
		t.Fatalf("IPP length: got %d, want %d", len(loaded.IPP), len(original.IPP))
	}
	for i := range original.IPP {
		if loaded.IPP[i] != original.IPP[i] {
			t.Errorf("IPP[%d]: got %+v, want %+v", i, loaded.IPP[i], original.IPP[i])
		}
	}

	for e := uint32(0); e < original.NumArcs; e++ {
		want := plf.Evaluate(original.EdgePLF(e), 12345, cfg)
		got := plf.Evaluate(loaded.EdgePLF(e), 12345, cfg)
		if got != want {
			t.Errorf("arc %d: Evaluate(12345) = %v, want %v", e, got, want)
		}
	}
}

func TestBinaryInvalidMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.graph.bin")
	os.WriteFile(path, []byte("NOT_CATCHUPG_HEADER_BLAH_BLAH_BLAH_MORE_DATA"), 0644)

	_, err := graph.ReadBinary(path, plf.DefaultConfig())
	if err == nil {
		t.Fatal("expected error for invalid magic bytes")
	}
}

func TestBinaryTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "truncated.graph.bin")
	os.WriteFile(path, []byte("CATCHUPG"), 0644)

	_, err := graph.ReadBinary(path, plf.DefaultConfig())
	if err == nil {
		t.Fatal("expected error for truncated file")
	}
}

func TestBinaryCorruptedChecksum(t *testing.T) {
	cfg := plf.DefaultConfig()
	original := buildTestGraph(t, cfg)

	dir := t.TempDir()
	path := filepath.Join(dir, "flipped.graph.bin")
	if err := graph.WriteBinary(path, original); err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	// Flip a byte inside the body, well past the header, leaving the CRC
	// trailer itself untouched so the mismatch is actually detected.
	data[len(data)-5] ^= 0xFF
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := graph.ReadBinary(path, cfg); err == nil {
		t.Fatal("expected CRC32 mismatch error")
	}
}
