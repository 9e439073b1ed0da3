package graph

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"unsafe"

	"catchup/pkg/plf"
	"catchup/pkg/tderr"
)

const (
	magicBytes = "CATCHUPG"
	version    = uint32(1)
	maxNodes   = 50_000_000
	maxArcs    = 200_000_000
)

// fileHeader is the on-disk header for a sanitized graph: the
// first_out/head/first_ipp_of_arc arrays from the external graph-input
// interface, plus node coordinates.
type fileHeader struct {
	Magic    [8]byte
	Version  uint32
	NumNodes uint32
	NumArcs  uint32
	NumIPP   uint32
}

// WriteBinary serializes g to path, writing to a temp file and renaming
// atomically so a reader never observes a partial write.
func WriteBinary(path string, g *Graph) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return tderr.Wrap(tderr.ErrIoFailure, "graph.WriteBinary: create temp file", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	cw := &crc32Writer{w: f, hash: crc32.NewIEEE()}

	hdr := fileHeader{
		Version:  version,
		NumNodes: g.NumNodes,
		NumArcs:  g.NumArcs,
		NumIPP:   uint32(len(g.IPP)),
	}
	copy(hdr.Magic[:], magicBytes)
	if err := binary.Write(cw, binary.LittleEndian, &hdr); err != nil {
		return tderr.Wrap(tderr.ErrIoFailure, "graph.WriteBinary: write header", err)
	}

	if err := writeUint32Slice(cw, g.FirstOut); err != nil {
		return tderr.Wrap(tderr.ErrIoFailure, "graph.WriteBinary: write FirstOut", err)
	}
	if err := writeUint32Slice(cw, g.Head); err != nil {
		return tderr.Wrap(tderr.ErrIoFailure, "graph.WriteBinary: write Head", err)
	}
	if err := writeUint32Slice(cw, g.FirstIPP); err != nil {
		return tderr.Wrap(tderr.ErrIoFailure, "graph.WriteBinary: write FirstIPP", err)
	}
	if err := writePointSlice(cw, g.IPP); err != nil {
		return tderr.Wrap(tderr.ErrIoFailure, "graph.WriteBinary: write IPP", err)
	}
	if err := writeFloat64Slice(cw, g.NodeLat); err != nil {
		return tderr.Wrap(tderr.ErrIoFailure, "graph.WriteBinary: write NodeLat", err)
	}
	if err := writeFloat64Slice(cw, g.NodeLon); err != nil {
		return tderr.Wrap(tderr.ErrIoFailure, "graph.WriteBinary: write NodeLon", err)
	}

	checksum := cw.hash.Sum32()
	if err := binary.Write(f, binary.LittleEndian, checksum); err != nil {
		return tderr.Wrap(tderr.ErrIoFailure, "graph.WriteBinary: write CRC32", err)
	}
	if err := f.Close(); err != nil {
		return tderr.Wrap(tderr.ErrIoFailure, "graph.WriteBinary: close temp file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return tderr.Wrap(tderr.ErrIoFailure, "graph.WriteBinary: rename", err)
	}
	return nil
}

// ReadBinary loads a graph from path and sanitizes it against cfg before
// returning, per the load-time invariant check in the external interface.
func ReadBinary(path string, cfg plf.Config) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, tderr.Wrap(tderr.ErrIoFailure, "graph.ReadBinary: open", err)
	}
	defer f.Close()

	cr := &crc32Reader{r: f, hash: crc32.NewIEEE()}

	var hdr fileHeader
	if err := binary.Read(cr, binary.LittleEndian, &hdr); err != nil {
		return nil, tderr.Wrap(tderr.ErrIoFailure, "graph.ReadBinary: read header", err)
	}
	if string(hdr.Magic[:]) != magicBytes {
		return nil, fmt.Errorf("%w: invalid magic bytes %q", tderr.ErrMalformedInput, hdr.Magic)
	}
	if hdr.Version != version {
		return nil, fmt.Errorf("%w: unsupported version %d", tderr.ErrMalformedInput, hdr.Version)
	}
	if hdr.NumNodes > maxNodes || hdr.NumArcs > maxArcs {
		return nil, fmt.Errorf("%w: size %d/%d exceeds limits", tderr.ErrMalformedInput, hdr.NumNodes, hdr.NumArcs)
	}

	g := &Graph{NumNodes: hdr.NumNodes, NumArcs: hdr.NumArcs}

	if g.FirstOut, err = readUint32Slice(cr, int(hdr.NumNodes+1)); err != nil {
		return nil, tderr.Wrap(tderr.ErrIoFailure, "graph.ReadBinary: read FirstOut", err)
	}
	if g.Head, err = readUint32Slice(cr, int(hdr.NumArcs)); err != nil {
		return nil, tderr.Wrap(tderr.ErrIoFailure, "graph.ReadBinary: read Head", err)
	}
	if g.FirstIPP, err = readUint32Slice(cr, int(hdr.NumArcs+1)); err != nil {
		return nil, tderr.Wrap(tderr.ErrIoFailure, "graph.ReadBinary: read FirstIPP", err)
	}
	if g.IPP, err = readPointSlice(cr, int(hdr.NumIPP)); err != nil {
		return nil, tderr.Wrap(tderr.ErrIoFailure, "graph.ReadBinary: read IPP", err)
	}
	if g.NodeLat, err = readFloat64Slice(cr, int(hdr.NumNodes)); err != nil {
		return nil, tderr.Wrap(tderr.ErrIoFailure, "graph.ReadBinary: read NodeLat", err)
	}
	if g.NodeLon, err = readFloat64Slice(cr, int(hdr.NumNodes)); err != nil {
		return nil, tderr.Wrap(tderr.ErrIoFailure, "graph.ReadBinary: read NodeLon", err)
	}

	expectedCRC := cr.hash.Sum32()
	var storedCRC uint32
	if err := binary.Read(f, binary.LittleEndian, &storedCRC); err != nil {
		return nil, tderr.Wrap(tderr.ErrIoFailure, "graph.ReadBinary: read CRC32", err)
	}
	if storedCRC != expectedCRC {
		return nil, fmt.Errorf("%w: CRC32 mismatch: stored=%08x computed=%08x", tderr.ErrMalformedInput, storedCRC, expectedCRC)
	}

	if err := g.Sanitize(cfg); err != nil {
		return nil, err
	}
	return g, nil
}

// Zero-copy I/O helpers using unsafe.Slice, mirroring the byte-for-byte
// array serialization of the preprocessing-era binary format.

func writeUint32Slice(w io.Writer, s []uint32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func writeFloat64Slice(w io.Writer, s []float64) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*8)
	_, err := w.Write(b)
	return err
}

func writePointSlice(w io.Writer, s []plf.Point) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*16)
	_, err := w.Write(b)
	return err
}

func readUint32Slice(r io.Reader, n int) ([]uint32, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]uint32, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*4)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func readFloat64Slice(r io.Reader, n int) ([]float64, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]float64, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*8)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func readPointSlice(r io.Reader, n int) ([]plf.Point, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]plf.Point, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*16)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

// CRC32 wrapping writers/readers.

type crc32Hash interface {
	Write([]byte) (int, error)
	Sum32() uint32
}

type crc32Writer struct {
	w    io.Writer
	hash crc32Hash
}

func (cw *crc32Writer) Write(p []byte) (int, error) {
	cw.hash.Write(p)
	return cw.w.Write(p)
}

type crc32Reader struct {
	r    io.Reader
	hash crc32Hash
}

func (cr *crc32Reader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.hash.Write(p[:n])
	}
	return n, err
}
