package customize

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"unsafe"

	"catchup/pkg/cch"
	"catchup/pkg/plf"
	"catchup/pkg/tderr"
)

const (
	customizeMagic   = "CATCHUPC"
	customizeVersion = uint32(1)
)

// wireBounds is the on-disk (lower, upper) pair for one arc.
type wireBounds struct {
	Lower float64
	Upper float64
}

// wireSource is the fixed-size on-disk encoding of a Source: Kind widened
// to uint32 so the record is a flat 32 bytes, safe for the same
// unsafe.Slice zero-copy I/O graph.binary.go uses.
type wireSource struct {
	At      float64
	Next    float64
	Kind    uint32
	OrigArc uint32
	Down    uint32
	Up      uint32
}

func toWireSource(s Source) wireSource {
	return wireSource{At: s.At, Next: s.Next, Kind: uint32(s.Kind), OrigArc: s.OrigArc, Down: s.Down, Up: s.Up}
}

func fromWireSource(w wireSource) Source {
	return Source{At: w.At, Next: w.Next, Kind: SourceKind(w.Kind), OrigArc: w.OrigArc, Down: w.Down, Up: w.Up}
}

// customizeHeader precedes the twelve persisted arrays: first_out/head CSR,
// scalar bounds, the constant fast-path bit, and a first_source/sources
// variable-length block, each duplicated for the outgoing and incoming
// direction. ReadBinary still takes the CCH and checks the stored topology
// against it.
type customizeHeader struct {
	Magic           [8]byte
	Version         uint32
	NumNodes        uint32
	NumArcs         uint32
	NumOutSources   uint32
	NumInSources    uint32
}

// WriteBinary persists cg's twelve arrays: outgoing_first_out,
// outgoing_head, outgoing_bounds, outgoing_constant, outgoing_first_source,
// outgoing_sources, and the six incoming counterparts.
func WriteBinary(path string, cg *CustomizedGraph) error {
	c := cg.CCH
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return tderr.Wrap(tderr.ErrIoFailure, "customize.WriteBinary: create temp file", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()
	cw := &crc32Writer{w: f, hash: crc32.NewIEEE()}

	outHead := make([]uint32, c.NumArcs)
	for i, arc := range c.OutArc {
		outHead[i] = c.ArcHead[arc]
	}
	inHead := make([]uint32, c.NumArcs)
	for i, arc := range c.InArc {
		inHead[i] = c.ArcTail[arc]
	}

	outBounds, outConstant, outFirstSrc, outSrcs := packDirection(cg, c.OutArc, true)
	inBounds, inConstant, inFirstSrc, inSrcs := packDirection(cg, c.InArc, false)

	hdr := customizeHeader{
		Version:       customizeVersion,
		NumNodes:      c.NumNodes,
		NumArcs:       c.NumArcs,
		NumOutSources: uint32(len(outSrcs)),
		NumInSources:  uint32(len(inSrcs)),
	}
	copy(hdr.Magic[:], customizeMagic)
	if err := binary.Write(cw, binary.LittleEndian, &hdr); err != nil {
		return tderr.Wrap(tderr.ErrIoFailure, "customize.WriteBinary: write header", err)
	}

	writers := []func() error{
		func() error { return writeUint32Slice(cw, c.OutFirst) },
		func() error { return writeUint32Slice(cw, outHead) },
		func() error { return writeBoundsSlice(cw, outBounds) },
		func() error { return writeBoolSlice(cw, outConstant) },
		func() error { return writeUint32Slice(cw, outFirstSrc) },
		func() error { return writeSourceSlice(cw, outSrcs) },
		func() error { return writeUint32Slice(cw, c.InFirst) },
		func() error { return writeUint32Slice(cw, inHead) },
		func() error { return writeBoundsSlice(cw, inBounds) },
		func() error { return writeBoolSlice(cw, inConstant) },
		func() error { return writeUint32Slice(cw, inFirstSrc) },
		func() error { return writeSourceSlice(cw, inSrcs) },
	}
	for _, w := range writers {
		if err := w(); err != nil {
			return tderr.Wrap(tderr.ErrIoFailure, "customize.WriteBinary: write array", err)
		}
	}

	checksum := cw.hash.Sum32()
	if err := binary.Write(f, binary.LittleEndian, checksum); err != nil {
		return tderr.Wrap(tderr.ErrIoFailure, "customize.WriteBinary: write CRC32", err)
	}
	if err := f.Close(); err != nil {
		return tderr.Wrap(tderr.ErrIoFailure, "customize.WriteBinary: close temp file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return tderr.Wrap(tderr.ErrIoFailure, "customize.WriteBinary: rename", err)
	}
	return nil
}

// packDirection flattens cg's shortcuts, in the given CSR arc order, into
// parallel bounds/constant/source arrays.
func packDirection(cg *CustomizedGraph, arcOrder []uint32, outgoing bool) ([]wireBounds, []bool, []uint32, []wireSource) {
	bounds := make([]wireBounds, len(arcOrder))
	constant := make([]bool, len(arcOrder))
	firstSrc := make([]uint32, len(arcOrder)+1)
	var srcs []wireSource
	for i, arc := range arcOrder {
		s := cg.shortcut(arc, outgoing)
		bounds[i] = wireBounds{Lower: s.Lower, Upper: s.Upper}
		constant[i] = s.Constant
		firstSrc[i] = uint32(len(srcs))
		for _, src := range s.Sources {
			srcs = append(srcs, toWireSource(src))
		}
	}
	firstSrc[len(arcOrder)] = uint32(len(srcs))
	return bounds, constant, firstSrc, srcs
}

// ReadBinary reconstructs a CustomizedGraph against the already-loaded CCH
// c, cross-checking the persisted topology (first_out/head) matches c's own
// before trusting bounds/sources.
func ReadBinary(path string, c *cch.CCH, cfg plf.Config) (*CustomizedGraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, tderr.Wrap(tderr.ErrIoFailure, "customize.ReadBinary: open", err)
	}
	defer f.Close()
	cr := &crc32Reader{r: f, hash: crc32.NewIEEE()}

	var hdr customizeHeader
	if err := binary.Read(cr, binary.LittleEndian, &hdr); err != nil {
		return nil, tderr.Wrap(tderr.ErrIoFailure, "customize.ReadBinary: read header", err)
	}
	if string(hdr.Magic[:]) != customizeMagic {
		return nil, fmt.Errorf("%w: invalid magic bytes %q", tderr.ErrMalformedInput, hdr.Magic)
	}
	if hdr.Version != customizeVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", tderr.ErrMalformedInput, hdr.Version)
	}
	if hdr.NumNodes != c.NumNodes || hdr.NumArcs != c.NumArcs {
		return nil, fmt.Errorf("%w: customization size %d/%d does not match CCH %d/%d",
			tderr.ErrMalformedInput, hdr.NumNodes, hdr.NumArcs, c.NumNodes, c.NumArcs)
	}

	outFirst, err := readUint32Slice(cr, int(c.NumNodes+1))
	if err != nil {
		return nil, tderr.Wrap(tderr.ErrIoFailure, "customize.ReadBinary: read outgoing_first_out", err)
	}
	outHead, err := readUint32Slice(cr, int(c.NumArcs))
	if err != nil {
		return nil, tderr.Wrap(tderr.ErrIoFailure, "customize.ReadBinary: read outgoing_head", err)
	}
	outBounds, err := readBoundsSlice(cr, int(c.NumArcs))
	if err != nil {
		return nil, tderr.Wrap(tderr.ErrIoFailure, "customize.ReadBinary: read outgoing_bounds", err)
	}
	outConstant, err := readBoolSlice(cr, int(c.NumArcs))
	if err != nil {
		return nil, tderr.Wrap(tderr.ErrIoFailure, "customize.ReadBinary: read outgoing_constant", err)
	}
	outFirstSrc, err := readUint32Slice(cr, int(c.NumArcs+1))
	if err != nil {
		return nil, tderr.Wrap(tderr.ErrIoFailure, "customize.ReadBinary: read outgoing_first_source", err)
	}
	outSrcs, err := readSourceSlice(cr, int(hdr.NumOutSources))
	if err != nil {
		return nil, tderr.Wrap(tderr.ErrIoFailure, "customize.ReadBinary: read outgoing_sources", err)
	}

	inFirst, err := readUint32Slice(cr, int(c.NumNodes+1))
	if err != nil {
		return nil, tderr.Wrap(tderr.ErrIoFailure, "customize.ReadBinary: read incoming_first_out", err)
	}
	inHead, err := readUint32Slice(cr, int(c.NumArcs))
	if err != nil {
		return nil, tderr.Wrap(tderr.ErrIoFailure, "customize.ReadBinary: read incoming_head", err)
	}
	inBounds, err := readBoundsSlice(cr, int(c.NumArcs))
	if err != nil {
		return nil, tderr.Wrap(tderr.ErrIoFailure, "customize.ReadBinary: read incoming_bounds", err)
	}
	inConstant, err := readBoolSlice(cr, int(c.NumArcs))
	if err != nil {
		return nil, tderr.Wrap(tderr.ErrIoFailure, "customize.ReadBinary: read incoming_constant", err)
	}
	inFirstSrc, err := readUint32Slice(cr, int(c.NumArcs+1))
	if err != nil {
		return nil, tderr.Wrap(tderr.ErrIoFailure, "customize.ReadBinary: read incoming_first_source", err)
	}
	inSrcs, err := readSourceSlice(cr, int(hdr.NumInSources))
	if err != nil {
		return nil, tderr.Wrap(tderr.ErrIoFailure, "customize.ReadBinary: read incoming_sources", err)
	}

	expectedCRC := cr.hash.Sum32()
	var storedCRC uint32
	if err := binary.Read(f, binary.LittleEndian, &storedCRC); err != nil {
		return nil, tderr.Wrap(tderr.ErrIoFailure, "customize.ReadBinary: read CRC32", err)
	}
	if storedCRC != expectedCRC {
		return nil, fmt.Errorf("%w: CRC32 mismatch: stored=%08x computed=%08x", tderr.ErrMalformedInput, storedCRC, expectedCRC)
	}

	if err := checkTopology(outFirst, outHead, c.OutFirst, c.OutArc, c.ArcHead, "outgoing"); err != nil {
		return nil, err
	}
	if err := checkTopology(inFirst, inHead, c.InFirst, c.InArc, c.ArcTail, "incoming"); err != nil {
		return nil, err
	}

	cg := &CustomizedGraph{CCH: c, Cfg: cfg, Outgoing: make([]Shortcut, c.NumArcs), Incoming: make([]Shortcut, c.NumArcs)}
	unpackDirection(cg, c.OutArc, true, outBounds, outConstant, outFirstSrc, outSrcs)
	unpackDirection(cg, c.InArc, false, inBounds, inConstant, inFirstSrc, inSrcs)
	return cg, nil
}

func checkTopology(first, head, wantFirst []uint32, arcOrder, endpoint []uint32, label string) error {
	if len(first) != len(wantFirst) {
		return fmt.Errorf("%w: %s_first_out length mismatch", tderr.ErrMalformedInput, label)
	}
	for i := range first {
		if first[i] != wantFirst[i] {
			return fmt.Errorf("%w: %s_first_out diverges from CCH at %d", tderr.ErrMalformedInput, label, i)
		}
	}
	for i, arc := range arcOrder {
		if head[i] != endpoint[arc] {
			return fmt.Errorf("%w: %s_head diverges from CCH at %d", tderr.ErrMalformedInput, label, i)
		}
	}
	return nil
}

func unpackDirection(cg *CustomizedGraph, arcOrder []uint32, outgoing bool, bounds []wireBounds, constant []bool, firstSrc []uint32, srcs []wireSource) {
	for i, arc := range arcOrder {
		dst := cg.shortcut(arc, outgoing)
		dst.Lower, dst.Upper = bounds[i].Lower, bounds[i].Upper
		dst.Constant = constant[i]
		lo, hi := firstSrc[i], firstSrc[i+1]
		dst.Sources = make([]Source, 0, hi-lo)
		for _, w := range srcs[lo:hi] {
			dst.Sources = append(dst.Sources, fromWireSource(w))
		}
		dst.infeasible = len(dst.Sources) == 0
	}
}

// --- zero-copy array I/O, mirroring graph/binary.go's pattern ---

func writeUint32Slice(w io.Writer, s []uint32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func readUint32Slice(r io.Reader, n int) ([]uint32, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]uint32, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*4)
	_, err := io.ReadFull(r, b)
	return s, err
}

func writeBoundsSlice(w io.Writer, s []wireBounds) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*16)
	_, err := w.Write(b)
	return err
}

func readBoundsSlice(r io.Reader, n int) ([]wireBounds, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]wireBounds, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*16)
	_, err := io.ReadFull(r, b)
	return s, err
}

func writeSourceSlice(w io.Writer, s []wireSource) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*32)
	_, err := w.Write(b)
	return err
}

func readSourceSlice(r io.Reader, n int) ([]wireSource, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]wireSource, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*32)
	_, err := io.ReadFull(r, b)
	return s, err
}

// writeBoolSlice/readBoolSlice pack one byte per bool; the constant flag is
// rare enough (one per arc) that byte packing is simpler than a bitset and
// the size difference is immaterial next to the sources block.
func writeBoolSlice(w io.Writer, s []bool) error {
	if len(s) == 0 {
		return nil
	}
	buf := make([]byte, len(s))
	for i, b := range s {
		if b {
			buf[i] = 1
		}
	}
	_, err := w.Write(buf)
	return err
}

func readBoolSlice(r io.Reader, n int) ([]bool, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	out := make([]bool, n)
	for i, b := range buf {
		out[i] = b != 0
	}
	return out, nil
}

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
