// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

/*
Frame packet layout (BigEndian):

| Field           | Type      | Bytes     |
|-----------------|-----------|-----------|
| Sequence number | uint32    | 4         |
| Timestamp       | int64     | 8         | nanoseconds since epoch
| Frame index     | uint32    | 4         |
| Mel bands (M)   | uint16    | 2         |
| Columns (C)     | uint16    | 2         |
| Values          | []float32 | M * C * 4 | dB, row-major by mel band
*/

const headerSize = 4 + 8 + 4 + 2 + 2

// Packet is a decoded frame packet.
type Packet struct {
	Sequence  uint32
	Timestamp int64
	Index     uint32
	Mels      int
	Columns   int
	Values    []float32
}

// At returns the value of mel band m in column c.
func (p Packet) At(m, c int) float32 { return p.Values[m*p.Columns+c] }

// Encode appends the packet for db (indexed [mel][column]) to buf.
func Encode(buf *bytes.Buffer, seq uint32, ts int64, index int, db [][]float64) error {
	mels := len(db)
	if mels == 0 || mels > math.MaxUint16 {
		return fmt.Errorf("cannot encode %d mel bands", mels)
	}
	cols := len(db[0])
	if cols == 0 || cols > math.MaxUint16 {
		return fmt.Errorf("cannot encode %d columns", cols)
	}
	if size := headerSize + 4*mels*cols; size > MaxPacketSize {
		return fmt.Errorf("frame %d needs %d bytes, over the %d byte limit", index, size, MaxPacketSize)
	}

	var hdr [headerSize]byte
	binary.BigEndian.PutUint32(hdr[0:], seq)
	binary.BigEndian.PutUint64(hdr[4:], uint64(ts))
	binary.BigEndian.PutUint32(hdr[12:], uint32(index))
	binary.BigEndian.PutUint16(hdr[16:], uint16(mels))
	binary.BigEndian.PutUint16(hdr[18:], uint16(cols))
	buf.Write(hdr[:])

	var v [4]byte
	for m, row := range db {
		if len(row) != cols {
			return fmt.Errorf("row %d has %d columns, want %d", m, len(row), cols)
		}
		for _, x := range row {
			binary.BigEndian.PutUint32(v[:], math.Float32bits(float32(x)))
			buf.Write(v[:])
		}
	}
	return nil
}

// Decode parses a frame packet.
func Decode(data []byte) (Packet, error) {
	if len(data) < headerSize {
		return Packet{}, errors.New("short packet")
	}
	p := Packet{
		Sequence:  binary.BigEndian.Uint32(data[0:]),
		Timestamp: int64(binary.BigEndian.Uint64(data[4:])),
		Index:     binary.BigEndian.Uint32(data[12:]),
		Mels:      int(binary.BigEndian.Uint16(data[16:])),
		Columns:   int(binary.BigEndian.Uint16(data[18:])),
	}
	n := p.Mels * p.Columns
	if len(data) != headerSize+4*n {
		return Packet{}, fmt.Errorf("packet length %d does not match %dx%d frame", len(data), p.Mels, p.Columns)
	}
	p.Values = make([]float32, n)
	for i := range p.Values {
		p.Values[i] = math.Float32frombits(binary.BigEndian.Uint32(data[headerSize+4*i:]))
	}
	return p, nil
}
